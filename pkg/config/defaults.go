package config

import "time"

// DefaultServerConfig returns the built-in HTTP server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    "8080",
		GinMode: "release",
	}
}

// DefaultRedisConfig returns the built-in shared-store defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// DefaultDatabaseConfig returns the built-in relational store defaults.
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "realestate",
		PasswordEnv:     "DB_PASSWORD",
		Name:            "realestate",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
}

// DefaultSessionConfig returns the built-in session defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		Timeout:    30 * time.Minute,
		MaxHistory: 20,
	}
}

// DefaultSweeperConfig returns the built-in idle sweep defaults.
func DefaultSweeperConfig() *SweeperConfig {
	return &SweeperConfig{
		Interval: 5 * time.Minute,
	}
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		Concurrency:          10,
		MaxAttempts:          3,
		BackoffBase:          2 * time.Second,
		JobTimeout:           5 * time.Minute,
		LockDuration:         120 * time.Second,
		StalledCheckInterval: 30 * time.Second,
		MaxStalledCount:      2,
		RatePerSecond:        10,
		PollInterval:         1 * time.Second,
		PollIntervalJitter:   500 * time.Millisecond,
	}
}

// DefaultRateLimitConfig returns the built-in outbound ceilings.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		PerSecond: 80,
		PerMinute: 600,
		PerHour:   10000,
	}
}

// DefaultLLMConfig returns the built-in generation defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		Model:       "claude-sonnet-4-5",
		MaxTokens:   1024,
		Temperature: 0.7,
		APIKeyEnv:   "ANTHROPIC_API_KEY",
		Timeout:     60 * time.Second,
	}
}

// DefaultEmbeddingConfig returns the built-in vector shape defaults.
func DefaultEmbeddingConfig() *EmbeddingConfig {
	return &EmbeddingConfig{
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		APIKeyEnv:  "OPENAI_API_KEY",
		Timeout:    60 * time.Second,
	}
}

// DefaultRetrievalConfig returns the built-in search thresholds.
func DefaultRetrievalConfig() *RetrievalConfig {
	return &RetrievalConfig{
		PropertyThreshold: 0.7,
		DocumentThreshold: 0.2,
		TopK:              5,
	}
}

// DefaultChunkerConfig returns the built-in chunking parameters.
func DefaultChunkerConfig() *ChunkerConfig {
	return &ChunkerConfig{
		ChunkSize: 2000,
		Overlap:   200,
		MinLength: 100,
	}
}

// DefaultWhatsAppConfig returns the built-in gateway defaults.
func DefaultWhatsAppConfig() *WhatsAppConfig {
	return &WhatsAppConfig{
		APIBaseURL:  "https://graph.facebook.com/v19.0",
		TokenEnv:    "WHATSAPP_ACCESS_TOKEN",
		HTTPTimeout: 30 * time.Second,
	}
}

// DefaultNotifyConfig returns the built-in notification defaults.
func DefaultNotifyConfig() *NotifyConfig {
	return &NotifyConfig{
		EmailEnabled: false,
		SMSEnabled:   false,
	}
}

// defaultConfig assembles the full built-in configuration.
func defaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Session:   DefaultSessionConfig(),
		Sweeper:   DefaultSweeperConfig(),
		Queue:     DefaultQueueConfig(),
		RateLimit: DefaultRateLimitConfig(),
		LLM:       DefaultLLMConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Retrieval: DefaultRetrievalConfig(),
		Chunker:   DefaultChunkerConfig(),
		WhatsApp:  DefaultWhatsAppConfig(),
		Notify:    DefaultNotifyConfig(),
	}
}
