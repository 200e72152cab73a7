package config

import "time"

// Config is the umbrella configuration object returned by Initialize and
// passed as dependencies from main. There is no global mutable state beyond
// initialization.
type Config struct {
	configDir string

	Server    *ServerConfig    `yaml:"server"`
	Redis     *RedisConfig     `yaml:"redis"`
	Database  *DatabaseConfig  `yaml:"database"`
	Session   *SessionConfig   `yaml:"session"`
	Sweeper   *SweeperConfig   `yaml:"sweeper"`
	Queue     *QueueConfig     `yaml:"queue"`
	RateLimit *RateLimitConfig `yaml:"rate_limit"`
	LLM       *LLMConfig       `yaml:"llm"`
	Embedding *EmbeddingConfig `yaml:"embedding"`
	Retrieval *RetrievalConfig `yaml:"retrieval"`
	Chunker   *ChunkerConfig   `yaml:"chunker"`
	WhatsApp  *WhatsAppConfig  `yaml:"whatsapp"`
	Notify    *NotifyConfig    `yaml:"notify"`
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port             string `yaml:"port"`
	GinMode          string `yaml:"gin_mode"`
	WebhookVerifyTok string `yaml:"webhook_verify_token"`
}

// RedisConfig holds shared key/value store connection settings.
type RedisConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig holds the relational store connection and pool settings.
// The password never lives in YAML; it is read from the environment variable
// named by PasswordEnv, the same pattern as the model-client API keys.
type DatabaseConfig struct {
	Host        string `yaml:"host" validate:"required"`
	Port        int    `yaml:"port" validate:"min=1,max=65535"`
	User        string `yaml:"user" validate:"required"`
	PasswordEnv string `yaml:"password_env" validate:"required"`
	Name        string `yaml:"name" validate:"required"`
	SSLMode     string `yaml:"ssl_mode"`

	MaxOpenConns    int           `yaml:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"min=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// SessionConfig controls session TTL and history bounding.
type SessionConfig struct {
	// Timeout is the session TTL; the session disappears if no writes occur
	// within this window. Refreshed on every write, never on reads.
	Timeout time.Duration `yaml:"timeout" validate:"min=1m"`

	// MaxHistory bounds the per-session message ring; oldest entries are
	// evicted first.
	MaxHistory int `yaml:"max_history" validate:"min=1"`
}

// SweeperConfig controls the periodic idle sweep.
type SweeperConfig struct {
	Interval time.Duration `yaml:"interval" validate:"min=1s"`
}

// QueueConfig contains queue and worker pool configuration.
type QueueConfig struct {
	// Concurrency is the number of worker goroutines per replica.
	Concurrency int `yaml:"concurrency" validate:"min=1"`

	// MaxAttempts bounds retries per job; the final failure lands in the DLQ.
	MaxAttempts int `yaml:"max_attempts" validate:"min=1"`

	// BackoffBase is the first retry delay; subsequent delays double.
	BackoffBase time.Duration `yaml:"backoff_base"`

	// JobTimeout caps a single processing attempt.
	JobTimeout time.Duration `yaml:"job_timeout"`

	// LockDuration must exceed worst-case LLM latency; a claimed job whose
	// lock lapses without a heartbeat is considered stalled.
	LockDuration time.Duration `yaml:"lock_duration"`

	// StalledCheckInterval is how often claimed jobs are scanned for lapsed
	// locks. MaxStalledCount bounds how many times a job may stall before it
	// is failed outright.
	StalledCheckInterval time.Duration `yaml:"stalled_check_interval"`
	MaxStalledCount      int           `yaml:"max_stalled_count"`

	// RatePerSecond throttles job starts across the pool.
	RatePerSecond int `yaml:"rate_per_second" validate:"min=1"`

	// PollInterval is the base worker poll interval; jitter spreads workers.
	PollInterval       time.Duration `yaml:"poll_interval"`
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`
}

// RateLimitConfig holds outbound sliding-window ceilings.
type RateLimitConfig struct {
	PerSecond int `yaml:"per_second" validate:"min=1"`
	PerMinute int `yaml:"per_minute" validate:"min=1"`
	PerHour   int `yaml:"per_hour" validate:"min=1"`
}

// LLMConfig holds completion generation parameters.
type LLMConfig struct {
	Model       string        `yaml:"model" validate:"required"`
	MaxTokens   int           `yaml:"max_tokens" validate:"min=1"`
	Temperature float64       `yaml:"temperature" validate:"min=0,max=2"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EmbeddingConfig holds vector shape and embedding backend parameters.
type EmbeddingConfig struct {
	Model      string        `yaml:"model" validate:"required"`
	Dimensions int           `yaml:"dimensions" validate:"min=1"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RetrievalConfig holds vector search parameters. The document threshold is
// deliberately lower than the property threshold: document embeddings mix
// more general text.
type RetrievalConfig struct {
	PropertyThreshold float64 `yaml:"property_threshold" validate:"min=0,max=1"`
	DocumentThreshold float64 `yaml:"document_threshold" validate:"min=0,max=1"`
	TopK              int     `yaml:"top_k" validate:"min=1"`
}

// ChunkerConfig controls text chunking for ingestion.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size" validate:"min=1"`
	Overlap   int `yaml:"overlap" validate:"min=0"`
	MinLength int `yaml:"min_length" validate:"min=0"`
}

// WhatsAppConfig holds outbound gateway settings (Meta-style Graph API).
type WhatsAppConfig struct {
	APIBaseURL    string        `yaml:"api_base_url"`
	PhoneNumberID string        `yaml:"phone_number_id"`
	TokenEnv      string        `yaml:"token_env"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
}

// NotifyConfig controls the agent notification fan-out channels.
type NotifyConfig struct {
	EmailEnabled bool   `yaml:"email_enabled"`
	EmailFrom    string `yaml:"email_from"`
	SMSEnabled   bool   `yaml:"sms_enabled"`
}
