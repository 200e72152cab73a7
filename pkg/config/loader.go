package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Start from built-in defaults
//  2. Load agent.yaml from configDir (optional) with env expansion
//  3. Merge user YAML over defaults (non-zero values override)
//  4. Apply recognized environment overrides
//  5. Validate
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	cfg := defaultConfig()
	cfg.configDir = configDir

	user, err := loadYAML(filepath.Join(configDir, "agent.yaml"))
	if err != nil {
		return nil, NewLoadError("agent.yaml", err)
	}
	if user != nil {
		if err := mergo.Merge(cfg, user, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge agent.yaml: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized",
		"queue_concurrency", cfg.Queue.Concurrency,
		"session_timeout", cfg.Session.Timeout,
		"llm_model", cfg.LLM.Model,
		"embedding_dimensions", cfg.Embedding.Dimensions)

	return cfg, nil
}

// loadYAML reads and parses a YAML file, expanding environment variables
// first. A missing file is not an error; it returns nil.
func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &cfg, nil
}

// applyEnvOverrides maps the recognized environment options onto the config.
func applyEnvOverrides(cfg *Config) {
	if v, ok := envInt("SESSION_TIMEOUT_MINUTES"); ok {
		cfg.Session.Timeout = time.Duration(v) * time.Minute
	}
	if v, ok := envInt("MAX_MESSAGE_HISTORY"); ok {
		cfg.Session.MaxHistory = v
	}
	if v, ok := envInt("IDLE_CHECK_INTERVAL_MINUTES"); ok {
		cfg.Sweeper.Interval = time.Duration(v) * time.Minute
	}
	if v, ok := envInt("QUEUE_CONCURRENCY"); ok {
		cfg.Queue.Concurrency = v
	}
	if v, ok := envInt("WHATSAPP_MAX_MESSAGES_PER_SECOND"); ok {
		cfg.RateLimit.PerSecond = v
	}
	if v, ok := envInt("WHATSAPP_MAX_MESSAGES_PER_MINUTE"); ok {
		cfg.RateLimit.PerMinute = v
	}
	if v, ok := envInt("WHATSAPP_MAX_MESSAGES_PER_HOUR"); ok {
		cfg.RateLimit.PerHour = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v, ok := envInt("LLM_MAX_TOKENS"); ok {
		cfg.LLM.MaxTokens = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LLM.Temperature = f
		} else {
			slog.Warn("Invalid LLM_TEMPERATURE, keeping default", "value", v)
		}
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v, ok := envInt("EMBEDDING_DIMENSIONS"); ok {
		cfg.Embedding.Dimensions = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer environment variable, ignoring", "key", key, "value", v)
		return 0, false
	}
	return n, true
}

// validate runs struct-tag validation over the merged configuration.
func validate(cfg *Config) error {
	v := validator.New()
	return v.Struct(cfg)
}
