// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBDriver        string // "sqlite" or "postgres"
	DBPath          string
	DatabaseURL     string
	Chat            ChatConfig
	RateLimit       RateLimitConfig
	Timeout         TimeoutConfig
	Retry           RetryConfig
	Retention       RetentionConfig
	ConversationLog ConversationLogConfig
	Admin           AdminConfig
}

// ChatConfig controls the completion backend and the chat endpoint.
type ChatConfig struct {
	APIKey             string
	BaseURL            string
	Model              string
	MaxTokens          int
	Temperature        float64
	MaxHistory         int
	MaxMessageLength   int
	MaxRequestBodySize int64
	TranscriptTTL      time.Duration
	WhatsAppNumber     string
}

// Enabled reports whether a completion backend can be built.
func (c ChatConfig) Enabled() bool {
	return c.APIKey != ""
}

// RateLimitConfig controls per-visitor chat throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// TimeoutConfig groups request-scoped timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration
	Completion  time.Duration
	Shutdown    time.Duration
}

// RetryConfig controls retries on database conflict errors.
type RetryConfig struct {
	DatabaseMaxRetries     int
	DatabaseRetryBaseDelay time.Duration
}

// RetentionConfig controls the background cleanup worker.
type RetentionConfig struct {
	Interval    time.Duration
	VisitorIdle time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// AdminConfig controls the admin dashboard login.
type AdminConfig struct {
	Password      string
	SessionSecret string
	SessionTTL    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:      getEnv("DB_PATH", "./data/atelier.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Chat: ChatConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			Model:              getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens:          getEnvInt("CHAT_MAX_TOKENS", 512),
			Temperature:        getEnvFloat("CHAT_TEMPERATURE", 0.4),
			MaxHistory:         getEnvInt("CHAT_MAX_HISTORY", 20),
			MaxMessageLength:   getEnvInt("CHAT_MAX_MESSAGE_LENGTH", 2000),
			MaxRequestBodySize: int64(getEnvInt("CHAT_MAX_BODY_BYTES", 1<<20)),
			TranscriptTTL:      getEnvDuration("CHAT_TRANSCRIPT_TTL", 24*time.Hour),
			WhatsAppNumber:     getEnv("WHATSAPP_NUMBER", "+20 100 000 0000"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("CHAT_RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("CHAT_RATE_LIMIT_WINDOW", time.Minute),
		},
		Timeout: TimeoutConfig{
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
			Completion:  getEnvDuration("CHAT_COMPLETION_TIMEOUT", 45*time.Second),
			Shutdown:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Retry: RetryConfig{
			DatabaseMaxRetries:     getEnvInt("DB_MAX_RETRIES", 3),
			DatabaseRetryBaseDelay: getEnvDuration("DB_RETRY_BASE_DELAY", 50*time.Millisecond),
		},
		Retention: RetentionConfig{
			Interval:    getEnvDuration("RETENTION_INTERVAL", 15*time.Minute),
			VisitorIdle: getEnvDuration("RETENTION_VISITOR_IDLE", 30*24*time.Hour),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
		Admin: AdminConfig{
			Password:      getEnv("ADMIN_PASSWORD", ""),
			SessionSecret: getEnv("ADMIN_SESSION_SECRET", ""),
			SessionTTL:    getEnvDuration("ADMIN_SESSION_TTL", 12*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.Chat.MaxHistory <= 0 {
		return fmt.Errorf("CHAT_MAX_HISTORY must be > 0")
	}
	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("CHAT_MAX_MESSAGE_LENGTH must be > 0")
	}
	if c.Chat.MaxRequestBodySize <= 0 {
		return fmt.Errorf("CHAT_MAX_BODY_BYTES must be > 0")
	}
	if c.Chat.TranscriptTTL <= 0 {
		return fmt.Errorf("CHAT_TRANSCRIPT_TTL must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("chat rate limit must be positive")
	}
	if c.Retry.DatabaseMaxRetries <= 0 {
		return fmt.Errorf("DB_MAX_RETRIES must be > 0")
	}
	if c.Retention.Interval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	if c.Admin.Password != "" && len(c.Admin.SessionSecret) < 16 {
		return fmt.Errorf("ADMIN_SESSION_SECRET must be at least 16 characters when ADMIN_PASSWORD is set")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// DatabaseDSN returns the connection string for the configured driver.
func (c *Config) DatabaseDSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}

// AdminEnabled reports whether the admin area can be used.
func (c *Config) AdminEnabled() bool {
	return c.Admin.Password != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
