package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the quiz service.
// Values are read from the environment, with .env support for local runs.
type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	DatabaseURL string
	RedisURL    string

	Kafka   KafkaConfig
	Casdoor CasdoorConfig
	OpenAI  OpenAIConfig
	Grading GradingConfig
	Email   EmailConfig
}

// KafkaConfig configures the domain event publisher.
// An empty broker list disables Kafka and falls back to the in-process bus.
type KafkaConfig struct {
	Brokers []string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// CasdoorConfig configures the Casdoor SDK used for teacher authentication.
type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

// OpenAIConfig configures the external grading client.
// An empty APIKey disables AI grading entirely; the pipeline then grades
// descriptive answers by similarity only.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

func (o OpenAIConfig) Enabled() bool {
	return o.APIKey != ""
}

// GradingConfig carries the grading pipeline tunables.
type GradingConfig struct {
	MaxRetries                  int
	TimeoutMs                   int
	FallbackSimilarityThreshold float64
	PartialCreditThreshold      float64
	MaxResponseTokens           int

	// AttemptDeadlineMs bounds one whole attempt-grading call.
	// Zero disables the bound; per-question timeouts still apply.
	AttemptDeadlineMs int
}

// EmailConfig configures result email delivery. The worker tries the HTTP
// API first and falls back to SMTP when the API is not configured or fails.
type EmailConfig struct {
	APIURL       string
	APIKey       string
	FromAddress  string
	FromName     string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MaxAttempts  int
}

// LoadConfig reads configuration from the environment. A missing .env file
// is not an error; missing required values are.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
		},
		Casdoor: CasdoorConfig{
			Endpoint:     getEnv("CASDOOR_ENDPOINT", ""),
			ClientID:     getEnv("CASDOOR_CLIENT_ID", ""),
			ClientSecret: getEnv("CASDOOR_CLIENT_SECRET", ""),
			Cert:         getEnv("CASDOOR_CERT", ""),
			Organization: getEnv("CASDOOR_ORGANIZATION", ""),
			Application:  getEnv("CASDOOR_APPLICATION", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		Grading: GradingConfig{
			MaxRetries:                  getEnvInt("GRADING_MAX_RETRIES", 3),
			TimeoutMs:                   getEnvInt("GRADING_TIMEOUT_MS", 30000),
			FallbackSimilarityThreshold: getEnvFloat("GRADING_FALLBACK_SIMILARITY_THRESHOLD", 0.7),
			PartialCreditThreshold:      getEnvFloat("GRADING_PARTIAL_CREDIT_THRESHOLD", 0.4),
			MaxResponseTokens:           getEnvInt("GRADING_MAX_RESPONSE_TOKENS", 1000),
			AttemptDeadlineMs:           getEnvInt("GRADING_ATTEMPT_DEADLINE_MS", 0),
		},
		Email: EmailConfig{
			APIURL:       getEnv("EMAIL_API_URL", ""),
			APIKey:       getEnv("EMAIL_API_KEY", ""),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "no-reply@quizforge.io"),
			FromName:     getEnv("EMAIL_FROM_NAME", "QuizForge"),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			MaxAttempts:  getEnvInt("EMAIL_MAX_ATTEMPTS", 3),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the invariants the rest of the service relies on.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Grading.MaxRetries < 1 {
		return fmt.Errorf("GRADING_MAX_RETRIES must be at least 1, got %d", c.Grading.MaxRetries)
	}
	if c.Grading.TimeoutMs <= 0 {
		return fmt.Errorf("GRADING_TIMEOUT_MS must be positive, got %d", c.Grading.TimeoutMs)
	}
	if c.Grading.FallbackSimilarityThreshold < 0 || c.Grading.FallbackSimilarityThreshold > 1 {
		return fmt.Errorf("GRADING_FALLBACK_SIMILARITY_THRESHOLD must be in [0,1], got %v", c.Grading.FallbackSimilarityThreshold)
	}
	if c.Grading.PartialCreditThreshold < 0 || c.Grading.PartialCreditThreshold > c.Grading.FallbackSimilarityThreshold {
		return fmt.Errorf("GRADING_PARTIAL_CREDIT_THRESHOLD must be in [0, fallback threshold], got %v", c.Grading.PartialCreditThreshold)
	}
	return nil
}

// GradingTimeout returns the per-call timeout for the external grading client.
func (c *Config) GradingTimeout() time.Duration {
	return time.Duration(c.Grading.TimeoutMs) * time.Millisecond
}

// AttemptDeadline returns the optional whole-attempt grading bound (0 = none).
func (c *Config) AttemptDeadline() time.Duration {
	return time.Duration(c.Grading.AttemptDeadlineMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
