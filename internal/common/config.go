package common

import (
	"os"
	"strconv"
	"time"

	"github.com/theduckverse/refundhunter-backend/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	LLM      LLMConfig
	Cache    CacheConfig
	Audit    AuditConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	InMemory         bool
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
	// MaxRows is the row cap applied to RPC ingress, which is tighter than file ingress.
	MaxRows int
}

// LLMConfig holds configuration for the external claim classifier.
type LLMConfig struct {
	BaseURL           string
	Model             string
	APIKey            string
	Temperature       float32
	Timeout           time.Duration
	RequestsPerSecond float64
}

// CacheConfig holds classifier response cache configuration.
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// AuditConfig holds the audit policy defaults.
type AuditConfig struct {
	UnitValue           string
	MaxRows             int
	MaxClaims           int
	AssumeSingleUnit    bool
	RulesFile           string
	IncludeMessages     bool
	UseClassifier       bool
	ClassifierBatchSize int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			InMemory:         getEnvAsBool("DB_INMEM", false),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
			MaxRows:  getEnvAsInt("RPC_MAX_ROWS", constants.DefaultRPCMaxRows),
		},
		LLM: LLMConfig{
			BaseURL:           getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:             getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:            getEnv("OPENAI_API_KEY", ""),
			Temperature:       getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:           getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			RequestsPerSecond: getEnvAsFloat64("OPENAI_RPS", 2),
		},
		Cache: CacheConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      getEnvAsDuration("CLASSIFIER_CACHE_TTL", 24*time.Hour),
		},
		Audit: AuditConfig{
			UnitValue:           getEnv("AUDIT_UNIT_VALUE", constants.DefaultUnitValue),
			MaxRows:             getEnvAsInt("AUDIT_MAX_ROWS", constants.DefaultMaxRows),
			MaxClaims:           getEnvAsInt("AUDIT_MAX_CLAIMS", constants.DefaultMaxClaims),
			AssumeSingleUnit:    getEnvAsBool("AUDIT_ASSUME_SINGLE_UNIT", false),
			RulesFile:           getEnv("AUDIT_RULES_FILE", ""),
			IncludeMessages:     getEnvAsBool("AUDIT_INCLUDE_MESSAGES", true),
			UseClassifier:       getEnvAsBool("AUDIT_USE_CLASSIFIER", false),
			ClassifierBatchSize: getEnvAsInt("AUDIT_CLASSIFIER_BATCH", 200),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Audit.UseClassifier && c.LLM.APIKey == "" {
		return NewAppError(CodeConfig, "OPENAI_API_KEY is required when AUDIT_USE_CLASSIFIER is set", ErrInvalidInput)
	}
	if c.Audit.MaxRows < 0 || c.Audit.MaxClaims < 0 || c.Server.MaxRows < 0 {
		return NewAppError(CodeConfig, "row and claim caps must not be negative", ErrInvalidInput)
	}
	return nil
}
