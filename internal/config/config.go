package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	ESign    ESignConfig
	Storage  StorageConfig
	Sync     SyncConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
	// AllowedOrigins lists browser origins that may call the API with credentials
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// AutoMigrate creates the contract tables at startup
	AutoMigrate bool
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	Password string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret       string
	Issuer       string
	AccessExpiry time.Duration
}

// ESignConfig describes the external e-signature provider
type ESignConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	// DocumentHost is the host the provider serves documents from. Defaults to
	// the host of BaseURL.
	DocumentHost string
	Timeout      time.Duration
}

// Enabled reports whether a provider is configured
func (c ESignConfig) Enabled() bool {
	return c.BaseURL != ""
}

// StorageConfig holds the S3-compatible signed document archive settings
type StorageConfig struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
	Prefix         string
}

// Enabled reports whether signed documents should be archived
func (c StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

// SyncConfig tunes the provider reconciliation sweep
type SyncConfig struct {
	ReconcileBatchSize int
	ReconcileLockTTL   time.Duration
	// PushgatewayURL receives the sweep counters of cmd/reconcile. Empty disables metrics there.
	PushgatewayURL string
}

// Load loads configuration from environment variables
func Load() *Config {
	esignBase := strings.TrimRight(getEnv("ESIGN_BASE_URL", ""), "/")
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),

			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "lexmatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:       getEnv("JWT_SECRET", "change-this-in-production"),
			Issuer:       getEnv("JWT_ISSUER", "lexmatch"),
			AccessExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		},
		ESign: ESignConfig{
			BaseURL:       esignBase,
			APIKey:        getEnv("ESIGN_API_KEY", ""),
			WebhookSecret: getEnv("ESIGN_WEBHOOK_SECRET", ""),
			DocumentHost:  getEnv("ESIGN_DOCUMENT_HOST", hostOf(esignBase)),
			Timeout:       getEnvAsDuration("ESIGN_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:       getEnv("S3_ENDPOINT", ""),
			Region:         getEnv("S3_REGION", "us-east-1"),
			Bucket:         getEnv("S3_BUCKET", ""),
			AccessKey:      getEnv("S3_ACCESS_KEY", ""),
			SecretKey:      getEnv("S3_SECRET_KEY", ""),
			UseSSL:         getEnvAsBool("S3_USE_SSL", true),
			ForcePathStyle: getEnvAsBool("S3_FORCE_PATH_STYLE", false),
			Prefix:         getEnv("S3_PREFIX", "signed-contracts"),
		},
		Sync: SyncConfig{
			ReconcileBatchSize: getEnvAsInt("RECONCILE_BATCH_SIZE", 100),
			ReconcileLockTTL:   getEnvAsDuration("RECONCILE_LOCK_TTL", 5*time.Minute),
			PushgatewayURL:     getEnv("METRICS_PUSHGATEWAY_URL", ""),
		},
	}
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
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
