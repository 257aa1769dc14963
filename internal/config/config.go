package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Storage    StorageConfig
	Extraction ExtractionConfig
	Embedding  EmbeddingConfig
	Worker     WorkerConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	OrgHeader string
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type ExtractionConfig struct {
	Provider         string // "anthropic" or "openai"
	FallbackProvider string
	AnthropicKey     string
	OpenAIKey        string
	Model            string
	Timeout          time.Duration
}

type EmbeddingConfig struct {
	Enabled   bool
	OpenAIKey string
	Model     string
}

type WorkerConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	Concurrency    int
	MaxAttempts    int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	StaleAfter     time.Duration
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	batchSize, err := getEnvInt("WORKER_BATCH_SIZE", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_BATCH_SIZE: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	maxAttempts, err := getEnvInt("WORKER_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_MAX_ATTEMPTS: %w", err)
	}

	pollInterval, err := getEnvDuration("WORKER_POLL_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_POLL_INTERVAL: %w", err)
	}

	baseDelay, err := getEnvDuration("WORKER_BASE_RETRY_DELAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_BASE_RETRY_DELAY: %w", err)
	}

	maxDelay, err := getEnvDuration("WORKER_MAX_RETRY_DELAY", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_MAX_RETRY_DELAY: %w", err)
	}

	staleAfter, err := getEnvDuration("WORKER_STALE_AFTER", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_STALE_AFTER: %w", err)
	}

	extractionTimeout, err := getEnvDuration("EXTRACTION_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACTION_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			OrgHeader: getEnv("ORG_ID_HEADER", "x-org-id"),
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "intakes-raw"),
		},
		Extraction: ExtractionConfig{
			Provider:         getEnv("EXTRACTION_PROVIDER", "anthropic"),
			FallbackProvider: getEnv("EXTRACTION_FALLBACK_PROVIDER", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			Model:            getEnv("EXTRACTION_MODEL", ""),
			Timeout:          extractionTimeout,
		},
		Embedding: EmbeddingConfig{
			Enabled:   getEnv("EMBEDDING_ENABLED", "true") == "true",
			OpenAIKey: getEnv("OPENAI_API_KEY", ""),
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Worker: WorkerConfig{
			PollInterval:   pollInterval,
			BatchSize:      batchSize,
			Concurrency:    concurrency,
			MaxAttempts:    maxAttempts,
			BaseRetryDelay: baseDelay,
			MaxRetryDelay:  maxDelay,
			StaleAfter:     staleAfter,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Storage.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.Storage.SupabaseKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
