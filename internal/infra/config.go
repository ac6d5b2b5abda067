package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BlobBackendFilesystem = "filesystem"
	BlobBackendS3         = "s3"
	BlobBackendMemory     = "memory"

	IndexBackendPostgres = "postgres"
	IndexBackendRedis    = "redis"
	IndexBackendMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	InferenceBaseURL        string
	InferenceAccountID      string
	InferenceAPIToken       string
	InferenceModel          string
	InferenceAttemptTimeout time.Duration
	GenerationParallelism   int

	BlobBackend       string
	StoragePath       string
	S3Bucket          string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool

	IndexBackend string
	DatabaseURL  string
	RedisURL     string

	// SweepInterval paces the worker that deletes expired postgres index rows.
	SweepInterval time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                  getEnv("APP_ENV", "development"),
		Port:                    getEnv("PORT", "8080"),
		HTTPReadTimeout:         time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:        time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:         time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		InferenceBaseURL:        getEnv("INFERENCE_BASE_URL", "https://api.cloudflare.com/client/v4"),
		InferenceAccountID:      os.Getenv("INFERENCE_ACCOUNT_ID"),
		InferenceAPIToken:       os.Getenv("INFERENCE_API_TOKEN"),
		InferenceModel:          getEnv("INFERENCE_MODEL", "@cf/black-forest-labs/flux-1-schnell"),
		InferenceAttemptTimeout: time.Second * time.Duration(getEnvInt("INFERENCE_ATTEMPT_TIMEOUT_SECONDS", 60)),
		GenerationParallelism:   getEnvInt("GENERATION_PARALLELISM", 1),
		BlobBackend:             strings.ToLower(getEnv("BLOB_BACKEND", BlobBackendFilesystem)),
		StoragePath:             getEnv("STORAGE_PATH", "./storage"),
		S3Bucket:                os.Getenv("S3_BUCKET"),
		S3Endpoint:              os.Getenv("S3_ENDPOINT"),
		S3Region:                getEnv("S3_REGION", "auto"),
		S3AccessKeyID:           os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey:       os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3UsePathStyle:          getEnvBool("S3_USE_PATH_STYLE", false),
		IndexBackend:            strings.ToLower(getEnv("INDEX_BACKEND", IndexBackendMemory)),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisURL:                os.Getenv("REDIS_URL"),
		SweepInterval:           time.Minute * time.Duration(getEnvInt("INDEX_SWEEP_INTERVAL_MINUTES", 60)),
	}

	if cfg.GenerationParallelism < 1 {
		cfg.GenerationParallelism = 1
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}

	switch cfg.BlobBackend {
	case BlobBackendFilesystem, BlobBackendMemory:
	case BlobBackendS3:
		if cfg.S3Bucket == "" || cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" {
			return nil, fmt.Errorf("S3_BUCKET, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when BLOB_BACKEND=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported BLOB_BACKEND %q", cfg.BlobBackend)
	}

	switch cfg.IndexBackend {
	case IndexBackendMemory:
	case IndexBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when INDEX_BACKEND=postgres")
		}
	case IndexBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when INDEX_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("unsupported INDEX_BACKEND %q", cfg.IndexBackend)
	}

	return cfg, nil
}

// UseSyntheticInference reports whether inference credentials are missing and
// the local placeholder generator should be used instead.
func (c *Config) UseSyntheticInference() bool {
	return strings.TrimSpace(c.InferenceAPIToken) == "" || strings.TrimSpace(c.InferenceAccountID) == ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
