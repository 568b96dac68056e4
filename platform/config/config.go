// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetNightlySyncCron() string
	GetNightlySyncLive() bool
	GetSyncRunRetention() time.Duration
	GetSyncLockTTL() time.Duration
}

// RedisConfig provides settings for the campaign sync lock.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// ProviderConfig provides settings for the Instantly and Smartlead clients.
type ProviderConfig interface {
	GetInstantlyBaseURL() string
	GetSmartleadBaseURL() string
	GetProviderTimeout() time.Duration
	GetProviderRequestsPerSecond() float64
}

// SyncConfig provides tuning for the sync orchestrator.
type SyncConfig interface {
	GetSyncPageSize() int
	GetSyncPageDelay() time.Duration
	GetSyncBatchSize() int
	GetSyncMaxConsecutiveFailures() int
	GetSyncRetryBaseDelay() time.Duration
	GetSyncErrorLimit() int
	GetSyncLockTTL() time.Duration
	GetBackfillConcurrency() int
	GetBackfillChunkDelay() time.Duration
}

// MinIOConfig provides settings for sync report archiving.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketSyncReports() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	NightlySyncCron  string
	NightlySyncLive  bool
	SyncRunRetention time.Duration

	InstantlyBaseURL          string
	SmartleadBaseURL          string
	ProviderTimeout           time.Duration
	ProviderRequestsPerSecond float64

	SyncPageSize               int
	SyncPageDelay              time.Duration
	SyncBatchSize              int
	SyncMaxConsecutiveFailures int
	SyncRetryBaseDelay         time.Duration
	SyncErrorLimit             int
	SyncLockTTL                time.Duration
	BackfillConcurrency        int
	BackfillChunkDelay         time.Duration

	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOUseSSL            bool
	MinioBucketSyncReports string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetNightlySyncCron() string { return c.NightlySyncCron }
func (c *Config) GetNightlySyncLive() bool   { return c.NightlySyncLive }
func (c *Config) GetSyncRunRetention() time.Duration {
	return c.SyncRunRetention
}

// ProviderConfig implementation
func (c *Config) GetInstantlyBaseURL() string            { return c.InstantlyBaseURL }
func (c *Config) GetSmartleadBaseURL() string            { return c.SmartleadBaseURL }
func (c *Config) GetProviderTimeout() time.Duration      { return c.ProviderTimeout }
func (c *Config) GetProviderRequestsPerSecond() float64  { return c.ProviderRequestsPerSecond }

// SyncConfig implementation
func (c *Config) GetSyncPageSize() int                   { return c.SyncPageSize }
func (c *Config) GetSyncPageDelay() time.Duration        { return c.SyncPageDelay }
func (c *Config) GetSyncBatchSize() int                  { return c.SyncBatchSize }
func (c *Config) GetSyncMaxConsecutiveFailures() int     { return c.SyncMaxConsecutiveFailures }
func (c *Config) GetSyncRetryBaseDelay() time.Duration   { return c.SyncRetryBaseDelay }
func (c *Config) GetSyncErrorLimit() int                 { return c.SyncErrorLimit }
func (c *Config) GetSyncLockTTL() time.Duration          { return c.SyncLockTTL }
func (c *Config) GetBackfillConcurrency() int            { return c.BackfillConcurrency }
func (c *Config) GetBackfillChunkDelay() time.Duration   { return c.BackfillChunkDelay }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string          { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string         { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string         { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool              { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketSyncReports() string { return c.MinioBucketSyncReports }
func (c *Config) IsMinIOEnabled() bool              { return c.MinIOEndpoint != "" }

// Load reads configuration for the API server from environment variables.
func Load() (*Config, error) {
	cfg, err := LoadBase()
	if err != nil {
		return nil, err
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	return cfg, nil
}

// LoadBase reads configuration without the HTTP-only requirements. The
// maintenance commands and the scheduler worker use it.
func LoadBase() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "4")),
		NightlySyncCron:  getEnv("NIGHTLY_SYNC_CRON", ""),
		NightlySyncLive:  strings.EqualFold(getEnv("NIGHTLY_SYNC_EXECUTE", "false"), "true"),
		SyncRunRetention: mustDuration(getEnv("SYNC_RUN_RETENTION", "2160h")),

		InstantlyBaseURL:          getEnv("INSTANTLY_BASE_URL", "https://api.instantly.ai"),
		SmartleadBaseURL:          getEnv("SMARTLEAD_BASE_URL", "https://server.smartlead.ai"),
		ProviderTimeout:           mustDuration(getEnv("PROVIDER_TIMEOUT", "30s")),
		ProviderRequestsPerSecond: mustFloat(getEnv("PROVIDER_REQUESTS_PER_SECOND", "5")),

		SyncPageSize:               mustInt(getEnv("SYNC_PAGE_SIZE", "100")),
		SyncPageDelay:              mustDuration(getEnv("SYNC_PAGE_DELAY", "150ms")),
		SyncBatchSize:              mustInt(getEnv("SYNC_BATCH_SIZE", "100")),
		SyncMaxConsecutiveFailures: mustInt(getEnv("SYNC_MAX_CONSECUTIVE_FAILURES", "5")),
		SyncRetryBaseDelay:         mustDuration(getEnv("SYNC_RETRY_BASE_DELAY", "1s")),
		SyncErrorLimit:             mustInt(getEnv("SYNC_ERROR_LIMIT", "20")),
		SyncLockTTL:                mustDuration(getEnv("SYNC_LOCK_TTL", "30m")),
		BackfillConcurrency:        mustInt(getEnv("BACKFILL_CONCURRENCY", "5")),
		BackfillChunkDelay:         mustDuration(getEnv("BACKFILL_CHUNK_DELAY", "200ms")),

		MinIOEndpoint:          getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:         getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:         getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:            strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketSyncReports: getEnv("MINIO_BUCKET_SYNC_REPORTS", "sync-reports"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SyncPageSize <= 0 || cfg.SyncBatchSize <= 0 {
		return nil, fmt.Errorf("SYNC_PAGE_SIZE and SYNC_BATCH_SIZE must be positive")
	}
	if cfg.BackfillConcurrency <= 0 {
		return nil, fmt.Errorf("BACKFILL_CONCURRENCY must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
