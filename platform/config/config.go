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
	IsAuthEnabled() bool
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// TelephonyConfig provides settings for the telephony provider.
type TelephonyConfig interface {
	GetTelephonyAuthID() string
	GetTelephonyAuthToken() string
	GetTelephonyBaseURL() string
	GetCallerNumber() string
	GetAnswerURL() string
	GetHangupURL() string
}

// VoiceAIConfig provides settings for the voice AI provider.
type VoiceAIConfig interface {
	GetVoiceAIAPIKey() string
	GetVoiceAIBaseURL() string
}

// DialerConfig provides settings for the campaign executor loops.
type DialerConfig interface {
	GetPollInterval() time.Duration
	GetCallInterval() time.Duration
	GetCampaignBatchSize() int
	GetMaxConcurrentCalls() int
	GetLockTimeout() time.Duration
	GetLockAcquireTimeout() time.Duration
}

// RedisConfig provides settings for the asynq task queue backend.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// StorageConfig provides settings for MinIO S3-compatible storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketRecordings() string
	IsMinIOEnabled() bool
}

// EmailConfig provides settings for email notifications.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetNotifyAddress() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
	JWTAccessSecret      string
	CORSAllowAll         bool
	CORSOrigins          []string
	CORSAllowCreds       bool
	AppBaseURL           string
	TelephonyAuthID      string
	TelephonyAuthToken   string
	TelephonyBaseURL     string
	CallerNumber         string
	AnswerURL            string
	HangupURL            string
	VoiceAIAPIKey        string
	VoiceAIBaseURL       string
	PollInterval         time.Duration
	CallInterval         time.Duration
	CampaignBatchSize    int
	MaxConcurrentCalls   int
	LockTimeout          time.Duration
	LockAcquireTimeout   time.Duration
	EmailEnabled         bool
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	EmailFromName        string
	EmailFromAddress     string
	NotifyAddress        string
	MinIOEndpoint        string
	MinIOAccessKey       string
	MinIOSecretKey       string
	MinIOUseSSL          bool
	MinioBucketRecordings string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }
func (c *Config) IsAuthEnabled() bool        { return c.JWTAccessSecret != "" }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// TelephonyConfig implementation
func (c *Config) GetTelephonyAuthID() string    { return c.TelephonyAuthID }
func (c *Config) GetTelephonyAuthToken() string { return c.TelephonyAuthToken }
func (c *Config) GetTelephonyBaseURL() string   { return c.TelephonyBaseURL }
func (c *Config) GetCallerNumber() string       { return c.CallerNumber }
func (c *Config) GetAnswerURL() string          { return c.AnswerURL }
func (c *Config) GetHangupURL() string          { return c.HangupURL }

// VoiceAIConfig implementation
func (c *Config) GetVoiceAIAPIKey() string  { return c.VoiceAIAPIKey }
func (c *Config) GetVoiceAIBaseURL() string { return c.VoiceAIBaseURL }

// DialerConfig implementation
func (c *Config) GetPollInterval() time.Duration       { return c.PollInterval }
func (c *Config) GetCallInterval() time.Duration       { return c.CallInterval }
func (c *Config) GetCampaignBatchSize() int            { return c.CampaignBatchSize }
func (c *Config) GetMaxConcurrentCalls() int           { return c.MaxConcurrentCalls }
func (c *Config) GetLockTimeout() time.Duration        { return c.LockTimeout }
func (c *Config) GetLockAcquireTimeout() time.Duration { return c.LockAcquireTimeout }

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string         { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string        { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string        { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool             { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketRecordings() string { return c.MinioBucketRecordings }
func (c *Config) IsMinIOEnabled() bool             { return c.MinIOEndpoint != "" }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetNotifyAddress() string    { return c.NotifyAddress }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE_NAME", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:            getEnv("APP_BASE_URL", "http://localhost:8080"),
		TelephonyAuthID:       getEnv("PLIVO_AUTH_ID", ""),
		TelephonyAuthToken:    getEnv("PLIVO_AUTH_TOKEN", ""),
		TelephonyBaseURL:      getEnv("PLIVO_BASE_URL", "https://api.plivo.com"),
		CallerNumber:          getEnv("PLIVO_FROM_NUMBER", ""),
		AnswerURL:             getEnv("ANSWER_URL", ""),
		HangupURL:             getEnv("HANGUP_URL", ""),
		VoiceAIAPIKey:         getEnv("ULTRAVOX_API_KEY", ""),
		VoiceAIBaseURL:        getEnv("ULTRAVOX_BASE_URL", "https://api.ultravox.ai/api"),
		PollInterval:          mustDuration(getEnv("DIALER_POLL_INTERVAL", "10s")),
		CallInterval:          mustDuration(getEnv("DIALER_CALL_INTERVAL", "5s")),
		CampaignBatchSize:     mustInt(getEnv("DIALER_CAMPAIGN_BATCH_SIZE", "3")),
		MaxConcurrentCalls:    mustInt(getEnv("DIALER_MAX_CONCURRENT_CALLS", "1")),
		LockTimeout:           mustDuration(getEnv("DIALER_LOCK_TIMEOUT", "60s")),
		LockAcquireTimeout:    mustDuration(getEnv("DIALER_LOCK_ACQUIRE_TIMEOUT", "30s")),
		EmailEnabled:          emailEnabled && smtpHost != "",
		SMTPHost:              smtpHost,
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "Campaigns"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		NotifyAddress:         getEnv("CAMPAIGN_NOTIFY_ADDRESS", ""),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketRecordings: getEnv("MINIO_BUCKET_RECORDINGS", "call-recordings"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.PollInterval <= 0 || cfg.CallInterval <= 0 {
		return nil, fmt.Errorf("DIALER_POLL_INTERVAL and DIALER_CALL_INTERVAL must be positive durations")
	}
	if cfg.CampaignBatchSize <= 0 {
		return nil, fmt.Errorf("DIALER_CAMPAIGN_BATCH_SIZE must be positive")
	}
	if cfg.MaxConcurrentCalls <= 0 {
		return nil, fmt.Errorf("DIALER_MAX_CONCURRENT_CALLS must be positive")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
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
	result, err := strconv.Atoi(value)
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
