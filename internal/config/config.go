package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Tavily     TavilyConfig     `mapstructure:"tavily"`
	BrightData BrightDataConfig `mapstructure:"brightdata"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Search     SearchConfig     `mapstructure:"search"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	Debug          bool     `mapstructure:"debug"`
	InternalSecret string   `mapstructure:"internal_secret"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// AIHourlyLimit caps AI endpoint calls per profile per hour. Zero disables the limit.
	AIHourlyLimit int `mapstructure:"ai_hourly_limit"`
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds the Redis endpoint shared by the cache, the notifier and asynq.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
// An empty endpoint disables archiving of raw provider batches.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Region           string `mapstructure:"region"`
	Bucket           string `mapstructure:"bucket"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// TavilyConfig configures the Tavily search API.
type TavilyConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	APIURL     string        `mapstructure:"api_url"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// BrightDataConfig configures the Bright Data LinkedIn scraper API.
type BrightDataConfig struct {
	APIURL        string        `mapstructure:"api_url"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Customer      string        `mapstructure:"customer"`
	Zone          string        `mapstructure:"zone"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// GeminiConfig configures the generative model used for scoring and cover letters.
type GeminiConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	Model           string  `mapstructure:"model"`
	Temperature     float32 `mapstructure:"temperature"`
	TopP            float32 `mapstructure:"top_p"`
	TopK            float32 `mapstructure:"top_k"`
	MaxOutputTokens int32   `mapstructure:"max_output_tokens"`
	// Strict clamps scores into 0..100 instead of trusting the model output.
	Strict bool `mapstructure:"strict"`
}

// SearchConfig controls the provider result cache.
type SearchConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SchedulerConfig controls the board polling loop of the worker.
type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Addr returns host:port for go-redis and asynq.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled reports whether object storage has been configured.
func (m MinIOConfig) Enabled() bool {
	return strings.TrimSpace(m.Endpoint) != ""
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.debug", false)
	v.SetDefault("api.ai_hourly_limit", 60)
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "jobcompass")
	v.SetDefault("database.user", "jobcompass")
	v.SetDefault("database.password", "jobcompass")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "ingest-archive")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("tavily.api_url", "https://api.tavily.com")
	v.SetDefault("tavily.max_results", 10)
	v.SetDefault("tavily.timeout", 60*time.Second)
	v.SetDefault("brightdata.api_url", "https://api.brightdata.com")
	v.SetDefault("brightdata.zone", "linkedin")
	v.SetDefault("brightdata.timeout", 120*time.Second)
	v.SetDefault("brightdata.retry_attempts", 3)
	v.SetDefault("brightdata.retry_delay", 2*time.Second)
	v.SetDefault("gemini.model", "gemini-1.5-pro")
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.top_p", 0.8)
	v.SetDefault("gemini.top_k", 40)
	v.SetDefault("gemini.max_output_tokens", 2048)
	v.SetDefault("gemini.strict", false)
	v.SetDefault("search.cache_ttl", 30*time.Minute)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval_minutes", 60)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                   "API_PORT",
		"api.debug":                  "APP_DEBUG",
		"api.internal_secret":        "INTERNAL_API_SECRET",
		"api.allowed_origins":        "API_ALLOWED_ORIGINS",
		"api.ai_hourly_limit":        "AI_HOURLY_LIMIT",
		"log.json":                   "LOG_JSON",
		"log.debug":                  "LOG_DEBUG",
		"database.host":              "DATABASE_HOST",
		"database.port":              "DATABASE_PORT",
		"database.name":              "POSTGRES_DB",
		"database.user":              "POSTGRES_USER",
		"database.password":          "POSTGRES_PASSWORD",
		"database.sslmode":           "DATABASE_SSLMODE",
		"redis.host":                 "REDIS_HOST",
		"redis.port":                 "REDIS_PORT",
		"minio.endpoint":             "MINIO_ENDPOINT",
		"minio.public_endpoint":      "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":        "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":    "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":              "MINIO_USE_SSL",
		"minio.region":               "MINIO_REGION",
		"minio.bucket":               "MINIO_BUCKET",
		"minio.bucket_lookup":        "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":   "MINIO_AUTO_CREATE_BUCKET",
		"tavily.api_key":             "TAVILY_API_KEY",
		"tavily.api_url":             "TAVILY_API_URL",
		"tavily.max_results":         "TAVILY_MAX_RESULTS",
		"tavily.timeout":             "TAVILY_TIMEOUT",
		"brightdata.api_url":         "BRIGHTDATA_API_URL",
		"brightdata.username":        "BRIGHTDATA_USERNAME",
		"brightdata.password":        "BRIGHTDATA_PASSWORD",
		"brightdata.customer":        "BRIGHTDATA_CUSTOMER",
		"brightdata.zone":            "BRIGHTDATA_ZONE",
		"brightdata.timeout":         "BRIGHTDATA_TIMEOUT",
		"brightdata.retry_attempts":  "BRIGHTDATA_RETRY_ATTEMPTS",
		"brightdata.retry_delay":     "BRIGHTDATA_RETRY_DELAY",
		"gemini.api_key":             "GEMINI_API_KEY",
		"gemini.model":               "GEMINI_MODEL",
		"gemini.temperature":         "GEMINI_TEMPERATURE",
		"gemini.top_p":               "GEMINI_TOP_P",
		"gemini.top_k":               "GEMINI_TOP_K",
		"gemini.max_output_tokens":   "GEMINI_MAX_OUTPUT_TOKENS",
		"gemini.strict":              "GEMINI_STRICT",
		"search.cache_ttl":           "SEARCH_CACHE_TTL",
		"scheduler.enabled":          "SCHEDULER_ENABLED",
		"scheduler.interval_minutes": "SCHEDULER_INTERVAL_MINUTES",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.API.AIHourlyLimit < 0 {
		return errors.New("ai hourly limit must not be negative")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Enabled() {
		if cfg.MinIO.AccessKeyID == "" {
			return errors.New("minio access key id is required")
		}
		if cfg.MinIO.SecretAccessKey == "" {
			return errors.New("minio secret access key is required")
		}
		if cfg.MinIO.Bucket == "" {
			return errors.New("minio bucket is required")
		}
	}
	if cfg.Tavily.MaxResults <= 0 {
		return errors.New("tavily max results must be positive")
	}
	if cfg.BrightData.RetryAttempts < 1 {
		return errors.New("brightdata retry attempts must be at least 1")
	}
	if cfg.Gemini.Temperature < 0 || cfg.Gemini.Temperature > 2 {
		return errors.New("gemini temperature must be between 0 and 2")
	}
	if cfg.Gemini.MaxOutputTokens <= 0 {
		return errors.New("gemini max output tokens must be positive")
	}
	if cfg.Scheduler.Enabled && cfg.Scheduler.IntervalMinutes <= 0 {
		return errors.New("scheduler interval must be positive")
	}
	return nil
}
