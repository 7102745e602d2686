package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Port != 8080 || cfg.API.AIHourlyLimit != 60 {
		t.Fatalf("unexpected api defaults: %+v", cfg.API)
	}
	if cfg.MinIO.Enabled() {
		t.Fatalf("archiving should be off without an endpoint")
	}
	if cfg.Search.CacheTTL != 30*time.Minute {
		t.Fatalf("cache ttl = %v", cfg.Search.CacheTTL)
	}
	if got := cfg.Redis.Addr(); got != "localhost:6379" {
		t.Fatalf("redis addr = %q", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("API_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("SEARCH_CACHE_TTL", "45m")
	t.Setenv("GEMINI_STRICT", "true")
	t.Setenv("SCHEDULER_INTERVAL_MINUTES", "15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Port != 9090 {
		t.Fatalf("port = %d", cfg.API.Port)
	}
	if len(cfg.API.AllowedOrigins) != 2 || cfg.API.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("allowed origins = %v", cfg.API.AllowedOrigins)
	}
	if cfg.Redis.Addr() != "cache:6379" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr())
	}
	if cfg.Search.CacheTTL != 45*time.Minute || !cfg.Gemini.Strict || cfg.Scheduler.IntervalMinutes != 15 {
		t.Fatalf("unexpected overrides: search=%+v gemini.strict=%v scheduler=%+v", cfg.Search, cfg.Gemini.Strict, cfg.Scheduler)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]struct {
		env  map[string]string
		want string
	}{
		"minio without keys": {
			env:  map[string]string{"MINIO_ENDPOINT": "minio:9000"},
			want: "minio access key id is required",
		},
		"negative ai limit": {
			env:  map[string]string{"AI_HOURLY_LIMIT": "-1"},
			want: "ai hourly limit must not be negative",
		},
		"temperature out of range": {
			env:  map[string]string{"GEMINI_TEMPERATURE": "3"},
			want: "gemini temperature must be between 0 and 2",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v, want error containing %q", err, tc.want)
			}
		})
	}
}
