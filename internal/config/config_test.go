package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	if cfg.Index.MaxLimit != 100 {
		t.Errorf("default index max_limit = %d, want 100", cfg.Index.MaxLimit)
	}
	if cfg.Gateway.MaxPayloadElements != 100000 {
		t.Errorf("default payload ceiling = %d, want 100000", cfg.Gateway.MaxPayloadElements)
	}
	if cfg.Cache.Search.TTL >= cfg.Cache.Facets.TTL {
		t.Error("search tier TTL should be shorter than facet tier TTL")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
global:
  log_level: debug
storage:
  roots:
    - /data/surveys
    - s3://acme-seismic/surveys
index:
  endpoint: http://index.internal:9200
  timeout: 10s
cache:
  search:
    max_entries: 32
    ttl: 15s
health:
  failure_threshold: 5
  cooldown: 45s
gateway:
  worker_pool_size: 4
`
	path := filepath.Join(t.TempDir(), "seisgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Global.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.Global.LogLevel)
	}
	if len(cfg.Storage.Roots) != 2 || cfg.Storage.Roots[1] != "s3://acme-seismic/surveys" {
		t.Errorf("roots = %v", cfg.Storage.Roots)
	}
	if cfg.Index.Timeout != 10*time.Second {
		t.Errorf("index timeout = %v", cfg.Index.Timeout)
	}
	if cfg.Cache.Search.MaxEntries != 32 || cfg.Cache.Search.TTL != 15*time.Second {
		t.Errorf("search tier = %+v", cfg.Cache.Search)
	}
	if cfg.Health.FailureThreshold != 5 || cfg.Health.Cooldown != 45*time.Second {
		t.Errorf("health = %+v", cfg.Health)
	}
	if cfg.Gateway.WorkerPoolSize != 4 {
		t.Errorf("worker_pool_size = %d", cfg.Gateway.WorkerPoolSize)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SEISGATE_STORAGE_ROOTS", "/a,/b")
	t.Setenv("SEISGATE_PROBE_TIMEOUT", "750ms")
	t.Setenv("SEISGATE_FAILURE_THRESHOLD", "7")
	t.Setenv("SEISGATE_MAX_PAYLOAD_ELEMENTS", "5000")
	t.Setenv("SEISGATE_INDEX_ENABLED", "false")

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if len(cfg.Storage.Roots) != 2 || cfg.Storage.Roots[0] != "/a" {
		t.Errorf("roots = %v", cfg.Storage.Roots)
	}
	if cfg.Health.ProbeTimeout != 750*time.Millisecond {
		t.Errorf("probe timeout = %v", cfg.Health.ProbeTimeout)
	}
	if cfg.Health.FailureThreshold != 7 {
		t.Errorf("failure threshold = %d", cfg.Health.FailureThreshold)
	}
	if cfg.Gateway.MaxPayloadElements != 5000 {
		t.Errorf("payload ceiling = %d", cfg.Gateway.MaxPayloadElements)
	}
	if cfg.Index.Enabled {
		t.Error("index should be disabled")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"no roots", func(c *Configuration) { c.Storage.Roots = nil }},
		{"index enabled without endpoint", func(c *Configuration) { c.Index.Endpoint = "" }},
		{"zero max limit", func(c *Configuration) { c.Index.MaxLimit = 0 }},
		{"zero cache capacity", func(c *Configuration) { c.Cache.Search.MaxEntries = 0 }},
		{"zero cache ttl", func(c *Configuration) { c.Cache.Facets.TTL = 0 }},
		{"zero probe timeout", func(c *Configuration) { c.Health.ProbeTimeout = 0 }},
		{"zero failure threshold", func(c *Configuration) { c.Health.FailureThreshold = 0 }},
		{"zero cooldown", func(c *Configuration) { c.Health.Cooldown = 0 }},
		{"zero pool size", func(c *Configuration) { c.Gateway.WorkerPoolSize = 0 }},
		{"zero payload ceiling", func(c *Configuration) { c.Gateway.MaxPayloadElements = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
