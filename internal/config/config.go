package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global  GlobalConfig  `yaml:"global"`
	Storage StorageConfig `yaml:"storage"`
	Index   IndexConfig   `yaml:"index"`
	Cache   CacheConfig   `yaml:"cache"`
	Health  HealthConfig  `yaml:"health"`
	Gateway GatewayConfig `yaml:"gateway"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StorageConfig describes the backing storage roots holding survey files.
// Roots may be local mount paths or s3://bucket/prefix URLs; the fallback
// scanner understands both.
type StorageConfig struct {
	Roots       []string `yaml:"roots"`
	Extensions  []string `yaml:"extensions"`
	S3Region    string   `yaml:"s3_region"`
	S3Endpoint  string   `yaml:"s3_endpoint"`
	S3AccessKey string   `yaml:"s3_access_key"`
	S3SecretKey string   `yaml:"s3_secret_key"`
}

// IndexConfig represents remote metadata index settings
type IndexConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Endpoint   string        `yaml:"endpoint"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxLimit   int           `yaml:"max_limit"`
	MaxRetries int           `yaml:"max_retries"`
}

// CacheConfig represents query cache configuration, one tier per section
type CacheConfig struct {
	Search  CacheTierConfig `yaml:"search"`
	Facets  CacheTierConfig `yaml:"facets"`
	Scanner CacheTierConfig `yaml:"scanner"`
}

// CacheTierConfig represents one bounded LRU+TTL cache tier
type CacheTierConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// HealthConfig represents mount health monitor settings
type HealthConfig struct {
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
	ProbeInterval    time.Duration `yaml:"probe_interval"`
	SlowThreshold    time.Duration `yaml:"slow_threshold"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// GatewayConfig represents volumetric access gateway settings
type GatewayConfig struct {
	WorkerPoolSize     int           `yaml:"worker_pool_size"`
	MaxPayloadElements int           `yaml:"max_payload_elements"`
	ExtractTimeout     time.Duration `yaml:"extract_timeout"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Storage: StorageConfig{
			Roots:      []string{"/mnt/surveys"},
			Extensions: []string{".segy", ".sgy", ".vds"},
			S3Region:   "us-east-1",
		},
		Index: IndexConfig{
			Enabled:    true,
			Endpoint:   "http://localhost:9200",
			Timeout:    5 * time.Second,
			MaxLimit:   100,
			MaxRetries: 2,
		},
		Cache: CacheConfig{
			Search: CacheTierConfig{
				MaxEntries: 512,
				TTL:        30 * time.Second,
			},
			Facets: CacheTierConfig{
				MaxEntries: 128,
				TTL:        5 * time.Minute,
			},
			Scanner: CacheTierConfig{
				MaxEntries: 64,
				TTL:        10 * time.Second,
			},
		},
		Health: HealthConfig{
			ProbeTimeout:     2 * time.Second,
			ProbeInterval:    15 * time.Second,
			SlowThreshold:    500 * time.Millisecond,
			FailureThreshold: 3,
			Cooldown:         30 * time.Second,
		},
		Gateway: GatewayConfig{
			WorkerPoolSize:     8,
			MaxPayloadElements: 100000,
			ExtractTimeout:     60 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Port:      8080,
			Path:      "/metrics",
			Namespace: "seisgate",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("SEISGATE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("SEISGATE_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = val
	}

	if val := os.Getenv("SEISGATE_STORAGE_ROOTS"); val != "" {
		c.Storage.Roots = strings.Split(val, ",")
	}
	if val := os.Getenv("SEISGATE_S3_REGION"); val != "" {
		c.Storage.S3Region = val
	}
	if val := os.Getenv("SEISGATE_S3_ENDPOINT"); val != "" {
		c.Storage.S3Endpoint = val
	}
	if val := os.Getenv("SEISGATE_S3_ACCESS_KEY"); val != "" {
		c.Storage.S3AccessKey = val
	}
	if val := os.Getenv("SEISGATE_S3_SECRET_KEY"); val != "" {
		c.Storage.S3SecretKey = val
	}

	if val := os.Getenv("SEISGATE_INDEX_ENABLED"); val != "" {
		c.Index.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SEISGATE_INDEX_ENDPOINT"); val != "" {
		c.Index.Endpoint = val
	}
	if val := os.Getenv("SEISGATE_INDEX_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Index.Timeout = d
		}
	}

	if val := os.Getenv("SEISGATE_SEARCH_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Cache.Search.TTL = d
		}
	}
	if val := os.Getenv("SEISGATE_FACET_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Cache.Facets.TTL = d
		}
	}

	if val := os.Getenv("SEISGATE_PROBE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Health.ProbeTimeout = d
		}
	}
	if val := os.Getenv("SEISGATE_FAILURE_THRESHOLD"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Health.FailureThreshold = n
		}
	}
	if val := os.Getenv("SEISGATE_COOLDOWN"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Health.Cooldown = d
		}
	}

	if val := os.Getenv("SEISGATE_WORKER_POOL_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Gateway.WorkerPoolSize = n
		}
	}
	if val := os.Getenv("SEISGATE_MAX_PAYLOAD_ELEMENTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Gateway.MaxPayloadElements = n
		}
	}

	if val := os.Getenv("SEISGATE_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}

	return nil
}

// Validate checks the configuration for invalid values
func (c *Configuration) Validate() error {
	if len(c.Storage.Roots) == 0 {
		return fmt.Errorf("storage: at least one root path is required")
	}
	if c.Index.Enabled && c.Index.Endpoint == "" {
		return fmt.Errorf("index: endpoint is required when the index is enabled")
	}
	if c.Index.MaxLimit <= 0 {
		return fmt.Errorf("index: max_limit must be positive")
	}
	if c.Cache.Search.MaxEntries <= 0 || c.Cache.Facets.MaxEntries <= 0 {
		return fmt.Errorf("cache: tier capacities must be positive")
	}
	if c.Cache.Search.TTL <= 0 || c.Cache.Facets.TTL <= 0 {
		return fmt.Errorf("cache: tier TTLs must be positive")
	}
	if c.Health.ProbeTimeout <= 0 {
		return fmt.Errorf("health: probe_timeout must be positive")
	}
	if c.Health.FailureThreshold <= 0 {
		return fmt.Errorf("health: failure_threshold must be positive")
	}
	if c.Health.Cooldown <= 0 {
		return fmt.Errorf("health: cooldown must be positive")
	}
	if c.Gateway.WorkerPoolSize <= 0 {
		return fmt.Errorf("gateway: worker_pool_size must be positive")
	}
	if c.Gateway.MaxPayloadElements <= 0 {
		return fmt.Errorf("gateway: max_payload_elements must be positive")
	}
	return nil
}

// Load builds a configuration from defaults, an optional file, and the
// environment, in that order of precedence.
func Load(filename string) (*Configuration, error) {
	cfg := NewDefault()

	if filename != "" {
		if err := cfg.LoadFromFile(filename); err != nil {
			return nil, err
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
