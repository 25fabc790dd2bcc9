// Package config loads backend configuration from environment variables,
// with an optional YAML overlay file for deployments that prefer files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// EngineConfig holds execution engine configuration.
type EngineConfig struct {
	MaxExecutionTime   time.Duration `envconfig:"ENGINE_MAX_EXECUTION_TIME" default:"5s" yaml:"max_execution_time"`
	MaxMemoryMB        int           `envconfig:"ENGINE_MAX_MEMORY_MB" default:"128" yaml:"max_memory_mb"`
	MaxConcurrent      int           `envconfig:"ENGINE_MAX_CONCURRENT" default:"3" yaml:"max_concurrent"`
	CacheSize          int           `envconfig:"ENGINE_CACHE_SIZE" default:"100" yaml:"cache_size"`
	CacheTTL           time.Duration `envconfig:"ENGINE_CACHE_TTL" default:"5m" yaml:"cache_ttl"`
	EnableCache        bool          `envconfig:"ENGINE_CACHE_ENABLED" default:"true" yaml:"enable_cache"`
	EnableMetrics      bool          `envconfig:"ENGINE_METRICS_ENABLED" default:"true" yaml:"enable_metrics"`
	SecurityLevel      string        `envconfig:"ENGINE_SECURITY_LEVEL" default:"medium" yaml:"security_level"`
	LoopIterationLimit int           `envconfig:"ENGINE_LOOP_ITERATION_LIMIT" default:"10000" yaml:"loop_iteration_limit"`
	AsyncWaitTime      time.Duration `envconfig:"ENGINE_ASYNC_WAIT_TIME" default:"100ms" yaml:"async_wait_time"`
	PromiseTimeout     time.Duration `envconfig:"ENGINE_PROMISE_TIMEOUT" default:"2s" yaml:"promise_timeout"`
}

// SandboxConfig holds JavaScript sandbox configuration.
type SandboxConfig struct {
	PoolSize         int  `envconfig:"SANDBOX_POOL_SIZE" default:"4" yaml:"pool_size"`
	MaxCallStackSize int  `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024" yaml:"max_call_stack"`
	EnableConsole    bool `envconfig:"SANDBOX_CONSOLE_ENABLED" default:"true" yaml:"enable_console"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables. If CONFIG_FILE is
// set, the named YAML file is applied on top of the environment values.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Engine: EngineConfig{
			MaxExecutionTime:   5 * time.Second,
			MaxMemoryMB:        128,
			MaxConcurrent:      3,
			CacheSize:          100,
			CacheTTL:           5 * time.Minute,
			EnableCache:        true,
			EnableMetrics:      true,
			SecurityLevel:      "medium",
			LoopIterationLimit: 10000,
			AsyncWaitTime:      100 * time.Millisecond,
			PromiseTimeout:     2 * time.Second,
		},
		Sandbox: SandboxConfig{
			PoolSize:         4,
			MaxCallStackSize: 1024,
			EnableConsole:    true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
