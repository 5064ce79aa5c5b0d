// Package config loads and validates the gate configuration and watches
// it for changes. A reload never mutates a live configuration: the file
// is parsed into a fresh Config, validated, and only then handed to the
// reload callback, which swaps derived snapshots atomically.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/authgate/internal/observability"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Store backends.
const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

// Config is the top-level gate configuration.
type Config struct {
	Server  ServerConfig               `yaml:"server"`
	Log     observability.LogConfig    `yaml:"log"`
	Tracing observability.TracerConfig `yaml:"tracing"`

	// TrustedProxies is a comma-separated list of trusted proxy
	// networks (IPv4/IPv6, address or CIDR). Empty means forwarded
	// headers are never trusted.
	TrustedProxies string `yaml:"trustedProxies"`

	Timing TimingConfig `yaml:"timing"`
	Store  StoreConfig  `yaml:"store"`

	// RequestCost is the allowance consumed per admitted request.
	// Zero disables allowance accounting.
	RequestCost int64 `yaml:"requestCost"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
}

// TimingConfig holds the credential-check timing envelope.
type TimingConfig struct {
	MinDelay  Duration `yaml:"minDelay"`
	MaxJitter Duration `yaml:"maxJitter"`
}

// StoreConfig selects and configures the credential and policy backends.
type StoreConfig struct {
	Backend string        `yaml:"backend"`
	Redis   RedisConfig   `yaml:"redis"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// RedisConfig holds shared Redis connection settings.
type RedisConfig struct {
	Address          string   `yaml:"address"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	CredentialPrefix string   `yaml:"credentialPrefix"`
	PolicyPrefix     string   `yaml:"policyPrefix"`
	DialTimeout      Duration `yaml:"dialTimeout"`
	ReadTimeout      Duration `yaml:"readTimeout"`
	WriteTimeout     Duration `yaml:"writeTimeout"`
}

// BreakerConfig holds credential store circuit breaker settings.
type BreakerConfig struct {
	Threshold uint32   `yaml:"threshold"`
	Timeout   Duration `yaml:"timeout"`
}

// Default returns a Config with safe defaults: no trusted proxies, the
// memory backend, and the default timing envelope.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Log: observability.DefaultLogConfig(),
		Tracing: observability.TracerConfig{
			ServiceName:  "authgate",
			SamplingRate: 1,
		},
		Timing: TimingConfig{
			MinDelay:  Duration(150 * time.Millisecond),
			MaxJitter: Duration(50 * time.Millisecond),
		},
		Store: StoreConfig{
			Backend: StoreBackendMemory,
			Breaker: BreakerConfig{
				Threshold: 5,
				Timeout:   Duration(30 * time.Second),
			},
		},
		RequestCost: 1,
	}
}

// Load reads and validates a YAML configuration file, applying defaults
// for anything the file omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration bytes over the defaults. ${VAR} and
// ${VAR:-default} references are substituted from the environment
// before parsing, so files can carry secrets like the Redis password by
// reference.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} references with
// environment variable values. "$$" escapes a literal dollar sign.
func substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}
		if value, exists := os.LookupEnv(submatches[1]); exists {
			return value
		}
		if len(submatches) >= 3 {
			return submatches[2]
		}
		return ""
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}

// Validate checks the configuration for errors that must abort startup.
// Note that invalid trusted-proxy entries are not among them: those are
// dropped with a warning when the network set is built.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if c.Store.Redis.Address == "" {
			return fmt.Errorf("store.redis.address is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Timing.MinDelay < 0 || c.Timing.MaxJitter < 0 {
		return fmt.Errorf("timing delays must not be negative")
	}
	if c.RequestCost < 0 {
		return fmt.Errorf("requestCost must not be negative")
	}
	return nil
}
