package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
)

// EnvPrefix prefixes every environment override, e.g. WINGSPAN_VISION__TIMEOUT=90s.
// A double underscore separates section and key.
const EnvPrefix = "WINGSPAN_"

// ConfigFileEnv names the optional YAML file layered under the env overrides.
const ConfigFileEnv = "WINGSPAN_CONFIG"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Vision    VisionConfig    `koanf:"vision"`
	Upload    UploadConfig    `koanf:"upload"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `koanf:"http_addr"`
	GRPCAddr        string        `koanf:"grpc_addr"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds database-related configuration. An empty DSN disables the scan audit store.
type DatabaseConfig struct {
	DSN              string        `koanf:"dsn"`
	MaxConns         int32         `koanf:"max_conns"`
	MinConns         int32         `koanf:"min_conns"`
	MaxConnLifetime  time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `koanf:"max_conn_idle_time"`
	DialTimeout      time.Duration `koanf:"dial_timeout"`
	StatementTimeout time.Duration `koanf:"statement_timeout"`
}

// VisionConfig holds vision-service configuration
type VisionConfig struct {
	Provider  string        `koanf:"provider"` // anthropic | openai
	Model     string        `koanf:"model"`
	APIKey    string        `koanf:"api_key"` // falls back to the provider's conventional env var
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	MaxTokens int           `koanf:"max_tokens"`
}

// UploadConfig holds screenshot size ceilings
type UploadConfig struct {
	MaxUploadBytes int `koanf:"max_upload_bytes"`
	MaxRawBytes    int `koanf:"max_raw_bytes"`
	MaxDimension   int `koanf:"max_dimension"`
	MaxAttempts    int `koanf:"max_attempts"`
}

// RateLimitConfig holds per-caller upload throttling
type RateLimitConfig struct {
	Enabled       bool          `koanf:"enabled"`
	PerHour       int           `koanf:"per_hour"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text | json
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			RequestTimeout:  3 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Vision: VisionConfig{
			Provider:  "anthropic",
			Timeout:   2 * time.Minute,
			MaxTokens: 4096,
		},
		Upload: UploadConfig{
			MaxUploadBytes: constants.MaxUploadBytes,
			MaxRawBytes:    constants.MaxVisionRawBytes,
			MaxDimension:   2048,
			MaxAttempts:    8,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			PerHour:       10,
			SweepInterval: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig layers defaults, the optional YAML file named by WINGSPAN_CONFIG, and
// WINGSPAN_-prefixed environment variables (low -> high precedence).
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, NewKindError(CodeConfiguration, "load config file "+path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		if s == ConfigFileEnv {
			return ""
		}
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, NewKindError(CodeConfiguration, "load env config", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, NewKindError(CodeConfiguration, "decode config", err)
	}
	return cfg, nil
}

// Validate validates the loaded configuration. A missing vision API key is deliberately
// not checked here: it is reported per request as a configuration error.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewKindError(CodeConfiguration, "server.http_addr is required", nil)
	}
	switch c.Vision.Provider {
	case "anthropic", "openai":
	default:
		return NewKindError(CodeConfiguration, fmt.Sprintf("unknown vision provider %q", c.Vision.Provider), nil)
	}
	if c.Vision.Timeout <= 0 {
		return NewKindError(CodeConfiguration, "vision.timeout must be positive", nil)
	}
	if c.Server.RequestTimeout < c.Vision.Timeout {
		return NewKindError(CodeConfiguration,
			fmt.Sprintf("server.request_timeout (%s) must be at least vision.timeout (%s)", c.Server.RequestTimeout, c.Vision.Timeout), nil)
	}
	if c.Upload.MaxRawBytes <= 0 || c.Upload.MaxUploadBytes <= 0 {
		return NewKindError(CodeConfiguration, "upload size ceilings must be positive", nil)
	}
	if c.RateLimit.Enabled && c.RateLimit.PerHour <= 0 {
		return NewKindError(CodeConfiguration, "ratelimit.per_hour must be positive when enabled", nil)
	}
	return nil
}
