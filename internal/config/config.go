package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Signaling  SignalingConfig  `yaml:"signaling"`
	Snapshots  SnapshotsConfig  `yaml:"snapshots"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Security   SecurityConfig   `yaml:"security"`
	TLS        TLSConfig        `yaml:"tls"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBody  int64         `yaml:"max_request_body_bytes"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MinConns        int           `yaml:"min_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ClassifierConfig controls the external vision classifier and the
// violation decision policy applied to its output.
type ClassifierConfig struct {
	Endpoint             string        `yaml:"endpoint"` // empty disables analysis (pipeline fails open)
	Timeout              time.Duration `yaml:"timeout"`
	MaxConcurrent        int64         `yaml:"max_concurrent"`
	ObjectConfidence     float64       `yaml:"object_confidence"`     // 0-1, threshold for forbidden-object violations
	SunglassesConfidence float64       `yaml:"sunglasses_confidence"` // 0-1, threshold for the sunglasses check
	ForbiddenObjects     []string      `yaml:"forbidden_objects"`
}

// SignalingConfig controls the WebSocket transport.
type SignalingConfig struct {
	ReadLimit    int64         `yaml:"read_limit_bytes"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	SendBuffer   int           `yaml:"send_buffer"`
}

type SnapshotsConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type SecurityConfig struct {
	APIKeyHeader   string   `yaml:"api_key_header"`
	AllowedKeys    []string `yaml:"allowed_keys"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
}

// TLSConfig controls HTTPS/TLS termination.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from CLI flag or hardcoded default
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults for all configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxRequestBody:  6 << 20, // snapshot limit plus multipart overhead
		},
		Database: DatabaseConfig{
			DSN:             "",
			MaxOpenConns:    25,
			MinConns:        2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Classifier: ClassifierConfig{
			Endpoint:             "",
			Timeout:              15 * time.Second,
			MaxConcurrent:        8,
			ObjectConfidence:     0.6,
			SunglassesConfidence: 0.8,
			ForbiddenObjects: []string{
				"phone", "tablet", "book", "headphones", "laptop", "monitor",
			},
		},
		Signaling: SignalingConfig{
			ReadLimit:    512 << 10,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
			SendBuffer:   64,
		},
		Snapshots: SnapshotsConfig{
			Dir:      "/var/lib/proctor/snapshots",
			MaxBytes: 5 << 20,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Security: SecurityConfig{
			APIKeyHeader:   "X-API-Key",
			RateLimitRPS:   100,
			RateLimitBurst: 200,
		},
		TLS: TLSConfig{
			Enabled: false,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Classifier.Timeout < time.Second {
		return fmt.Errorf("classifier.timeout must be >= 1s, got %s", c.Classifier.Timeout)
	}
	if c.Classifier.MaxConcurrent < 1 {
		return fmt.Errorf("classifier.max_concurrent must be >= 1")
	}
	if c.Classifier.ObjectConfidence < 0 || c.Classifier.ObjectConfidence > 1 {
		return fmt.Errorf("classifier.object_confidence must be in [0,1], got %g", c.Classifier.ObjectConfidence)
	}
	if c.Classifier.SunglassesConfidence < 0 || c.Classifier.SunglassesConfidence > 1 {
		return fmt.Errorf("classifier.sunglasses_confidence must be in [0,1], got %g", c.Classifier.SunglassesConfidence)
	}
	if c.Snapshots.MaxBytes < 1 {
		return fmt.Errorf("snapshots.max_bytes must be >= 1")
	}
	if c.Server.MaxRequestBody < c.Snapshots.MaxBytes {
		return fmt.Errorf("server.max_request_body_bytes (%d) must be >= snapshots.max_bytes (%d)",
			c.Server.MaxRequestBody, c.Snapshots.MaxBytes)
	}
	if c.Signaling.SendBuffer < 1 {
		return fmt.Errorf("signaling.send_buffer must be >= 1")
	}
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("tls.cert_file and tls.key_file are required when TLS is enabled")
		}
	}
	if c.Database.DSN != "" && strings.Contains(c.Database.DSN, "sslmode=disable") {
		log.Warn().Msg("database DSN has sslmode=disable, connections to Postgres are unencrypted")
	}
	return nil
}

// Address returns the listen address string.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
