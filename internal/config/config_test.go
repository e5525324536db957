package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Classifier.Endpoint != "" {
		t.Errorf("Classifier.Endpoint = %q, want empty (analysis disabled)", cfg.Classifier.Endpoint)
	}
	if cfg.Classifier.Timeout != 15*time.Second {
		t.Errorf("Classifier.Timeout = %s, want 15s", cfg.Classifier.Timeout)
	}
	if len(cfg.Classifier.ForbiddenObjects) == 0 {
		t.Error("Classifier.ForbiddenObjects is empty")
	}
	if cfg.Snapshots.MaxBytes != 5<<20 {
		t.Errorf("Snapshots.MaxBytes = %d, want %d", cfg.Snapshots.MaxBytes, 5<<20)
	}
	if cfg.Signaling.SendBuffer != 64 {
		t.Errorf("Signaling.SendBuffer = %d, want 64", cfg.Signaling.SendBuffer)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return DefaultConfig()
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"server port 0", func(c *Config) { c.Server.Port = 0 }, true},
		{"server port 99999", func(c *Config) { c.Server.Port = 99999 }, true},
		{"classifier timeout below 1s", func(c *Config) { c.Classifier.Timeout = 100 * time.Millisecond }, true},
		{"max_concurrent 0", func(c *Config) { c.Classifier.MaxConcurrent = 0 }, true},
		{"object_confidence above 1", func(c *Config) { c.Classifier.ObjectConfidence = 1.5 }, true},
		{"sunglasses_confidence negative", func(c *Config) { c.Classifier.SunglassesConfidence = -0.1 }, true},
		{"snapshot limit 0", func(c *Config) { c.Snapshots.MaxBytes = 0 }, true},
		{"body limit below snapshot limit", func(c *Config) { c.Server.MaxRequestBody = 1024 }, true},
		{"send_buffer 0", func(c *Config) { c.Signaling.SendBuffer = 0 }, true},
		{"TLS enabled without cert", func(c *Config) {
			c.TLS.Enabled = true
			c.TLS.CertFile = ""
			c.TLS.KeyFile = ""
		}, true},
		{"TLS enabled with cert+key", func(c *Config) {
			c.TLS.Enabled = true
			c.TLS.CertFile = "/etc/ssl/cert.pem"
			c.TLS.KeyFile = "/etc/ssl/key.pem"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
server:
  host: "127.0.0.1"
  port: 9090
classifier:
  endpoint: "http://classifier:5000/detect"
  timeout: 5s
  forbidden_objects: ["phone", "smartwatch"]
signaling:
  ping_interval: 10s
`
	tmpFile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(yamlContent); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Classifier.Endpoint != "http://classifier:5000/detect" {
		t.Errorf("Classifier.Endpoint = %q", cfg.Classifier.Endpoint)
	}
	if cfg.Classifier.Timeout != 5*time.Second {
		t.Errorf("Classifier.Timeout = %s, want 5s", cfg.Classifier.Timeout)
	}
	if len(cfg.Classifier.ForbiddenObjects) != 2 || cfg.Classifier.ForbiddenObjects[1] != "smartwatch" {
		t.Errorf("Classifier.ForbiddenObjects = %v", cfg.Classifier.ForbiddenObjects)
	}
	if cfg.Signaling.PingInterval != 10*time.Second {
		t.Errorf("Signaling.PingInterval = %s, want 10s", cfg.Signaling.PingInterval)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Snapshots.MaxBytes != 5<<20 {
		t.Errorf("Snapshots.MaxBytes = %d, want default", cfg.Snapshots.MaxBytes)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestAddress(t *testing.T) {
	cfg := DefaultConfig()
	want := "0.0.0.0:8080"
	if got := cfg.Address(); got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}

	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 3000
	want = "127.0.0.1:3000"
	if got := cfg.Address(); got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}
}
