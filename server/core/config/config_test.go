package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}

	if cfg.Decoder.FrameRate != 1 {
		t.Errorf("Expected frame rate 1, got %d", cfg.Decoder.FrameRate)
	}
	if cfg.Classifier.FieldName != "files" {
		t.Errorf("Expected field name 'files', got %s", cfg.Classifier.FieldName)
	}
	if cfg.Pipeline.EmptyFramePolicy != EmptyFramePolicyShortCircuit {
		t.Errorf("Expected short-circuit policy, got %s", cfg.Pipeline.EmptyFramePolicy)
	}
	if cfg.FramesDir() != filepath.Join("uploads", "frames") {
		t.Errorf("Expected frames dir uploads/frames, got %s", cfg.FramesDir())
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ServerPort != DefaultConfig().ServerPort {
		t.Errorf("Expected default port, got %d", cfg.ServerPort)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"server_port": 9000, "classifier": {"url": "http://classifier:8000/predict/"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ServerPort != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.ServerPort)
	}
	if cfg.Classifier.URL != "http://classifier:8000/predict/" {
		t.Errorf("Expected classifier url override, got %s", cfg.Classifier.URL)
	}
	// untouched nested fields keep their defaults
	if cfg.Classifier.ResultKey != "image_base64" {
		t.Errorf("Expected default result key, got %s", cfg.Classifier.ResultKey)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "decoder:\n  backend: command\n  command: /usr/local/bin/decode\n  args: [\"--input\", \"{input}\"]\npipeline:\n  empty_frame_policy: submit\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Decoder.Backend != DecoderBackendCommand {
		t.Errorf("Expected command backend, got %s", cfg.Decoder.Backend)
	}
	if len(cfg.Decoder.Args) != 2 || cfg.Decoder.Args[1] != "{input}" {
		t.Errorf("Expected args to be decoded, got %v", cfg.Decoder.Args)
	}
	if cfg.Pipeline.EmptyFramePolicy != EmptyFramePolicySubmit {
		t.Errorf("Expected submit policy, got %s", cfg.Pipeline.EmptyFramePolicy)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FRAMESIGHT_SERVER_PORT", "8123")
	t.Setenv("FRAMESIGHT_CLASSIFIER_TIMEOUT_SECONDS", "15")
	t.Setenv("FRAMESIGHT_JANITOR_ENABLED", "false")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ServerPort != 8123 {
		t.Errorf("Expected port 8123, got %d", cfg.ServerPort)
	}
	if cfg.ClassifierTimeout() != 15*time.Second {
		t.Errorf("Expected classifier timeout 15s, got %v", cfg.ClassifierTimeout())
	}
	if cfg.Janitor.Enabled {
		t.Error("Expected janitor to be disabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.ServerPort = 70000 }},
		{"unknown backend", func(c *Config) { c.Decoder.Backend = "gstreamer" }},
		{"command backend without command", func(c *Config) { c.Decoder.Backend = DecoderBackendCommand }},
		{"zero frame rate", func(c *Config) { c.Decoder.FrameRate = 0 }},
		{"max timeout below base", func(c *Config) { c.Decoder.MaxTimeoutSeconds = 1 }},
		{"classifier url without host", func(c *Config) { c.Classifier.URL = "predict" }},
		{"unknown empty frame policy", func(c *Config) { c.Pipeline.EmptyFramePolicy = "drop" }},
		{"janitor would sweep live sessions", func(c *Config) { c.Janitor.StaleAfterSeconds = 60 }},
		{"janitor shorter than duration lookup plus decode", func(c *Config) { c.Janitor.StaleAfterSeconds = 3700 }},
		{"trusted proxy is not an address", func(c *Config) { c.TrustedProxies = []string{"10.0.0.0/8", "proxy.local"} }},
		{"cors without origins", func(c *Config) { c.CORS.AllowedOrigins = nil }},
		{"cors origin without scheme", func(c *Config) { c.CORS.AllowedOrigins = []string{"app.example.com"} }},
		{"cors wildcard mixed with origins", func(c *Config) { c.CORS.AllowedOrigins = []string{"*", "https://app.example.com"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestValidate_AcceptsProxiesAndOrigins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrustedProxies = []string{"10.0.0.0/8", "192.168.1.10", "::1"}
	cfg.CORS.AllowedOrigins = []string{"https://app.example.com", "http://localhost:3000"}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected config to be valid, got %v", err)
	}

	cfg.CORS.Enabled = false
	cfg.CORS.AllowedOrigins = nil
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected disabled cors to skip origin checks, got %v", err)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := DefaultConfig()
			cfg.ServerPort = 9191
			cfg.TrustedProxies = []string{"10.0.0.1"}

			if err := cfg.SaveConfig(path); err != nil {
				t.Fatalf("SaveConfig failed: %v", err)
			}

			loaded, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			if loaded.ServerPort != 9191 {
				t.Errorf("Expected port 9191, got %d", loaded.ServerPort)
			}
			if len(loaded.TrustedProxies) != 1 || loaded.TrustedProxies[0] != "10.0.0.1" {
				t.Errorf("Expected trusted proxies to round-trip, got %v", loaded.TrustedProxies)
			}
		})
	}
}
