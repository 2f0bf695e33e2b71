package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. FRAMESIGHT_SERVER_PORT
const EnvPrefix = "FRAMESIGHT_"

const (
	DecoderBackendFFmpeg  = "ffmpeg"
	DecoderBackendCommand = "command"

	EmptyFramePolicyShortCircuit = "short-circuit"
	EmptyFramePolicySubmit       = "submit"
)

// Config holds the configuration for the frame server
type Config struct {
	ServerAddr         string   `json:"server_addr" yaml:"server_addr" env:"SERVER_ADDR"`
	ServerPort         int      `json:"server_port" yaml:"server_port" env:"SERVER_PORT"`
	TrustedProxies     []string `json:"trusted_proxies" yaml:"trusted_proxies" env:"TRUSTED_PROXIES"`
	MaxUploadMegabytes int      `json:"max_upload_megabytes" yaml:"max_upload_megabytes" env:"MAX_UPLOAD_MEGABYTES"`
	UploadDir          string   `json:"upload_dir" yaml:"upload_dir" env:"UPLOAD_DIR"`
	DatabasePath       string   `json:"database_path" yaml:"database_path" env:"DATABASE_PATH"`
	LogPath            string   `json:"log_path" yaml:"log_path" env:"LOG_PATH"`
	LogLevel           string   `json:"log_level" yaml:"log_level" env:"LOG_LEVEL"`

	Decoder    DecoderConfig    `json:"decoder" yaml:"decoder" envPrefix:"DECODER_"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier" envPrefix:"CLASSIFIER_"`
	Pipeline   PipelineConfig   `json:"pipeline" yaml:"pipeline" envPrefix:"PIPELINE_"`
	Janitor    JanitorConfig    `json:"janitor" yaml:"janitor" envPrefix:"JANITOR_"`
	CORS       CORSConfig       `json:"cors" yaml:"cors" envPrefix:"CORS_"`
}

// DecoderConfig selects and tunes the external decode capability
type DecoderConfig struct {
	// Backend is either "ffmpeg" (goffmpeg) or "command" (any CLI honoring the decode contract)
	Backend string `json:"backend" yaml:"backend" env:"BACKEND"`
	// Command and Args are used by the "command" backend. Args may contain {input}, {output} and {rate}.
	Command string   `json:"command" yaml:"command" env:"COMMAND"`
	Args    []string `json:"args" yaml:"args" env:"ARGS"`

	FrameRate             int     `json:"frame_rate" yaml:"frame_rate" env:"FRAME_RATE"`
	BaseTimeoutSeconds    int     `json:"base_timeout_seconds" yaml:"base_timeout_seconds" env:"BASE_TIMEOUT_SECONDS"`
	TimeoutPerVideoSecond float64 `json:"timeout_per_video_second" yaml:"timeout_per_video_second" env:"TIMEOUT_PER_VIDEO_SECOND"`
	MaxTimeoutSeconds     int     `json:"max_timeout_seconds" yaml:"max_timeout_seconds" env:"MAX_TIMEOUT_SECONDS"`
}

// ClassifierConfig describes the remote classification endpoint
type ClassifierConfig struct {
	URL            string `json:"url" yaml:"url" env:"URL"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	FieldName      string `json:"field_name" yaml:"field_name" env:"FIELD_NAME"`
	ResultKey      string `json:"result_key" yaml:"result_key" env:"RESULT_KEY"`
}

type PipelineConfig struct {
	EmptyFramePolicy  string `json:"empty_frame_policy" yaml:"empty_frame_policy" env:"EMPTY_FRAME_POLICY"`
	MaxConcurrentJobs int    `json:"max_concurrent_jobs" yaml:"max_concurrent_jobs" env:"MAX_CONCURRENT_JOBS"`
}

type JanitorConfig struct {
	Enabled           bool `json:"enabled" yaml:"enabled" env:"ENABLED"`
	IntervalSeconds   int  `json:"interval_seconds" yaml:"interval_seconds" env:"INTERVAL_SECONDS"`
	StaleAfterSeconds int  `json:"stale_after_seconds" yaml:"stale_after_seconds" env:"STALE_AFTER_SECONDS"`
}

// CORSConfig controls cross-origin access for browser frontends
type CORSConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" env:"ENABLED"`
	// AllowedOrigins lists full origins such as https://app.example.com; "*" allows any origin
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

// AllowsAnyOrigin reports whether the origin list is the "*" wildcard
func (c CORSConfig) AllowsAnyOrigin() bool {
	return len(c.AllowedOrigins) == 1 && c.AllowedOrigins[0] == "*"
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	dataDir := "."

	homeDir, err := os.UserHomeDir()
	if err == nil && homeDir != "" {
		dataDir = filepath.Join(homeDir, "framesight")
	}

	return &Config{
		ServerAddr:         "",
		ServerPort:         7810,
		MaxUploadMegabytes: 512,
		UploadDir:          "uploads",
		DatabasePath:       filepath.Join(dataDir, "framesight.db"),
		LogPath:            "",
		LogLevel:           "info",
		Decoder: DecoderConfig{
			Backend:               DecoderBackendFFmpeg,
			FrameRate:             1,
			BaseTimeoutSeconds:    30,
			TimeoutPerVideoSecond: 2,
			MaxTimeoutSeconds:     1800,
		},
		Classifier: ClassifierConfig{
			URL:            "http://localhost:8000/predict/",
			TimeoutSeconds: 120,
			FieldName:      "files",
			ResultKey:      "image_base64",
		},
		Pipeline: PipelineConfig{
			EmptyFramePolicy:  EmptyFramePolicyShortCircuit,
			MaxConcurrentJobs: 0,
		},
		Janitor: JanitorConfig{
			Enabled:           true,
			IntervalSeconds:   300,
			StaleAfterSeconds: 7200,
		},
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
		},
	}
}

// LoadConfig loads the configuration from a JSON or YAML file and applies environment overrides.
// A missing file is not an error; defaults are used instead.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := unmarshal(path, data, config); err != nil {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
		case os.IsNotExist(err):
			// proceed with the default config
		default:
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return config, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshal(path string, data []byte, config *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, config)
	}
	return json.Unmarshal(data, config)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port: %d", c.ServerPort)
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload_dir must not be empty")
	}
	if c.MaxUploadMegabytes <= 0 {
		return fmt.Errorf("invalid max upload size: %d MB", c.MaxUploadMegabytes)
	}
	for _, proxy := range c.TrustedProxies {
		if !isIPOrCIDR(proxy) {
			return fmt.Errorf("invalid trusted proxy: %q", proxy)
		}
	}

	switch c.Decoder.Backend {
	case DecoderBackendFFmpeg:
	case DecoderBackendCommand:
		if c.Decoder.Command == "" {
			return fmt.Errorf("decoder.command is required for the %q backend", DecoderBackendCommand)
		}
	default:
		return fmt.Errorf("unknown decoder backend: %q", c.Decoder.Backend)
	}
	if c.Decoder.FrameRate <= 0 {
		return fmt.Errorf("invalid decoder frame rate: %d", c.Decoder.FrameRate)
	}
	if c.Decoder.BaseTimeoutSeconds <= 0 || c.Decoder.MaxTimeoutSeconds < c.Decoder.BaseTimeoutSeconds {
		return fmt.Errorf("decoder timeouts must satisfy 0 < base (%d) <= max (%d)",
			c.Decoder.BaseTimeoutSeconds, c.Decoder.MaxTimeoutSeconds)
	}
	if c.Decoder.TimeoutPerVideoSecond < 0 {
		return fmt.Errorf("invalid decoder timeout per video second: %v", c.Decoder.TimeoutPerVideoSecond)
	}

	u, err := url.Parse(c.Classifier.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid classifier url: %q", c.Classifier.URL)
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid classifier timeout: %d", c.Classifier.TimeoutSeconds)
	}
	if c.Classifier.FieldName == "" || c.Classifier.ResultKey == "" {
		return fmt.Errorf("classifier field_name and result_key must not be empty")
	}

	switch c.Pipeline.EmptyFramePolicy {
	case EmptyFramePolicyShortCircuit, EmptyFramePolicySubmit:
	default:
		return fmt.Errorf("unknown empty frame policy: %q", c.Pipeline.EmptyFramePolicy)
	}
	if c.Pipeline.MaxConcurrentJobs < 0 {
		return fmt.Errorf("invalid max concurrent jobs: %d", c.Pipeline.MaxConcurrentJobs)
	}

	if c.Janitor.Enabled {
		if c.Janitor.IntervalSeconds <= 0 {
			return fmt.Errorf("invalid janitor interval: %d", c.Janitor.IntervalSeconds)
		}
		// a live request can hold its session for at most one duration lookup, one decode and one classification
		minStale := 2*c.DecodeMaxTimeout() + c.ClassifierTimeout()
		if c.JanitorStaleAfter() <= minStale {
			return fmt.Errorf("janitor stale_after_seconds (%d) must exceed the longest possible request (%v)",
				c.Janitor.StaleAfterSeconds, minStale)
		}
	}

	if c.CORS.Enabled {
		if err := c.CORS.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (c CORSConfig) validate() error {
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("cors.allowed_origins must not be empty when cors is enabled")
	}
	if c.AllowsAnyOrigin() {
		return nil
	}
	for _, origin := range c.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || strings.Trim(u.Path, "/") != "" {
			return fmt.Errorf("invalid cors origin: %q", origin)
		}
	}
	return nil
}

func isIPOrCIDR(value string) bool {
	if net.ParseIP(value) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(value)
	return err == nil
}

// SaveConfig saves the configuration to a JSON or YAML file depending on its extension
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode config file: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) VideosDir() string { return filepath.Join(c.UploadDir, "videos") }
func (c *Config) ImagesDir() string { return filepath.Join(c.UploadDir, "images") }
func (c *Config) FramesDir() string { return filepath.Join(c.UploadDir, "frames") }

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMegabytes) * 1024 * 1024
}

func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}

func (c *Config) DecodeBaseTimeout() time.Duration {
	return time.Duration(c.Decoder.BaseTimeoutSeconds) * time.Second
}

func (c *Config) DecodeMaxTimeout() time.Duration {
	return time.Duration(c.Decoder.MaxTimeoutSeconds) * time.Second
}

func (c *Config) JanitorInterval() time.Duration {
	return time.Duration(c.Janitor.IntervalSeconds) * time.Second
}

func (c *Config) JanitorStaleAfter() time.Duration {
	return time.Duration(c.Janitor.StaleAfterSeconds) * time.Second
}

func (c *Config) DecodeTimeoutPerVideoSecond() time.Duration {
	return time.Duration(c.Decoder.TimeoutPerVideoSecond * float64(time.Second))
}
