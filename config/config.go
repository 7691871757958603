// Package config loads and validates the service configuration. Every
// field has a default so the YAML file is optional; command-line flags
// override whatever the file provides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	Whisper WhisperConfig `yaml:"whisper"`
	Batch   BatchConfig   `yaml:"batch"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig covers the websocket/HTTP listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
}

// AudioConfig covers buffering and capture parameters.
type AudioConfig struct {
	// Default sample rate assumed before a config message arrives.
	SampleRate int `yaml:"sample_rate"`
	// Buffered bytes at which a dispatch fires (~1s of 16-bit mono at 16kHz).
	DispatchThreshold int `yaml:"dispatch_threshold"`
	// Client capture frame size in samples (100ms at 16kHz).
	FrameSamples int `yaml:"frame_samples"`
}

// WhisperConfig locates the recognizer executable.
type WhisperConfig struct {
	Path    string `yaml:"path"`
	Model   string `yaml:"model"`
	TempDir string `yaml:"temp_dir"`
}

// BatchConfig covers file-processing mode.
type BatchConfig struct {
	Workers int `yaml:"workers"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8081",
		},
		Audio: AudioConfig{
			SampleRate:        16000,
			DispatchThreshold: 32000,
			FrameSamples:      1600,
		},
		Batch: BatchConfig{
			Workers: 2,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("batch config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the listener section.
func (s *ServerConfig) Validate() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}
	if (s.CertFile == "") != (s.KeyFile == "") {
		return fmt.Errorf("cert_file and key_file must be provided together")
	}
	return nil
}

// Validate checks the audio section.
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000, got %d", a.SampleRate)
	}
	if a.DispatchThreshold < 2 {
		return fmt.Errorf("dispatch_threshold must be at least one sample, got %d", a.DispatchThreshold)
	}
	if a.FrameSamples < 1 {
		return fmt.Errorf("frame_samples must be positive, got %d", a.FrameSamples)
	}
	return nil
}

// Validate checks the batch section.
func (b *BatchConfig) Validate() error {
	if b.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", b.Workers)
	}
	return nil
}

// Validate checks the logging section.
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("level must be one of debug, info, warn, error; got %q", l.Level)
}
