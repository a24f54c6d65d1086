// Package config loads voxscribe settings from YAML, an optional .env file, and
// VOXSCRIBE_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Model        string       `yaml:"model"`
	ModelDir     string       `yaml:"model_dir"`
	Language     string       `yaml:"language"`
	BeamSize     int          `yaml:"beam_size"`
	Threads      int          `yaml:"threads"`
	AutoDownload bool         `yaml:"auto_download"`
	FFmpeg       string       `yaml:"ffmpeg"`
	Picker       string       `yaml:"picker"` // file dialog command; empty means detect
	NoProgress   bool         `yaml:"no_progress"`
	Record       RecordConfig `yaml:"record"`
	Log          LogConfig    `yaml:"log"`
}

// RecordConfig holds microphone capture settings.
type RecordConfig struct {
	Backend        string `yaml:"backend"` // auto, miniaudio, arecord, ffmpeg
	Input          string `yaml:"input"`
	Format         string `yaml:"format"` // ffmpeg input format override
	DefaultSeconds int    `yaml:"default_seconds"`
	Durations      []int  `yaml:"durations"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Verbose bool   `yaml:"verbose"`
	JSON    bool   `yaml:"json"`
	File    string `yaml:"file"`
}

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		Model:        "small",
		Language:     "auto",
		BeamSize:     5,
		AutoDownload: true,
		FFmpeg:       "ffmpeg",
		Record: RecordConfig{
			Backend:        "auto",
			DefaultSeconds: 5,
			Durations:      []int{5, 15, 30, 60},
		},
	}
}

// Load reads and parses a YAML config file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ModelDir = expandTilde(cfg.ModelDir)
	cfg.Log.File = expandTilde(cfg.Log.File)
	if looksLikePath(cfg.Model) {
		cfg.Model = expandTilde(cfg.Model)
	}

	return cfg, nil
}

// Resolve loads the config at path, or at defaultPath when path is empty and
// that file exists, or falls back to defaults. The dotenv file, when present,
// is loaded first and environment overrides are applied last.
func Resolve(path, defaultPath, dotenv string) (*Config, string, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("loading %s: %w", dotenv, err)
		}
	}

	source := ""
	cfg := Default()
	switch {
	case path != "":
		loaded, err := Load(path)
		if err != nil {
			return nil, "", err
		}
		cfg, source = loaded, path
	case defaultPath != "":
		if _, err := os.Stat(defaultPath); err == nil {
			loaded, err := Load(defaultPath)
			if err != nil {
				return nil, "", fmt.Errorf("loading %s: %w", defaultPath, err)
			}
			cfg, source = loaded, defaultPath
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, source, nil
}

// ApplyEnv overlays VOXSCRIBE_* variables onto the config.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"VOXSCRIBE_MODEL", &c.Model},
		{"VOXSCRIBE_MODEL_DIR", &c.ModelDir},
		{"VOXSCRIBE_LANGUAGE", &c.Language},
		{"VOXSCRIBE_BACKEND", &c.Record.Backend},
		{"VOXSCRIBE_INPUT", &c.Record.Input},
		{"VOXSCRIBE_FFMPEG", &c.FFmpeg},
		{"VOXSCRIBE_PICKER", &c.Picker},
	}

	for _, o := range overrides {
		if value, ok := lookup(o.key); ok && strings.TrimSpace(value) != "" {
			*o.target = expandTilde(strings.TrimSpace(value))
		}
	}
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model must not be empty")
	}

	if c.BeamSize <= 0 {
		return fmt.Errorf("beam_size must be > 0, got %d", c.BeamSize)
	}

	if c.Threads < 0 {
		return fmt.Errorf("threads must be >= 0, got %d", c.Threads)
	}

	switch c.Record.Backend {
	case "auto", "miniaudio", "arecord", "ffmpeg":
	default:
		return fmt.Errorf("record.backend must be auto, miniaudio, arecord, or ffmpeg, got %q", c.Record.Backend)
	}

	if c.Record.DefaultSeconds <= 0 {
		return fmt.Errorf("record.default_seconds must be > 0")
	}

	if len(c.Record.Durations) == 0 {
		return fmt.Errorf("record.durations must not be empty")
	}
	for _, d := range c.Record.Durations {
		if d <= 0 {
			return fmt.Errorf("record.durations must be positive, got %d", d)
		}
	}

	if strings.TrimSpace(c.FFmpeg) == "" {
		return fmt.Errorf("ffmpeg must not be empty")
	}

	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func looksLikePath(value string) bool {
	return strings.ContainsRune(value, os.PathSeparator) || strings.HasPrefix(value, "~")
}
