package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Source types understood by the daemon.
const (
	SourceFile   = "file"
	SourceAlpaca = "alpaca"
	SourceOanda  = "oanda"
)

// Environment variables that override file values.
const (
	EnvDestination = "EQUITYTRACK_DESTINATION"
	EnvInterval    = "EQUITYTRACK_INTERVAL"
	EnvLogLevel    = "EQUITYTRACK_LOG_LEVEL"
	EnvLogFile     = "EQUITYTRACK_LOG_FILE"
	EnvOandaToken  = "OANDA_TOKEN"
)

// Config represents the complete daemon configuration
type Config struct {
	// Destination is the ledger path. Empty means not configured yet; the
	// daemon then idles until one is given.
	Destination string         `json:"destination" yaml:"destination"`
	Interval    string         `json:"interval" yaml:"interval"` // e.g. "1s", "500ms"
	Exclude     []string       `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Log         LogConfig      `json:"log" yaml:"log"`
	Sources     []SourceConfig `json:"sources" yaml:"sources"`
}

// LogConfig contains logging parameters
type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int64  `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
}

// SourceConfig describes one account source
type SourceConfig struct {
	Type string `json:"type" yaml:"type"` // "file", "alpaca" or "oanda"

	// file
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// alpaca: ledger id override, credentials come from APCA_* variables
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// oanda
	Env        string   `json:"env,omitempty" yaml:"env,omitempty"` // "practice" or "live"
	Token      string   `json:"token,omitempty" yaml:"token,omitempty"`
	AccountIDs []string `json:"account_ids,omitempty" yaml:"account_ids,omitempty"`
}

// PollInterval converts Interval to a duration.
func (c *Config) PollInterval() (time.Duration, error) {
	if c.Interval == "" {
		return time.Second, nil
	}
	return time.ParseDuration(c.Interval)
}

// Load reads an optional .env file, then the config file at path (defaults
// when path is empty), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile parses a config file, YAML or JSON. It does not validate:
// environment overrides may still complete the file, so Load validates last.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	return cfg, nil
}

// ApplyEnv overrides file values with environment variables when set.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvDestination); ok {
		c.Destination = v
	}
	if v := os.Getenv(EnvInterval); v != "" {
		c.Interval = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Log.File = v
	}
	token := os.Getenv(EnvOandaToken)
	for i := range c.Sources {
		if c.Sources[i].Type == SourceOanda && c.Sources[i].Token == "" {
			c.Sources[i].Token = token
		}
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	d, err := c.PollInterval()
	if err != nil {
		return fmt.Errorf("interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		return fmt.Errorf("log rotation values must not be negative")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	for i, s := range c.Sources {
		switch s.Type {
		case SourceFile:
			if s.Path == "" {
				return fmt.Errorf("sources[%d]: file source requires path", i)
			}
		case SourceAlpaca:
		case SourceOanda:
			if env := strings.ToLower(s.Env); env != "practice" && env != "live" {
				return fmt.Errorf("sources[%d]: oanda env must be 'practice' or 'live'", i)
			}
		default:
			return fmt.Errorf("sources[%d]: unknown source type %q", i, s.Type)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Destination: "account_info.csv",
		Interval:    "1s",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Sources: []SourceConfig{
			{Type: SourceFile, Path: "accounts.yaml"},
		},
	}
}
