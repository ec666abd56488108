package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "account_info.csv", cfg.Destination)
	assert.Equal(t, "info", cfg.Log.Level)

	d, err := cfg.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	file := []SourceConfig{{Type: SourceFile, Path: "a.yaml"}}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			config:  Default(),
			wantErr: false,
		},
		{
			name:    "empty destination is allowed",
			config:  &Config{Sources: file},
			wantErr: false,
		},
		{
			name:    "bad interval",
			config:  &Config{Interval: "soon", Sources: file},
			wantErr: true,
			errMsg:  "interval",
		},
		{
			name:    "negative interval",
			config:  &Config{Interval: "-1s", Sources: file},
			wantErr: true,
			errMsg:  "interval must be positive",
		},
		{
			name:    "bad log level",
			config:  &Config{Log: LogConfig{Level: "loud"}, Sources: file},
			wantErr: true,
			errMsg:  "log.level",
		},
		{
			name:    "no sources",
			config:  &Config{},
			wantErr: true,
			errMsg:  "at least one source is required",
		},
		{
			name:    "file source without path",
			config:  &Config{Sources: []SourceConfig{{Type: SourceFile}}},
			wantErr: true,
			errMsg:  "file source requires path",
		},
		{
			name:    "oanda env",
			config:  &Config{Sources: []SourceConfig{{Type: SourceOanda, Env: "demo"}}},
			wantErr: true,
			errMsg:  "oanda env",
		},
		{
			name:    "alpaca",
			config:  &Config{Sources: []SourceConfig{{Type: SourceAlpaca}}},
			wantErr: false,
		},
		{
			name:    "unknown type",
			config:  &Config{Sources: []SourceConfig{{Type: "ninja"}}},
			wantErr: true,
			errMsg:  "unknown source type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Exclude = []string{"Playback101"}
			cfg.Sources = append(cfg.Sources, SourceConfig{Type: SourceOanda, Env: "practice", AccountIDs: []string{"101-001"}})
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadAppliesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "equitytrack.yaml")
	doc := `destination: from-file.csv
interval: 2s
sources:
  - type: oanda
    env: practice
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	t.Setenv(EnvDestination, "from-env.csv")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvOandaToken, "secret")
	t.Setenv(EnvInterval, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.csv", cfg.Destination)
	assert.Equal(t, "2s", cfg.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "secret", cfg.Sources[0].Token)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvDestination, "")
	t.Setenv(EnvInterval, "250ms")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Destination)
	d, err := cfg.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestLoadValidatesAfterEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "equitytrack.yaml")
	doc := `destination: ledger.csv
interval: 0s
log:
  level: chatty
sources:
  - type: file
    path: accounts.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	t.Setenv(EnvDestination, "ledger.csv")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvInterval, "")
	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid config")

	t.Setenv(EnvInterval, "2s")
	t.Setenv(EnvLogLevel, "warn")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2s", cfg.Interval)
	assert.Equal(t, "warn", cfg.Log.Level)
}
