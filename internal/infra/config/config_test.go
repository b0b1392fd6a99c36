package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api.gdc.cancer.gov/data", cfg.BaseURL)
	assert.Equal(t, "https://api.gdc.cancer.gov/status", cfg.StatusURL)
	assert.Equal(t, 4, cfg.Download.Workers)
	assert.Equal(t, 8192, cfg.Download.ChunkSize)
	assert.Equal(t, 3, cfg.Download.MaxRetries)
	assert.Equal(t, time.Second, cfg.Download.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.Download.MaxDelay)
	assert.Equal(t, 30*time.Second, cfg.Download.HTTPTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.IncludeStdout)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gofetch.yaml")
	content := `
base_url: https://mirror.example.org/data
download:
  workers: 8
  chunk_size: 65536
  initial_delay: 2s
  max_delay: 1m
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://mirror.example.org/data", cfg.BaseURL)
	assert.Equal(t, 8, cfg.Download.Workers)
	assert.Equal(t, 65536, cfg.Download.ChunkSize)
	assert.Equal(t, 2*time.Second, cfg.Download.InitialDelay)
	assert.Equal(t, time.Minute, cfg.Download.MaxDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.Download.MaxRetries)
}

func TestLoad_ConfigFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoad_FlagsWin(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 4, "")
	flags.Duration("initial-delay", time.Second, "")
	require.NoError(t, flags.Set("workers", "9"))
	require.NoError(t, flags.Set("initial-delay", "250ms"))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Download.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Download.InitialDelay)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GOFETCH_DOWNLOAD_MAX_RETRIES", "7")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Download.MaxRetries)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  workers: 0\n"), 0644))

	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestLoad_RejectsInvertedDelays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := "download:\n  initial_delay: 10s\n  max_delay: 2s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_delay")
}
