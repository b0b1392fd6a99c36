package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	StatusURL string `mapstructure:"status_url" yaml:"status_url" validate:"omitempty,url"`

	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type DownloadConfig struct {
	Workers      int           `mapstructure:"workers" yaml:"workers" validate:"gte=1"`
	ChunkSize    int           `mapstructure:"chunk_size" yaml:"chunk_size" validate:"gte=1"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay" validate:"gt=0"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay" validate:"gt=0"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout" yaml:"http_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

var validate = validator.New()

// Load builds the configuration from defaults, an optional YAML file,
// GOFETCH_* environment variables and any bound command-line flags, in
// increasing order of precedence.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set Defaults
	v.SetDefault("base_url", "https://api.gdc.cancer.gov/data")
	v.SetDefault("status_url", "https://api.gdc.cancer.gov/status")
	v.SetDefault("download.workers", 4)
	v.SetDefault("download.chunk_size", 8192)
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.initial_delay", time.Second)
	v.SetDefault("download.max_delay", 30*time.Second)
	v.SetDefault("download.http_timeout", 30*time.Second)
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("GOFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindFlags maps the CLI flag names onto their config keys. Flags only win
// when explicitly set.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"base_url":               "base-url",
		"status_url":             "status-url",
		"download.workers":       "workers",
		"download.chunk_size":    "chunk-size",
		"download.max_retries":   "max-retries",
		"download.initial_delay": "initial-delay",
		"download.max_delay":     "max-delay",
		"download.http_timeout":  "http-timeout",
		"log.path":               "log-path",
		"log.level":              "log-level",
	}

	for key, flag := range bindings {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("could not bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Download.MaxDelay < c.Download.InitialDelay {
		return fmt.Errorf("max_delay (%s) must not be shorter than initial_delay (%s)",
			c.Download.MaxDelay, c.Download.InitialDelay)
	}

	return nil
}
