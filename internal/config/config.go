// Package config loads the productivity CLI settings from defaults, an
// optional YAML file, PRODUCTIVITY_* environment variables and bound
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fpang/screen-productivity/internal/imageprep"
	"github.com/fpang/screen-productivity/internal/workflow"
)

// EnvPrefix namespaces environment overrides, e.g. PRODUCTIVITY_ENDPOINT or
// PRODUCTIVITY_POLL_INTERVAL.
const EnvPrefix = "PRODUCTIVITY"

// Status sources.
const (
	StatusSourceHTTP = "http"
	StatusSourceSFN  = "sfn"
)

type Config struct {
	Endpoint        string      `mapstructure:"endpoint"`
	StatusSource    string      `mapstructure:"status_source"`
	StateMachineArn string      `mapstructure:"state_machine_arn"`
	Region          string      `mapstructure:"region"`
	LogLevel        string      `mapstructure:"log_level"`
	Poll            PollConfig  `mapstructure:"poll"`
	Image           ImageConfig `mapstructure:"image"`
}

type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type ImageConfig struct {
	CeilingBytes       int    `mapstructure:"ceiling_bytes"`
	LimitBytes         int    `mapstructure:"limit_bytes"`
	MaxDimension       int    `mapstructure:"max_dimension"`
	FallbackDimensions []int  `mapstructure:"fallback_dimensions"`
	Format             string `mapstructure:"format"`
	JPEGQuality        int    `mapstructure:"jpeg_quality"`
}

// PrepOptions converts the image section into cascade options.
func (c ImageConfig) PrepOptions() imageprep.Options {
	return imageprep.Options{
		CeilingBytes:       c.CeilingBytes,
		LimitBytes:         c.LimitBytes,
		Format:             c.Format,
		MaxDimension:       c.MaxDimension,
		FallbackDimensions: append([]int(nil), c.FallbackDimensions...),
		JPEGQuality:        c.JPEGQuality,
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval))
	}
	if c.Poll.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("poll.max_attempts must be positive, got %d", c.Poll.MaxAttempts))
	}
	if c.Image.CeilingBytes <= 0 || c.Image.LimitBytes <= 0 {
		errs = append(errs, errors.New("image.ceiling_bytes and image.limit_bytes must be positive"))
	}
	if c.Image.MaxDimension <= 0 {
		errs = append(errs, fmt.Errorf("image.max_dimension must be positive, got %d", c.Image.MaxDimension))
	}
	for i, d := range c.Image.FallbackDimensions {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("image.fallback_dimensions[%d] must be positive, got %d", i, d))
		}
		if i > 0 && d >= c.Image.FallbackDimensions[i-1] {
			errs = append(errs, fmt.Errorf("image.fallback_dimensions must be descending, got %v", c.Image.FallbackDimensions))
			break
		}
	}
	switch c.Image.Format {
	case imageprep.FormatPNG, imageprep.FormatJPEG:
	default:
		errs = append(errs, fmt.Errorf("image.format must be %q or %q, got %q", imageprep.FormatPNG, imageprep.FormatJPEG, c.Image.Format))
	}
	switch c.StatusSource {
	case StatusSourceHTTP, StatusSourceSFN:
	default:
		errs = append(errs, fmt.Errorf("status_source must be %q or %q, got %q", StatusSourceHTTP, StatusSourceSFN, c.StatusSource))
	}
	return errors.Join(errs...)
}

// New returns a viper instance carrying the defaults and env binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("endpoint", "")
	v.SetDefault("status_source", StatusSourceHTTP)
	v.SetDefault("state_machine_arn", "")
	v.SetDefault("region", "us-east-1")
	v.SetDefault("log_level", "info")

	v.SetDefault("poll.interval", workflow.DefaultPollInterval)
	v.SetDefault("poll.max_attempts", workflow.DefaultMaxAttempts)

	v.SetDefault("image.ceiling_bytes", imageprep.DefaultCeilingBytes)
	v.SetDefault("image.limit_bytes", imageprep.DefaultLimitBytes)
	v.SetDefault("image.max_dimension", imageprep.DefaultMaxDimension)
	v.SetDefault("image.fallback_dimensions", imageprep.DefaultFallbackDimensions)
	v.SetDefault("image.format", imageprep.FormatPNG)
	v.SetDefault("image.jpeg_quality", imageprep.DefaultJPEGQuality)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"endpoint":      "endpoint",
	"status-source": "status_source",
	"state-machine": "state_machine_arn",
	"region":        "region",
	"log-level":     "log_level",
	"poll-interval": "poll.interval",
	"max-attempts":  "poll.max_attempts",
	"ceiling":       "image.ceiling_bytes",
	"limit":         "image.limit_bytes",
	"max-dimension": "image.max_dimension",
	"format":        "image.format",
}

// BindFlags binds every known flag present in fs. Unknown keys are skipped so
// subcommands can register only the flags they use.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads configPath (or the first config.yaml found in the search path
// when empty), applies env and flag overrides, and validates the result.
// A missing default config file is not an error.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".screen-productivity"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
