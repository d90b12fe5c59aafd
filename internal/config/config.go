// Package config defines the service configuration, loaded from an optional
// YAML file and FOGLAMP_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

// Service identifies this south service towards the management plane.
type Service struct {
	Name   string `mapstructure:"name" default:"foglamp-south"`
	Plugin string `mapstructure:"plugin" default:"sinusoid"`
}

// Queue tunes the ingest queue.
type Queue struct {
	// TimeoutMS is the maximum latency between drains in milliseconds.
	TimeoutMS int `mapstructure:"timeout_ms" default:"5000"`
	// Threshold is the queue length that triggers an eager drain.
	Threshold int `mapstructure:"threshold" default:"100"`
	// Requeue re-buffers a batch when the storage append fails instead of
	// discarding it. Defaulted through viper, not the defaults tag, so an
	// explicit false survives.
	Requeue bool `mapstructure:"requeue"`
}

// Purge configures the periodic readings purge.
type Purge struct {
	// AgeSeconds is the retention window.
	AgeSeconds uint64 `mapstructure:"age_seconds" default:"259200"`
	// RetainUnsent keeps rows above the sent watermark.
	RetainUnsent bool `mapstructure:"retain_unsent" default:"false"`
	// IntervalSeconds is the cycle period.
	IntervalSeconds int `mapstructure:"interval_seconds" default:"3600"`
}

// Management points at the management plane.
type Management struct {
	URL       string `mapstructure:"url" default:"http://localhost:8081"`
	TokenFile string `mapstructure:"token_file"`
}

// Server configures the storage REST surface.
type Server struct {
	HTTPPort int    `mapstructure:"http_port" default:"8080"`
	Mode     string `mapstructure:"mode" default:"dev"`
}

type Configuration struct {
	Service    Service    `mapstructure:"service"`
	Queue      Queue      `mapstructure:"queue"`
	Purge      Purge      `mapstructure:"purge"`
	Management Management `mapstructure:"management"`
	Server     Server     `mapstructure:"server"`
	NumWorkers int        `mapstructure:"num_workers" default:"2"`
	LogLevel   string     `mapstructure:"log_level" default:"info"`
	LogFormat  string     `mapstructure:"log_format" default:"console"`
}

// QueueTimeout returns the drain timeout as a duration.
func (c *Configuration) QueueTimeout() time.Duration {
	return time.Duration(c.Queue.TimeoutMS) * time.Millisecond
}

// PurgeInterval returns the purge cycle period as a duration.
func (c *Configuration) PurgeInterval() time.Duration {
	return time.Duration(c.Purge.IntervalSeconds) * time.Second
}

// PurgeFlags maps the retain-unsent switch onto the purge flags bitfield.
func (c *Configuration) PurgeFlags() uint32 {
	if c.Purge.RetainUnsent {
		return 1
	}
	return 0
}

// Load reads the configuration from the given file (may be empty) merged
// with FOGLAMP_-prefixed environment variables, then applies defaults and
// validates.
func Load(path string) (*Configuration, error) {
	v := viper.New()
	v.SetEnvPrefix("FOGLAMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("queue.requeue", true)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	cfg := &Configuration{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply configuration defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Configuration) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service.name must not be empty")
	}
	if c.Service.Plugin == "" {
		return fmt.Errorf("service.plugin must not be empty")
	}
	if c.Queue.TimeoutMS <= 0 {
		return fmt.Errorf("queue.timeout_ms must be positive")
	}
	if c.Queue.Threshold <= 0 {
		return fmt.Errorf("queue.threshold must be positive")
	}
	return nil
}
