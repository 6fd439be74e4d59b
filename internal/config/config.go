// Package config loads cmd/flagkit-demo's YAML configuration: SDK key,
// data-source mode and endpoints, and event-pipeline tuning.
//
// Grounded on dorkly/project.go's yaml.NewDecoder-over-os.Open loading
// style and its flat, yaml-tagged struct layout; validation errors use
// go-errors/errors the way dorkly/relay_archive.go does, so a
// misconfigured mode reports a stack trace pointing at the check that
// failed rather than just the message.
package config

import (
	"os"
	"time"

	goerrors "github.com/go-errors/errors"
	"gopkg.in/yaml.v3"
)

// DataSourceMode selects which data system backs the client.
type DataSourceMode string

const (
	ModeStreaming DataSourceMode = "streaming"
	ModePolling   DataSourceMode = "polling"
	ModeLazyLoad  DataSourceMode = "lazyLoad"
)

// Config is the root of cmd/flagkit-demo's YAML configuration file.
type Config struct {
	SDKKey string `yaml:"sdkKey"`

	DataSource DataSourceConfig `yaml:"dataSource"`
	Events     EventsConfig     `yaml:"events"`
}

// DataSourceConfig configures exactly one of the three data systems;
// Mode selects which nested block is authoritative.
type DataSourceConfig struct {
	Mode DataSourceMode `yaml:"mode"`

	StreamURI string        `yaml:"streamUri"`
	PollURI   string        `yaml:"pollUri"`
	Interval  time.Duration `yaml:"interval"`

	LazyLoad LazyLoadConfig `yaml:"lazyLoad"`
}

// LazyLoadConfig configures the lazy-load data system's storage backend.
type LazyLoadConfig struct {
	Backend    string        `yaml:"backend"` // "s3" or "redis"
	RefreshTTL time.Duration `yaml:"refreshTtl"`

	S3    S3Config    `yaml:"s3"`
	Redis RedisConfig `yaml:"redis"`
}

type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`

	// Endpoint and static credentials are for S3-compatible stores (e.g.
	// minio) that don't run on AWS; leave empty to use the default AWS
	// credential chain against the real S3 service.
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Prefix   string `yaml:"prefix"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EventsConfig tunes the asynchronous analytics-event pipeline.
type EventsConfig struct {
	EventsURI     string        `yaml:"eventsUri"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	OutboxSize    int           `yaml:"outboxSize"`
	PoolSize      int           `yaml:"poolSize"`
	RetryDelay    time.Duration `yaml:"retryDelay"`
}

// Load reads and decodes the YAML configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerrors.Wrap(err, 0)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, goerrors.Wrap(err, 0)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration names a supported data-source
// mode and carries the fields that mode requires.
func (c *Config) Validate() error {
	if c.SDKKey == "" {
		return goerrors.Errorf("sdkKey is required")
	}
	switch c.DataSource.Mode {
	case ModeStreaming:
		if c.DataSource.StreamURI == "" {
			return goerrors.Errorf("dataSource.streamUri is required for mode %q", ModeStreaming)
		}
	case ModePolling:
		if c.DataSource.PollURI == "" {
			return goerrors.Errorf("dataSource.pollUri is required for mode %q", ModePolling)
		}
	case ModeLazyLoad:
		switch c.DataSource.LazyLoad.Backend {
		case "s3":
			if c.DataSource.LazyLoad.S3.Bucket == "" {
				return goerrors.Errorf("dataSource.lazyLoad.s3.bucket is required")
			}
		case "redis":
			if c.DataSource.LazyLoad.Redis.Address == "" {
				return goerrors.Errorf("dataSource.lazyLoad.redis.address is required")
			}
		default:
			return goerrors.Errorf("dataSource.lazyLoad.backend must be \"s3\" or \"redis\", got %q", c.DataSource.LazyLoad.Backend)
		}
	default:
		return goerrors.Errorf("dataSource.mode must be one of %q, %q, %q, got %q", ModeStreaming, ModePolling, ModeLazyLoad, c.DataSource.Mode)
	}
	return nil
}
