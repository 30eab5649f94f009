// Package config loads seqflow settings from YAML with environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/seqflow/pkg/worker"
)

// EnvPrefix is the default prefix for environment overrides.
const EnvPrefix = "SEQFLOW"

// Config is the full application configuration.
type Config struct {
	PrimeDelay     time.Duration `yaml:"prime_delay"`
	FibonacciDelay time.Duration `yaml:"fibonacci_delay"`
	SyncRestart    bool          `yaml:"sync_restart"`

	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // memory|sqlite|postgres|redis|mongo
	DSN    string `yaml:"dsn"`
}

type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint; empty disables it.
	Addr string `yaml:"addr"`
}

type TracingConfig struct {
	Exporter string `yaml:"exporter"` // none|stdout
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PrimeDelay:     worker.DefaultPrimeDelay,
		FibonacciDelay: worker.DefaultFibonacciDelay,
		Log:            LogConfig{Level: "info", Format: "text"},
		Store:          StoreConfig{Driver: "memory"},
		Tracing:        TracingConfig{Exporter: "none"},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()

	// #nosec G304 -- the path comes from the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables named
// PREFIX_FIELD, e.g. SEQFLOW_PRIME_DELAY or SEQFLOW_STORE_DSN.
func (c *Config) ApplyEnv(prefix string) error {
	return c.applyEnv(prefix, os.LookupEnv)
}

func (c *Config) applyEnv(prefix string, lookup func(string) (string, bool)) error {
	if prefix == "" {
		prefix = EnvPrefix
	}
	get := func(name string) (string, bool) {
		v, ok := lookup(prefix + "_" + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	var errs []error
	duration := func(name string, dst *time.Duration) {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", prefix, name, err))
				return
			}
			*dst = d
		}
	}
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	duration("PRIME_DELAY", &c.PrimeDelay)
	duration("FIBONACCI_DELAY", &c.FibonacciDelay)
	if v, ok := get("SYNC_RESTART"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s_SYNC_RESTART: %w", prefix, err))
		} else {
			c.SyncRestart = b
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_DSN", &c.Store.DSN)
	str("METRICS_ADDR", &c.Metrics.Addr)
	str("TRACING_EXPORTER", &c.Tracing.Exporter)

	return errors.Join(errs...)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.PrimeDelay < 0 {
		errs = append(errs, errors.New("prime_delay must be >= 0"))
	}
	if c.FibonacciDelay < 0 {
		errs = append(errs, errors.New("fibonacci_delay must be >= 0"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres", "redis", "mongo":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be one of memory, sqlite, postgres, redis, mongo", c.Store.Driver))
	}

	switch c.Tracing.Exporter {
	case "", "none", "stdout":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q must be none or stdout", c.Tracing.Exporter))
	}

	return errors.Join(errs...)
}
