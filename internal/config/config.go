// Package config provides file-based configuration for the geyser plugin.
// The host hands the plugin a JSON config path; JSON is valid YAML, so the
// file is decoded with yaml.v3 and YAML files work as well.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
)

// ErrNotFound is returned by Load when the config file does not exist.
var ErrNotFound = errors.New("config file not found")

// Config is the top-level plugin configuration.
type Config struct {
	// LibPath is read by the host to locate the plugin; kept so the same
	// file round-trips.
	LibPath       string              `yaml:"libpath"`
	Log           LogConfig           `yaml:"log"`
	Runtime       RuntimeConfig       `yaml:"runtime"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Publishers    PublishersConfig    `yaml:"publishers"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// RuntimeConfig sizes the worker runtime.
type RuntimeConfig struct {
	// WorkerThreads of 0 means one per CPU.
	WorkerThreads int `yaml:"worker_threads"`
	// Affinity lists the CPUs every worker thread is pinned to.
	Affinity        []int         `yaml:"affinity"`
	QueueSize       int           `yaml:"queue_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// NotificationsConfig enables event kinds.
type NotificationsConfig struct {
	Accounts        bool `yaml:"accounts"`
	AccountSnapshot bool `yaml:"account_snapshot"`
	Transactions    bool `yaml:"transactions"`
	Entries         bool `yaml:"entries"`
	BlockMetadata   bool `yaml:"block_metadata"`
	SlotStatus      bool `yaml:"slot_status"`
}

// PublishersConfig holds sink settings.
type PublishersConfig struct {
	SubjectPrefix string           `yaml:"subject_prefix"`
	NATS          NATSConfig       `yaml:"nats"`
	Redis         RedisConfig      `yaml:"redis"`
	ClickHouse    ClickHouseConfig `yaml:"clickhouse"`
}

// NATSConfig holds NATS publisher settings.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Name    string `yaml:"name"`
	// JetStream provisions a stream capturing every plugin subject.
	JetStream bool   `yaml:"jetstream"`
	Stream    string `yaml:"stream"`
}

// RedisConfig holds Redis pub/sub publisher settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	PoolSize int    `yaml:"pool_size"`
}

// ClickHouseConfig holds ClickHouse publisher settings.
type ClickHouseConfig struct {
	Enabled       bool          `yaml:"enabled"`
	DSN           string        `yaml:"dsn"`
	Table         string        `yaml:"table"`
	MaxConns      int           `yaml:"max_conns"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// MetricsConfig holds the Prometheus HTTP endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns a Config with production defaults: NATS on, everything
// else off, account snapshots not requested.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: constants.DefaultLogLevel},
		Runtime: RuntimeConfig{
			WorkerThreads:   0,
			QueueSize:       constants.DefaultQueueSize,
			ShutdownTimeout: constants.DefaultShutdownTimeout,
		},
		Notifications: NotificationsConfig{
			Accounts:        true,
			AccountSnapshot: false,
			Transactions:    true,
			Entries:         true,
			BlockMetadata:   true,
			SlotStatus:      true,
		},
		Publishers: PublishersConfig{
			SubjectPrefix: constants.DefaultSubjectPrefix,
			NATS: NATSConfig{
				Enabled: true,
				URL:     constants.NATSDefaultURL,
				Name:    constants.PluginName,
				Stream:  constants.NATSStream,
			},
			Redis: RedisConfig{
				Addr:     constants.RedisDefaultAddr,
				PoolSize: constants.RedisPoolSize,
			},
			ClickHouse: ClickHouseConfig{
				DSN:           constants.ClickHouseDefaultDSN,
				Table:         constants.ClickHouseTable,
				MaxConns:      constants.ClickHouseMaxConns,
				BatchSize:     constants.ClickHouseBatchSize,
				FlushInterval: constants.ClickHouseFlushInterval,
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    constants.DefaultMetricsAddr,
		},
	}
}

// Load reads a config file, merges it over defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes config bytes the same way Load does.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides allows environment variables to override config values.
func (c *Config) applyEnvOverrides() error {
	if level := os.Getenv(constants.EnvLogLevel); level != "" {
		c.Log.Level = level
	}
	if threads := os.Getenv(constants.EnvWorkerThreads); threads != "" {
		n, err := strconv.Atoi(threads)
		if err != nil {
			return fmt.Errorf("%s: %w", constants.EnvWorkerThreads, err)
		}
		c.Runtime.WorkerThreads = n
	}
	if url := os.Getenv(constants.EnvNATSURL); url != "" {
		c.Publishers.NATS.URL = url
	}
	if addr := os.Getenv(constants.EnvMetricsAddr); addr != "" {
		c.Metrics.Addr = addr
	}
	return nil
}

// Validate checks the config for logical errors.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q must be one of debug, info, warn, error", c.Log.Level))
	}

	if c.Runtime.WorkerThreads < 0 {
		errs = append(errs, "runtime.worker_threads must be >= 0")
	}
	if c.Runtime.QueueSize < constants.MinQueueSize {
		errs = append(errs, fmt.Sprintf("runtime.queue_size must be >= %d", constants.MinQueueSize))
	}
	if c.Runtime.ShutdownTimeout <= 0 {
		errs = append(errs, "runtime.shutdown_timeout must be > 0")
	}
	seen := make(map[int]bool, len(c.Runtime.Affinity))
	for _, cpu := range c.Runtime.Affinity {
		if cpu < 0 {
			errs = append(errs, fmt.Sprintf("runtime.affinity: invalid cpu %d", cpu))
		}
		if seen[cpu] {
			errs = append(errs, fmt.Sprintf("runtime.affinity: duplicate cpu %d", cpu))
		}
		seen[cpu] = true
	}

	p := c.Publishers
	if !p.NATS.Enabled && !p.Redis.Enabled && !p.ClickHouse.Enabled {
		errs = append(errs, "publishers: at least one of nats, redis, clickhouse must be enabled")
	}
	if p.NATS.Enabled && p.NATS.URL == "" {
		errs = append(errs, "publishers.nats.url is required")
	}
	if p.NATS.Enabled && p.NATS.JetStream && p.NATS.Stream == "" {
		errs = append(errs, "publishers.nats.stream is required with jetstream")
	}
	if p.Redis.Enabled && p.Redis.Addr == "" {
		errs = append(errs, "publishers.redis.addr is required")
	}
	if p.ClickHouse.Enabled {
		if p.ClickHouse.DSN == "" {
			errs = append(errs, "publishers.clickhouse.dsn is required")
		}
		if p.ClickHouse.BatchSize < 1 {
			errs = append(errs, "publishers.clickhouse.batch_size must be >= 1")
		}
		if p.ClickHouse.FlushInterval <= 0 {
			errs = append(errs, "publishers.clickhouse.flush_interval must be > 0")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Workers resolves the effective worker count.
func (c *Config) Workers() int {
	if c.Runtime.WorkerThreads == 0 {
		return runtime.NumCPU()
	}
	return c.Runtime.WorkerThreads
}
