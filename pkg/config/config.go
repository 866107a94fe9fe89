package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultDatabaseDriver is the default storage engine driver.
	DefaultDatabaseDriver = "sqlite"

	// DefaultDatabasePath is the default sqlite database location,
	// relative to the project root.
	DefaultDatabasePath = ".trackoor/results.db"

	// DefaultHistoryLimit is the default number of entries returned by
	// history queries.
	DefaultHistoryLimit = 10

	// DefaultReportHistoryLimit is the number of recent results embedded
	// per test in the composite report.
	DefaultReportHistoryLimit = 5

	// DefaultFlakyMinRuns is the minimum number of recorded results a
	// test needs before it can be classified as flaky.
	DefaultFlakyMinRuns = 2

	// DefaultFlakyMinFailureRate is the default failure-rate threshold
	// for flaky classification.
	DefaultFlakyMinFailureRate = 0.1

	// DefaultSnapshotPath is the default session-end snapshot location.
	DefaultSnapshotPath = ".trackoor/snapshot.json"

	// envPrefix is the prefix for environment variable overrides,
	// e.g. TRACKOOR_GLOBAL_LOG_LEVEL.
	envPrefix = "TRACKOOR"
)

// Config is the root configuration for trackoor.
type Config struct {
	Global  GlobalConfig  `yaml:"global" mapstructure:"global"`
	Tracker TrackerConfig `yaml:"tracker" mapstructure:"tracker"`
	API     *APIConfig    `yaml:"api,omitempty" mapstructure:"api"`
	Upload  *UploadConfig `yaml:"upload,omitempty" mapstructure:"upload"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// TrackerConfig contains the results store and analytics settings.
type TrackerConfig struct {
	Database           DatabaseConfig `yaml:"database" mapstructure:"database"`
	Flaky              FlakyConfig    `yaml:"flaky,omitempty" mapstructure:"flaky"`
	HistoryLimit       int            `yaml:"history_limit,omitempty" mapstructure:"history_limit"`
	ReportHistoryLimit int            `yaml:"report_history_limit,omitempty" mapstructure:"report_history_limit"`
	Snapshot           SnapshotConfig `yaml:"snapshot,omitempty" mapstructure:"snapshot"`
}

// FlakyConfig contains the flaky-test classification thresholds.
type FlakyConfig struct {
	MinRuns        int     `yaml:"min_runs,omitempty" mapstructure:"min_runs"`
	MinFailureRate float64 `yaml:"min_failure_rate,omitempty" mapstructure:"min_failure_rate"`
}

// SnapshotConfig controls the session-end snapshot artifact.
type SnapshotConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path,omitempty" mapstructure:"path"`
}

// DatabaseConfig selects and configures the storage engine backend.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteConfig contains sqlite backend settings.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains postgres backend settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode" mapstructure:"ssl_mode"`
}

// Load reads and merges one or more configuration files. Later files
// override earlier ones; environment variables with the TRACKOOR_ prefix
// override everything.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for i, path := range paths {
		v.SetConfigFile(path)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no file
// input, suitable for running against a local sqlite store.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()

	return cfg
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Tracker.Database.Driver == "" {
		c.Tracker.Database.Driver = DefaultDatabaseDriver
	}

	if c.Tracker.Database.SQLite.Path == "" {
		c.Tracker.Database.SQLite.Path = DefaultDatabasePath
	}

	if c.Tracker.Flaky.MinRuns == 0 {
		c.Tracker.Flaky.MinRuns = DefaultFlakyMinRuns
	}

	if c.Tracker.Flaky.MinFailureRate == 0 {
		c.Tracker.Flaky.MinFailureRate = DefaultFlakyMinFailureRate
	}

	if c.Tracker.HistoryLimit == 0 {
		c.Tracker.HistoryLimit = DefaultHistoryLimit
	}

	if c.Tracker.ReportHistoryLimit == 0 {
		c.Tracker.ReportHistoryLimit = DefaultReportHistoryLimit
	}

	if c.Tracker.Snapshot.Path == "" {
		c.Tracker.Snapshot.Path = DefaultSnapshotPath
	}

	if c.API != nil {
		c.API.applyDefaults()
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Tracker.Database.Driver {
	case "sqlite":
		if c.Tracker.Database.SQLite.Path == "" {
			return fmt.Errorf("tracker.database.sqlite.path is required")
		}
	case "postgres":
		pg := c.Tracker.Database.Postgres
		if pg.Host == "" || pg.Database == "" {
			return fmt.Errorf("tracker.database.postgres requires host and database")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Tracker.Database.Driver)
	}

	if c.Tracker.Flaky.MinRuns < 1 {
		return fmt.Errorf("tracker.flaky.min_runs must be at least 1")
	}

	if c.Tracker.Flaky.MinFailureRate < 0 || c.Tracker.Flaky.MinFailureRate > 1 {
		return fmt.Errorf("tracker.flaky.min_failure_rate must be between 0 and 1")
	}

	if c.API != nil {
		if err := c.API.Validate(); err != nil {
			return fmt.Errorf("validating api config: %w", err)
		}
	}

	if c.Upload != nil {
		if err := c.Upload.Validate(); err != nil {
			return fmt.Errorf("validating upload config: %w", err)
		}
	}

	return nil
}