// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file, a .env file and environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"time"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"   // modernc.org/sqlite, pure Go
	DriverSQLite3  = "sqlite3"  // github.com/mattn/go-sqlite3, cgo
	DriverPostgres = "postgres" // github.com/lib/pq
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBDriver is one of sqlite, sqlite3 or postgres.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is passed to sql.Open as is.
	DBDSN string `koanf:"db_dsn"`

	// DBMaxOpenConns bounds the PostgreSQL pool. SQLite always uses one.
	DBMaxOpenConns int `koanf:"db_max_open_conns"`

	// DBMigrate creates missing tables on startup.
	DBMigrate bool `koanf:"db_migrate"`

	// DueLimit caps GET /queue?limit.
	DueLimit int `koanf:"due_limit"`

	// RefillEnabled turns on the scheduled queue refill for idle learners.
	RefillEnabled bool `koanf:"refill_enabled"`

	// RefillCron is a five-field cron expression evaluated in UTC.
	RefillCron string `koanf:"refill_cron"`

	// RefillWorkers bounds how many learners a refill run builds concurrently.
	RefillWorkers int `koanf:"refill_workers"`

	// DueGaugeIntervalS is the refresh period of the due items gauge.
	DueGaugeIntervalS int `koanf:"due_gauge_interval_s"`

	// JobTimeoutS bounds a single run of any scheduled job.
	JobTimeoutS int `koanf:"job_timeout_s"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		DBDriver:          DriverSQLite,
		DBDSN:             "file:leakcoach.db?_pragma=busy_timeout(5000)",
		DBMaxOpenConns:    10,
		DBMigrate:         true,
		DueLimit:          50,
		RefillEnabled:     true,
		RefillCron:        "0 4 * * *",
		RefillWorkers:     4,
		DueGaugeIntervalS: 60,
		JobTimeoutS:       300,
	}
}

// DueGaugeInterval returns DueGaugeIntervalS as a duration.
func (c *Config) DueGaugeInterval() time.Duration {
	return time.Duration(c.DueGaugeIntervalS) * time.Second
}

// JobTimeout returns JobTimeoutS as a duration.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutS) * time.Second
}

// Validate checks the configuration for values the service cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBDSN == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case c.DBMaxOpenConns <= 0:
		return fmt.Errorf("%w: db_max_open_conns must be positive", ErrInvalidConfig)
	case c.JobTimeoutS <= 0:
		return fmt.Errorf("%w: job_timeout_s must be positive", ErrInvalidConfig)
	case c.DueLimit <= 0:
		return fmt.Errorf("%w: due_limit must be positive", ErrInvalidConfig)
	case c.RefillWorkers <= 0:
		return fmt.Errorf("%w: refill_workers must be positive", ErrInvalidConfig)
	case c.DueGaugeIntervalS <= 0:
		return fmt.Errorf("%w: due_gauge_interval_s must be positive", ErrInvalidConfig)
	case c.RefillEnabled && c.RefillCron == "":
		return fmt.Errorf("%w: refill_cron is required when refill is enabled", ErrInvalidConfig)
	}
	switch c.DBDriver {
	case DriverSQLite, DriverSQLite3, DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
