// Package config provides the configuration schema and loader for
// subreconcile.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Backend selects where the smart dictionary is persisted.
type Backend string

const (
	// BackendMemory keeps the dictionary in process memory only.
	BackendMemory Backend = "memory"

	// BackendFile stores the dictionary as a JSON file under storage.dir.
	BackendFile Backend = "file"

	// BackendSQLite stores the dictionary in an SQLite database at storage.path.
	BackendSQLite Backend = "sqlite"

	// BackendPostgres stores the dictionary in PostgreSQL at storage.postgres_dsn.
	BackendPostgres Backend = "postgres"
)

// IsValid reports whether b is a recognised storage backend.
func (b Backend) IsValid() bool {
	switch b {
	case BackendMemory, BackendFile, BackendSQLite, BackendPostgres:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile sends logs to a rotated file instead of stderr.
	LogFile LogFileConfig `yaml:"log_file"`

	Storage   StorageConfig   `yaml:"storage"`
	Review    ReviewConfig    `yaml:"review"`
	Learn     LearnConfig     `yaml:"learn"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LogFileConfig configures file logging with size-based rotation.
type LogFileConfig struct {
	// Path of the log file. Empty keeps logging on stderr.
	Path string `yaml:"path"`

	// MaxSizeMB is the size at which the file is rotated. Default: 10.
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept. Default: 3.
	MaxBackups int `yaml:"max_backups"`
}

// StorageConfig selects and configures the dictionary backend.
type StorageConfig struct {
	// Backend selects the implementation. Default: file.
	Backend Backend `yaml:"backend"`

	// Dir is the directory used by the file backend.
	// Default: "subreconcile" under the user config directory.
	Dir string `yaml:"dir"`

	// Path is the database file used by the sqlite backend.
	// Default: "subreconcile.db" inside Dir.
	Path string `yaml:"path"`

	// PostgresDSN is the connection string used by the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Key names the blob holding the dictionary. Default: "smart-dictionary".
	Key string `yaml:"key"`

	// Breaker guards the sqlite and postgres backends.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of database backends.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive backend failures after which
	// calls fail fast. Default: 5.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long calls fail fast before the backend is probed
	// again. Default: 30s.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// ReviewConfig tunes review sessions.
type ReviewConfig struct {
	// Concurrency bounds how many pairs are diffed in parallel. Default: 4.
	Concurrency int `yaml:"concurrency"`

	// MaxRunes is the size bound above which a pair is not diffed character
	// by character. Unset applies the default of 5000; zero disables the
	// bound so every pair gets the exact diff.
	MaxRunes *int `yaml:"max_runes"`

	// PreCorrect applies the smart dictionary to every corrected text before
	// diffing. Default: true.
	PreCorrect *bool `yaml:"pre_correct"`
}

// RuneLimit returns the effective size bound, where zero means unbounded.
func (r ReviewConfig) RuneLimit() int {
	if r.MaxRunes == nil {
		return 5000
	}
	return *r.MaxRunes
}

// PreCorrectEnabled reports whether dictionary pre-correction is on.
func (r ReviewConfig) PreCorrectEnabled() bool {
	return r.PreCorrect == nil || *r.PreCorrect
}

// LearnConfig tunes which accepted corrections become dictionary rules.
type LearnConfig struct {
	// PhoneticThreshold is the minimum similarity for phonetically related
	// words. Default: 0.70.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the minimum similarity for words without phonetic
	// overlap. Default: 0.85.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// TelemetryConfig controls OpenTelemetry setup.
type TelemetryConfig struct {
	// ServiceName is reported as the OTel service name. Default: subreconcile.
	ServiceName string `yaml:"service_name"`

	// Prometheus installs the SDK meter provider with a Prometheus exporter.
	Prometheus bool `yaml:"prometheus"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = LogInfo
	}

	if c.LogFile.MaxSizeMB == 0 {
		c.LogFile.MaxSizeMB = 10
	}
	if c.LogFile.MaxBackups == 0 {
		c.LogFile.MaxBackups = 3
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = defaultDir()
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.Storage.Dir, "subreconcile.db")
	}
	if c.Storage.Key == "" {
		c.Storage.Key = "smart-dictionary"
	}
	if c.Storage.Breaker.MaxFailures == 0 {
		c.Storage.Breaker.MaxFailures = 5
	}
	if c.Storage.Breaker.ResetTimeout == 0 {
		c.Storage.Breaker.ResetTimeout = 30 * time.Second
	}

	if c.Review.Concurrency == 0 {
		c.Review.Concurrency = 4
	}

	if c.Learn.PhoneticThreshold == 0 {
		c.Learn.PhoneticThreshold = 0.70
	}
	if c.Learn.FuzzyThreshold == 0 {
		c.Learn.FuzzyThreshold = 0.85
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "subreconcile"
	}
}

func defaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".subreconcile"
	}
	return filepath.Join(dir, "subreconcile")
}
