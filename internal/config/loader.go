package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. An empty path yields [Default].
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.LogFile.MaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("log_file.max_size_mb %d must not be negative", cfg.LogFile.MaxSizeMB))
	}
	if cfg.LogFile.MaxBackups < 0 {
		errs = append(errs, fmt.Errorf("log_file.max_backups %d must not be negative", cfg.LogFile.MaxBackups))
	}

	// Storage
	st := cfg.Storage
	if !st.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: memory, file, sqlite, postgres", st.Backend))
	}
	if st.Backend == BackendPostgres && st.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when backend is postgres"))
	}
	if st.Backend == BackendFile && st.Dir == "" {
		errs = append(errs, errors.New("storage.dir is required when backend is file"))
	}
	if st.Backend == BackendSQLite && st.Path == "" {
		errs = append(errs, errors.New("storage.path is required when backend is sqlite"))
	}
	if st.Key == "" {
		errs = append(errs, errors.New("storage.key is required"))
	} else if strings.ContainsAny(st.Key, `/\`) || st.Key == "." || st.Key == ".." {
		errs = append(errs, fmt.Errorf("storage.key %q must be a plain name", st.Key))
	}

	if st.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("storage.breaker.max_failures %d must not be negative", st.Breaker.MaxFailures))
	}
	if st.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("storage.breaker.reset_timeout %s must not be negative", st.Breaker.ResetTimeout))
	}

	// Review
	if cfg.Review.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("review.concurrency %d must not be negative", cfg.Review.Concurrency))
	}
	if n := cfg.Review.MaxRunes; n != nil && *n < 0 {
		errs = append(errs, fmt.Errorf("review.max_runes %d must not be negative", *n))
	}

	// Learn
	if t := cfg.Learn.PhoneticThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("learn.phonetic_threshold %.2f is out of range [0, 1]", t))
	}
	if t := cfg.Learn.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("learn.fuzzy_threshold %.2f is out of range [0, 1]", t))
	}

	return errors.Join(errs...)
}
