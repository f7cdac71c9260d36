// Package config loads and validates the monitor configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/TFMV/fim/internal/integrity"
	"github.com/TFMV/fim/internal/walk"
	"github.com/spf13/viper"
)

// Default values for optional keys.
const (
	DefaultBaselineFile        = "./baseline.json"
	DefaultLogFile             = "./logs/fim.log"
	DefaultScanIntervalSeconds = 60
	DefaultEventDebounceMS     = 250
	DefaultLogLevel            = "info"
)

// ErrConfig is matched by every *Error.
var ErrConfig = errors.New("config: invalid configuration")

// Error describes a missing or invalid configuration value.
type Error struct {
	Key    string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := "config"
	if e.Key != "" {
		msg += " " + e.Key
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfig}
	}
	return []error{ErrConfig, e.Err}
}

// Config is the typed monitor configuration. Paths are absolute and
// symlink-resolved after Load.
type Config struct {
	Paths               []string `mapstructure:"paths"`
	ExcludeGlobs        []string `mapstructure:"exclude_globs"`
	IgnoreFile          string   `mapstructure:"ignore_file"`
	FollowSymlinks      bool     `mapstructure:"follow_symlinks"`
	HashAlgorithm       string   `mapstructure:"hash_algorithm"`
	BaselineFile        string   `mapstructure:"baseline_file"`
	LogFile             string   `mapstructure:"log_file"`
	LogLevel            string   `mapstructure:"log_level"`
	ScanIntervalSeconds int      `mapstructure:"scan_interval_seconds"`
	EventDebounceMS     int      `mapstructure:"event_debounce_ms"`
	Workers             int      `mapstructure:"workers"`
	MetricsAddr         string   `mapstructure:"metrics_addr"`

	algorithm integrity.Algorithm
	matcher   *walk.Matcher
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("paths", []string{})
	v.SetDefault("exclude_globs", []string{})
	v.SetDefault("ignore_file", "")
	v.SetDefault("follow_symlinks", false)
	v.SetDefault("hash_algorithm", string(integrity.DefaultAlgorithm))
	v.SetDefault("baseline_file", DefaultBaselineFile)
	v.SetDefault("log_file", DefaultLogFile)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("scan_interval_seconds", DefaultScanIntervalSeconds)
	v.SetDefault("event_debounce_ms", DefaultEventDebounceMS)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("metrics_addr", "")
}

// Load reads the configuration file at path (JSON, YAML or TOML, chosen by
// extension), overlays FIM_* environment variables and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("FIM")
	v.AutomaticEnv()

	if path == "" {
		return nil, &Error{Key: "--config", Reason: "a configuration file is required"}
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{Reason: fmt.Sprintf("cannot read %s", path), Err: err}
	}
	return FromViper(v)
}

// FromViper decodes and validates an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Reason: "cannot decode configuration", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalises paths and checks every value. It is called by Load.
func (c *Config) Validate() error {
	if len(c.Paths) == 0 {
		return &Error{Key: "paths", Reason: "must include at least one path"}
	}
	roots := make([]string, 0, len(c.Paths))
	for _, p := range c.Paths {
		if strings.TrimSpace(p) == "" {
			return &Error{Key: "paths", Reason: "contains an empty path"}
		}
		root, err := resolvePath(p)
		if err != nil {
			return &Error{Key: "paths", Reason: fmt.Sprintf("cannot resolve %q", p), Err: err}
		}
		roots = append(roots, root)
	}
	c.Paths = roots

	alg, err := integrity.ParseAlgorithm(c.HashAlgorithm)
	if err != nil {
		return &Error{Key: "hash_algorithm", Reason: "unsupported value", Err: err}
	}
	c.algorithm = alg
	c.HashAlgorithm = string(alg)

	if c.ScanIntervalSeconds <= 0 {
		return &Error{Key: "scan_interval_seconds", Reason: fmt.Sprintf("must be positive, got %d", c.ScanIntervalSeconds)}
	}
	if c.EventDebounceMS < 0 {
		return &Error{Key: "event_debounce_ms", Reason: fmt.Sprintf("must not be negative, got %d", c.EventDebounceMS)}
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	if c.BaselineFile == "" {
		c.BaselineFile = DefaultBaselineFile
	}
	if c.BaselineFile, err = expandHome(c.BaselineFile); err != nil {
		return &Error{Key: "baseline_file", Reason: "cannot expand path", Err: err}
	}
	if c.LogFile, err = expandHome(c.LogFile); err != nil {
		return &Error{Key: "log_file", Reason: "cannot expand path", Err: err}
	}
	if c.IgnoreFile != "" {
		if c.IgnoreFile, err = expandHome(c.IgnoreFile); err != nil {
			return &Error{Key: "ignore_file", Reason: "cannot expand path", Err: err}
		}
	}

	matcher, err := walk.NewMatcher(c.ExcludeGlobs, c.IgnoreFile)
	if err != nil {
		return &Error{Key: "exclude_globs", Reason: "invalid exclusion", Err: err}
	}
	c.matcher = matcher
	return nil
}

// Algorithm returns the validated hash algorithm.
func (c *Config) Algorithm() integrity.Algorithm {
	if c.algorithm == "" {
		return integrity.DefaultAlgorithm
	}
	return c.algorithm
}

// Matcher returns the compiled exclusion matcher.
func (c *Config) Matcher() *walk.Matcher { return c.matcher }

// ScanInterval is the polling period.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

// EventDebounce is the per-path debounce window.
func (c *Config) EventDebounce() time.Duration {
	return time.Duration(c.EventDebounceMS) * time.Millisecond
}

// Builder returns a snapshot builder for the configured roots.
func (c *Config) Builder() *integrity.Builder {
	return &integrity.Builder{
		Roots:          c.Paths,
		Algorithm:      c.Algorithm(),
		Matcher:        c.matcher,
		FollowSymlinks: c.FollowSymlinks,
		Workers:        c.Workers,
	}
}

// resolvePath expands "~", makes p absolute and resolves symlinks when the
// path exists. Missing roots are kept so that they can appear later.
func resolvePath(p string) (string, error) {
	p, err := expandHome(p)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	return abs, nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
