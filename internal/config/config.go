// Package config loads the tracker's configuration from a YAML file,
// environment variables and command-line flags, in that order of
// increasing precedence. A missing file is not an error: defaults apply.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/logging"
)

const (
	// DefaultDirName is the directory under the user's home that holds the
	// database and the default config file.
	DefaultDirName = ".capstone"
	// FileName is the default config file name.
	FileName = "config.yaml"
)

// Environment variables that override file values.
const (
	EnvAddr           = "CAPSTONE_ADDR"
	EnvDataDir        = "CAPSTONE_DATA_DIR"
	EnvLogLevel       = "CAPSTONE_LOG_LEVEL"
	EnvMilestoneBasis = "CAPSTONE_MILESTONE_BASIS"
)

// Config is the full configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Progress ProgressConfig `yaml:"progress"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	DataDir     string        `yaml:"dataDir"`
	BusyTimeout time.Duration `yaml:"busyTimeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ProgressConfig is the status policy and milestone counting basis.
//
//	progress:
//	  milestoneBasis: functions
//	  statuses:
//	    To Do: not_started
//	    Doing: in_progress
//	    Done: completed
//	  derived:
//	    not_started: To Do
//	    in_progress: Doing
//	    completed: Done
type ProgressConfig struct {
	MilestoneBasis string            `yaml:"milestoneBasis"`
	Statuses       map[string]string `yaml:"statuses"`
	Derived        map[string]string `yaml:"derived"`
}

// DefaultDir returns ~/.capstone, or .capstone if the home directory is
// unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	policy := domain.DefaultPolicy()
	statuses := make(map[string]string, len(policy.TaskPhases))
	for s, ph := range policy.TaskPhases {
		statuses[string(s)] = string(ph)
	}
	derived := make(map[string]string, len(policy.Derived))
	for ph, s := range policy.Derived {
		derived[string(ph)] = string(s)
	}

	return Config{
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DataDir:     DefaultDir(),
			BusyTimeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Progress: ProgressConfig{
			MilestoneBasis: string(domain.BasisFunctions),
			Statuses:       statuses,
			Derived:        derived,
		},
	}
}

// Load reads the config file at path over the defaults, applies
// environment overrides and validates the result. An empty path means
// DefaultDir()/config.yaml.
func Load(path string) (Config, error) {
	if path == "" {
		path = filepath.Join(DefaultDir(), FileName)
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("Config", "No config file at %s, using defaults", path)
	case err != nil:
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	default:
		// A file that names statuses replaces the default table rather than
		// merging into it.
		var probe struct {
			Progress ProgressConfig `yaml:"progress"`
		}
		if err := yaml.Unmarshal(data, &probe); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
		}
		if len(probe.Progress.Statuses) > 0 {
			cfg.Progress.Statuses = nil
		}
		if len(probe.Progress.Derived) > 0 {
			cfg.Progress.Derived = nil
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
		}
		logging.Info("Config", "Loaded configuration from %s", path)
	}

	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.HTTP.Addr = v
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.Database.DataDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvMilestoneBasis); ok && v != "" {
		c.Progress.MilestoneBasis = v
	}
}

// Validate checks that every field is usable.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if strings.TrimSpace(c.Database.DataDir) == "" {
		errs = append(errs, errors.New("database.dataDir is required"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if err := domain.ValidateBasis(domain.CountBasis(c.Progress.MilestoneBasis)); err != nil {
		errs = append(errs, fmt.Errorf("progress.milestoneBasis: %w", err))
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Policy builds the status policy from the progress section.
func (c Config) Policy() (domain.Policy, error) {
	p := domain.Policy{
		TaskPhases: make(map[domain.Status]domain.Phase, len(c.Progress.Statuses)),
		Derived:    make(map[domain.Phase]domain.Status, len(c.Progress.Derived)),
	}

	names := make([]string, 0, len(c.Progress.Statuses))
	for s := range c.Progress.Statuses {
		names = append(names, s)
	}
	sort.Strings(names)
	for _, s := range names {
		ph := domain.Phase(c.Progress.Statuses[s])
		if err := domain.ValidatePhase(ph); err != nil {
			return domain.Policy{}, fmt.Errorf("progress.statuses[%q]: %w", s, err)
		}
		p.TaskPhases[domain.Status(s)] = ph
	}
	for ph, s := range c.Progress.Derived {
		if err := domain.ValidatePhase(domain.Phase(ph)); err != nil {
			return domain.Policy{}, fmt.Errorf("progress.derived: %w", err)
		}
		p.Derived[domain.Phase(ph)] = domain.Status(s)
	}
	if err := p.Validate(); err != nil {
		return domain.Policy{}, fmt.Errorf("progress: %w", err)
	}
	return p, nil
}

// Basis returns the milestone counting basis.
func (c Config) Basis() domain.CountBasis {
	return domain.CountBasis(c.Progress.MilestoneBasis)
}

// LogLevel returns the parsed log level, falling back to info.
func (c Config) LogLevel() logging.Level {
	lvl, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return logging.LevelInfo
	}
	return lvl
}
