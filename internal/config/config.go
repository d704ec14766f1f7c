// Package config loads reconkg's ambient configuration: database path,
// logging, and Datalog evaluation defaults, grounded on the teacher's
// internal/configfile load/save shape but serialized as YAML (gopkg.in/yaml.v3,
// the teacher's own config.yaml format) with environment-variable overrides
// in the style of the teacher's internal/config/yaml_config.go.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const FileName = "reconkg.yaml"

// LogConfig controls the slog handler the binary installs at startup.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// EvalConfig mirrors datalog.EvalConfig's fields without importing the
// datalog package here. Load fills it from the file and environment; the
// reconkg binary does not pass it on, so evaluations run with
// datalog.DefaultEvalConfig unless a request carries its own config.
type EvalConfig struct {
	MaxRules      int   `yaml:"maxRules"`
	MaxIterations int   `yaml:"maxIterations"`
	MaxTuples     int   `yaml:"maxTuples"`
	TimeoutMs     int64 `yaml:"timeoutMs"`
}

// Config is reconkg's full ambient configuration.
type Config struct {
	Database string     `yaml:"database"`
	Log      LogConfig  `yaml:"log"`
	Eval     EvalConfig `yaml:"eval"`
}

// Default returns the configuration used when no config file or environment
// override is present.
func Default() *Config {
	return &Config{
		Database: "reconkg.db",
		Log:      LogConfig{Level: "info", Format: "text"},
		Eval: EvalConfig{
			MaxRules:      200,
			MaxIterations: 100,
			MaxTuples:     100000,
			TimeoutMs:     5000,
		},
	}
}

// Load reads path (YAML) over Default()'s values, then applies RECONKG_*
// environment overrides, matching the teacher's config.yaml-plus-env-override
// precedence (file beats default, env beats file).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is an explicit CLI/caller argument
		switch {
		case os.IsNotExist(err):
			// no file: defaults plus env overrides only
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes cfg to path as YAML, creating or truncating it.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides layers RECONKG_DATABASE, RECONKG_LOG_LEVEL,
// RECONKG_LOG_FORMAT, and RECONKG_EVAL_* onto cfg when set, non-empty.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("RECONKG_DATABASE")); v != "" {
		cfg.Database = v
	}
	if v := strings.TrimSpace(os.Getenv("RECONKG_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("RECONKG_LOG_FORMAT")); v != "" {
		cfg.Log.Format = v
	}
	if n, ok := envInt("RECONKG_EVAL_MAX_RULES"); ok {
		cfg.Eval.MaxRules = n
	}
	if n, ok := envInt("RECONKG_EVAL_MAX_ITERATIONS"); ok {
		cfg.Eval.MaxIterations = n
	}
	if n, ok := envInt("RECONKG_EVAL_MAX_TUPLES"); ok {
		cfg.Eval.MaxTuples = n
	}
	if n, ok := envInt64("RECONKG_EVAL_TIMEOUT_MS"); ok {
		cfg.Eval.TimeoutMs = n
	}
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envInt64(key string) (int64, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
