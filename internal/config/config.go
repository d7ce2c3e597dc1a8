// ============================================================================
// PS Configuration
// ============================================================================
//
// Package: internal/config
// File: config.go
//
// Sources, later ones win:
//   1. Built-in defaults
//   2. YAML file (optional; a missing file keeps the defaults)
//   3. Environment variables:
//        SECRET_KEY       security.secret
//        GC_ADDR          gateway.address
//        PS_TIMEOUT       gateway.timeout (seconds, float)
//        PS_BACKOFF       gateway.backoff (comma-separated seconds)
//        PS_FRESHNESS     security.freshness_window (seconds)
//        PS_LOG           log.path
//        NUM_SOLICITUDES  generator.n
//
// ============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// Config is the complete PS configuration.
type Config struct {
	Gateway struct {
		Address          string          `yaml:"address"`
		Timeout          time.Duration   `yaml:"timeout"`
		Backoff          []time.Duration `yaml:"backoff"`
		TargetPrefix     string          `yaml:"target_prefix"`
		IncludeSignature bool            `yaml:"include_signature"`
	} `yaml:"gateway"`

	Security struct {
		Secret          string        `yaml:"secret"`
		FreshnessWindow time.Duration `yaml:"freshness_window"`
	} `yaml:"security"`

	Generator struct {
		N          int      `yaml:"n"`
		Mix        string   `yaml:"mix"`
		Seed       *int64   `yaml:"seed"`
		Operations []string `yaml:"operations"`
		TargetMax  int      `yaml:"target_max"`
		SubjectMax int      `yaml:"subject_max"`
		BatchFile  string   `yaml:"batch_file"`
	} `yaml:"generator"`

	Log struct {
		Path  string `yaml:"path"`
		Sync  bool   `yaml:"sync"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`

	Worker struct {
		Count      int `yaml:"count"`
		BufferSize int `yaml:"buffer_size"`
	} `yaml:"worker"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Gateway.Address = "tcp://127.0.0.1:5555"
	cfg.Gateway.Timeout = 2 * time.Second
	cfg.Gateway.Backoff = []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
	}
	cfg.Gateway.TargetPrefix = "BOOK-"
	cfg.Security.Secret = "demo-key"
	cfg.Security.FreshnessWindow = 60 * time.Second
	cfg.Generator.N = 25
	cfg.Generator.Mix = "50:50"
	cfg.Generator.Operations = []string{"RENOVACION", "DEVOLUCION", "PRESTAMO"}
	cfg.Generator.TargetMax = 1000
	cfg.Generator.SubjectMax = 100
	cfg.Generator.BatchFile = "solicitudes.bin"
	cfg.Log.Path = "ps_logs.txt"
	cfg.Log.Level = "info"
	cfg.Metrics.Port = 9090
	cfg.Worker.Count = 1
	cfg.Worker.BufferSize = 64
	return cfg
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path or a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment variables read by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	if v, ok := lookup("SECRET_KEY"); ok && v != "" {
		c.Security.Secret = v
	}
	if v, ok := lookup("GC_ADDR"); ok && v != "" {
		c.Gateway.Address = v
	}
	if v, ok := lookup("PS_TIMEOUT"); ok && v != "" {
		d, err := ParseSeconds(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PS_TIMEOUT: %w", err))
		} else {
			c.Gateway.Timeout = d
		}
	}
	if v, ok := lookup("PS_BACKOFF"); ok && v != "" {
		b, err := ParseBackoff(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PS_BACKOFF: %w", err))
		} else {
			c.Gateway.Backoff = b
		}
	}
	if v, ok := lookup("PS_FRESHNESS"); ok && v != "" {
		d, err := ParseSeconds(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PS_FRESHNESS: %w", err))
		} else {
			c.Security.FreshnessWindow = d
		}
	}
	if v, ok := lookup("PS_LOG"); ok && v != "" {
		c.Log.Path = v
	}
	if v, ok := lookup("NUM_SOLICITUDES"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("NUM_SOLICITUDES: %w", err))
		} else {
			c.Generator.N = n
		}
	}

	return errors.Join(errs...)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Gateway.Address == "" {
		errs = append(errs, errors.New("gateway.address is required"))
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("gateway.timeout must be positive, got %s", c.Gateway.Timeout))
	}
	for i, d := range c.Gateway.Backoff {
		if d < 0 {
			errs = append(errs, fmt.Errorf("gateway.backoff[%d] must not be negative, got %s", i, d))
		}
	}
	if c.Security.Secret == "" {
		errs = append(errs, errors.New("security.secret is required"))
	}
	if c.Security.FreshnessWindow <= 0 {
		errs = append(errs, fmt.Errorf("security.freshness_window must be positive, got %s", c.Security.FreshnessWindow))
	}
	if c.Generator.N < 0 {
		errs = append(errs, fmt.Errorf("generator.n must not be negative, got %d", c.Generator.N))
	}
	if len(c.Generator.Operations) == 0 {
		errs = append(errs, errors.New("generator.operations must not be empty"))
	}
	if c.Generator.TargetMax < 1 {
		errs = append(errs, fmt.Errorf("generator.target_max must be at least 1, got %d", c.Generator.TargetMax))
	}
	if c.Generator.SubjectMax < 1 {
		errs = append(errs, fmt.Errorf("generator.subject_max must be at least 1, got %d", c.Generator.SubjectMax))
	}
	if c.Log.Path == "" {
		errs = append(errs, errors.New("log.path is required"))
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port))
	}
	if c.Worker.Count < 1 {
		errs = append(errs, fmt.Errorf("worker.count must be at least 1, got %d", c.Worker.Count))
	}
	return errors.Join(errs...)
}

// Operations returns the configured operation names as types.
func (c *Config) Operations() []types.Operation {
	ops := make([]types.Operation, 0, len(c.Generator.Operations))
	for _, op := range c.Generator.Operations {
		op = strings.ToUpper(strings.TrimSpace(op))
		if op != "" {
			ops = append(ops, types.Operation(op))
		}
	}
	return ops
}

// ParseSeconds parses a float number of seconds ("2", "0.5").
func ParseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// ParseBackoff parses a comma-separated list of seconds ("0.5,1,2,4").
// Blank entries are skipped; an empty result is an error.
func ParseBackoff(s string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := ParseSeconds(part)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty backoff schedule %q", s)
	}
	return out, nil
}
