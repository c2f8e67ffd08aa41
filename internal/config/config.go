// Package config loads the server configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chazu/makertron/pkg/script"
	"github.com/chazu/makertron/pkg/session"
	"github.com/chazu/makertron/pkg/tessellate"
)

// Kernel backends.
const (
	KernelSdfx     = "sdfx"
	KernelManifold = "manifold"
)

// Config is the full server configuration.
type Config struct {
	Version string `yaml:"version" json:"version"`
	Listen  string `yaml:"listen" json:"listen"`

	Log struct {
		Level  string `yaml:"level" json:"level"`
		Format string `yaml:"format" json:"format"`
	} `yaml:"log" json:"log"`

	Eval struct {
		Workers        int           `yaml:"workers" json:"workers"`
		QueueSize      int           `yaml:"queue_size" json:"queue_size"`
		Timeout        time.Duration `yaml:"timeout" json:"timeout"`
		MaxIterations  int           `yaml:"max_iterations" json:"max_iterations"`
		DefaultQuality float64       `yaml:"default_quality" json:"default_quality"`
		DefaultFormat  string        `yaml:"default_format" json:"default_format"`
		Kernel         string        `yaml:"kernel" json:"kernel"`
	} `yaml:"eval" json:"eval"`

	SocketIO struct {
		CORSOrigin  string        `yaml:"cors_origin" json:"cors_origin"`
		PingTimeout time.Duration `yaml:"ping_timeout" json:"ping_timeout"`
	} `yaml:"socketio" json:"socketio"`

	Redis struct {
		Addr string        `yaml:"addr" json:"addr"`
		TTL  time.Duration `yaml:"ttl" json:"ttl"`
	} `yaml:"redis" json:"redis"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Version: "5.0.0",
		Listen:  ":3000",
	}
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Eval.Timeout = session.DefaultEvalTimeout
	cfg.Eval.MaxIterations = script.DefaultMaxIterations
	cfg.Eval.DefaultQuality = tessellate.DefaultQuality
	cfg.Eval.DefaultFormat = string(tessellate.FormatSTL)
	cfg.Eval.Kernel = KernelSdfx
	cfg.SocketIO.CORSOrigin = "*"
	cfg.SocketIO.PingTimeout = 20 * time.Second
	cfg.Redis.TTL = time.Hour
	return cfg
}

// Load reads path over Default. Files ending in .json or .jsn are parsed as
// JSON, anything else as YAML. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsn":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Eval.Workers < 0 {
		errs = append(errs, fmt.Errorf("eval.workers must not be negative, got %d", c.Eval.Workers))
	}
	if c.Eval.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("eval.queue_size must not be negative, got %d", c.Eval.QueueSize))
	}
	if c.Eval.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("eval.timeout must be positive, got %s", c.Eval.Timeout))
	}
	if c.Eval.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("eval.max_iterations must be positive, got %d", c.Eval.MaxIterations))
	}
	if c.Eval.DefaultQuality <= 0 {
		errs = append(errs, fmt.Errorf("eval.default_quality must be positive, got %g", c.Eval.DefaultQuality))
	}
	if _, err := tessellate.ParseFormat(c.Eval.DefaultFormat); err != nil {
		errs = append(errs, fmt.Errorf("eval.default_format: %w", err))
	}
	switch c.Eval.Kernel {
	case KernelSdfx, KernelManifold:
	default:
		errs = append(errs, fmt.Errorf("eval.kernel must be %s or %s, got %q", KernelSdfx, KernelManifold, c.Eval.Kernel))
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, fmt.Errorf("redis.ttl must not be negative, got %s", c.Redis.TTL))
	}
	return errors.Join(errs...)
}
