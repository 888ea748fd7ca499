// Package conf defines the YAML-configured Bootstrap structure and merges
// a parsed file over compiled-in defaults.
package conf

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Bootstrap is the top-level configuration document.
type Bootstrap struct {
	Port           uint16    `yaml:"port"`
	Addr           string    `yaml:"addr"`
	CacheDir       string    `yaml:"cache_dir"`
	CacheTTLMins   uint16    `yaml:"cache_ttl_mins"`
	Workers        uint16    `yaml:"workers"`
	FailureDelay   uint64    `yaml:"failure_delay"` // milliseconds
	FailureRetries uint16    `yaml:"failure_retries"`
	Services       []Service `yaml:"services"`
	PidFile        string    `yaml:"pidfile"`
	Logger         *Logger   `yaml:"logger"`
	Cache          *Cache    `yaml:"cache"`
	Metrics        *Metrics  `yaml:"metrics"`
}

// Service is one upstream endpoint.
type Service struct {
	Addr string `yaml:"addr"`
	Port uint16 `yaml:"port"`
}

// Logger configures internal/log.
type Logger struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// Cache configures ambient behavior of the cache subsystem beyond the
// on-disk entry format.
type Cache struct {
	SweepIntervalSecs int `yaml:"sweep_interval_secs"`
}

// Metrics configures the optional Prometheus HTTP endpoint. An empty
// Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// defaults returns the compiled-in Bootstrap fields applied before a
// parsed file is merged on top, so a minimal YAML document — just the
// required keys — still produces a runnable process.
func defaults() *Bootstrap {
	return &Bootstrap{
		Workers:        8,
		FailureRetries: 2,
		FailureDelay:   50,
		Logger: &Logger{
			Level:      "info",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		},
		Cache: &Cache{
			SweepIntervalSecs: 60,
		},
		Metrics: &Metrics{},
	}
}

// Load reads path, parses it as YAML, and merges it over defaults().
func Load(path string) (*Bootstrap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("conf: read %s: %w", path, err)
	}

	bc := &Bootstrap{}
	if err := yaml.Unmarshal(raw, bc); err != nil {
		return nil, fmt.Errorf("conf: parse %s: %w", path, err)
	}

	merged := defaults()
	if err := mergo.Merge(merged, bc, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("conf: merge defaults: %w", err)
	}

	if err := merged.validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// validate enforces the fields that must be set for a runnable process.
func (bc *Bootstrap) validate() error {
	if bc.Port == 0 {
		return fmt.Errorf("conf: port is required")
	}
	if bc.Addr == "" {
		return fmt.Errorf("conf: addr is required")
	}
	if bc.CacheDir == "" {
		return fmt.Errorf("conf: cache_dir is required")
	}
	if bc.CacheTTLMins == 0 {
		return fmt.Errorf("conf: cache_ttl_mins must be > 0")
	}
	if bc.Workers == 0 {
		return fmt.Errorf("conf: workers must be > 0")
	}
	if len(bc.Services) == 0 {
		return fmt.Errorf("conf: services must list at least one upstream")
	}
	return nil
}

// CacheTTL renders CacheTTLMins as a time.Duration.
func (bc *Bootstrap) CacheTTL() time.Duration {
	return time.Duration(bc.CacheTTLMins) * time.Minute
}

// FailureDelayDuration renders FailureDelay (milliseconds) as a
// time.Duration.
func (bc *Bootstrap) FailureDelayDuration() time.Duration {
	return time.Duration(bc.FailureDelay) * time.Millisecond
}
