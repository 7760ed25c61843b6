// Package config provides configuration management for the translation
// service. It handles loading and parsing YAML configuration files, .env
// files holding provider API keys, and the declarative strategy list.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/audio-translator/translator/internal/cache"
	"github.com/audio-translator/translator/internal/category"
	"github.com/audio-translator/translator/internal/naming"
	"github.com/audio-translator/translator/sdk/translator"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is the HTTP port used when the configuration leaves it out.
	DefaultPort = 8320
	// DefaultLogDir is where rotated log files go when logging to file.
	DefaultLogDir = "logs"
	// DefaultBatchWorkers bounds concurrent translations of one batch request.
	DefaultBatchWorkers = 4
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	ServerConfig `yaml:",inline"`

	// LoggingToFile writes logs to rotating files under LogDir instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`
	// LogDir is the directory of the rotated log files.
	LogDir string `yaml:"log-dir" json:"log-dir"`
	// LogLevel is debug, info, warn, error or quiet. Debug overrides it.
	LogLevel string `yaml:"log-level" json:"log-level"`

	// EnvFile is loaded into the process environment before strategies are built.
	EnvFile string `yaml:"env-file" json:"env-file"`

	// DefaultStrategy is the strategy used when a request names none.
	DefaultStrategy string `yaml:"default-strategy" json:"default-strategy"`
	// Strategies are built at startup from the factory table.
	Strategies []StrategyConfig `yaml:"strategies" json:"strategies"`
	// StrategyFiles are YAML, JSON or TOML files holding more strategy entries.
	StrategyFiles []string `yaml:"strategy-files" json:"strategy-files"`
	// PluginDir holds strategy manifests loaded at startup.
	PluginDir string `yaml:"plugin-dir" json:"plugin-dir"`
	// WatchStrategies reloads strategy files and the plugin directory on change.
	WatchStrategies bool `yaml:"watch-strategies" json:"watch-strategies"`

	Cache      CacheConfig               `yaml:"cache" json:"cache"`
	Processor  translator.ProcessorConfig `yaml:"processor" json:"processor"`
	Metrics    MetricsConfig             `yaml:"metrics" json:"metrics"`
	Batch      BatchConfig               `yaml:"batch" json:"batch"`
	Naming     NamingConfig              `yaml:"naming" json:"naming"`
	Categories CategoryConfig            `yaml:"categories" json:"categories"`
}

// CacheConfig combines the cache policy with the backend selection.
type CacheConfig struct {
	translator.CacheConfig `yaml:",inline"`
	Backend                cache.BackendConfig `yaml:"backend" json:"backend"`
}

// MetricsConfig configures request metrics.
type MetricsConfig struct {
	// Smoothing is the EMA weight kept from the previous average (0.9 default).
	Smoothing float64 `yaml:"smoothing" json:"smoothing"`
	// Prometheus exposes /metrics when true.
	Prometheus *bool `yaml:"prometheus,omitempty" json:"prometheus,omitempty"`
}

// PrometheusEnabled reports whether /metrics is served. Nil defaults to true.
func (m MetricsConfig) PrometheusEnabled() bool {
	return m.Prometheus == nil || *m.Prometheus
}

// BatchConfig configures batch translation.
type BatchConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// NamingConfig configures translated file names.
type NamingConfig struct {
	Template string `yaml:"template" json:"template"`
}

// CategoryConfig lists categories inline or points at a CSV category list.
type CategoryConfig struct {
	File  string              `yaml:"file" json:"file"`
	Items []category.Category `yaml:"items" json:"items"`
}

// LoadConfig reads and parses the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigOptional(path, false)
}

// LoadConfigOptional is LoadConfig that tolerates a missing or empty file when
// optional is true, returning a default configuration.
func LoadConfigOptional(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			cfg := newConfig()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := newConfig()
	if len(bytes.TrimSpace(data)) > 0 {
		if err = yaml.Unmarshal(data, cfg); err != nil {
			if optional {
				log.Warnf("config: ignoring invalid %s: %v", path, err)
				cfg = newConfig()
			} else {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}
	cfg.ApplyDefaults()
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// newConfig returns a config whose switches default to on before decoding.
func newConfig() *Config {
	cfg := &Config{}
	cfg.Cache.Enabled = true
	return cfg
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := newConfig()
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}

	defCache := translator.DefaultCacheConfig()
	if c.Cache.MaxSize <= 0 {
		c.Cache.MaxSize = defCache.MaxSize
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = defCache.TTL
	}
	if c.Cache.CleanupInterval <= 0 {
		c.Cache.CleanupInterval = defCache.CleanupInterval
	}
	if c.Cache.Backend.Type == "" {
		c.Cache.Backend.Type = cache.TypeMemory
	}

	defProc := translator.DefaultProcessorConfig()
	if c.Processor.MaxSegmentLength <= 0 {
		c.Processor.MaxSegmentLength = defProc.MaxSegmentLength
	}
	if c.Processor.PreservePatterns == nil {
		c.Processor.PreservePatterns = defProc.PreservePatterns
	}
	if c.Processor.HistorySize <= 0 {
		c.Processor.HistorySize = defProc.HistorySize
	}

	if c.Metrics.Smoothing <= 0 || c.Metrics.Smoothing >= 1 {
		c.Metrics.Smoothing = translator.DefaultSmoothing
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = DefaultBatchWorkers
	}
	if c.Naming.Template == "" {
		c.Naming.Template = naming.DefaultTemplate
	}
}

// resolvePaths makes relative file references relative to the config directory.
func (c *Config) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.EnvFile = resolve(c.EnvFile)
	c.PluginDir = resolve(c.PluginDir)
	c.Categories.File = resolve(c.Categories.File)
	if c.Cache.Backend.Path != ":memory:" {
		c.Cache.Backend.Path = resolve(c.Cache.Backend.Path)
	}
	c.Cache.Backend.SnapshotFile = resolve(c.Cache.Backend.SnapshotFile)
	for i, f := range c.StrategyFiles {
		c.StrategyFiles[i] = resolve(f)
	}
}

// CacheTTLDisabled reports whether cached entries never expire.
func (c *Config) CacheTTLDisabled() bool {
	return c.Cache.TTL < 0
}

// ValidateConfig checks cfg and returns non-fatal warnings.
func ValidateConfig(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", cfg.Port)
	}

	var warnings []string
	seen := make(map[string]struct{}, len(cfg.Strategies))
	for i, s := range cfg.Strategies {
		if s.Type == "" {
			return nil, fmt.Errorf("strategies[%d]: type is required", i)
		}
		name := s.EffectiveName()
		if _, dup := seen[name]; dup {
			warnings = append(warnings, fmt.Sprintf("strategies[%d]: duplicate name %q is ignored", i, name))
		}
		seen[name] = struct{}{}
	}
	if cfg.DefaultStrategy != "" && len(cfg.Strategies) > 0 {
		if _, ok := seen[cfg.DefaultStrategy]; !ok {
			warnings = append(warnings, fmt.Sprintf("default-strategy %q is not declared inline", cfg.DefaultStrategy))
		}
	}
	if cfg.Cache.TTL > 0 && cfg.Cache.TTL < time.Second {
		warnings = append(warnings, "cache.ttl below one second disables effective caching")
	}
	return warnings, nil
}

// LoadEnv loads KEY=VALUE pairs from path without overriding variables that
// are already set. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	log.Debugf("config: loaded environment from %s", path)
	return nil
}
