package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/audio-translator/translator/internal/config"
	"github.com/audio-translator/translator/internal/logging"
	log "github.com/sirupsen/logrus"
)

// DefaultConfigFile is looked up in the working directory when no -config
// flag is given.
const DefaultConfigFile = "config.yaml"

// ResolveConfigPath returns path, or DefaultConfigFile in the working
// directory. The second result reports whether the file was named explicitly.
func ResolveConfigPath(path string) (string, bool) {
	if path != "" {
		return path, true
	}
	wd, err := os.Getwd()
	if err != nil {
		return DefaultConfigFile, false
	}
	return filepath.Join(wd, DefaultConfigFile), false
}

// Bootstrap loads the configuration and environment file and applies logging
// settings. A missing config file is only an error when explicit is true.
func Bootstrap(configPath string, explicit bool, logLevel string) (*config.Config, error) {
	cfg, err := config.LoadConfigOptional(configPath, !explicit)
	if err != nil {
		return nil, err
	}
	if err = config.LoadEnv(cfg.EnvFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if cfg.Debug {
		level = "debug"
	}
	logging.SetLogLevel(level)
	if err = logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
		log.Warnf("log file output unavailable, logging to stdout: %v", err)
	}

	warnings, err := config.ValidateConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	return cfg, nil
}
