// Package main provides the entry point for the translation server. It loads
// the configuration, wires the translation engine and serves the HTTP API.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/audio-translator/translator/internal/cmd"
	"github.com/audio-translator/translator/internal/logging"
	log "github.com/sirupsen/logrus"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
}

func main() {
	var configPath string
	var logLevel string
	var port int
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "Configure File Path (default ./config.yaml)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error or quiet")
	flag.IntVar(&port, "port", 0, "Override the listen port")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("translator %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		return
	}

	path, explicit := cmd.ResolveConfigPath(configPath)
	cfg, err := cmd.Bootstrap(path, explicit, logLevel)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}
	if port > 0 {
		cfg.Port = port
	}
	defer logging.CloseLogOutput()

	log.Infof("translator %s starting, config %s", Version, path)
	if err = cmd.StartService(cfg, path); err != nil {
		log.Errorf("server error: %v", err)
		os.Exit(1)
	}
}
