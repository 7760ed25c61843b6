// Package main provides the translate CLI. It runs the translation engine in
// process, without the HTTP server.
//
//	translate [flags] text...
//	translate -input lines.txt
//	translate -files a.mp3 b.wav
//	translate -list
//	translate -test [strategy...]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/audio-translator/translator/internal/cmd"
	"github.com/audio-translator/translator/internal/logging"
	"github.com/audio-translator/translator/sdk/translator"
	log "github.com/sirupsen/logrus"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	var (
		configPath string
		strategy   string
		input      string
		ctxJSON    string
		workers    int
		files      bool
		list       bool
		test       bool
		jsonOutput bool
		noColor    bool
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "", "Configure File Path (default ./config.yaml)")
	flag.StringVar(&strategy, "strategy", "", "Strategy name (default strategy when empty)")
	flag.StringVar(&input, "input", "", "Read texts from a file, one per line (- for stdin)")
	flag.StringVar(&ctxJSON, "context", "", `Translation context as JSON, e.g. {"domain":"music"}`)
	flag.IntVar(&workers, "workers", 0, "Parallel translations (default from config)")
	flag.BoolVar(&files, "files", false, "Treat arguments as file paths and translate their names")
	flag.BoolVar(&list, "list", false, "List registered strategies and exit")
	flag.BoolVar(&test, "test", false, "Test connections of the named strategies, or all")
	flag.BoolVar(&jsonOutput, "json", false, "Print JSON output")
	flag.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	level := "warn"
	if verbose {
		level = "debug"
	}
	path, explicit := cmd.ResolveConfigPath(configPath)
	cfg, err := cmd.Bootstrap(path, explicit, level)
	if err != nil {
		fatalf("failed to load config: %v", err)
	}
	defer logging.CloseLogOutput()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := cmd.BuildEngine(ctx, cfg, path)
	if err != nil {
		fatalf("%v", err)
	}
	code := run(ctx, engine, runArgs{
		strategy: strategy, input: input, ctxJSON: ctxJSON, workers: workers,
		files: files, list: list, test: test, json: jsonOutput, color: !noColor,
		args: flag.Args(),
	})
	if errClose := engine.Close(); errClose != nil {
		log.Warnf("shutdown: %v", errClose)
	}
	os.Exit(code)
}

type runArgs struct {
	strategy, input, ctxJSON string
	workers                  int
	files, list, test, json  bool
	color                    bool
	args                     []string
}

func run(ctx context.Context, engine *cmd.Engine, a runArgs) int {
	m := engine.Manager
	switch {
	case a.list:
		if err := cmd.ListStrategies(m, a.json, a.color, os.Stdout); err != nil {
			return report(err)
		}
		return 0
	case a.test:
		failed, err := cmd.TestStrategies(ctx, m, a.args, a.json, a.color, os.Stdout)
		if err != nil {
			return report(err)
		}
		if failed > 0 {
			return 2
		}
		return 0
	}

	var tctx translator.Context
	if a.ctxJSON != "" {
		if err := json.Unmarshal([]byte(a.ctxJSON), &tctx); err != nil {
			return report(fmt.Errorf("invalid -context: %w", err))
		}
	}
	workers := a.workers
	if workers <= 0 {
		workers = engine.Config.Batch.Workers
	}
	opts := cmd.TranslateOptions{Strategy: a.strategy, Context: tctx, Workers: workers, JSON: a.json, Color: a.color}

	if a.files {
		if len(a.args) == 0 {
			return report(fmt.Errorf("no file paths given"))
		}
		if err := cmd.TranslateFiles(ctx, m, a.args, opts, os.Stdout); err != nil {
			return report(err)
		}
		return 0
	}

	texts := a.args
	if a.input != "" {
		lines, err := cmd.ReadLinesFile(a.input)
		if err != nil {
			return report(err)
		}
		texts = append(texts, lines...)
	}
	if len(texts) == 0 {
		flag.Usage()
		return 1
	}
	stats, err := cmd.TranslateTexts(ctx, m, texts, opts, os.Stdout)
	if err != nil {
		return report(err)
	}
	if stats.Fallbacks > 0 {
		return 2
	}
	return 0
}

func report(err error) int {
	_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
