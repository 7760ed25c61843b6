package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/audio-translator/translator/internal/api"
	"github.com/audio-translator/translator/internal/config"
	"github.com/audio-translator/translator/internal/loader"
	"github.com/audio-translator/translator/internal/logging"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
const ShutdownTimeout = 15 * time.Second

// StartService builds the engine and serves the HTTP API until SIGINT or
// SIGTERM. Strategy files are watched when watch-strategies is set.
func StartService(cfg *config.Config, configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunService(ctx, cfg, configPath)
}

// RunService is StartService with a caller-controlled lifetime.
func RunService(ctx context.Context, cfg *config.Config, configPath string) error {
	engine, err := BuildEngine(ctx, cfg, configPath)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := engine.Close(); errClose != nil {
			log.Errorf("engine shutdown: %v", errClose)
		}
	}()

	server := api.NewServer(cfg, engine.Manager,
		api.WithLoader(engine.Loader),
		api.WithLogBuffer(logging.GlobalBuffer),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return server.Stop(shutdownCtx)
	})
	if cfg.WatchStrategies {
		g.Go(func() error {
			err := engine.Loader.Watch(gctx, loader.DefaultDebounce)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warnf("strategy watcher stopped: %v", err)
			}
			return nil
		})
	}

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("translation service stopped")
	return nil
}
