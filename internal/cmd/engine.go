// Package cmd provides the command implementations shared by the server and
// the translate CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/audio-translator/translator/internal/cache"
	"github.com/audio-translator/translator/internal/category"
	"github.com/audio-translator/translator/internal/config"
	"github.com/audio-translator/translator/internal/loader"
	"github.com/audio-translator/translator/internal/naming"
	"github.com/audio-translator/translator/sdk/translator"
	log "github.com/sirupsen/logrus"
)

// Engine is a fully wired translation manager plus the resources it owns.
type Engine struct {
	Config  *config.Config
	Manager *translator.Manager
	Loader  *loader.Loader
	Store   *config.Store

	snapshot *translator.MemoryBackend
}

// BuildEngine wires the cache backend, processor, category and naming
// services, persistent settings and the declared strategies. configPath may be
// empty, in which case runtime settings are kept in memory only.
func BuildEngine(ctx context.Context, cfg *config.Config, configPath string) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: config is nil")
	}

	backend, err := cache.Open(ctx, cfg.Cache.Backend, cfg.Cache.MaxSize)
	if err != nil {
		log.Warnf("cache backend %q unavailable, using memory: %v", cfg.Cache.Backend.Type, err)
		backend = nil
	}
	cacheMgr := translator.NewCacheManager(ctx, cfg.Cache.CacheConfig, backend)

	processor, err := translator.NewProcessor(cfg.Processor)
	if err != nil {
		_ = cacheMgr.Close()
		return nil, fmt.Errorf("engine: processor: %w", err)
	}

	categories, err := loadCategories(cfg.Categories)
	if err != nil {
		_ = cacheMgr.Close()
		return nil, fmt.Errorf("engine: categories: %w", err)
	}

	store := config.NewMemoryStore()
	if configPath != "" {
		if store, err = config.OpenStore(configPath); err != nil {
			_ = cacheMgr.Close()
			return nil, fmt.Errorf("engine: settings store: %w", err)
		}
	}

	registry := translator.NewRegistry(cfg.DefaultStrategy)
	l := loader.New(registry, nil,
		loader.WithInline(cfg.Strategies),
		loader.WithFiles(cfg.StrategyFiles...),
		loader.WithPluginDir(cfg.PluginDir),
		loader.WithDefaultProxy(cfg.ProxyURL),
	)
	n, errs := l.LoadAll()
	for _, e := range errs {
		log.Warnf("strategy not loaded: %v", e)
	}
	log.Infof("loaded %d strategies, default %q", n, registry.Default())

	manager := translator.NewManager(registry, cacheMgr, processor,
		translator.WithCategoryService(categories),
		translator.WithNamingService(naming.NewService(), cfg.Naming.Template),
		translator.WithConfigService(store),
		translator.WithSmoothing(cfg.Metrics.Smoothing),
	)

	e := &Engine{Config: cfg, Manager: manager, Loader: l, Store: store}
	if mb, ok := backend.(*translator.MemoryBackend); ok && cfg.Cache.Backend.SnapshotFile != "" {
		e.snapshot = mb
	}
	return e, nil
}

func loadCategories(cfg config.CategoryConfig) (*category.Service, error) {
	items := cfg.Items
	if cfg.File != "" {
		fromFile, err := category.LoadCSV(cfg.File)
		if err != nil {
			return nil, err
		}
		items = append(append([]category.Category(nil), items...), fromFile...)
	}
	return category.NewService(items), nil
}

// Close persists the memory cache snapshot when configured and releases the
// cache backend.
func (e *Engine) Close() error {
	var errs []error
	if e.snapshot != nil {
		if err := cache.SaveSnapshot(e.Config.Cache.Backend.SnapshotFile, e.snapshot); err != nil {
			errs = append(errs, fmt.Errorf("save cache snapshot: %w", err))
		} else {
			log.Debugf("cache snapshot written to %s", e.Config.Cache.Backend.SnapshotFile)
		}
	}
	if err := e.Manager.Cache().Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	return errors.Join(errs...)
}
