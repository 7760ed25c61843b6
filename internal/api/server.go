// Package api provides the HTTP server for the translation engine. It wires
// the Gin engine, middleware, the public translation routes and the
// key-protected management routes.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/audio-translator/translator/internal/api/handlers"
	managementHandlers "github.com/audio-translator/translator/internal/api/handlers/management"
	"github.com/audio-translator/translator/internal/api/middleware"
	"github.com/audio-translator/translator/internal/config"
	"github.com/audio-translator/translator/internal/loader"
	"github.com/audio-translator/translator/internal/logging"
	"github.com/audio-translator/translator/sdk/translator"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

type serverOptionConfig struct {
	extraMiddleware    []gin.HandlerFunc
	engineConfigurator func(*gin.Engine)
	loader             *loader.Loader
	logBuffer          *logging.RingBuffer
}

// ServerOption customises HTTP server construction.
type ServerOption func(*serverOptionConfig)

// WithMiddleware appends additional Gin middleware during server construction.
func WithMiddleware(mw ...gin.HandlerFunc) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.extraMiddleware = append(cfg.extraMiddleware, mw...)
	}
}

// WithEngineConfigurator allows callers to mutate the Gin engine prior to middleware setup.
func WithEngineConfigurator(fn func(*gin.Engine)) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.engineConfigurator = fn
	}
}

// WithLoader enables the strategy reload and unload management endpoints.
func WithLoader(l *loader.Loader) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.loader = l
	}
}

// WithLogBuffer sets the log source served by GET /v1/logs.
func WithLogBuffer(rb *logging.RingBuffer) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.logBuffer = rb
	}
}

// Server is the translation HTTP server.
type Server struct {
	// engine is the Gin web framework engine instance.
	engine *gin.Engine

	// server is the underlying HTTP server.
	server *http.Server

	cfg     *config.Config
	manager *translator.Manager

	translate *handlers.TranslateHandler
	mgmt      *managementHandlers.Handler

	// inFlight counts requests being served.
	inFlight *middleware.ConnectionTracker
	started  time.Time
}

// NewServer creates the server around an already wired manager.
func NewServer(cfg *config.Config, manager *translator.Manager, opts ...ServerOption) *Server {
	optionState := &serverOptionConfig{logBuffer: logging.GlobalBuffer}
	for i := range opts {
		opts[i](optionState)
	}
	if cfg == nil {
		cfg = config.Default()
	}

	// Set gin mode
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if optionState.engineConfigurator != nil {
		optionState.engineConfigurator(engine)
	}

	middleware.SetMetricsEnabled(cfg.Metrics.PrometheusEnabled())
	middleware.SetMetricsSource(manager.Metrics)

	s := &Server{
		engine:    engine,
		cfg:       cfg,
		manager:   manager,
		translate: handlers.NewTranslateHandler(manager, cfg.Batch.Workers),
		mgmt:      managementHandlers.NewHandler(cfg, manager),
		inFlight:  &middleware.ConnectionTracker{},
		started:   time.Now(),
	}
	if optionState.loader != nil {
		s.mgmt.SetLoader(optionState.loader)
	}
	s.mgmt.SetLogBuffer(optionState.logBuffer)

	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())
	engine.Use(s.inFlight.Track())
	engine.Use(middleware.PrometheusMiddleware())
	engine.Use(middleware.CORS(cfg.CORSAllowOrigins))
	engine.Use(middleware.RequestDecompressionMiddleware())
	for _, mw := range optionState.extraMiddleware {
		engine.Use(mw)
	}

	s.setupRoutes()
	s.registerManagementRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// setupRoutes registers the public translation routes.
func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.healthz)
	s.engine.GET("/metrics", middleware.MetricsHandler())

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/translate", s.translate.Translate)
		v1.POST("/translate/batch", s.translate.BatchTranslate)
		v1.POST("/translate/file", s.translate.TranslateFile)
		v1.GET("/strategies", s.translate.ListStrategies)
		v1.GET("/history", s.translate.History)
	}

	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Translation Orchestration Engine",
			"endpoints": []string{
				"POST /v1/translate",
				"POST /v1/translate/batch",
				"POST /v1/translate/file",
				"GET /v1/strategies",
				"GET /v1/history",
			},
		})
	})
}

// registerManagementRoutes attaches the routes that change engine state.
// They require a management key when api-keys are configured.
func (s *Server) registerManagementRoutes() {
	if !s.cfg.ManagementProtected() {
		log.Warn("management routes are unprotected; set api-keys to require a key")
	}

	mgmt := s.engine.Group("/v1")
	mgmt.Use(s.mgmt.Middleware())
	{
		mgmt.PUT("/strategies/default", s.mgmt.SetDefaultStrategy)
		mgmt.GET("/strategies/loaded", s.mgmt.LoadedStrategies)
		mgmt.POST("/strategies/reload", s.mgmt.ReloadStrategies)
		mgmt.POST("/strategies/:name/test", s.mgmt.TestStrategy)
		mgmt.PATCH("/strategies/:name", s.mgmt.UpdateStrategy)
		mgmt.DELETE("/strategies/:name", s.mgmt.UnloadStrategy)

		mgmt.GET("/metrics", s.mgmt.GetMetrics)

		mgmt.GET("/cache/keys", s.mgmt.GetCacheKeys)
		mgmt.GET("/cache/entries/:key", s.mgmt.GetCacheEntry)
		mgmt.DELETE("/cache", s.mgmt.ClearCache)
		mgmt.PUT("/cache/enabled", s.mgmt.SetCacheEnabled)
		mgmt.POST("/cache/metrics/reset", s.mgmt.ResetCacheMetrics)

		mgmt.GET("/logs", s.mgmt.GetLogs)
	}
}

func (s *Server) healthz(c *gin.Context) {
	reg := s.manager.Registry()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"port":       s.cfg.Port,
		"strategies": len(reg.Names()),
		"default":    reg.Default(),
		"cache":      s.manager.Cache().Backend(),
		"in_flight":  s.inFlight.Count(),
		"uptime_s":   int64(time.Since(s.started).Seconds()),
	})
}

// Engine exposes the Gin engine, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	if s == nil || s.server == nil {
		return fmt.Errorf("failed to start HTTP server: server not initialized")
	}

	log.Infof("translation API listening on %s", s.server.Addr)
	if errServe := s.server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", errServe)
	}
	return nil
}

// Stop gracefully shuts down the server, waiting for active requests until
// ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	log.Debugf("Stopping API server with %d request(s) in flight...", s.inFlight.Count())

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	log.Debugf("API server stopped after serving %d request(s)", s.inFlight.Total())
	return nil
}
