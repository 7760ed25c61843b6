package management

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/audio-translator/translator/internal/api/handlers"
	apperrors "github.com/audio-translator/translator/internal/errors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// connectionTestTimeout bounds one provider probe.
const connectionTestTimeout = 30 * time.Second

// DefaultStrategyRequest is the body of PUT /v1/strategies/default.
type DefaultStrategyRequest struct {
	Name string `json:"name"`
}

// SetDefaultStrategy changes the default strategy and persists it.
// PUT /v1/strategies/default
func (h *Handler) SetDefaultStrategy(c *gin.Context) {
	var req DefaultStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		handlers.WriteError(c, apperrors.NewInvalidRequestError("name is required", err))
		return
	}
	if err := h.manager.SetDefaultStrategy(req.Name); err != nil {
		handlers.WriteError(c, err)
		return
	}
	log.Infof("management: default strategy set to %s", req.Name)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "default": req.Name})
}

// TestStrategy probes a strategy's provider.
// POST /v1/strategies/:name/test
func (h *Handler) TestStrategy(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), connectionTestTimeout)
	defer cancel()

	status, err := h.manager.TestStrategy(ctx, c.Param("name"))
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// UpdateStrategy applies runtime settings to a registered strategy.
// PATCH /v1/strategies/:name
func (h *Handler) UpdateStrategy(c *gin.Context) {
	var settings map[string]any
	if err := c.ShouldBindJSON(&settings); err != nil || len(settings) == 0 {
		handlers.WriteError(c, apperrors.NewInvalidRequestError("settings object is required", err))
		return
	}
	s, name, err := h.manager.Registry().Resolve(c.Param("name"))
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	s.UpdateConfig(settings)
	log.WithField("strategy", name).Info("management: strategy settings updated")
	c.JSON(http.StatusOK, gin.H{"status": "ok", "strategy": name})
}

// ReloadResponse reports the outcome of a strategy reload.
type ReloadResponse struct {
	Loaded int      `json:"loaded"`
	Errors []string `json:"errors,omitempty"`
}

// ReloadStrategies rebuilds every declaratively loaded strategy.
// POST /v1/strategies/reload
func (h *Handler) ReloadStrategies(c *gin.Context) {
	if h.loader == nil {
		handlers.WriteError(c, apperrors.NewConfigError("strategy loading is not configured"))
		return
	}
	n, errs := h.loader.ReloadAll()
	resp := ReloadResponse{Loaded: n}
	for _, err := range errs {
		resp.Errors = append(resp.Errors, err.Error())
	}
	c.JSON(http.StatusOK, resp)
}

// LoadedStrategies lists strategies registered by the loader with their source.
// GET /v1/strategies/loaded
func (h *Handler) LoadedStrategies(c *gin.Context) {
	if h.loader == nil {
		c.JSON(http.StatusOK, gin.H{"strategies": []any{}, "types": []string{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategies": h.loader.Loaded(), "types": h.loader.Types()})
}

// UnloadStrategy removes a strategy from the registry.
// DELETE /v1/strategies/:name
func (h *Handler) UnloadStrategy(c *gin.Context) {
	name := c.Param("name")
	removed := false
	if h.loader != nil {
		removed = h.loader.Unload(name)
	}
	if !removed {
		removed = h.manager.Registry().Unregister(name)
	}
	if !removed {
		handlers.WriteError(c, apperrors.New(http.StatusNotFound, apperrors.CodeStrategyNotFound, "strategy not found", nil).
			WithDetail("strategy", name))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "removed": name, "default": h.manager.Registry().EnsureDefault()})
}

// GetMetrics returns manager, cache and per-strategy metrics.
// GET /v1/metrics
func (h *Handler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Metrics())
}
