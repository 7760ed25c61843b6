// Package management provides the management API handlers: strategy
// administration, cache inspection, metrics and captured logs.
package management

import (
	"github.com/audio-translator/translator/internal/api/middleware"
	"github.com/audio-translator/translator/internal/config"
	"github.com/audio-translator/translator/internal/loader"
	"github.com/audio-translator/translator/internal/logging"
	"github.com/audio-translator/translator/sdk/translator"
	"github.com/gin-gonic/gin"
)

// Handler aggregates the state management endpoints operate on.
type Handler struct {
	cfg     *config.Config
	manager *translator.Manager
	loader  *loader.Loader
	logs    *logging.RingBuffer
}

// NewHandler creates a management handler. cfg may be nil, which leaves the
// endpoints unprotected.
func NewHandler(cfg *config.Config, manager *translator.Manager) *Handler {
	return &Handler{cfg: cfg, manager: manager, logs: logging.GlobalBuffer}
}

// SetLoader attaches the strategy loader used by reload and unload.
func (h *Handler) SetLoader(l *loader.Loader) { h.loader = l }

// SetLogBuffer replaces the captured log source.
func (h *Handler) SetLogBuffer(rb *logging.RingBuffer) { h.logs = rb }

// Middleware enforces the configured management keys.
func (h *Handler) Middleware() gin.HandlerFunc {
	if h.cfg == nil {
		return middleware.APIKeyAuth(nil)
	}
	return middleware.APIKeyAuth(&h.cfg.ServerConfig)
}
