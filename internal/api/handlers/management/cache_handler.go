package management

import (
	"net/http"
	"strconv"

	"github.com/audio-translator/translator/internal/api/handlers"
	apperrors "github.com/audio-translator/translator/internal/errors"
	"github.com/audio-translator/translator/sdk/translator"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// defaultKeyLimit bounds GET /v1/cache/keys when no limit is given.
const defaultKeyLimit = 100

// GetCacheKeys lists cache keys, most recently used first.
// GET /v1/cache/keys?pattern=&limit=
func (h *Handler) GetCacheKeys(c *gin.Context) {
	limit := defaultKeyLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			handlers.WriteError(c, apperrors.NewInvalidRequestError("limit must be a non-negative integer", err))
			return
		}
		limit = n
	}
	keys := h.manager.Cache().Keys(c.Request.Context(), c.Query("pattern"), limit)
	c.JSON(http.StatusOK, gin.H{"keys": keys, "count": len(keys)})
}

// CacheEntryResponse is a cache entry with its remaining lifetime.
type CacheEntryResponse struct {
	translator.CacheEntry
	TTLSeconds float64 `json:"ttl_seconds"`
}

// GetCacheEntry returns one cache entry without touching hit counters.
// GET /v1/cache/entries/:key
func (h *Handler) GetCacheEntry(c *gin.Context) {
	entry, ttl, ok := h.manager.Cache().Entry(c.Request.Context(), c.Param("key"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": apperrors.New(http.StatusNotFound, "cache_miss", "cache entry not found", nil)})
		return
	}
	resp := CacheEntryResponse{CacheEntry: entry, TTLSeconds: -1}
	if ttl >= 0 {
		resp.TTLSeconds = ttl.Seconds()
	}
	c.JSON(http.StatusOK, resp)
}

// ClearCache removes entries matching pattern, or every entry.
// DELETE /v1/cache?pattern=
func (h *Handler) ClearCache(c *gin.Context) {
	pattern := c.Query("pattern")
	n := h.manager.ClearCache(c.Request.Context(), pattern)
	log.WithField("pattern", pattern).Infof("management: cleared %d cache entries", n)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "cleared": n})
}

// CacheEnabledRequest is the request body for enabling or disabling the cache.
type CacheEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetCacheEnabled enables or disables the cache at runtime.
// PUT /v1/cache/enabled
func (h *Handler) SetCacheEnabled(c *gin.Context) {
	var req CacheEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		handlers.WriteError(c, apperrors.NewInvalidRequestError("enabled is required", err))
		return
	}
	h.manager.Cache().SetEnabled(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "enabled": *req.Enabled})
}

// ResetCacheMetrics zeroes cache hit, miss and eviction counters.
// POST /v1/cache/metrics/reset
func (h *Handler) ResetCacheMetrics(c *gin.Context) {
	h.manager.Cache().ResetMetrics()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
