package management

import (
	"net/http"
	"strconv"

	"github.com/audio-translator/translator/internal/api/handlers"
	apperrors "github.com/audio-translator/translator/internal/errors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// GetLogs returns captured log entries, oldest first.
// GET /v1/logs?limit=&level=
func (h *Handler) GetLogs(c *gin.Context) {
	if h.logs == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []any{}})
		return
	}
	limit := 200
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			handlers.WriteError(c, apperrors.NewInvalidRequestError("limit must be a non-negative integer", err))
			return
		}
		limit = n
	}
	level := log.TraceLevel
	if v := c.Query("level"); v != "" {
		lvl, err := log.ParseLevel(v)
		if err != nil {
			handlers.WriteError(c, apperrors.NewInvalidRequestError("unknown log level", err))
			return
		}
		level = lvl
	}
	entries := h.logs.Filter(level, limit)
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
