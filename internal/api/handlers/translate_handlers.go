// Package handlers provides HTTP handlers for the translation API.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/audio-translator/translator/internal/api/middleware"
	apperrors "github.com/audio-translator/translator/internal/errors"
	"github.com/audio-translator/translator/internal/logging"
	"github.com/audio-translator/translator/sdk/translator"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// MaxBatchItems bounds the number of texts accepted by one batch request.
const MaxBatchItems = 1000

// TranslateHandler serves the translation endpoints.
type TranslateHandler struct {
	manager *translator.Manager
	workers int
}

// NewTranslateHandler creates a handler. workers bounds parallel batch items.
func NewTranslateHandler(manager *translator.Manager, workers int) *TranslateHandler {
	if workers < 1 {
		workers = translator.DefaultBatchWorkers
	}
	return &TranslateHandler{manager: manager, workers: workers}
}

// TranslateRequest is the body of POST /v1/translate.
type TranslateRequest struct {
	Text     string             `json:"text"`
	Strategy string             `json:"strategy"`
	Context  translator.Context `json:"context"`
}

// TranslateResponse is the body returned by POST /v1/translate.
type TranslateResponse struct {
	Translation string  `json:"translation"`
	Strategy    string  `json:"strategy"`
	CacheHit    bool    `json:"cache_hit"`
	Fallback    bool    `json:"fallback"`
	Segments    int     `json:"segments"`
	DurationMs  float64 `json:"duration_ms"`
	Error       string  `json:"error,omitempty"`
}

// Translate translates one text.
// POST /v1/translate
func (h *TranslateHandler) Translate(c *gin.Context) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteError(c, apperrors.NewInvalidRequestError("invalid request body", err))
		return
	}

	out, err := h.manager.TranslateDetailed(c.Request.Context(), req.Text, req.Strategy, req.Context)
	if err != nil {
		WriteError(c, err)
		return
	}
	middleware.RecordTranslation(out.Strategy, out.CacheHit, out.Fallback)

	resp := TranslateResponse{
		Translation: out.Text,
		Strategy:    out.Strategy,
		CacheHit:    out.CacheHit,
		Fallback:    out.Fallback,
		Segments:    out.Segments,
		DurationMs:  float64(out.Duration.Microseconds()) / 1000,
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// BatchRequest is the body of POST /v1/translate/batch.
type BatchRequest struct {
	Texts    []string           `json:"texts"`
	Strategy string             `json:"strategy"`
	Context  translator.Context `json:"context"`
}

// BatchResponse is the body returned by POST /v1/translate/batch.
type BatchResponse struct {
	Translations []string                `json:"translations"`
	Results      []translator.BatchResult `json:"results,omitempty"`
	Stats        translator.BatchStats    `json:"stats"`
}

// BatchTranslate translates texts in parallel and returns them in input order.
// POST /v1/translate/batch
func (h *TranslateHandler) BatchTranslate(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteError(c, apperrors.NewInvalidRequestError("invalid request body", err))
		return
	}
	if len(req.Texts) > MaxBatchItems {
		WriteError(c, apperrors.NewInvalidRequestError("too many texts", nil).
			WithDetail("max", MaxBatchItems))
		return
	}
	if _, _, err := h.manager.Registry().Resolve(req.Strategy); err != nil {
		WriteError(c, err)
		return
	}

	results := translator.ParallelBatch(c.Request.Context(), h.manager, req.Texts, req.Strategy, req.Context, h.workers)
	resp := BatchResponse{
		Translations: make([]string, len(results)),
		Stats:        translator.CalculateBatchStats(results),
	}
	for i, r := range results {
		resp.Translations[i] = r.Text
		middleware.RecordTranslation(req.Strategy, r.CacheHit, r.Fallback)
	}
	if c.Query("details") == "true" {
		resp.Results = results
	}
	log.WithFields(log.Fields{
		"request_id": logging.RequestID(c),
		"items":      len(results),
		"fallbacks":  resp.Stats.Fallbacks,
	}).Debug("batch translated")
	c.JSON(http.StatusOK, resp)
}

// FileRequest is the body of POST /v1/translate/file.
type FileRequest struct {
	Path     string             `json:"path"`
	Strategy string             `json:"strategy"`
	Context  translator.Context `json:"context"`
	// Preview translates a bare file name instead of a path.
	Preview bool `json:"preview"`
}

// TranslateFile translates a file name and renders its final name.
// POST /v1/translate/file
func (h *TranslateHandler) TranslateFile(c *gin.Context) {
	var req FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteError(c, apperrors.NewInvalidRequestError("invalid request body", err))
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		WriteError(c, apperrors.NewInvalidRequestError("path is required", nil))
		return
	}

	var (
		res translator.FileResult
		err error
	)
	if req.Preview {
		res, err = h.manager.PreviewFilename(c.Request.Context(), req.Path, req.Strategy, req.Context)
	} else {
		res, err = h.manager.TranslateFile(c.Request.Context(), req.Path, req.Strategy, req.Context)
	}
	if err != nil {
		WriteError(c, err)
		return
	}
	middleware.RecordTranslation(res.Strategy, res.CacheHit, res.Fallback)
	c.JSON(http.StatusOK, res)
}

// ListStrategies lists registered strategies with capabilities and metrics.
// GET /v1/strategies
func (h *TranslateHandler) ListStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default":    h.manager.Registry().Default(),
		"strategies": h.manager.AvailableStrategies(),
	})
}

// History returns recent postprocessed translations, oldest first.
// GET /v1/history?limit=N
func (h *TranslateHandler) History(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(c, apperrors.NewInvalidRequestError("limit must be a non-negative integer", err))
			return
		}
		limit = n
	}
	entries := h.manager.Processor().History().Recent(limit)
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// WriteError maps err onto an AppError and writes it as the JSON body.
func WriteError(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	if appErr.HTTPStatusCode >= http.StatusInternalServerError {
		log.WithField("request_id", logging.RequestID(c)).Errorf("request failed: %v", err)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatusCode, gin.H{"error": appErr})
}
