package executor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/audio-translator/translator/sdk/translator"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMaxTextLength = 4000
	defaultMaxBatchSize  = 50
)

var defaultSupportedLanguages = []string{"en", "zh", "ja", "ko", "fr", "de", "es", "ru"}

// AdapterConfig is the per-instance configuration of a provider strategy.
type AdapterConfig struct {
	Name               string
	Type               string
	Description        string
	Model              string
	APIKey             string
	BaseURL            string
	ProxyURL           string
	PromptTemplate     string
	SystemMessage      string
	Temperature        *float64
	MaxTokens          int
	// AutoMaxTokens sizes MaxTokens per request from the source text.
	AutoMaxTokens      bool
	Timeout            time.Duration
	MaxRetries         int
	MaxTextLength      int
	MaxBatchSize       int
	SupportedLanguages []string
	Headers            map[string]string
}

// Adapter exposes a ProviderExecutor as a translator.Strategy.
type Adapter struct {
	mu    sync.RWMutex
	cfg   AdapterConfig
	exec  ProviderExecutor
	stats *translator.RequestStats
}

// NewAdapter wraps exec. Empty capability fields receive defaults.
func NewAdapter(cfg AdapterConfig, exec ProviderExecutor) *Adapter {
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = defaultMaxTextLength
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaultMaxBatchSize
	}
	if len(cfg.SupportedLanguages) == 0 {
		cfg.SupportedLanguages = slices.Clone(defaultSupportedLanguages)
	}
	return &Adapter{
		cfg:   cfg,
		exec:  exec,
		stats: translator.NewRequestStats(translator.DefaultSmoothing),
	}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Description() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.Description
}

func (a *Adapter) ProviderType() string { return a.cfg.Type }

// Translate renders the prompt, calls the provider and returns the assistant
// text. On failure it returns text unchanged with a *translator.ProviderError.
func (a *Adapter) Translate(ctx context.Context, text string, tctx translator.Context) (string, error) {
	a.mu.RLock()
	req := Request{
		Model:       a.cfg.Model,
		System:      a.cfg.SystemMessage,
		Prompt:      RenderPrompt(a.cfg.PromptTemplate, text, tctx),
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
	if a.cfg.AutoMaxTokens {
		req.MaxTokens = AutoMaxTokens(a.cfg.Model, text)
	}
	a.mu.RUnlock()

	start := time.Now()
	a.stats.Begin()
	out, err := a.exec.Execute(ctx, req)
	if err == nil {
		out = strings.TrimSpace(out)
		if out == "" {
			err = errNoText
		}
	}
	if err != nil {
		a.stats.Done(false, time.Since(start))
		perr := &translator.ProviderError{Strategy: a.cfg.Name, Cause: err}
		var se statusErr
		if errors.As(err, &se) {
			perr.StatusCode = se.code
		}
		log.WithField("strategy", a.cfg.Name).Warnf("translation failed, returning source text: %v", err)
		return text, perr
	}
	a.stats.Done(true, time.Since(start))
	return out, nil
}

// BatchTranslate translates each text in turn.
func (a *Adapter) BatchTranslate(ctx context.Context, texts []string, tctx translator.Context) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i], _ = a.Translate(ctx, text, tctx)
	}
	return out
}

// TestConnection probes the provider; it never fails.
func (a *Adapter) TestConnection(ctx context.Context) translator.ConnectionStatus {
	if err := a.exec.Probe(ctx); err != nil {
		return translator.ConnectionStatus{
			Status:  translator.StatusError,
			Message: fmt.Sprintf("%s connection failed: %v", a.cfg.Name, err),
		}
	}
	return translator.ConnectionStatus{
		Status:  translator.StatusSuccess,
		Message: fmt.Sprintf("%s connection OK", a.cfg.Name),
	}
}

func (a *Adapter) Capabilities() translator.Capabilities {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return translator.Capabilities{
		SupportsBatch:      true,
		MaxBatchSize:       a.cfg.MaxBatchSize,
		MaxTextLength:      a.cfg.MaxTextLength,
		SupportsAsync:      false,
		RequiresAPIKey:     requiresAPIKey(a.cfg.Type),
		SupportedLanguages: slices.Clone(a.cfg.SupportedLanguages),
		ProviderType:       a.cfg.Type,
	}
}

func (a *Adapter) Metrics() translator.RequestMetrics {
	return a.stats.Snapshot()
}

// UpdateConfig applies prompt, model and description changes for later calls.
func (a *Adapter) UpdateConfig(cfg map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := stringValue(cfg, "prompt_template"); ok {
		a.cfg.PromptTemplate = v
	}
	if v, ok := stringValue(cfg, "system_message"); ok {
		a.cfg.SystemMessage = v
	}
	if v, ok := stringValue(cfg, "model"); ok {
		a.cfg.Model = v
	}
	if v, ok := stringValue(cfg, "description"); ok {
		a.cfg.Description = v
	}
	if v, ok := floatValue(cfg, "temperature"); ok {
		a.cfg.Temperature = &v
	}
	applyMaxTokens(&a.cfg, cfg)
}

// Config returns a copy of the adapter configuration.
func (a *Adapter) Config() AdapterConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// RenderPrompt substitutes {key} for every scalar context value, then {text}.
// Placeholders without a matching key are left as they are.
func RenderPrompt(template, text string, tctx translator.Context) string {
	if template == "" {
		return text
	}
	out := template
	for k, v := range tctx {
		if k == "text" {
			continue
		}
		ph := "{" + k + "}"
		if !strings.Contains(out, ph) {
			continue
		}
		if s, ok := scalarString(v); ok {
			out = strings.ReplaceAll(out, ph, s)
		}
	}
	return strings.ReplaceAll(out, "{text}", text)
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	return "", false
}
