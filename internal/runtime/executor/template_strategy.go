package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/audio-translator/translator/sdk/translator"
)

// TemplateType is the strategy type of the offline TemplateStrategy.
const TemplateType = "template"

const (
	defaultTemplatePrefix = "[翻译] "
	defaultTemplateSuffix = " [END]"
)

// TemplateStrategy produces a deterministic pseudo-translation without any
// network access. It is meant for local development and tests.
type TemplateStrategy struct {
	name  string
	stats *translator.RequestStats

	mu          sync.RWMutex
	description string
	prefix      string
	suffix      string
	delay       time.Duration
}

// NewTemplateStrategy creates a template strategy with the default wrapping.
func NewTemplateStrategy(name string) *TemplateStrategy {
	if name == "" {
		name = TemplateType
	}
	return &TemplateStrategy{
		name:        name,
		stats:       translator.NewRequestStats(translator.DefaultSmoothing),
		description: "Offline template translation for development",
		prefix:      defaultTemplatePrefix,
		suffix:      defaultTemplateSuffix,
	}
}

// NewTemplateStrategyFromSettings is the Factory for TemplateType.
func NewTemplateStrategyFromSettings(name string, settings map[string]any) (translator.Strategy, error) {
	s := NewTemplateStrategy(name)
	s.UpdateConfig(settings)
	return s, nil
}

func (s *TemplateStrategy) Name() string { return s.name }

func (s *TemplateStrategy) Description() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.description
}

func (s *TemplateStrategy) ProviderType() string { return "custom" }

// Translate wraps text according to the target_lang context value.
func (s *TemplateStrategy) Translate(ctx context.Context, text string, tctx translator.Context) (string, error) {
	start := time.Now()
	s.stats.Begin()

	s.mu.RLock()
	prefix, suffix, delay := s.prefix, s.suffix, s.delay
	s.mu.RUnlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			s.stats.Done(false, time.Since(start))
			return text, &translator.ProviderError{Strategy: s.name, Cause: ctx.Err()}
		case <-time.After(delay):
		}
	}

	var body string
	switch lang := tctx.String(translator.KeyTargetLanguage); lang {
	case "", "zh":
		body = "这是一个自定义翻译: " + text
	case "en":
		body = "This is a custom translation: " + text
	case "ja":
		body = "これはカスタム翻訳です: " + text
	default:
		body = fmt.Sprintf("Custom translation for '%s': %s", lang, text)
	}
	s.stats.Done(true, time.Since(start))
	return prefix + body + suffix, nil
}

func (s *TemplateStrategy) BatchTranslate(ctx context.Context, texts []string, tctx translator.Context) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i], _ = s.Translate(ctx, text, tctx)
	}
	return out
}

func (s *TemplateStrategy) TestConnection(context.Context) translator.ConnectionStatus {
	return translator.ConnectionStatus{
		Status:  translator.StatusSuccess,
		Message: "template strategy needs no external connection",
	}
}

func (s *TemplateStrategy) Capabilities() translator.Capabilities {
	return translator.Capabilities{
		SupportsBatch:      true,
		MaxBatchSize:       100,
		MaxTextLength:      10000,
		SupportedLanguages: []string{"zh", "en", "ja"},
		ProviderType:       "custom",
	}
}

func (s *TemplateStrategy) Metrics() translator.RequestMetrics {
	return s.stats.Snapshot()
}

// UpdateConfig accepts prefix, suffix, description and translation_delay
// (seconds or a duration string).
func (s *TemplateStrategy) UpdateConfig(cfg map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := cfg["prefix"].(string); ok {
		s.prefix = v
	}
	if v, ok := cfg["suffix"].(string); ok {
		s.suffix = v
	}
	if v, ok := stringValue(cfg, "description"); ok {
		s.description = v
	}
	if v, ok := durationValue(cfg, "translation_delay"); ok {
		s.delay = v
	}
}
