package translator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ConfigService is the flat key/value configuration store the manager
// writes runtime changes back to.
type ConfigService interface {
	Get(key string, def any) any
	Set(key string, value any) error
}

// ConfigKeyDefaultStrategy is the ConfigService key holding the default strategy.
const ConfigKeyDefaultStrategy = "default-strategy"

// Outcome is the observable result of one translation request.
type Outcome struct {
	Text     string        `json:"translation"`
	Strategy string        `json:"strategy"`
	CacheHit bool          `json:"cache_hit"`
	Fallback bool          `json:"fallback"`
	Segments int           `json:"segments"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// MetricsSnapshot aggregates manager, cache and per-strategy metrics.
type MetricsSnapshot struct {
	DefaultStrategy string                    `json:"default_strategy"`
	Manager         RequestMetrics            `json:"manager"`
	Cache           CacheMetrics              `json:"cache"`
	Strategies      map[string]RequestMetrics `json:"strategies"`
}

// StrategyInfo describes a registered strategy for listings.
type StrategyInfo struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	ProviderType string         `json:"provider_type"`
	IsDefault    bool           `json:"is_default"`
	Capabilities Capabilities   `json:"capabilities"`
	Metadata     Metadata       `json:"metadata"`
	Metrics      RequestMetrics `json:"metrics"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithCategoryService enables category enrichment for file translation.
func WithCategoryService(cs CategoryService) Option {
	return func(m *Manager) { m.categories = cs }
}

// WithNamingService renders final file names with template.
func WithNamingService(ns NamingService, template string) Option {
	return func(m *Manager) {
		m.naming = ns
		m.namingTemplate = template
	}
}

// WithConfigService persists runtime settings such as the default strategy.
func WithConfigService(cs ConfigService) Option {
	return func(m *Manager) { m.config = cs }
}

// WithSmoothing sets the EMA weight used for the aggregate response time.
func WithSmoothing(weight float64) Option {
	return func(m *Manager) { m.stats = NewRequestStats(weight) }
}

// Manager is the entry point for translation requests. It combines the
// registry, cache and processor that are handed to it.
type Manager struct {
	registry  *Registry
	cache     *CacheManager
	processor *Processor
	stats     *RequestStats

	categories     CategoryService
	naming         NamingService
	namingTemplate string
	config         ConfigService
}

// NewManager wires a manager. A nil cache or processor is replaced by a
// default in-memory cache or a default processor.
func NewManager(registry *Registry, cache *CacheManager, processor *Processor, opts ...Option) *Manager {
	if registry == nil {
		registry = NewRegistry("")
	}
	if cache == nil {
		cache = NewCacheManager(context.Background(), DefaultCacheConfig(), nil)
	}
	if processor == nil {
		processor = MustProcessor(DefaultProcessorConfig())
	}
	m := &Manager{
		registry:  registry,
		cache:     cache,
		processor: processor,
		stats:     NewRequestStats(DefaultSmoothing),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the strategy registry.
func (m *Manager) Registry() *Registry { return m.registry }

// Cache returns the cache manager.
func (m *Manager) Cache() *CacheManager { return m.cache }

// Processor returns the context processor.
func (m *Manager) Processor() *Processor { return m.processor }

// Translate returns the translation of text. An unknown strategy is the only
// error; provider failures yield the original text.
func (m *Manager) Translate(ctx context.Context, text, strategyName string, tctx Context) (string, error) {
	out, err := m.TranslateDetailed(ctx, text, strategyName, tctx)
	return out.Text, err
}

// TranslateDetailed is Translate with the fallback made observable.
func (m *Manager) TranslateDetailed(ctx context.Context, text, strategyName string, tctx Context) (Outcome, error) {
	strategy, name, err := m.registry.Resolve(strategyName)
	out := Outcome{Text: text, Strategy: name}
	if err != nil {
		return out, err
	}
	if strings.TrimSpace(text) == "" {
		return out, nil
	}

	if cached, ok := m.cache.Get(ctx, text, tctx); ok {
		m.stats.CacheHit()
		out.Text = cached
		out.CacheHit = true
		return out, nil
	}

	entry := log.WithFields(log.Fields{
		"strategy":   name,
		"request_id": uuid.NewString(),
	})
	start := time.Now()
	m.stats.Begin()

	result, segments, errRun := m.run(ctx, strategy, text, tctx)
	out.Duration = time.Since(start)
	out.Segments = segments

	if errRun != nil {
		m.stats.Done(false, out.Duration)
		out.Fallback = true
		out.Err = errRun
		entry.Warnf("translation fell back to source text: %v", errRun)
		return out, nil
	}

	m.stats.Done(true, out.Duration)
	out.Text = result
	m.cache.Set(ctx, text, result, tctx)
	entry.Debugf("translated %d chars in %s (%d segments)", utf8.RuneCountInString(text), out.Duration, segments)
	return out, nil
}

// run executes the strategy, segmenting when text exceeds the strategy's
// maximum length. Any segment failure aborts the call.
func (m *Manager) run(ctx context.Context, s Strategy, text string, tctx Context) (result string, segments int, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = text, fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()

	// The limit applies to the prepared text, placeholders included.
	prepared, pctx := m.processor.Preprocess(text, tctx)
	caps := s.Capabilities()
	if caps.MaxTextLength > 0 && utf8.RuneCountInString(prepared) > caps.MaxTextLength {
		sctx := tctx.Clone()
		sctx[KeyMaxSegmentLength] = caps.MaxTextLength
		segs := m.processor.Split(text, sctx)

		translations := make([]string, len(segs))
		contexts := make([]Context, len(segs))
		for i, seg := range segs {
			if errCtx := ctx.Err(); errCtx != nil {
				return text, len(segs), errCtx
			}
			translated, errSeg := s.Translate(ctx, seg.Text, seg.Context)
			if errSeg != nil {
				return text, len(segs), fmt.Errorf("segment %d/%d: %w", i+1, len(segs), errSeg)
			}
			translations[i] = translated
			contexts[i] = seg.Context
		}
		return m.processor.Merge(translations, contexts), len(segs), nil
	}

	translated, errT := s.Translate(ctx, prepared, pctx)
	if errT != nil {
		return text, 1, errT
	}
	return m.processor.Postprocess(translated, pctx), 1, nil
}

// BatchTranslate translates texts in order. A failing or panicking item
// yields its original text; the other items are unaffected.
func (m *Manager) BatchTranslate(ctx context.Context, texts []string, strategyName string, tctx Context) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = m.translateItem(ctx, text, strategyName, tctx)
	}
	return out
}

func (m *Manager) translateItem(ctx context.Context, text, strategyName string, tctx Context) (result string) {
	result = text
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("translator: batch item panicked: %v", r)
			result = text
		}
	}()
	translated, err := m.Translate(ctx, text, strategyName, tctx)
	if err != nil {
		log.Warnf("translator: batch item kept source text: %v", err)
		return text
	}
	return translated
}

// Metrics returns a snapshot of manager, cache and strategy metrics.
func (m *Manager) Metrics() MetricsSnapshot {
	snap := MetricsSnapshot{
		DefaultStrategy: m.registry.Default(),
		Manager:         m.stats.Snapshot(),
		Cache:           m.cache.Metrics(),
		Strategies:      make(map[string]RequestMetrics),
	}
	for _, name := range m.registry.Names() {
		if s, ok := m.registry.Get(name); ok {
			snap.Strategies[name] = s.Metrics()
		}
	}
	return snap
}

// ClearCache removes cache entries matching pattern (all when empty).
func (m *Manager) ClearCache(ctx context.Context, pattern string) int {
	return m.cache.Clear(ctx, pattern)
}

// SetDefaultStrategy changes the default strategy and persists it when a
// ConfigService is attached.
func (m *Manager) SetDefaultStrategy(name string) error {
	if err := m.registry.SetDefault(name); err != nil {
		return err
	}
	if m.config != nil {
		if err := m.config.Set(ConfigKeyDefaultStrategy, name); err != nil {
			log.Warnf("translator: persist default strategy: %v", err)
		}
	}
	return nil
}

// AvailableStrategies lists every registered strategy.
func (m *Manager) AvailableStrategies() []StrategyInfo {
	def := m.registry.Default()
	names := m.registry.Names()
	out := make([]StrategyInfo, 0, len(names))
	for _, name := range names {
		s, ok := m.registry.Get(name)
		if !ok {
			continue
		}
		meta, _ := m.registry.Metadata(name)
		out = append(out, StrategyInfo{
			Name:         name,
			Description:  s.Description(),
			ProviderType: meta.ProviderType,
			IsDefault:    name == def,
			Capabilities: s.Capabilities(),
			Metadata:     meta,
			Metrics:      s.Metrics(),
		})
	}
	return out
}

// TestStrategy probes the named strategy's provider.
func (m *Manager) TestStrategy(ctx context.Context, name string) (ConnectionStatus, error) {
	s, _, err := m.registry.Resolve(name)
	if err != nil {
		return ConnectionStatus{Status: StatusError, Message: err.Error()}, err
	}
	return s.TestConnection(ctx), nil
}
