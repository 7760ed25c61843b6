package translator

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"
)

// StubFunc produces a translation for a stub strategy.
type StubFunc func(text string, tctx Context) (string, error)

// StubStrategy is an in-memory Strategy for tests and local experiments. It
// records every call and follows the fail-soft contract.
type StubStrategy struct {
	name string
	fn   StubFunc
	caps Capabilities
	desc string

	mu    sync.Mutex
	calls []string
	cfg   map[string]any
	stats *RequestStats
}

// NewStubStrategy creates a stub that answers with fn.
func NewStubStrategy(name string, fn StubFunc) *StubStrategy {
	return &StubStrategy{
		name:  name,
		fn:    fn,
		desc:  "stub strategy " + name,
		caps:  Capabilities{SupportsBatch: true, MaxBatchSize: 50, ProviderType: "stub"},
		cfg:   make(map[string]any),
		stats: NewRequestStats(DefaultSmoothing),
	}
}

// NewMapStrategy answers from a fixed table and echoes unknown texts.
func NewMapStrategy(name string, table map[string]string) *StubStrategy {
	return NewStubStrategy(name, func(text string, _ Context) (string, error) {
		if out, ok := table[text]; ok {
			return out, nil
		}
		return text, nil
	})
}

// NewFailingStrategy always fails with err.
func NewFailingStrategy(name string, err error) *StubStrategy {
	if err == nil {
		err = errors.New("provider unavailable")
	}
	return NewStubStrategy(name, func(string, Context) (string, error) {
		return "", err
	})
}

// WithMaxTextLength sets the length above which the manager segments input.
func (s *StubStrategy) WithMaxTextLength(n int) *StubStrategy {
	s.caps.MaxTextLength = n
	return s
}

func (s *StubStrategy) Name() string         { return s.name }
func (s *StubStrategy) Description() string  { return s.desc }
func (s *StubStrategy) ProviderType() string { return s.caps.ProviderType }

func (s *StubStrategy) Translate(_ context.Context, text string, tctx Context) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()

	start := time.Now()
	s.stats.Begin()
	out, err := s.fn(text, tctx)
	if err != nil {
		s.stats.Done(false, time.Since(start))
		return text, &ProviderError{Strategy: s.name, Cause: err}
	}
	s.stats.Done(true, time.Since(start))
	return out, nil
}

func (s *StubStrategy) BatchTranslate(ctx context.Context, texts []string, tctx Context) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i], _ = s.Translate(ctx, t, tctx)
	}
	return out
}

func (s *StubStrategy) TestConnection(context.Context) ConnectionStatus {
	return ConnectionStatus{Status: StatusSuccess, Message: "stub"}
}

func (s *StubStrategy) Capabilities() Capabilities { return s.caps }
func (s *StubStrategy) Metrics() RequestMetrics    { return s.stats.Snapshot() }

func (s *StubStrategy) UpdateConfig(cfg map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.cfg, cfg)
	if d, ok := cfg["description"].(string); ok {
		s.desc = d
	}
}

// Calls returns the texts passed to Translate, in order.
func (s *StubStrategy) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns the number of Translate calls.
func (s *StubStrategy) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
