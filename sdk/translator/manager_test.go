package translator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, strategies ...*StubStrategy) *Manager {
	t.Helper()
	reg := NewRegistry("")
	for _, s := range strategies {
		require.NoError(t, reg.Register(s.Name(), s, nil))
	}
	return NewManager(reg, newTestCache(100, time.Hour), MustProcessor(DefaultProcessorConfig()))
}

func TestManager_TranslateAndCache(t *testing.T) {
	stub := NewMapStrategy("openai", map[string]string{"Hello world": "你好世界"})
	m := newTestManager(t, stub)
	ctx := context.Background()

	got, err := m.Translate(ctx, "Hello world", "openai", Context{})
	require.NoError(t, err)
	assert.Equal(t, "你好世界", got)

	cached, ok := m.Cache().Get(ctx, "Hello world", Context{})
	require.True(t, ok)
	assert.Equal(t, "你好世界", cached)

	again, err := m.Translate(ctx, "Hello world", "openai", Context{})
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, stub.CallCount(), "second call must be served from cache")

	metrics := m.Metrics()
	assert.EqualValues(t, 1, metrics.Manager.TotalRequests)
	assert.EqualValues(t, 1, metrics.Manager.SuccessfulRequests)
	assert.EqualValues(t, 1, metrics.Manager.CacheHits)
	assert.EqualValues(t, 1, metrics.Strategies["openai"].SuccessfulRequests)
}

func TestManager_DefaultStrategy(t *testing.T) {
	first := NewMapStrategy("first", map[string]string{"x": "1"})
	second := NewMapStrategy("second", map[string]string{"x": "2"})
	m := newTestManager(t, first, second)

	got, err := m.Translate(context.Background(), "x", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	require.NoError(t, m.SetDefaultStrategy("second"))
	m.ClearCache(context.Background(), "")
	got, err = m.Translate(context.Background(), "x", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	assert.ErrorIs(t, m.SetDefaultStrategy("missing"), ErrStrategyNotFound)
}

func TestManager_UnknownStrategy(t *testing.T) {
	m := newTestManager(t, NewMapStrategy("openai", nil))

	got, err := m.Translate(context.Background(), "text", "nope", nil)
	assert.ErrorIs(t, err, ErrStrategyNotFound)
	var nf *StrategyNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.Name)
	assert.Equal(t, "text", got)
}

func TestManager_NoStrategies(t *testing.T) {
	m := NewManager(nil, nil, nil)
	_, err := m.Translate(context.Background(), "text", "", nil)
	assert.ErrorIs(t, err, ErrNoDefaultStrategy)
}

func TestManager_FailSoft(t *testing.T) {
	stub := NewFailingStrategy("openai", errors.New("HTTP 500"))
	m := newTestManager(t, stub)
	ctx := context.Background()

	out, err := m.TranslateDetailed(ctx, "Hello   world", "openai", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello   world", out.Text, "fallback returns the caller's text verbatim")
	assert.True(t, out.Fallback)
	assert.True(t, IsFallback(out.Err))

	metrics := m.Metrics()
	assert.EqualValues(t, 1, metrics.Manager.FailedRequests)
	assert.EqualValues(t, 1, metrics.Strategies["openai"].FailedRequests)

	_, ok := m.Cache().Get(ctx, "Hello   world", nil)
	assert.False(t, ok, "fallbacks are not cached")
}

func TestManager_BlankTextShortCircuits(t *testing.T) {
	stub := NewMapStrategy("openai", nil)
	m := newTestManager(t, stub)

	got, err := m.Translate(context.Background(), "  \n", "openai", nil)
	require.NoError(t, err)
	assert.Equal(t, "  \n", got)
	assert.Zero(t, stub.CallCount())
}

func TestManager_PreservesTokens(t *testing.T) {
	stub := NewStubStrategy("openai", func(text string, _ Context) (string, error) {
		return strings.ReplaceAll(text, "Hello", "你好"), nil
	})
	m := newTestManager(t, stub)

	got, err := m.Translate(context.Background(), "Hello {NAME}", "openai", nil)
	require.NoError(t, err)
	assert.Equal(t, "你好 {NAME}", got)
	assert.NotContains(t, stub.Calls()[0], "{NAME}")
}

func TestManager_SegmentsLongText(t *testing.T) {
	stub := NewStubStrategy("openai", func(text string, _ Context) (string, error) {
		return strings.ToUpper(text), nil
	}).WithMaxTextLength(4)
	m := newTestManager(t, stub)

	out, err := m.TranslateDetailed(context.Background(), "a. b. c.", "openai", nil)
	require.NoError(t, err)
	assert.Equal(t, "A.\n\nB.\n\nC.", out.Text)
	assert.Equal(t, 3, out.Segments)
	assert.Equal(t, 3, stub.CallCount())
	assert.EqualValues(t, 1, m.Metrics().Manager.SuccessfulRequests)
}

func TestManager_LimitCountsPlaceholders(t *testing.T) {
	const limit = 12
	stub := NewStubStrategy("openai", func(text string, _ Context) (string, error) {
		return text, nil
	}).WithMaxTextLength(limit)
	m := newTestManager(t, stub)

	// Five runes raw, but each verb becomes a ten-rune placeholder.
	out, err := m.TranslateDetailed(context.Background(), "%s %d", "openai", nil)
	require.NoError(t, err)
	assert.False(t, out.Fallback)
	assert.Greater(t, out.Segments, 1)
	for _, call := range stub.Calls() {
		assert.LessOrEqual(t, utf8.RuneCountInString(call), limit, call)
	}
	assert.Contains(t, out.Text, "%s")
	assert.Contains(t, out.Text, "%d")
}

func TestManager_SegmentFailureFallsBack(t *testing.T) {
	var calls atomic.Int32
	stub := NewStubStrategy("openai", func(text string, _ Context) (string, error) {
		if calls.Add(1) == 2 {
			return "", errors.New("rate limited")
		}
		return strings.ToUpper(text), nil
	}).WithMaxTextLength(4)
	m := newTestManager(t, stub)

	out, err := m.TranslateDetailed(context.Background(), "a. b. c.", "openai", nil)
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	assert.Equal(t, "a. b. c.", out.Text)
	assert.Equal(t, 2, stub.CallCount(), "remaining segments are skipped after a failure")
	assert.EqualValues(t, 1, m.Metrics().Manager.FailedRequests)
}

func TestManager_PanickingStrategyFallsBack(t *testing.T) {
	stub := NewStubStrategy("openai", func(string, Context) (string, error) {
		panic("boom")
	})
	m := newTestManager(t, stub)

	out, err := m.TranslateDetailed(context.Background(), "text", "openai", nil)
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	assert.Equal(t, "text", out.Text)
}

func TestManager_BatchTranslate(t *testing.T) {
	stub := NewStubStrategy("openai", func(text string, _ Context) (string, error) {
		if text == "bad" {
			return "", errors.New("refused")
		}
		return "<" + text + ">", nil
	})
	m := newTestManager(t, stub)

	got := m.BatchTranslate(context.Background(), []string{"one", "bad", "two"}, "openai", nil)
	assert.Equal(t, []string{"<one>", "bad", "<two>"}, got)

	// Unknown strategy degrades every item to its source text.
	got = m.BatchTranslate(context.Background(), []string{"one"}, "missing", nil)
	assert.Equal(t, []string{"one"}, got)
}

func TestManager_AvailableStrategies(t *testing.T) {
	m := newTestManager(t, NewMapStrategy("a", nil), NewMapStrategy("b", nil))
	infos := m.AvailableStrategies()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.True(t, infos[0].IsDefault)
	assert.False(t, infos[1].IsDefault)
	assert.Equal(t, "stub", infos[1].ProviderType)
}

func TestManager_TestStrategy(t *testing.T) {
	m := newTestManager(t, NewMapStrategy("a", nil))
	status, err := m.TestStrategy(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, status.OK())

	status, err = m.TestStrategy(context.Background(), "zzz")
	assert.Error(t, err)
	assert.Equal(t, StatusError, status.Status)
}

type memoryConfig map[string]any

func (c memoryConfig) Get(key string, def any) any {
	if v, ok := c[key]; ok {
		return v
	}
	return def
}

func (c memoryConfig) Set(key string, value any) error {
	c[key] = value
	return nil
}

func TestManager_SetDefaultPersists(t *testing.T) {
	cfg := memoryConfig{}
	reg := NewRegistry("")
	require.NoError(t, reg.Register("a", NewMapStrategy("a", nil), nil))
	require.NoError(t, reg.Register("b", NewMapStrategy("b", nil), nil))
	m := NewManager(reg, nil, nil, WithConfigService(cfg))

	require.NoError(t, m.SetDefaultStrategy("b"))
	assert.Equal(t, "b", cfg.Get(ConfigKeyDefaultStrategy, ""))
}
