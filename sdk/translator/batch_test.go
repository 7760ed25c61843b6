package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelBatch_PreservesOrder(t *testing.T) {
	stub := NewStubStrategy("openai", func(text string, _ Context) (string, error) {
		time.Sleep(time.Millisecond)
		return strings.ToUpper(text), nil
	})
	m := newTestManager(t, stub)

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = fmt.Sprintf("item %d", i)
	}
	results := ParallelBatch(context.Background(), m, texts, "openai", nil, 4)

	require.Len(t, results, len(texts))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, strings.ToUpper(texts[i]), r.Text)
		assert.False(t, r.Fallback)
	}
}

func TestParallelBatch_IndependentFailures(t *testing.T) {
	stub := NewStubStrategy("openai", func(text string, _ Context) (string, error) {
		if text == "bad" {
			return "", errors.New("500")
		}
		return "ok:" + text, nil
	})
	m := newTestManager(t, stub)

	results := ParallelBatch(context.Background(), m, []string{"a", "bad", "b"}, "openai", nil, 2)
	assert.Equal(t, "ok:a", results[0].Text)
	assert.Equal(t, "bad", results[1].Text)
	assert.True(t, results[1].Fallback)
	assert.Error(t, results[1].Error)
	assert.Equal(t, "ok:b", results[2].Text)

	stats := CalculateBatchStats(results)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Fallbacks)
}

func TestParallelBatch_UnknownStrategy(t *testing.T) {
	m := newTestManager(t, NewMapStrategy("openai", nil))
	results := ParallelBatch(context.Background(), m, []string{"x"}, "missing", nil, 0)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].Text)
	assert.ErrorIs(t, results[0].Error, ErrStrategyNotFound)
}

func TestParallelBatch_Empty(t *testing.T) {
	m := newTestManager(t)
	assert.Nil(t, ParallelBatch(context.Background(), m, nil, "", nil, 2))
	assert.Equal(t, BatchStats{}, CalculateBatchStats(nil))
}
