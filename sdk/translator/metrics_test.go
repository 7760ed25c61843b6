package translator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestStats_EMA(t *testing.T) {
	s := NewRequestStats(0)

	s.Begin()
	s.Done(true, time.Second)
	assert.InDelta(t, 1.0, s.Snapshot().AverageResponseTime, 1e-9, "first sample seeds the average")

	s.Begin()
	s.Done(true, 2*time.Second)
	assert.InDelta(t, 1.1, s.Snapshot().AverageResponseTime, 1e-9)

	s.Begin()
	s.Done(false, 0)
	m := s.Snapshot()
	assert.InDelta(t, 0.99, m.AverageResponseTime, 1e-9)
	assert.EqualValues(t, 3, m.TotalRequests)
	assert.EqualValues(t, 2, m.SuccessfulRequests)
	assert.EqualValues(t, 1, m.FailedRequests)

	s.Reset()
	assert.Equal(t, RequestMetrics{}, s.Snapshot())
}

func TestRequestStats_CustomSmoothing(t *testing.T) {
	s := NewRequestStats(0.5)
	s.Done(true, time.Second)
	s.Done(true, 3*time.Second)
	assert.InDelta(t, 2.0, s.Snapshot().AverageResponseTime, 1e-9)
}

func TestHistory_Wraps(t *testing.T) {
	h := NewHistory(3)
	for _, s := range []string{"a", "b", "c", "d"} {
		h.Add(HistoryEntry{Text: s})
	}
	got := h.Entries()
	assert.Equal(t, []string{"b", "c", "d"}, []string{got[0].Text, got[1].Text, got[2].Text})
	recent := h.Recent(2)
	assert.Equal(t, "c", recent[0].Text)
	assert.Equal(t, 3, h.Len())

	h.Reset()
	assert.Empty(t, h.Entries())
}

func TestRuleRegistry_AnyDomainRunsFirst(t *testing.T) {
	rr := NewRuleRegistry()
	rr.RegisterPost("audio", func(text string, _ Context) string { return text + "+audio" })
	rr.RegisterPost(AnyDomain, func(text string, _ Context) string { return text + "+any" })

	assert.Equal(t, "x+any+audio", rr.ApplyPost("x", Context{KeyDomain: "audio"}))
	assert.Equal(t, "x+any", rr.ApplyPost("x", nil))

	pre, post := rr.Count("audio")
	assert.Equal(t, 0, pre)
	assert.Equal(t, 1, post)
}

func TestRuleHelpers(t *testing.T) {
	upper, err := RegexRule(`(\w+)@`, "<$1>")
	assert.NoError(t, err)
	onlyUI := ConditionalRule(func(c Context) bool { return c.String(KeyDomain) == "ui" }, upper)
	chain := ChainRules(onlyUI, nil, func(text string, _ Context) string { return text + "!" })

	assert.Equal(t, "<menu> open!", chain("menu@ open", Context{KeyDomain: "ui"}))
	assert.Equal(t, "menu@ open!", chain("menu@ open", nil))

	_, err = RegexRule("[", "")
	assert.Error(t, err)
}
