package logging

import (
	"fmt"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_Wraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Write(LogEntry{Message: fmt.Sprintf("m%d", i)})
	}
	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, 3, rb.Cap())

	var got []string
	for _, e := range rb.Entries() {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"m2", "m3", "m4"}, got)

	recent := rb.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "m3", recent[0].Message)

	rb.Clear()
	assert.Empty(t, rb.Entries())
}

func TestRingBuffer_Hook(t *testing.T) {
	rb := NewRingBuffer(10)
	logger := log.New()
	logger.SetLevel(log.DebugLevel)
	logger.AddHook(rb)
	logger.SetOutput(discard{})

	logger.WithField("strategy", "deepseek").Warn("provider slow")
	logger.Debug("noise")
	logger.Error("provider down")

	entries := rb.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "deepseek", entries[0].Fields["strategy"])

	warnAndUp := rb.Filter(log.WarnLevel, 0)
	require.Len(t, warnAndUp, 2)
	assert.Equal(t, "provider down", warnAndUp[1].Message)
	assert.Len(t, rb.Filter(log.WarnLevel, 1), 1)

	rb.SetMinLevel(log.ErrorLevel)
	logger.Warn("dropped")
	assert.Equal(t, 3, rb.Len())
}

func TestRingBuffer_EntriesAreCopies(t *testing.T) {
	rb := NewRingBuffer(2)
	rb.Write(LogEntry{Message: "a", Fields: map[string]any{"k": "v"}})
	rb.Entries()[0].Fields["k"] = "changed"
	assert.Equal(t, "v", rb.Entries()[0].Fields["k"])
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
