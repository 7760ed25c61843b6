package translator

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchWorkers is the worker count used by ParallelBatch when none is given.
const DefaultBatchWorkers = 4

// BatchResult is the outcome of one item of a parallel batch.
type BatchResult struct {
	Index    int           `json:"index"`
	Source   string        `json:"source"`
	Text     string        `json:"translation"`
	Fallback bool          `json:"fallback"`
	CacheHit bool          `json:"cache_hit"`
	Error    error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// ParallelBatch translates texts on at most workers goroutines. Results are
// returned in input order and each item fails independently: a failed item
// carries its source text and the error.
func ParallelBatch(ctx context.Context, m *Manager, texts []string, strategyName string, tctx Context, workers int) []BatchResult {
	if len(texts) == 0 {
		return nil
	}
	if workers < 1 {
		workers = DefaultBatchWorkers
	}

	results := make([]BatchResult, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, text := range texts {
		g.Go(func() error {
			results[i] = translateOne(gctx, m, i, text, strategyName, tctx)
			return nil
		})
	}
	// Workers never return errors; Wait only joins them.
	_ = g.Wait()
	return results
}

func translateOne(ctx context.Context, m *Manager, idx int, text, strategyName string, tctx Context) (res BatchResult) {
	res = BatchResult{Index: idx, Source: text, Text: text}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("translator: parallel batch item %d panicked: %v", idx, r)
			res.Text = text
			res.Fallback = true
		}
		res.Duration = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		res.Error = err
		res.Fallback = true
		return res
	}
	out, err := m.TranslateDetailed(ctx, text, strategyName, tctx)
	if err != nil {
		res.Error = err
		res.Fallback = true
		return res
	}
	res.Text = out.Text
	res.Fallback = out.Fallback
	res.CacheHit = out.CacheHit
	res.Error = out.Err
	return res
}

// BatchStats summarizes a parallel batch.
type BatchStats struct {
	Total           int           `json:"total"`
	Fallbacks       int           `json:"fallbacks"`
	CacheHits       int           `json:"cache_hits"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	MinDuration     time.Duration `json:"min_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
}

// CalculateBatchStats computes statistics from batch results.
func CalculateBatchStats(results []BatchResult) BatchStats {
	if len(results) == 0 {
		return BatchStats{}
	}

	stats := BatchStats{
		Total:       len(results),
		MinDuration: results[0].Duration,
		MaxDuration: results[0].Duration,
	}
	for _, r := range results {
		stats.TotalDuration += r.Duration
		stats.MinDuration = min(stats.MinDuration, r.Duration)
		stats.MaxDuration = max(stats.MaxDuration, r.Duration)
		if r.Fallback {
			stats.Fallbacks++
		}
		if r.CacheHit {
			stats.CacheHits++
		}
	}
	stats.AverageDuration = stats.TotalDuration / time.Duration(len(results))
	return stats
}
