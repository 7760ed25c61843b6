package translator

import (
	"sync"
	"time"
)

// DefaultSmoothing is the weight kept from the previous average when a new
// response time is folded into the exponential moving average.
const DefaultSmoothing = 0.9

// RequestMetrics counts requests and tracks an EMA of response time in seconds.
type RequestMetrics struct {
	TotalRequests       int64   `json:"total_requests"`
	SuccessfulRequests  int64   `json:"successful_requests"`
	FailedRequests      int64   `json:"failed_requests"`
	CacheHits           int64   `json:"cache_hits,omitempty"`
	AverageResponseTime float64 `json:"average_response_time"`
}

// RequestStats is a mutex-guarded RequestMetrics accumulator shared by
// adapters and the manager.
type RequestStats struct {
	mu        sync.Mutex
	smoothing float64
	m         RequestMetrics
}

// NewRequestStats creates an accumulator. A smoothing outside (0,1) falls
// back to DefaultSmoothing.
func NewRequestStats(smoothing float64) *RequestStats {
	if smoothing <= 0 || smoothing >= 1 {
		smoothing = DefaultSmoothing
	}
	return &RequestStats{smoothing: smoothing}
}

// Begin counts a new request.
func (s *RequestStats) Begin() {
	s.mu.Lock()
	s.m.TotalRequests++
	s.mu.Unlock()
}

// CacheHit counts a request served from cache.
func (s *RequestStats) CacheHit() {
	s.mu.Lock()
	s.m.CacheHits++
	s.mu.Unlock()
}

// Done records the outcome and elapsed time of a request started with Begin.
func (s *RequestStats) Done(success bool, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if success {
		s.m.SuccessfulRequests++
	} else {
		s.m.FailedRequests++
	}
	sample := elapsed.Seconds()
	// The first completed request seeds the average.
	if s.m.SuccessfulRequests+s.m.FailedRequests == 1 {
		s.m.AverageResponseTime = sample
		return
	}
	s.m.AverageResponseTime = s.m.AverageResponseTime*s.smoothing + sample*(1-s.smoothing)
}

// Snapshot returns a copy of the counters.
func (s *RequestStats) Snapshot() RequestMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m
}

// Reset zeroes the counters.
func (s *RequestStats) Reset() {
	s.mu.Lock()
	s.m = RequestMetrics{}
	s.mu.Unlock()
}
