package middleware

import (
	"sync/atomic"

	"github.com/audio-translator/translator/sdk/translator"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSource yields the manager snapshot exported on scrape.
type MetricsSource func() translator.MetricsSnapshot

var (
	translationCollector = &managerCollector{}

	descRequests = prometheus.NewDesc(
		"translator_requests_total",
		"Translation requests by strategy and result",
		[]string{"strategy", "result"}, nil,
	)
	descAvgResponse = prometheus.NewDesc(
		"translator_average_response_seconds",
		"Exponential moving average of strategy response time",
		[]string{"strategy"}, nil,
	)
	descManagerCacheHits = prometheus.NewDesc(
		"translator_manager_cache_hits_total",
		"Requests answered from the translation cache",
		nil, nil,
	)
	descCacheLookups = prometheus.NewDesc(
		"translator_cache_lookups_total",
		"Translation cache lookups by result",
		[]string{"result"}, nil,
	)
	descCacheSize = prometheus.NewDesc(
		"translator_cache_entries",
		"Entries held by the translation cache backend",
		[]string{"backend"}, nil,
	)
	descCacheEvictions = prometheus.NewDesc(
		"translator_cache_evictions_total",
		"Translation cache entries evicted by the size bound",
		nil, nil,
	)
	descCacheExpired = prometheus.NewDesc(
		"translator_cache_expired_total",
		"Translation cache entries removed after their TTL",
		nil, nil,
	)
)

// SetMetricsSource points the translation collector at a manager snapshot.
func SetMetricsSource(src MetricsSource) {
	translationCollector.src.Store(&src)
}

// managerCollector exports manager and cache metrics read at scrape time.
type managerCollector struct {
	src atomic.Pointer[MetricsSource]
}

func (c *managerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descRequests
	ch <- descAvgResponse
	ch <- descManagerCacheHits
	ch <- descCacheLookups
	ch <- descCacheSize
	ch <- descCacheEvictions
	ch <- descCacheExpired
}

func (c *managerCollector) Collect(ch chan<- prometheus.Metric) {
	p := c.src.Load()
	if p == nil || *p == nil {
		return
	}
	snap := (*p)()

	for name, m := range snap.Strategies {
		ch <- prometheus.MustNewConstMetric(descRequests, prometheus.CounterValue, float64(m.SuccessfulRequests), name, "success")
		ch <- prometheus.MustNewConstMetric(descRequests, prometheus.CounterValue, float64(m.FailedRequests), name, "failure")
		ch <- prometheus.MustNewConstMetric(descAvgResponse, prometheus.GaugeValue, m.AverageResponseTime, name)
	}
	ch <- prometheus.MustNewConstMetric(descManagerCacheHits, prometheus.CounterValue, float64(snap.Manager.CacheHits))
	ch <- prometheus.MustNewConstMetric(descCacheLookups, prometheus.CounterValue, float64(snap.Cache.Hits), "hit")
	ch <- prometheus.MustNewConstMetric(descCacheLookups, prometheus.CounterValue, float64(snap.Cache.Misses), "miss")
	ch <- prometheus.MustNewConstMetric(descCacheSize, prometheus.GaugeValue, float64(snap.Cache.Size), snap.Cache.Backend)
	ch <- prometheus.MustNewConstMetric(descCacheEvictions, prometheus.CounterValue, float64(snap.Cache.Evictions))
	ch <- prometheus.MustNewConstMetric(descCacheExpired, prometheus.CounterValue, float64(snap.Cache.Expired))
}
