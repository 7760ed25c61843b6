package middleware

import (
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// ConnectionTracker counts in-flight requests.
type ConnectionTracker struct {
	count atomic.Int64
	total atomic.Int64
}

// Count returns the number of requests currently being served.
func (ct *ConnectionTracker) Count() int64 {
	return ct.count.Load()
}

// Total returns the number of requests served since start.
func (ct *ConnectionTracker) Total() int64 {
	return ct.total.Load()
}

// Track returns a middleware that counts requests while they are served.
// Unlike PrometheusMiddleware it runs regardless of the metrics toggle,
// so health checks and shutdown can report in-flight work.
func (ct *ConnectionTracker) Track() gin.HandlerFunc {
	return func(c *gin.Context) {
		ct.count.Add(1)
		ct.total.Add(1)
		defer ct.count.Add(-1)
		c.Next()
	}
}
