package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPObserver records request latency per route
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// MetricsMiddleware reports every request to observer, labelled with the
// route template rather than the raw path.
func MetricsMiddleware(observer HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if observer != nil {
			observer.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
		}
	}
}
