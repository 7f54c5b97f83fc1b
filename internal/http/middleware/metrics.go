package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cukee-curation/internal/observability"
)

// Metrics instruments HTTP request counts and latency.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		observability.APIInflight.Inc()
		defer observability.APIInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())
		observability.ObserveAPI(c.Request.Method, route, status, time.Since(start))
	}
}
