// Package middleware 提供 gin 中间件.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/carevault/pkg/metrics"
)

// PrometheusMiddleware 记录请求计数、耗时与并发数.
// route 取 gin 的路由模板，未匹配的请求记为 "unmatched"，避免病历号进入标签.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		metrics.InFlightRequests.Inc()
		defer metrics.InFlightRequests.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		method := c.Request.Method
		metrics.RequestCounter.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
