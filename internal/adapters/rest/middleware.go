package rest

import (
	"errors"
	"net/http"

	"checkout/internal/observability"

	"github.com/gin-gonic/gin"
)

var errServerStatus = errors.New("server error status")

// metricsMiddleware records one span per matched route. Responses with a 5xx
// status count as errors.
func metricsMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if metrics == nil || route == "" || route == "/healthz" || route == "/ws/orders" {
			c.Next()
			return
		}

		span := metrics.Start(c.Request.Method + " " + route)
		c.Next()

		var err error
		if c.Writer.Status() >= http.StatusInternalServerError {
			err = errServerStatus
		}
		span.End(err)
	}
}
