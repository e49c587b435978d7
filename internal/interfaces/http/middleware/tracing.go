package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Tracing instruments requests with OpenTelemetry server spans. Health and
// readiness probes are filtered out to keep the trace stream useful.
func Tracing(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName,
		otelgin.WithFilter(func(req *http.Request) bool {
			switch req.URL.Path {
			case "/health", "/healthz", "/ready":
				return false
			}
			return true
		}),
	)
}
