package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/logger"
)

const (
	TraceHeader     = "X-Trace-Id"
	ContextTraceKey = "trace_id"
)

// TraceMiddleware берёт X-Trace-Id из запроса или генерирует новый
// и кладёт в контекст запись лога с trace_id, path и method.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" || len(traceID) > 64 {
			traceID = uuid.NewString()
		}

		c.Header(TraceHeader, traceID)
		c.Set(ContextTraceKey, traceID)

		entry := logger.L().WithFields(logrus.Fields{
			"trace_id": traceID,
			"path":     c.Request.URL.Path,
			"method":   c.Request.Method,
		})
		c.Request = c.Request.WithContext(logger.WithEntry(c.Request.Context(), entry))

		c.Next()
	}
}
