package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yukikurage/mo-task-monitor/internal/constants"
	apierrors "github.com/yukikurage/mo-task-monitor/internal/errors"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id, exposes a request-scoped
// logger to handlers and logs the outcome.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(constants.ContextKeyRequest, requestID)
		c.Header(RequestIDHeader, requestID)

		reqLog := log.With(zap.String("request_id", requestID))
		c.Set(constants.ContextKeyLogger, reqLog)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if userID, ok := GetUserID(c); ok {
			fields = append(fields, zap.Uint64("user_id", userID))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			reqLog.Error("Request completed", fields...)
		case status >= 400:
			reqLog.Warn("Request completed", fields...)
		default:
			reqLog.Info("Request completed", fields...)
		}
	}
}

// Recovery logs panics and answers 500.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("Panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
		)
		apierrors.InternalError(c, "")
		c.Abort()
	})
}
