package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"wonderclimb/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorLogger recovers panics and logs 5xx responses. Stack traces reach the
// client only when development is true.
func ErrorLogger(logger *zap.Logger, development bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				err := fmt.Errorf("%v", recovered)
				logger.Error("request panic", append(requestFields(c, start), zap.Error(err), zap.Stack("stack"))...)

				if development {
					response.ErrorWithDetails(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Error(),
						gin.H{"stack": string(debug.Stack())})
				} else {
					response.Error(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
				}
				c.Abort()
				return
			}

			for _, e := range c.Errors {
				logger.Error("request error", append(requestFields(c, start), zap.Error(e.Err), zap.Any("meta", e.Meta))...)
			}
			if len(c.Errors) == 0 && c.Writer.Status() >= http.StatusInternalServerError {
				logger.Error("request failed", requestFields(c, start)...)
			}
		}()

		c.Next()
	}
}

func requestFields(c *gin.Context, start time.Time) []zap.Field {
	return []zap.Field{
		zap.Int("status", c.Writer.Status()),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("client_ip", c.ClientIP()),
		zap.Int64("user_id", c.GetInt64(ctxUserID)),
		zap.String("request_id", requestID(c)),
		zap.Duration("latency", time.Since(start)),
	}
}

func requestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = c.GetHeader("X-Request-Id")
	}
	return id
}
