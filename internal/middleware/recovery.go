package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryWithLogger 捕获处理器 panic，记录堆栈并返回 500
func RecoveryWithLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			var msg string
			fields := []zap.Field{
				zap.String("router", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("query", c.Request.URL.RawQuery),
				zap.String("ip", c.ClientIP()),
				zap.String("trace-id", GetTraceIDFromGin(c)),
				zap.String("stack", string(debug.Stack())),
			}
			switch v := rec.(type) {
			case error:
				msg = v.Error()
				fields = append(fields, zap.Error(v))
			default:
				msg = fmt.Sprint(v)
				fields = append(fields, zap.String("panic_value", msg))
			}
			logger.Error("Recovered from panic", fields...)

			if !c.Writer.Written() {
				app.NewResponse(c).ToResponse(code.ErrorServerInternal.WithDetails(msg).WithHTTPStatus(http.StatusInternalServerError))
			}
			c.Abort()
		}()

		c.Next()
	}
}
