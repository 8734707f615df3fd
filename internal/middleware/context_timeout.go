package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"

	"github.com/gin-gonic/gin"
)

// ContextTimeout 为请求 context 设置超时，timeout <= 0 不限制
// 处理器因超时返回且尚未写响应时输出 504
func ContextTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if !c.Writer.Written() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			app.NewResponse(c).ToResponse(code.ErrorRequestTimeout.WithHTTPStatus(http.StatusGatewayTimeout))
		}
	}
}
