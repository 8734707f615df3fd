package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"

	"github.com/gin-gonic/gin"
)

// AuthTokenHeader 备用的令牌请求头，Authorization 已被反向代理占用时使用
const AuthTokenHeader = "X-Auth-Token"

// SimpleAuthTokenWithConfig 控制接口 Token 认证中间件，authToken 为空时不校验
func SimpleAuthTokenWithConfig(authToken string) gin.HandlerFunc {
	expected := []byte(authToken)

	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}

		token := c.GetHeader(AuthTokenHeader)
		if token == "" {
			token = app.GetToken(c)
		}

		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			app.NewResponse(c).ToResponse(code.ErrorInvalidAuthToken.WithHTTPStatus(http.StatusUnauthorized))
			c.Abort()
			return
		}
		c.Next()
	}
}
