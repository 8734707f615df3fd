package middleware

import (
	"net/http"

	"github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"

	"github.com/gin-gonic/gin"
)

// NoFound 未匹配路由，details 为 "METHOD path"
func NoFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		app.NewResponse(c).ToResponse(code.ErrorNotFound.
			WithHTTPStatus(http.StatusNotFound).
			WithDetails(c.Request.Method + " " + c.Request.URL.Path))
		c.Abort()
	}
}
