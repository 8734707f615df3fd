package bridge

import (
	"embed"
	"html/template"
	"net/http"

	pkgapp "github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"go.uber.org/zap"
)

//go:embed web/index.html
var webFS embed.FS

var pageTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

// PageData 页面模板参数
type PageData struct {
	Token      string
	BridgePath string
}

// PageHandler 返回钱包桥接页面, 每次请求签发新的页面 token
func (h *Hub) PageHandler(bridgePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := PageData{BridgePath: bridgePath}
		if h.tokens != nil {
			token, err := h.tokens.Generate(pkgapp.ScopeBridge, pkgapp.GetRequestIP(c))
			if err != nil {
				h.logger.Error("bridge page token", zap.Error(err))
				pkgapp.NewResponse(c).ToResponse(code.ErrorServerInternal.WithHTTPStatus(http.StatusInternalServerError))
				return
			}
			data.Token = token
		}
		c.Header("Cache-Control", "no-store")
		c.Render(http.StatusOK, render.HTML{Template: pageTemplate, Name: "index.html", Data: data})
	}
}
