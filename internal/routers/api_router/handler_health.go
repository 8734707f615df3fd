// Package api_router 提供 HTTP API 路由处理器
package api_router

import (
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/app"
	pkgapp "github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"

	"github.com/gin-gonic/gin"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	*Handler
	startTime time.Time
}

// NewHealthHandler 创建健康检查处理器实例
func NewHealthHandler(a *app.App) *HealthHandler {
	return &HealthHandler{Handler: NewHandler(a), startTime: time.Now()}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status       string  `json:"status"`       // "healthy" 或 "unhealthy"
	Version      string  `json:"version"`      // 服务版本号
	Uptime       float64 `json:"uptime"`       // 运行时间（秒）
	Database     string  `json:"database"`     // "connected" 或 "error"
	Wallet       string  `json:"wallet"`       // 钱包会话状态
	BridgePages  int     `json:"bridgePages"`  // 已连接的桥接页面数
	Verification bool    `json:"verification"` // 是否启用链上校验
}

// Check 健康检查接口
// GET /api/health
func (h *HealthHandler) Check(c *gin.Context) {
	response := HealthResponse{
		Status:       "healthy",
		Version:      h.App.Version().Version,
		Uptime:       time.Since(h.startTime).Seconds(),
		Database:     "connected",
		Wallet:       h.App.Wallet.State().String(),
		BridgePages:  h.App.Bridge.PageCount(),
		Verification: h.App.Config().VerificationEnabled(),
	}

	// 检查数据库连接
	if err := h.App.DB.Exec("SELECT 1").Error; err != nil {
		response.Status = "unhealthy"
		response.Database = "error"
		pkgapp.NewResponse(c).ToResponse(code.Failed.WithData(response))
		return
	}

	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(response))
}

// Version 服务端版本
// GET /api/version
func (h *HealthHandler) Version(c *gin.Context) {
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(h.App.Version()))
}
