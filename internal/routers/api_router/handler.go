// Package api_router 提供 HTTP API 路由处理器
package api_router

import (
	"context"
	"errors"

	"github.com/haierkeys/fast-note-anchor/internal/app"
	"github.com/haierkeys/fast-note-anchor/internal/middleware"
	"github.com/haierkeys/fast-note-anchor/internal/service"
	"github.com/haierkeys/fast-note-anchor/pkg/code"
	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 基础 Handler 结构体，封装 App Container
// 所有 API Handler 都应该嵌入此结构体以获得依赖注入能力
type Handler struct {
	App *app.App
}

// NewHandler 创建基础 Handler 实例
func NewHandler(a *app.App) *Handler {
	return &Handler{App: a}
}

// logError 记录错误日志，包含 Trace ID
func (h *Handler) logError(ctx context.Context, method string, err error) {
	traceID := middleware.GetTraceID(ctx)
	h.App.Logger().Error(method,
		zap.Error(err),
		zap.String("traceId", traceID),
	)
}

// renderError 记录并输出错误
// 创建只完成一半时在 details 中带上 noteId，便于调用方续跑
func (h *Handler) renderError(c *gin.Context, method string, err error) {
	h.logError(c.Request.Context(), method, err)

	var partial *service.PartialCreateError
	if errors.As(err, &partial) {
		appErr := apperrors.GetAppError(err)
		if appErr == nil {
			appErr = apperrors.NewAppError(code.ErrorServerInternal, err)
		}
		resp := *appErr
		resp.Details = append(append([]string{}, appErr.Details...), "noteId="+partial.NoteID)
		err = &resp
	}
	apperrors.ErrorResponse(c, err)
}
