package api_router

import (
	"github.com/haierkeys/fast-note-anchor/internal/app"
	pkgapp "github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"
	"github.com/haierkeys/fast-note-anchor/pkg/convert"
	"github.com/haierkeys/fast-note-anchor/pkg/workerpool"

	"github.com/gin-gonic/gin"
)

// VerificationHandler 交易校验 API 路由处理器
type VerificationHandler struct {
	*Handler
}

// NewVerificationHandler 创建 VerificationHandler 实例
func NewVerificationHandler(a *app.App) *VerificationHandler {
	return &VerificationHandler{Handler: NewHandler(a)}
}

// Stats 按状态统计
// GET /api/verifications/stats
func (h *VerificationHandler) Stats(c *gin.Context) {
	stats, err := h.App.VerificationService.Stats(c.Request.Context())
	if err != nil {
		h.renderError(c, "VerificationHandler.Stats", err)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(stats))
}

// ListForNote 笔记的校验记录
// GET /api/notes/:id/verifications
func (h *VerificationHandler) ListForNote(c *gin.Context) {
	list, err := h.App.VerificationService.ListForNote(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, "VerificationHandler.ListForNote", err)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(list))
}

// Retry 手动重试校验
// POST /api/verifications/:id/retry
func (h *VerificationHandler) Retry(c *gin.Context) {
	id, ok := convert.StrTo(c.Param("id")).ID()
	if !ok {
		pkgapp.NewResponse(c).ToResponse(code.ErrorInvalidParams.WithDetails("id"))
		return
	}
	v, err := h.App.VerificationService.Retry(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, "VerificationHandler.Retry", err)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(v))
}

// Get 按 ID 获取校验记录
// GET /api/verifications/:id
func (h *VerificationHandler) Get(c *gin.Context) {
	id, ok := convert.StrTo(c.Param("id")).ID()
	if !ok {
		pkgapp.NewResponse(c).ToResponse(code.ErrorInvalidParams.WithDetails("id"))
		return
	}
	v, err := h.App.VerificationService.Get(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, "VerificationHandler.Get", err)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(v))
}

// GetByTxHash 按交易哈希获取
// GET /api/verifications/tx/:txHash
func (h *VerificationHandler) GetByTxHash(c *gin.Context) {
	v, err := h.App.VerificationService.GetByTxHash(c.Request.Context(), c.Param("txHash"))
	if err != nil {
		h.renderError(c, "VerificationHandler.GetByTxHash", err)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(v))
}

// LatestForNote 笔记最近一次校验
// GET /api/notes/:id/verifications/latest
func (h *VerificationHandler) LatestForNote(c *gin.Context) {
	v, err := h.App.VerificationService.LatestForNote(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, "VerificationHandler.LatestForNote", err)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(v))
}

// Pending 待校验记录，pageSize 限制数量
// GET /api/verifications/pending
func (h *VerificationHandler) Pending(c *gin.Context) {
	list, err := h.App.VerificationService.ListPending(c.Request.Context(), pkgapp.GetPageSize(c))
	if err != nil {
		h.renderError(c, "VerificationHandler.Pending", err)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(list))
}

// WorkerStatus 后台校验任务状态
type WorkerStatus struct {
	Running    bool               `json:"running"`
	Schedule   string             `json:"schedule"`
	BatchSize  int                `json:"batchSize"`
	MaxRetries int                `json:"maxRetries"`
	Pool       workerpool.Metrics `json:"pool"`
}

// WorkerStatus 后台校验任务状态
// GET /api/verifications/worker/status
func (h *VerificationHandler) WorkerStatus(c *gin.Context) {
	cfg := h.App.Config()
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(WorkerStatus{
		Running:    cfg.VerificationEnabled() && !h.App.IsShuttingDown(),
		Schedule:   cfg.Verification.Schedule,
		BatchSize:  cfg.Verification.BatchSize,
		MaxRetries: cfg.Verification.MaxRetries,
		Pool:       h.App.WorkerPool().GetMetrics(),
	}))
}
