package api_router

import (
	"github.com/haierkeys/fast-note-anchor/internal/app"
	"github.com/haierkeys/fast-note-anchor/internal/dto"
	"github.com/haierkeys/fast-note-anchor/internal/service"
	pkgapp "github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NoteHandler 笔记 API 路由处理器
// 使用 App Container 注入依赖，支持统一错误处理
type NoteHandler struct {
	*Handler
}

// NewNoteHandler 创建 NoteHandler 实例
func NewNoteHandler(a *app.App) *NoteHandler {
	return &NoteHandler{Handler: NewHandler(a)}
}

// List 笔记列表，支持 page / pageSize
// GET /api/notes
func (h *NoteHandler) List(c *gin.Context) {
	notes, err := h.App.NoteService.List(c.Request.Context())
	if err != nil {
		h.renderError(c, "NoteHandler.List", err)
		return
	}
	pkgapp.NewResponse(c).ToResponseList(code.Success, pkgapp.Paginate(c, notes), len(notes))
}

// Create 新建笔记并锚定
// POST /api/notes
func (h *NoteHandler) Create(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.NoteCreateRequest{}
	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		h.App.Logger().Error("NoteHandler.Create.BindAndValid err", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	res, err := h.App.NoteService.Save(c.Request.Context(), service.NoteDraft{
		DraftKey: params.DraftKey,
		Title:    params.Title,
		Content:  params.Content,
	})
	if err != nil {
		h.renderError(c, "NoteHandler.Create", err)
		return
	}
	response.ToResponse(code.Success.WithData(res))
}

// Update 修改笔记并锚定新内容
// PUT /api/notes/:id
func (h *NoteHandler) Update(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.NoteUpdateRequest{}
	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		h.App.Logger().Error("NoteHandler.Update.BindAndValid err", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	res, err := h.App.NoteService.Save(c.Request.Context(), service.NoteDraft{
		ID:      c.Param("id"),
		Title:   params.Title,
		Content: params.Content,
	})
	if err != nil {
		h.renderError(c, "NoteHandler.Update", err)
		return
	}
	response.ToResponse(code.Success.WithData(res))
}

// Delete 锚定删除后删除笔记
// DELETE /api/notes/:id
func (h *NoteHandler) Delete(c *gin.Context) {
	res, err := h.App.NoteService.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, "NoteHandler.Delete", err)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(res))
}

// Verify 内容完整性校验
// GET /api/notes/:id/verify
func (h *NoteHandler) Verify(c *gin.Context) {
	report, err := h.App.NoteService.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, "NoteHandler.Verify", err)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(report))
}

// Pending 未完成锚定的创建
// GET /api/notes/pending
func (h *NoteHandler) Pending(c *gin.Context) {
	list, err := h.App.NoteService.Pending(c.Request.Context())
	if err != nil {
		h.renderError(c, "NoteHandler.Pending", err)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(list))
}

// Resume 续跑中断的创建
// POST /api/notes/:id/resume
func (h *NoteHandler) Resume(c *gin.Context) {
	res, err := h.App.NoteService.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, "NoteHandler.Resume", err)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(res))
}
