package service

import (
	"context"
	"strings"
	"sync"

	"github.com/haierkeys/fast-note-anchor/internal/domain"
	"github.com/haierkeys/fast-note-anchor/internal/notesapi"
	"github.com/haierkeys/fast-note-anchor/pkg/code"
	"github.com/haierkeys/fast-note-anchor/pkg/digest"
	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"
	"github.com/haierkeys/fast-note-anchor/pkg/logger"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// NoteService 定义笔记业务服务接口
// 负责防重复提交、写回与删除顺序，锚定本身交给 AnchorService
type NoteService interface {
	// List 从笔记服务拉取全部笔记
	List(ctx context.Context) ([]*NoteDTO, error)

	// Save 新建或修改笔记并锚定
	Save(ctx context.Context, draft NoteDraft) (*SaveResult, error)

	// Delete 锚定删除后再删除记录
	Delete(ctx context.Context, noteID string) (*AnchorResult, error)

	// Verify 校验笔记内容与已锚定哈希是否一致
	Verify(ctx context.Context, noteID string) (*IntegrityReport, error)

	// Resume 续跑中断的创建
	Resume(ctx context.Context, noteID string) (*SaveResult, error)

	// Pending 未完成锚定的创建流程
	Pending(ctx context.Context) ([]*PendingCreateDTO, error)

	// InFlight 是否有针对该 key 的提交正在进行
	InFlight(key string) bool
}

// NoteDTO 笔记数据传输对象
type NoteDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	ContentHash string `json:"contentHash,omitempty"`
	LastTxHash  string `json:"lastTxHash,omitempty"`
	OwnerWallet string `json:"ownerWallet,omitempty"`
	Anchored    bool   `json:"anchored"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// SaveResult 保存结果
type SaveResult struct {
	Created bool          `json:"created"`
	Anchor  *AnchorResult `json:"anchor"`
	Note    *NoteDTO      `json:"note"`
}

// IntegrityReport 完整性校验结果
type IntegrityReport struct {
	NoteID       string `json:"noteId"`
	Anchored     bool   `json:"anchored"`
	Intact       bool   `json:"intact"`
	StoredHash   string `json:"storedHash,omitempty"`
	ComputedHash string `json:"computedHash"`
	LastTxHash   string `json:"lastTxHash,omitempty"`
}

// PendingCreateDTO 未完成的创建流程
type PendingCreateDTO struct {
	NoteID    string `json:"noteId"`
	DraftKey  string `json:"draftKey,omitempty"`
	Title     string `json:"title"`
	Submitted bool   `json:"submitted"`
	TxHash    string `json:"txHash,omitempty"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError,omitempty"`
}

// noteService 实现 NoteService 接口
type noteService struct {
	store        notesapi.Store
	anchor       AnchorService
	verification VerificationService
	sessions     SessionSource
	logger       *zap.Logger
	config       *ServiceConfig

	// inflight 正在提交中的笔记 key
	inflight sync.Map
}

// NewNoteService 创建 NoteService 实例, verification 可为 nil
func NewNoteService(store notesapi.Store, anchor AnchorService, verification VerificationService, sessions SessionSource, logger *zap.Logger, config *ServiceConfig) NoteService {
	return &noteService{
		store:        store,
		anchor:       anchor,
		verification: verification,
		sessions:     sessions,
		logger:       logger,
		config:       config,
	}
}

func (s *noteService) toDTO(note *notesapi.Note) *NoteDTO {
	if note == nil {
		return nil
	}
	dto := &NoteDTO{}
	_ = copier.Copy(dto, note)
	dto.ID = note.ID.String()
	dto.Anchored = note.IsAnchored()
	return dto
}

func (s *noteService) List(ctx context.Context) ([]*NoteDTO, error) {
	notes, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]*NoteDTO, 0, len(notes))
	for i := range notes {
		list = append(list, s.toDTO(&notes[i]))
	}
	return list, nil
}

// acquire 占用提交 key，已被占用时返回 SubmitInProgressError
func (s *noteService) acquire(key string) (func(), error) {
	if _, loaded := s.inflight.LoadOrStore(key, struct{}{}); loaded {
		return nil, apperrors.NewAppError(code.ErrorSubmitInProgress, nil).WithDetails(key)
	}
	return func() { s.inflight.Delete(key) }, nil
}

func (s *noteService) InFlight(key string) bool {
	_, ok := s.inflight.Load(key)
	return ok
}

func submitKey(draft NoteDraft) string {
	if !draft.IsNew() {
		return "note:" + strings.TrimSpace(draft.ID)
	}
	if k := strings.TrimSpace(draft.DraftKey); k != "" {
		return "draft:" + k
	}
	return "draft:" + uuid.NewString()
}

func (s *noteService) Save(ctx context.Context, draft NoteDraft) (*SaveResult, error) {
	release, err := s.acquire(submitKey(draft))
	if err != nil {
		return nil, err
	}
	defer release()

	session := s.sessions.Session()

	if draft.IsNew() {
		res, err := s.anchor.AnchorCreate(ctx, session, draft)
		if err != nil {
			return nil, err
		}
		s.enqueue(context.WithoutCancel(ctx), res)
		return &SaveResult{Created: true, Anchor: res, Note: s.toDTO(res.Note)}, nil
	}

	if blank(draft.Title) {
		return nil, validationError("title")
	}
	// 从唤起钱包开始，签名、提交与写回都不随请求取消
	ctx = context.WithoutCancel(ctx)
	res, err := s.anchor.AnchorUpdate(ctx, session, draft.ID, draft.Content, session.AddressBech32)
	if err != nil {
		return nil, err
	}

	// 签名成功后才写回内容与链上字段
	note, err := s.store.Update(ctx, notesapi.ID(draft.ID), notesapi.UpdateRequest{
		Title:       draft.Title,
		Content:     draft.Content,
		ContentHash: res.ContentHash,
		LastTxHash:  res.TransactionID,
		OwnerWallet: res.Owner,
	})
	if err != nil {
		s.logger.Error("anchored update not written back",
			zap.String(logger.FieldNoteID, draft.ID),
			zap.String(logger.FieldTxHash, res.TransactionID),
			zap.Error(err))
		return nil, err
	}
	res.Note = note
	s.enqueue(ctx, res)
	return &SaveResult{Anchor: res, Note: s.toDTO(note)}, nil
}

func (s *noteService) Delete(ctx context.Context, noteID string) (*AnchorResult, error) {
	if blank(noteID) {
		return nil, validationError("noteId")
	}
	release, err := s.acquire("note:" + strings.TrimSpace(noteID))
	if err != nil {
		return nil, err
	}
	defer release()

	session := s.sessions.Session()
	if err := requireSession(session); err != nil {
		return nil, err
	}

	note, err := s.store.Get(ctx, notesapi.ID(noteID))
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	res, err := s.anchor.AnchorDelete(ctx, session, noteID, note.Content, session.AddressBech32)
	if err != nil {
		return nil, err
	}
	s.enqueue(ctx, res)

	if s.config != nil && s.config.Anchor.RequireDeleteConfirmation && s.verification != nil {
		if err := s.verification.WaitConfirmed(ctx, res.TransactionID); err != nil {
			return nil, err
		}
	}

	if err := s.store.Delete(ctx, notesapi.ID(noteID)); err != nil {
		return nil, err
	}
	s.logger.Info("note deleted",
		zap.String(logger.FieldNoteID, noteID),
		zap.String(logger.FieldTxHash, res.TransactionID))
	return res, nil
}

func (s *noteService) Verify(ctx context.Context, noteID string) (*IntegrityReport, error) {
	if blank(noteID) {
		return nil, validationError("noteId")
	}
	note, err := s.store.Get(ctx, notesapi.ID(noteID))
	if err != nil {
		return nil, err
	}
	report := &IntegrityReport{
		NoteID:       note.ID.String(),
		Anchored:     note.IsAnchored(),
		StoredHash:   note.ContentHash,
		ComputedHash: digest.Digest(note.Content),
		LastTxHash:   note.LastTxHash,
	}
	report.Intact = report.Anchored && digest.Verify(note.Content, note.ContentHash)
	return report, nil
}

func (s *noteService) Resume(ctx context.Context, noteID string) (*SaveResult, error) {
	if blank(noteID) {
		return nil, validationError("noteId")
	}
	release, err := s.acquire("note:" + strings.TrimSpace(noteID))
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.anchor.ResumeCreate(ctx, s.sessions.Session(), noteID)
	if err != nil {
		return nil, err
	}
	s.enqueue(context.WithoutCancel(ctx), res)
	return &SaveResult{Created: true, Anchor: res, Note: s.toDTO(res.Note)}, nil
}

func (s *noteService) Pending(ctx context.Context) ([]*PendingCreateDTO, error) {
	sagas, err := s.anchor.PendingCreates(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]*PendingCreateDTO, 0, len(sagas))
	for _, saga := range sagas {
		list = append(list, pendingDTO(saga))
	}
	return list, nil
}

func pendingDTO(saga *domain.AnchorSaga) *PendingCreateDTO {
	return &PendingCreateDTO{
		NoteID:    saga.NoteID,
		DraftKey:  saga.DraftKey,
		Title:     saga.Title,
		Submitted: saga.IsSubmitted(),
		TxHash:    saga.TxHash,
		Attempts:  saga.Attempts,
		LastError: saga.LastError,
	}
}

// enqueue 登记链上校验，失败只记录日志
func (s *noteService) enqueue(ctx context.Context, res *AnchorResult) {
	if s.verification == nil || res == nil {
		return
	}
	_, err := s.verification.Queue(ctx, QueueRequest{
		NoteID:      res.NoteID,
		TxHash:      res.TransactionID,
		Action:      res.Action,
		ContentHash: res.ContentHash,
		OwnerWallet: res.Owner,
	})
	if err != nil {
		s.logger.Warn("queue verification failed",
			zap.String(logger.FieldNoteID, res.NoteID),
			zap.String(logger.FieldTxHash, res.TransactionID),
			zap.Error(err))
	}
}
