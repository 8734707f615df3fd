package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/domain"
	"github.com/haierkeys/fast-note-anchor/internal/metadata"
	"github.com/haierkeys/fast-note-anchor/internal/notesapi"
	"github.com/haierkeys/fast-note-anchor/internal/wallet"
	"github.com/haierkeys/fast-note-anchor/pkg/code"
	"github.com/haierkeys/fast-note-anchor/pkg/digest"
	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"
	"github.com/haierkeys/fast-note-anchor/pkg/logger"
	"github.com/haierkeys/fast-note-anchor/pkg/metrics"

	"go.uber.org/zap"
)

// AnchorService 交易编排服务接口
// 每次调用互不共享状态，同一笔记的并发控制由调用方负责
type AnchorService interface {
	// AnchorCreate 两阶段创建: 先持久化获取 noteId，再签名上链，最后写回链上字段
	AnchorCreate(ctx context.Context, session wallet.Session, draft NoteDraft) (*AnchorResult, error)

	// ResumeCreate 续跑中断的创建流程
	ResumeCreate(ctx context.Context, session wallet.Session, noteID string) (*AnchorResult, error)

	// PendingCreates 列出已持久化但尚未锚定的创建流程
	PendingCreates(ctx context.Context) ([]*domain.AnchorSaga, error)

	// AnchorUpdate 锚定更新后的内容，调用方负责写回
	AnchorUpdate(ctx context.Context, session wallet.Session, noteID, content, owner string) (*AnchorResult, error)

	// AnchorDelete 锚定删除时的内容，调用方在成功后再删除记录
	AnchorDelete(ctx context.Context, session wallet.Session, noteID, content, owner string) (*AnchorResult, error)
}

type anchorService struct {
	store  notesapi.Store
	signer Signer
	sagas  domain.AnchorSagaRepository
	logger *zap.Logger
	config AnchorServiceConfig
	now    func() time.Time
}

// NewAnchorService 创建 AnchorService 实例
func NewAnchorService(store notesapi.Store, signer Signer, sagas domain.AnchorSagaRepository, logger *zap.Logger, config AnchorServiceConfig) AnchorService {
	return &anchorService{
		store:  store,
		signer: signer,
		sagas:  sagas,
		logger: logger,
		config: config.withDefaults(),
		now:    time.Now,
	}
}

func (s *anchorService) AnchorCreate(ctx context.Context, session wallet.Session, draft NoteDraft) (*AnchorResult, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	if blank(draft.Title) {
		return nil, validationError("title")
	}
	if blank(draft.Content) {
		return nil, validationError("content")
	}

	// 阶段一: 不带链上字段创建记录
	note, err := s.store.Create(ctx, notesapi.CreateRequest{
		Title:   draft.Title,
		Content: draft.Content,
	})
	if err != nil {
		metrics.AnchorOperations.WithLabelValues(string(metadata.ActionCreate), resultLabel(err)).Inc()
		return nil, err
	}
	noteID := note.ID.String()

	saga := &domain.AnchorSaga{
		DraftKey:    draft.DraftKey,
		NoteID:      noteID,
		Title:       draft.Title,
		Content:     draft.Content,
		OwnerWallet: session.AddressBech32,
		State:       domain.SagaPersistedUnanchored,
	}
	// 记录已存在，日志必须落盘，不受调用方取消影响
	if created, jerr := s.sagas.Create(context.WithoutCancel(ctx), saga); jerr != nil {
		s.logger.Warn("anchor saga journal write failed",
			zap.String(logger.FieldNoteID, noteID), zap.Error(jerr))
	} else {
		saga = created
		metrics.PendingCreates.Inc()
	}

	// 唤起钱包前是唯一可以放弃的时刻，留下未锚定的笔记
	if err := ctx.Err(); err != nil {
		s.recordFailure(context.WithoutCancel(ctx), saga, err)
		return nil, &PartialCreateError{NoteID: noteID, Err: err}
	}

	return s.completeCreate(ctx, session, saga)
}

func (s *anchorService) ResumeCreate(ctx context.Context, session wallet.Session, noteID string) (*AnchorResult, error) {
	if blank(noteID) {
		return nil, validationError("noteId")
	}
	saga, err := s.sagas.GetByNoteID(ctx, noteID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewAppError(code.ErrorSagaNotFound, nil).WithDetails(noteID)
	}
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}
	if saga.IsAnchored() {
		return nil, apperrors.NewAppError(code.ErrorAlreadyAnchored, nil).WithDetails(noteID)
	}
	// 已提交的交易只需写回，不需要会话
	if !saga.IsSubmitted() {
		if err := requireSession(session); err != nil {
			return nil, err
		}
		saga.OwnerWallet = session.AddressBech32
	}

	s.logger.Info("resuming anchor create",
		zap.String(logger.FieldNoteID, noteID),
		zap.Bool("submitted", saga.IsSubmitted()),
		zap.Int("attempts", saga.Attempts))

	return s.completeCreate(ctx, session, saga)
}

// completeCreate runs phase 2 (unless a transaction was already submitted) and phase 3
func (s *anchorService) completeCreate(ctx context.Context, session wallet.Session, saga *domain.AnchorSaga) (*AnchorResult, error) {
	// 阶段一之后不再响应调用方取消，已广播的交易无法撤回，写回必须完成
	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	action := string(metadata.ActionCreate)

	var res *AnchorResult
	if saga.IsSubmitted() {
		res = &AnchorResult{
			Action:        action,
			NoteID:        saga.NoteID,
			TransactionID: saga.TxHash,
			ContentHash:   saga.ContentHash,
			Owner:         saga.OwnerWallet,
		}
	} else {
		// 阶段二: 签名并提交
		var err error
		res, err = s.submit(ctx, session, metadata.ActionCreate, saga.NoteID, saga.Content, saga.OwnerWallet)
		if err != nil {
			s.recordFailure(ctx, saga, err)
			metrics.ObserveAnchor(action, resultLabel(err), started)
			return nil, &PartialCreateError{NoteID: saga.NoteID, Err: err}
		}
		saga.ContentHash = res.ContentHash
		saga.TxHash = res.TransactionID
		s.saveSaga(ctx, saga)
	}

	// 阶段三: 写回 contentHash / lastTxHash
	note, err := s.store.Update(ctx, notesapi.ID(saga.NoteID), notesapi.UpdateRequest{
		Title:       saga.Title,
		Content:     saga.Content,
		ContentHash: res.ContentHash,
		LastTxHash:  res.TransactionID,
		OwnerWallet: res.Owner,
	})
	if err != nil {
		s.recordFailure(ctx, saga, err)
		metrics.ObserveAnchor(action, resultLabel(err), started)
		return nil, &PartialCreateError{NoteID: saga.NoteID, Err: err}
	}

	saga.State = domain.SagaPersistedAnchored
	saga.LastError = ""
	if s.saveSaga(ctx, saga) {
		metrics.PendingCreates.Dec()
	}
	metrics.ObserveAnchor(action, "success", started)

	res.Note = note
	s.logger.Info("note anchored",
		zap.String(logger.FieldAction, action),
		zap.String(logger.FieldNoteID, saga.NoteID),
		zap.String(logger.FieldTxHash, res.TransactionID),
		zap.String(logger.FieldSagaState, string(saga.State)))
	return res, nil
}

func (s *anchorService) PendingCreates(ctx context.Context) ([]*domain.AnchorSaga, error) {
	list, err := s.sagas.ListByState(ctx, domain.SagaPersistedUnanchored)
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}
	metrics.PendingCreates.Set(float64(len(list)))
	return list, nil
}

func (s *anchorService) AnchorUpdate(ctx context.Context, session wallet.Session, noteID, content, owner string) (*AnchorResult, error) {
	return s.anchorExisting(ctx, session, metadata.ActionUpdate, noteID, content, owner)
}

func (s *anchorService) AnchorDelete(ctx context.Context, session wallet.Session, noteID, content, owner string) (*AnchorResult, error) {
	return s.anchorExisting(ctx, session, metadata.ActionDelete, noteID, content, owner)
}

func (s *anchorService) anchorExisting(ctx context.Context, session wallet.Session, action metadata.Action, noteID, content, owner string) (*AnchorResult, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	if blank(noteID) {
		return nil, validationError("noteId")
	}
	if blank(content) {
		return nil, validationError("content")
	}
	if blank(owner) {
		owner = session.AddressBech32
	}

	started := time.Now()
	res, err := s.submit(context.WithoutCancel(ctx), session, action, noteID, content, owner)
	if err != nil {
		metrics.ObserveAnchor(string(action), resultLabel(err), started)
		return nil, err
	}
	metrics.ObserveAnchor(string(action), "success", started)
	return res, nil
}

// submit builds the label 674 transaction with a self-payment output and hands it to the signer
// submit 构造带自付款输出的 674 标签交易并交给钱包签名
func (s *anchorService) submit(ctx context.Context, session wallet.Session, action metadata.Action, noteID, content, owner string) (*AnchorResult, error) {
	hash := digest.Digest(content)
	md := metadata.Format(metadata.AnchorRequest{
		Action:    action,
		NoteID:    noteID,
		Content:   content,
		Owner:     owner,
		Timestamp: s.now(),
	}, hash)

	tx := &wallet.UnsignedTx{
		Outputs: []wallet.Output{{
			Address:  session.AddressBech32,
			Lovelace: s.config.SelfPaymentLovelace,
		}},
		Metadata: map[uint64]any{metadata.Label: md},
	}

	s.logger.Debug("requesting wallet signature",
		zap.String(logger.FieldAction, string(action)),
		zap.String(logger.FieldNoteID, noteID),
		zap.String(logger.FieldContentHash, hash))

	txHash, err := s.signer.SignAndSubmit(ctx, tx)
	if err != nil {
		s.logger.Warn("anchor transaction failed",
			zap.String(logger.FieldAction, string(action)),
			zap.String(logger.FieldNoteID, noteID),
			zap.Error(err))
		return nil, err
	}

	return &AnchorResult{
		Action:        string(action),
		NoteID:        noteID,
		TransactionID: txHash,
		ContentHash:   hash,
		Owner:         owner,
	}, nil
}

func (s *anchorService) recordFailure(ctx context.Context, saga *domain.AnchorSaga, cause error) {
	saga.Attempts++
	saga.LastError = cause.Error()
	s.saveSaga(ctx, saga)
}

// saveSaga 写回日志，失败只记录日志，不影响主流程
func (s *anchorService) saveSaga(ctx context.Context, saga *domain.AnchorSaga) bool {
	if saga.ID == 0 {
		return false
	}
	updated, err := s.sagas.Update(ctx, saga)
	if err != nil {
		s.logger.Warn("anchor saga journal update failed",
			zap.String(logger.FieldNoteID, saga.NoteID),
			zap.String(logger.FieldSagaState, string(saga.State)),
			zap.Error(err))
		return false
	}
	*saga = *updated
	return true
}

// resultLabel 指标中的结果标签
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return strconv.Itoa(appErr.Code)
	}
	return "error"
}
