package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/blockfrost"
	"github.com/haierkeys/fast-note-anchor/internal/domain"
	"github.com/haierkeys/fast-note-anchor/pkg/code"
	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"
	"github.com/haierkeys/fast-note-anchor/pkg/logger"
	"github.com/haierkeys/fast-note-anchor/pkg/metrics"
	"github.com/haierkeys/fast-note-anchor/pkg/workerpool"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// VerificationService 交易校验服务接口
type VerificationService interface {
	// Queue 为已提交的交易登记校验记录，同一 txHash 只登记一次
	Queue(ctx context.Context, req QueueRequest) (*domain.Verification, error)

	// VerifyTransaction 对单条记录做链上校验，失败结果记录在返回值中
	VerifyTransaction(ctx context.Context, id int64) (*domain.Verification, error)

	// Retry 手动重试，已校验通过的记录不允许重试
	Retry(ctx context.Context, id int64) (*domain.Verification, error)

	// Stats 按状态统计
	Stats(ctx context.Context) (*VerificationStats, error)

	// ListForNote 笔记的校验记录，最新在前
	ListForNote(ctx context.Context, noteID string) ([]*domain.Verification, error)

	// Get 按 ID 获取校验记录
	Get(ctx context.Context, id int64) (*domain.Verification, error)

	// GetByTxHash 按交易哈希获取校验记录
	GetByTxHash(ctx context.Context, txHash string) (*domain.Verification, error)

	// LatestForNote 笔记最近一次的校验记录
	LatestForNote(ctx context.Context, noteID string) (*domain.Verification, error)

	// ListPending 等待校验或可重试的记录
	ListPending(ctx context.Context, limit int) ([]*domain.Verification, error)

	// MarkExpired 将达到重试上限的记录标记为过期
	MarkExpired(ctx context.Context) (int, error)

	// ProcessPending 处理一批待校验记录
	ProcessPending(ctx context.Context, batch int) (*ProcessReport, error)

	// WaitConfirmed 轮询浏览器直到交易可见或超时
	WaitConfirmed(ctx context.Context, txHash string) error
}

// QueueRequest 登记校验的参数
type QueueRequest struct {
	NoteID      string
	TxHash      string
	Action      string
	ContentHash string
	OwnerWallet string
}

// VerificationStats 校验统计
type VerificationStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Verified   int64 `json:"verified"`
	Failed     int64 `json:"failed"`
	Expired    int64 `json:"expired"`
	Total      int64 `json:"total"`
}

// ProcessReport 一批校验的结果
type ProcessReport struct {
	Processed int `json:"processed"`
	Verified  int `json:"verified"`
	Failed    int `json:"failed"`
}

type verificationService struct {
	repo     domain.VerificationRepository
	explorer blockfrost.Explorer
	pool     *workerpool.Pool
	logger   *zap.Logger
	config   VerificationServiceConfig
	now      func() time.Time
}

// NewVerificationService 创建 VerificationService 实例，pool 为 nil 时顺序处理
func NewVerificationService(repo domain.VerificationRepository, explorer blockfrost.Explorer, pool *workerpool.Pool, logger *zap.Logger, config VerificationServiceConfig) VerificationService {
	return &verificationService{
		repo:     repo,
		explorer: explorer,
		pool:     pool,
		logger:   logger,
		config:   config.withDefaults(),
		now:      time.Now,
	}
}

func (s *verificationService) Queue(ctx context.Context, req QueueRequest) (*domain.Verification, error) {
	if blank(req.TxHash) {
		return nil, validationError("txHash")
	}

	existing, err := s.repo.GetByTxHash(ctx, req.TxHash)
	if err == nil {
		s.logger.Debug("verification already queued", zap.String(logger.FieldTxHash, req.TxHash))
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}

	v, err := s.repo.Create(ctx, &domain.Verification{
		NoteID:      req.NoteID,
		TxHash:      req.TxHash,
		Action:      req.Action,
		ContentHash: req.ContentHash,
		OwnerWallet: req.OwnerWallet,
		Status:      domain.VerificationPending,
		MaxRetries:  s.config.MaxRetries,
	})
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}

	s.logger.Info("verification queued",
		zap.String(logger.FieldNoteID, req.NoteID),
		zap.String(logger.FieldTxHash, req.TxHash),
		zap.Int64("id", v.ID))
	return v, nil
}

func (s *verificationService) get(ctx context.Context, id int64) (*domain.Verification, error) {
	v, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewAppError(code.ErrorVerificationNotFound, nil).WithDetails(fmt.Sprint(id))
	}
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}
	return v, nil
}

func (s *verificationService) VerifyTransaction(ctx context.Context, id int64) (*domain.Verification, error) {
	v, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, v)
}

func (s *verificationService) verify(ctx context.Context, v *domain.Verification) (*domain.Verification, error) {
	v.Status = domain.VerificationProcessing
	v, err := s.repo.Update(ctx, v)
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}

	md, err := s.explorer.AnchorMetadata(ctx, v.TxHash)
	if err != nil {
		return s.fail(ctx, v, err.Error())
	}

	v.ChainContentHash = md.ContentHash.String()
	v.ChainAction = md.Action.String()
	v.ChainOwner = md.Owner.String()
	match := v.ContentHash != "" && v.ContentHash == v.ChainContentHash
	v.HashMatch = &match

	if !match {
		return s.fail(ctx, v, fmt.Sprintf("content hash mismatch, expected %s, found %s", v.ContentHash, v.ChainContentHash))
	}

	v.Status = domain.VerificationVerified
	v.VerifiedAt = s.now()
	v.LastError = ""
	v, err = s.repo.Update(ctx, v)
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}
	metrics.VerificationResults.WithLabelValues(string(v.Status)).Inc()
	s.logger.Info("transaction verified",
		zap.String(logger.FieldNoteID, v.NoteID),
		zap.String(logger.FieldTxHash, v.TxHash))
	return v, nil
}

// fail 递增重试次数，达到上限则过期
func (s *verificationService) fail(ctx context.Context, v *domain.Verification, reason string) (*domain.Verification, error) {
	v.RetryCount++
	v.LastError = reason
	if v.ExceededRetries() {
		v.Status = domain.VerificationExpired
	} else {
		v.Status = domain.VerificationFailed
	}

	v, err := s.repo.Update(ctx, v)
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}
	metrics.VerificationResults.WithLabelValues(string(v.Status)).Inc()
	s.logger.Warn("transaction verification failed",
		zap.String(logger.FieldTxHash, v.TxHash),
		zap.String(logger.FieldStatus, string(v.Status)),
		zap.Int("retry", v.RetryCount),
		zap.Int("maxRetries", v.MaxRetries),
		zap.String("reason", reason))
	return v, nil
}

func (s *verificationService) Retry(ctx context.Context, id int64) (*domain.Verification, error) {
	v, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status == domain.VerificationVerified {
		return nil, apperrors.NewAppError(code.ErrorRetryNotAllowed, nil).WithDetails(string(v.Status))
	}
	v.Status = domain.VerificationPending
	if v, err = s.repo.Update(ctx, v); err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}
	return s.verify(ctx, v)
}

func (s *verificationService) Stats(ctx context.Context) (*VerificationStats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}
	stats := &VerificationStats{
		Pending:    counts[domain.VerificationPending],
		Processing: counts[domain.VerificationProcessing],
		Verified:   counts[domain.VerificationVerified],
		Failed:     counts[domain.VerificationFailed],
		Expired:    counts[domain.VerificationExpired],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (s *verificationService) ListForNote(ctx context.Context, noteID string) ([]*domain.Verification, error) {
	list, err := s.repo.ListByNoteID(ctx, noteID)
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}
	return list, nil
}

func (s *verificationService) Get(ctx context.Context, id int64) (*domain.Verification, error) {
	return s.get(ctx, id)
}

func (s *verificationService) GetByTxHash(ctx context.Context, txHash string) (*domain.Verification, error) {
	if blank(txHash) {
		return nil, validationError("txHash")
	}
	v, err := s.repo.GetByTxHash(ctx, txHash)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewAppError(code.ErrorVerificationNotFound, nil).WithDetails(txHash)
	}
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}
	return v, nil
}

func (s *verificationService) LatestForNote(ctx context.Context, noteID string) (*domain.Verification, error) {
	list, err := s.ListForNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperrors.NewAppError(code.ErrorVerificationNotFound, nil).WithDetails("noteId=" + noteID)
	}
	return list[0], nil
}

func (s *verificationService) ListPending(ctx context.Context, limit int) ([]*domain.Verification, error) {
	list, err := s.repo.ListNeedingRetry(ctx, limit)
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}
	return list, nil
}

func (s *verificationService) MarkExpired(ctx context.Context) (int, error) {
	list, err := s.repo.ListExceeded(ctx)
	if err != nil {
		return 0, apperrors.NewAppError(code.ErrorServerInternal, err)
	}
	n := 0
	for _, v := range list {
		v.Status = domain.VerificationExpired
		if _, err := s.repo.Update(ctx, v); err != nil {
			return n, apperrors.NewAppError(code.ErrorServerInternal, err)
		}
		metrics.VerificationResults.WithLabelValues(string(v.Status)).Inc()
		n++
	}
	if n > 0 {
		s.logger.Info("verifications expired", zap.Int("count", n))
	}
	return n, nil
}

func (s *verificationService) ProcessPending(ctx context.Context, batch int) (*ProcessReport, error) {
	if batch <= 0 {
		batch = s.config.BatchSize
	}
	list, err := s.repo.ListNeedingRetry(ctx, batch)
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorServerInternal, err)
	}

	outcomes := make([]domain.VerificationStatus, len(list))
	jobs := make([]workerpool.Job, len(list))
	for i, v := range list {
		i, v := i, v
		jobs[i] = func(ctx context.Context) error {
			res, err := s.verify(ctx, v)
			if err != nil {
				return err
			}
			outcomes[i] = res.Status
			return nil
		}
	}

	var errs []error
	if s.pool != nil {
		errs = s.pool.RunAll(ctx, jobs)
	} else {
		errs = make([]error, len(jobs))
		for i, job := range jobs {
			errs[i] = job(ctx)
		}
	}

	report := &ProcessReport{Processed: len(list)}
	for i, err := range errs {
		if err != nil {
			s.logger.Error("verification job error", zap.String(logger.FieldTxHash, list[i].TxHash), zap.Error(err))
			report.Failed++
			continue
		}
		if outcomes[i] == domain.VerificationVerified {
			report.Verified++
		} else {
			report.Failed++
		}
	}
	return report, nil
}

func (s *verificationService) WaitConfirmed(ctx context.Context, txHash string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.ConfirmInterval
	b.MaxInterval = 6 * s.config.ConfirmInterval

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		_, err := s.explorer.TxMetadata(ctx, txHash)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, apperrors.ErrExplorer) {
			if appErr := apperrors.GetAppError(err); appErr != nil && (appErr.Status == 401 || appErr.Status == 403) {
				return struct{}{}, backoff.Permanent(err)
			}
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(s.config.ConfirmTimeout),
		backoff.WithNotify(func(err error, d time.Duration) {
			s.logger.Debug("waiting for transaction confirmation",
				zap.String(logger.FieldTxHash, txHash),
				zap.Duration("next", d),
				zap.Error(err))
		}),
	)
	if err != nil {
		s.logger.Warn("transaction not confirmed",
			zap.String(logger.FieldTxHash, txHash),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return apperrors.NewAppError(code.ErrorConfirmationTimeout, err).WithDetails(txHash)
	}
	return nil
}
