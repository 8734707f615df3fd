package dao

import (
	"context"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/domain"
	"github.com/haierkeys/fast-note-anchor/internal/model"
	"github.com/haierkeys/fast-note-anchor/pkg/timex"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// retryableStatuses 可以继续校验的状态
var retryableStatuses = []string{string(domain.VerificationPending), string(domain.VerificationFailed)}

// verificationRepository 实现 domain.VerificationRepository 接口
type verificationRepository struct {
	dao *Dao
}

// NewVerificationRepository 创建 VerificationRepository 实例
func NewVerificationRepository(dao *Dao) domain.VerificationRepository {
	return &verificationRepository{dao: dao}
}

func (r *verificationRepository) db(ctx context.Context) *gorm.DB {
	return r.dao.UseWithOnceFunc(func(g *gorm.DB) {
		if err := model.AutoMigrate(g, "TransactionVerification"); err != nil {
			r.dao.logger.Error("auto migrate failed", zap.String("table", "TransactionVerification"), zap.Error(err))
		}
	}, "transaction_verification").WithContext(ctx)
}

// toDomain 将数据库模型转换为领域模型
func (r *verificationRepository) toDomain(m *model.TransactionVerification) *domain.Verification {
	if m == nil {
		return nil
	}
	return &domain.Verification{
		ID:               m.ID,
		NoteID:           m.NoteID,
		TxHash:           m.TxHash,
		Action:           m.Action,
		ContentHash:      m.ContentHash,
		OwnerWallet:      m.OwnerWallet,
		Status:           domain.VerificationStatus(m.Status),
		RetryCount:       m.RetryCount,
		MaxRetries:       m.MaxRetries,
		LastError:        m.LastError,
		VerifiedAt:       time.Time(m.VerifiedAt),
		ChainContentHash: m.ChainContentHash,
		ChainAction:      m.ChainAction,
		ChainOwner:       m.ChainOwner,
		HashMatch:        m.HashMatch,
		CreatedAt:        time.Time(m.CreatedAt),
		UpdatedAt:        time.Time(m.UpdatedAt),
	}
}

// toModel 将领域模型转换为数据库模型
func (r *verificationRepository) toModel(v *domain.Verification) *model.TransactionVerification {
	if v == nil {
		return nil
	}
	return &model.TransactionVerification{
		ID:               v.ID,
		NoteID:           v.NoteID,
		TxHash:           v.TxHash,
		Action:           v.Action,
		ContentHash:      v.ContentHash,
		OwnerWallet:      v.OwnerWallet,
		Status:           string(v.Status),
		RetryCount:       v.RetryCount,
		MaxRetries:       v.MaxRetries,
		LastError:        v.LastError,
		VerifiedAt:       timex.Time(v.VerifiedAt),
		ChainContentHash: v.ChainContentHash,
		ChainAction:      v.ChainAction,
		ChainOwner:       v.ChainOwner,
		HashMatch:        v.HashMatch,
		CreatedAt:        timex.Time(v.CreatedAt),
		UpdatedAt:        timex.Time(v.UpdatedAt),
	}
}

func (r *verificationRepository) toDomainList(ms []*model.TransactionVerification) []*domain.Verification {
	list := make([]*domain.Verification, 0, len(ms))
	for _, m := range ms {
		list = append(list, r.toDomain(m))
	}
	return list
}

// Create 创建校验记录
func (r *verificationRepository) Create(ctx context.Context, v *domain.Verification) (*domain.Verification, error) {
	m := r.toModel(v)
	now := timex.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = string(domain.VerificationPending)
	}
	if m.MaxRetries == 0 {
		m.MaxRetries = domain.DefaultMaxRetries
	}
	if err := r.db(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// Update 更新校验记录（全字段保存）
func (r *verificationRepository) Update(ctx context.Context, v *domain.Verification) (*domain.Verification, error) {
	m := r.toModel(v)
	m.UpdatedAt = timex.Now()
	if err := r.db(ctx).Save(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// GetByID 根据 ID 获取
func (r *verificationRepository) GetByID(ctx context.Context, id int64) (*domain.Verification, error) {
	var m model.TransactionVerification
	err := r.db(ctx).Where("id = ?", id).Take(&m).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.toDomain(&m), nil
}

// GetByTxHash 根据交易哈希获取
func (r *verificationRepository) GetByTxHash(ctx context.Context, txHash string) (*domain.Verification, error) {
	var m model.TransactionVerification
	err := r.db(ctx).Where("tx_hash = ?", txHash).Take(&m).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.toDomain(&m), nil
}

// ListByNoteID 获取笔记的全部校验记录，按创建时间倒序
func (r *verificationRepository) ListByNoteID(ctx context.Context, noteID string) ([]*domain.Verification, error) {
	var ms []*model.TransactionVerification
	if err := r.db(ctx).Where("note_id = ?", noteID).Order("id DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return r.toDomainList(ms), nil
}

// ListNeedingRetry 获取待校验记录，重试次数少的优先
func (r *verificationRepository) ListNeedingRetry(ctx context.Context, limit int) ([]*domain.Verification, error) {
	var ms []*model.TransactionVerification
	q := r.db(ctx).
		Where("status IN ?", retryableStatuses).
		Where("retry_count < max_retries").
		Order("retry_count ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}
	return r.toDomainList(ms), nil
}

// ListExceeded 获取已达到重试上限但仍未终结的记录
func (r *verificationRepository) ListExceeded(ctx context.Context) ([]*domain.Verification, error) {
	var ms []*model.TransactionVerification
	err := r.db(ctx).
		Where("status IN ?", retryableStatuses).
		Where("retry_count >= max_retries").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return r.toDomainList(ms), nil
}

// CountByStatus 按状态统计
func (r *verificationRepository) CountByStatus(ctx context.Context) (map[domain.VerificationStatus]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db(ctx).Model(&model.TransactionVerification{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.VerificationStatus]int64, len(domain.AllVerificationStatuses))
	for _, s := range domain.AllVerificationStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[domain.VerificationStatus(row.Status)] = row.Total
	}
	return counts, nil
}
