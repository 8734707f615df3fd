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

// anchorSagaRepository 实现 domain.AnchorSagaRepository 接口
type anchorSagaRepository struct {
	dao *Dao
}

// NewAnchorSagaRepository 创建 AnchorSagaRepository 实例
func NewAnchorSagaRepository(dao *Dao) domain.AnchorSagaRepository {
	return &anchorSagaRepository{dao: dao}
}

func (r *anchorSagaRepository) db(ctx context.Context) *gorm.DB {
	return r.dao.UseWithOnceFunc(func(g *gorm.DB) {
		if err := model.AutoMigrate(g, "AnchorSaga"); err != nil {
			r.dao.logger.Error("auto migrate failed", zap.String("table", "AnchorSaga"), zap.Error(err))
		}
	}, "anchor_saga").WithContext(ctx)
}

// toDomain 将数据库模型转换为领域模型
func (r *anchorSagaRepository) toDomain(m *model.AnchorSaga) *domain.AnchorSaga {
	if m == nil {
		return nil
	}
	return &domain.AnchorSaga{
		ID:          m.ID,
		DraftKey:    m.DraftKey,
		NoteID:      m.NoteID,
		Title:       m.Title,
		Content:     m.Content,
		OwnerWallet: m.OwnerWallet,
		State:       domain.SagaState(m.State),
		ContentHash: m.ContentHash,
		TxHash:      m.TxHash,
		Attempts:    m.Attempts,
		LastError:   m.LastError,
		CreatedAt:   time.Time(m.CreatedAt),
		UpdatedAt:   time.Time(m.UpdatedAt),
	}
}

// toModel 将领域模型转换为数据库模型
func (r *anchorSagaRepository) toModel(s *domain.AnchorSaga) *model.AnchorSaga {
	if s == nil {
		return nil
	}
	return &model.AnchorSaga{
		ID:          s.ID,
		DraftKey:    s.DraftKey,
		NoteID:      s.NoteID,
		Title:       s.Title,
		Content:     s.Content,
		OwnerWallet: s.OwnerWallet,
		State:       string(s.State),
		ContentHash: s.ContentHash,
		TxHash:      s.TxHash,
		Attempts:    s.Attempts,
		LastError:   s.LastError,
		CreatedAt:   timex.Time(s.CreatedAt),
		UpdatedAt:   timex.Time(s.UpdatedAt),
	}
}

// Create 创建流程记录
func (r *anchorSagaRepository) Create(ctx context.Context, saga *domain.AnchorSaga) (*domain.AnchorSaga, error) {
	m := r.toModel(saga)
	now := timex.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	if err := r.db(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// Update 更新流程记录（全字段保存）
func (r *anchorSagaRepository) Update(ctx context.Context, saga *domain.AnchorSaga) (*domain.AnchorSaga, error) {
	m := r.toModel(saga)
	m.UpdatedAt = timex.Now()
	if err := r.db(ctx).Save(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// GetByNoteID 根据笔记 ID 获取流程记录
func (r *anchorSagaRepository) GetByNoteID(ctx context.Context, noteID string) (*domain.AnchorSaga, error) {
	var m model.AnchorSaga
	err := r.db(ctx).Where(&model.AnchorSaga{NoteID: noteID}).Take(&m).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.toDomain(&m), nil
}

// ListByState 按状态列出流程记录，按创建时间正序
func (r *anchorSagaRepository) ListByState(ctx context.Context, state domain.SagaState) ([]*domain.AnchorSaga, error) {
	var ms []*model.AnchorSaga
	if err := r.db(ctx).Where(&model.AnchorSaga{State: string(state)}).Order("id ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	list := make([]*domain.AnchorSaga, 0, len(ms))
	for _, m := range ms {
		list = append(list, r.toDomain(m))
	}
	return list, nil
}

// DeleteByNoteID 删除流程记录
func (r *anchorSagaRepository) DeleteByNoteID(ctx context.Context, noteID string) error {
	if noteID == "" {
		return nil
	}
	return r.db(ctx).Where(&model.AnchorSaga{NoteID: noteID}).Delete(&model.AnchorSaga{}).Error
}
