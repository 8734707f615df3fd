package dao

import (
	"context"

	"github.com/haierkeys/fast-note-anchor/internal/domain"
	"github.com/haierkeys/fast-note-anchor/internal/model"
	"github.com/haierkeys/fast-note-anchor/pkg/timex"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// walletKVRepository 实现 domain.WalletKVRepository 接口
type walletKVRepository struct {
	dao *Dao
}

// NewWalletKVRepository 创建 WalletKVRepository 实例
func NewWalletKVRepository(dao *Dao) domain.WalletKVRepository {
	return &walletKVRepository{dao: dao}
}

func (r *walletKVRepository) db(ctx context.Context) *gorm.DB {
	return r.dao.UseWithOnceFunc(func(g *gorm.DB) {
		if err := model.AutoMigrate(g, "WalletKV"); err != nil {
			r.dao.logger.Error("auto migrate failed", zap.String("table", "WalletKV"), zap.Error(err))
		}
	}, "wallet_kv").WithContext(ctx)
}

// Get 获取键值
func (r *walletKVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var m model.WalletKV
	err := r.db(ctx).Where(keyEq(key)).Take(&m).Error
	if notFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m.Value, true, nil
}

// Set 写入键值，存在则覆盖
func (r *walletKVRepository) Set(ctx context.Context, key, value string) error {
	m := &model.WalletKV{Key: key, Value: value, UpdatedAt: timex.Now()}
	return r.db(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(m).Error
}

// Delete 删除键值，不存在时不报错
func (r *walletKVRepository) Delete(ctx context.Context, key string) error {
	return r.db(ctx).Where(keyEq(key)).Delete(&model.WalletKV{}).Error
}

// keyEq key 是部分数据库的保留字，交给方言加引号
func keyEq(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}
