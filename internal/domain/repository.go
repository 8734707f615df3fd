// Package domain 定义领域模型和接口
package domain

import (
	"context"
	"errors"
)

// WalletKVRepository 钱包键值仓储接口
type WalletKVRepository interface {
	// Get 获取键值，不存在时 ok 为 false
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set 写入键值
	Set(ctx context.Context, key, value string) error

	// Delete 删除键值
	Delete(ctx context.Context, key string) error
}

// AnchorSagaRepository 创建流程日志仓储接口
type AnchorSagaRepository interface {
	// Create 创建流程记录
	Create(ctx context.Context, saga *AnchorSaga) (*AnchorSaga, error)

	// Update 更新流程记录
	Update(ctx context.Context, saga *AnchorSaga) (*AnchorSaga, error)

	// GetByNoteID 根据笔记 ID 获取流程记录
	GetByNoteID(ctx context.Context, noteID string) (*AnchorSaga, error)

	// ListByState 按状态列出流程记录
	ListByState(ctx context.Context, state SagaState) ([]*AnchorSaga, error)

	// DeleteByNoteID 删除流程记录
	DeleteByNoteID(ctx context.Context, noteID string) error
}

// VerificationRepository 交易校验仓储接口
type VerificationRepository interface {
	// Create 创建校验记录
	Create(ctx context.Context, v *Verification) (*Verification, error)

	// Update 更新校验记录
	Update(ctx context.Context, v *Verification) (*Verification, error)

	// GetByID 根据 ID 获取
	GetByID(ctx context.Context, id int64) (*Verification, error)

	// GetByTxHash 根据交易哈希获取
	GetByTxHash(ctx context.Context, txHash string) (*Verification, error)

	// ListByNoteID 获取笔记的全部校验记录，按创建时间倒序
	ListByNoteID(ctx context.Context, noteID string) ([]*Verification, error)

	// ListNeedingRetry 获取 PENDING/FAILED 且未超过重试次数的记录
	ListNeedingRetry(ctx context.Context, limit int) ([]*Verification, error)

	// ListExceeded 获取 PENDING/FAILED 且已达到重试上限的记录
	ListExceeded(ctx context.Context) ([]*Verification, error)

	// CountByStatus 按状态统计
	CountByStatus(ctx context.Context) (map[VerificationStatus]int64, error)
}

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")
