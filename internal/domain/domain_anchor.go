// Package domain 定义领域模型和接口
package domain

import "time"

// SagaState 两阶段创建的持久化状态
type SagaState string

const (
	// SagaPersistedUnanchored 笔记已持久化但尚未写回链上字段
	SagaPersistedUnanchored SagaState = "PersistedUnanchored"
	// SagaPersistedAnchored 链上字段已写回，流程结束
	SagaPersistedAnchored SagaState = "PersistedAnchored"
)

// AnchorSaga 一次创建流程的本地日志
type AnchorSaga struct {
	ID          int64
	DraftKey    string
	NoteID      string
	Title       string
	Content     string
	OwnerWallet string
	State       SagaState
	// ContentHash 和 TxHash 在交易提交成功后记录，写回失败时用于续跑
	ContentHash string
	TxHash      string
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAnchored 判断流程是否已完成
func (s *AnchorSaga) IsAnchored() bool {
	return s.State == SagaPersistedAnchored
}

// IsSubmitted 判断交易是否已提交但尚未写回
func (s *AnchorSaga) IsSubmitted() bool {
	return s.State == SagaPersistedUnanchored && s.TxHash != ""
}
