// Package model 定义数据模型
package model

import (
	"github.com/haierkeys/fast-note-anchor/pkg/timex"

	"gorm.io/gorm"
)

// WalletKV 钱包持久化键值（自动重连记录等）
type WalletKV struct {
	Key       string     `gorm:"column:key;primaryKey;size:128" json:"key"`
	Value     string     `gorm:"column:value;type:text" json:"value"`
	UpdatedAt timex.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (*WalletKV) TableName() string {
	return "wallet_kv"
}

// AnchorSaga 两阶段创建流程的本地日志
type AnchorSaga struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DraftKey    string     `gorm:"column:draft_key;size:64;index" json:"draftKey"`
	NoteID      string     `gorm:"column:note_id;size:64;uniqueIndex" json:"noteId"`
	Title       string     `gorm:"column:title;size:512" json:"title"`
	Content     string     `gorm:"column:content;type:text" json:"content"`
	OwnerWallet string     `gorm:"column:owner_wallet;size:128" json:"ownerWallet"`
	State       string     `gorm:"column:state;size:32;index" json:"state"`
	ContentHash string     `gorm:"column:content_hash;size:64" json:"contentHash"`
	TxHash      string     `gorm:"column:tx_hash;size:64" json:"txHash"`
	Attempts    int        `gorm:"column:attempts;default:0" json:"attempts"`
	LastError   string     `gorm:"column:last_error;type:text" json:"lastError"`
	CreatedAt   timex.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   timex.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (*AnchorSaga) TableName() string {
	return "anchor_saga"
}

// TransactionVerification 上链交易校验记录
type TransactionVerification struct {
	ID               int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	NoteID           string     `gorm:"column:note_id;size:64;index" json:"noteId"`
	TxHash           string     `gorm:"column:tx_hash;size:64;uniqueIndex" json:"txHash"`
	Action           string     `gorm:"column:action;size:16" json:"action"`
	ContentHash      string     `gorm:"column:content_hash;size:64" json:"contentHash"`
	OwnerWallet      string     `gorm:"column:owner_wallet;size:128" json:"ownerWallet"`
	Status           string     `gorm:"column:status;size:16;index" json:"status"`
	RetryCount       int        `gorm:"column:retry_count;default:0" json:"retryCount"`
	MaxRetries       int        `gorm:"column:max_retries;default:10" json:"maxRetries"`
	LastError        string     `gorm:"column:last_error;type:text" json:"lastError"`
	VerifiedAt       timex.Time `gorm:"column:verified_at" json:"verifiedAt"`
	ChainContentHash string     `gorm:"column:chain_content_hash;size:64" json:"chainContentHash"`
	ChainAction      string     `gorm:"column:chain_action;size:16" json:"chainAction"`
	ChainOwner       string     `gorm:"column:chain_owner;size:128" json:"chainOwner"`
	HashMatch        *bool      `gorm:"column:hash_match" json:"hashMatch"`
	CreatedAt        timex.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt        timex.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (*TransactionVerification) TableName() string {
	return "transaction_verification"
}

// AutoMigrate 按名称迁移表结构
func AutoMigrate(db *gorm.DB, key string) error {
	switch key {
	case "WalletKV":
		return db.AutoMigrate(&WalletKV{})
	case "AnchorSaga":
		return db.AutoMigrate(&AnchorSaga{})
	case "TransactionVerification":
		return db.AutoMigrate(&TransactionVerification{})
	}
	return nil
}

// AutoMigrateAll 迁移全部表
func AutoMigrateAll(db *gorm.DB) error {
	for _, key := range []string{"WalletKV", "AnchorSaga", "TransactionVerification"} {
		if err := AutoMigrate(db, key); err != nil {
			return err
		}
	}
	return nil
}
