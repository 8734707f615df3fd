package domain

import "time"

// VerificationStatus 交易校验状态
type VerificationStatus string

const (
	VerificationPending    VerificationStatus = "PENDING"
	VerificationProcessing VerificationStatus = "PROCESSING"
	VerificationVerified   VerificationStatus = "VERIFIED"
	VerificationFailed     VerificationStatus = "FAILED"
	VerificationExpired    VerificationStatus = "EXPIRED"
)

// AllVerificationStatuses 统计时使用的全部状态
var AllVerificationStatuses = []VerificationStatus{
	VerificationPending,
	VerificationProcessing,
	VerificationVerified,
	VerificationFailed,
	VerificationExpired,
}

// DefaultMaxRetries 默认最大重试次数
const DefaultMaxRetries = 10

// Verification 交易校验领域模型
type Verification struct {
	ID               int64              `json:"id"`
	NoteID           string             `json:"noteId"`
	TxHash           string             `json:"txHash"`
	Action           string             `json:"action"`
	ContentHash      string             `json:"contentHash"`
	OwnerWallet      string             `json:"ownerWallet,omitempty"`
	Status           VerificationStatus `json:"status"`
	RetryCount       int                `json:"retryCount"`
	MaxRetries       int                `json:"maxRetries"`
	LastError        string             `json:"lastError,omitempty"`
	VerifiedAt       time.Time          `json:"verifiedAt,omitzero"`
	ChainContentHash string             `json:"chainContentHash,omitempty"`
	ChainAction      string             `json:"chainAction,omitempty"`
	ChainOwner       string             `json:"chainOwner,omitempty"`
	HashMatch        *bool              `json:"hashMatch,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// ExceededRetries 是否已达到最大重试次数
func (v *Verification) ExceededRetries() bool {
	return v.RetryCount >= v.MaxRetries
}

// IsTerminal 是否为终态
func (v *Verification) IsTerminal() bool {
	return v.Status == VerificationVerified || v.Status == VerificationExpired
}
