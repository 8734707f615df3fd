package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/haierkeys/fast-note-anchor/internal/notesapi"
	"github.com/haierkeys/fast-note-anchor/internal/wallet"
	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"
	"github.com/haierkeys/fast-note-anchor/pkg/code"
)

// Signer signs and broadcasts anchor transactions, satisfied by *wallet.Gateway
// Signer 签名并广播锚定交易，由 *wallet.Gateway 实现
type Signer interface {
	SignAndSubmit(ctx context.Context, tx *wallet.UnsignedTx) (string, error)
}

// SessionSource hands out copies of the current wallet session
// SessionSource 提供当前钱包会话的副本
type SessionSource interface {
	Session() wallet.Session
}

// NoteDraft user input for a save
// NoteDraft 保存时的用户输入
type NoteDraft struct {
	// ID 为空表示新建
	ID string `json:"id"`
	// DraftKey 新建草稿的客户端标识，用于防重复提交
	DraftKey string `json:"draftKey"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

// IsNew reports whether the draft has not been persisted yet
func (d NoteDraft) IsNew() bool {
	return strings.TrimSpace(d.ID) == ""
}

// AnchorResult outcome of a successful ledger anchor
// AnchorResult 锚定成功的结果
type AnchorResult struct {
	Action        string         `json:"action"`
	NoteID        string         `json:"noteId"`
	TransactionID string         `json:"transactionId"`
	ContentHash   string         `json:"contentHash"`
	Owner         string         `json:"owner"`
	Note          *notesapi.Note `json:"note,omitempty"`
}

// PartialCreateError create failed after the note was persisted.
// The note exists without chain fields and can be anchored again with ResumeCreate.
// PartialCreateError 笔记已持久化但锚定未完成，可通过 ResumeCreate 续跑
type PartialCreateError struct {
	NoteID string
	Err    error
}

func (e *PartialCreateError) Error() string {
	return fmt.Sprintf("note %s saved but not anchored: %v", e.NoteID, e.Err)
}

func (e *PartialCreateError) Unwrap() error {
	return e.Err
}

func validationError(field string) error {
	return apperrors.NewAppError(code.ErrorValidation, nil).WithDetails(field + " must not be empty")
}

func requireSession(session wallet.Session) error {
	if !session.IsConnected() || session.AddressBech32 == "" {
		return apperrors.NewAppError(code.ErrorWalletNotConnected, nil)
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
