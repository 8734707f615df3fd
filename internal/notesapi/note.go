// Package notesapi is the client for the external notes REST service (/api/notes).
// Package notesapi 外部笔记 REST 服务客户端
package notesapi

import (
	"bytes"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// ID note identifier assigned by the notes service; the service may encode it
// as a JSON number or a string
// ID 笔记服务分配的标识，服务端可能以数字或字符串返回
type ID string

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the note has not been persisted yet
func (id ID) IsZero() bool {
	return id == ""
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return errors.Wrapf(err, "note id %s", data)
	}
	*id = ID(data)
	return nil
}

// Note record owned by the notes service
// Note 笔记服务持有的笔记记录
type Note struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	ContentHash string `json:"contentHash,omitempty"`
	LastTxHash  string `json:"lastTxHash,omitempty"`
	OwnerWallet string `json:"ownerWallet,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// IsAnchored reports whether the note carries chain fields
func (n Note) IsAnchored() bool {
	return n.ContentHash != "" && n.LastTxHash != ""
}

// CreateRequest phase-1 body, never carries chain fields
// CreateRequest 第一阶段创建请求，不含链上字段
type CreateRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	OwnerWallet string `json:"ownerWallet,omitempty"`
}

// UpdateRequest PUT body
// UpdateRequest 更新请求
type UpdateRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	ContentHash string `json:"contentHash,omitempty"`
	LastTxHash  string `json:"lastTxHash,omitempty"`
	OwnerWallet string `json:"ownerWallet,omitempty"`
}
