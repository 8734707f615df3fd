// Package metadata builds the transaction metadata that anchors a note on chain
// Package metadata 构建用于笔记上链锚定的交易元数据
package metadata

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const (
	// Label metadata label that namespaces this application's annotations
	// Label 本应用在交易元数据中使用的标签
	Label uint64 = 674

	// MaxStringBytes ledger limit for a single metadata string
	// MaxStringBytes 单个元数据字符串的链上长度上限
	MaxStringBytes = 64

	// NewNoteID placeholder used before the persistence service assigns an id
	// NewNoteID 持久化服务分配 ID 之前的占位符
	NewNoteID = "new"
)

// Action anchored action type
// Action 锚定动作类型
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Valid reports whether a is one of the known actions
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// AnchorRequest value object describing one anchoring action
// AnchorRequest 描述一次锚定动作的值对象
type AnchorRequest struct {
	Action    Action
	NoteID    string
	Content   string
	Owner     string
	Timestamp time.Time
}

// Metadata label 674 payload, field order is fixed so the JSON encoding is deterministic
// Metadata 标签 674 的内容，字段顺序固定以保证 JSON 编码确定
type Metadata struct {
	Action      Value `json:"action"`
	NoteID      Value `json:"noteId"`
	ContentHash Value `json:"contentHash"`
	Owner       Value `json:"owner"`
	Timestamp   Value `json:"timestamp"`
}

// Format converts an anchor request and its content hash into ledger-safe metadata
// Format 将锚定请求与内容哈希转换为链上安全的元数据
func Format(req AnchorRequest, contentHash string) Metadata {
	noteID := req.NoteID
	if noteID == "" {
		noteID = NewNoteID
	}
	return Metadata{
		Action:      Chunk(string(req.Action)),
		NoteID:      Chunk(noteID),
		ContentHash: Chunk(contentHash),
		Owner:       Chunk(req.Owner),
		Timestamp:   Chunk(strconv.FormatInt(req.Timestamp.UnixMilli(), 10)),
	}
}

// Encode returns the deterministic JSON form of m
// Encode 返回 m 的确定性 JSON 编码
func (m Metadata) Encode() ([]byte, error) {
	return sonic.ConfigStd.Marshal(m)
}

// Parse reads label 674 JSON metadata as returned by a chain explorer
// Parse 解析链浏览器返回的标签 674 JSON 元数据
func Parse(raw any) (Metadata, error) {
	var m Metadata
	fields, ok := raw.(map[string]any)
	if !ok {
		return m, errors.Errorf("metadata: expected object, got %T", raw)
	}

	targets := map[string]*Value{
		"action":      &m.Action,
		"noteId":      &m.NoteID,
		"contentHash": &m.ContentHash,
		"owner":       &m.Owner,
		"timestamp":   &m.Timestamp,
	}
	for key, dst := range targets {
		v, exists := fields[key]
		if !exists {
			continue
		}
		parsed, err := valueOf(v)
		if err != nil {
			return m, errors.Wrapf(err, "metadata: field %s", key)
		}
		*dst = parsed
	}
	return m, nil
}

// Value a metadata string, stored as ordered chunks of at most MaxStringBytes each
// Value 元数据字符串，按顺序存储为不超过 MaxStringBytes 的分块
type Value struct {
	chunks []string
}

// Chunk splits s into ordered pieces that fit the ledger string limit.
// A string that already fits is kept as a single piece.
// Chunk 将 s 拆分为符合链上长度限制的有序分块，未超限的字符串保持原样
func Chunk(s string) Value {
	if len(s) <= MaxStringBytes {
		return Value{chunks: []string{s}}
	}

	chunks := make([]string, 0, len(s)/MaxStringBytes+1)
	start := 0
	for i := 0; i < len(s); {
		_, n := utf8.DecodeRuneInString(s[i:])
		// never split a rune across two chunks
		if i+n-start > MaxStringBytes {
			chunks = append(chunks, s[start:i])
			start = i
		}
		i += n
	}
	chunks = append(chunks, s[start:])
	return Value{chunks: chunks}
}

// IsList reports whether the value was split
func (v Value) IsList() bool {
	return len(v.chunks) > 1
}

// Chunks returns a copy of the stored pieces
func (v Value) Chunks() []string {
	out := make([]string, len(v.chunks))
	copy(out, v.chunks)
	return out
}

// String joins the chunks back into the original string
func (v Value) String() string {
	return strings.Join(v.chunks, "")
}

// MarshalJSON encodes a single chunk as a string and several chunks as a list
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.chunks) > 1 {
		return sonic.ConfigStd.Marshal(v.chunks)
	}
	if len(v.chunks) == 0 {
		return []byte(`""`), nil
	}
	return sonic.ConfigStd.Marshal(v.chunks[0])
}

// UnmarshalJSON accepts either a string or a list of strings
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := sonic.ConfigStd.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := valueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func valueOf(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{chunks: []string{""}}, nil
	case string:
		return Value{chunks: []string{t}}, nil
	case []string:
		return Value{chunks: append([]string(nil), t...)}, nil
	case []any:
		chunks := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return Value{}, errors.Errorf("chunk %d is %T, want string", i, item)
			}
			chunks = append(chunks, s)
		}
		return Value{chunks: chunks}, nil
	case float64:
		return Value{chunks: []string{strconv.FormatFloat(t, 'f', -1, 64)}}, nil
	case int64:
		return Value{chunks: []string{strconv.FormatInt(t, 10)}}, nil
	case bool:
		return Value{chunks: []string{strconv.FormatBool(t)}}, nil
	}
	return Value{}, errors.Errorf("unsupported metadata value %T", raw)
}
