// Package bridge connects the Go side to CIP-30 wallet extensions running in a browser
// page. The page is served by the local HTTP server and talks back over a websocket.
// Package bridge 通过本地页面和 websocket 把浏览器中的 CIP-30 钱包插件接入 Go 侧
package bridge

import (
	"encoding/json"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// 帧类型，格式为 Type|json
const (
	// FrameAuthorization 页面 → 服务: 页面 token; 服务 → 页面: 认证结果
	FrameAuthorization = "Authorization"
	// FrameHello 页面 → 服务: 当前注入的钱包插件
	FrameHello = "Hello"
	// FrameCall 服务 → 页面: 调用钱包方法
	FrameCall = "Call"
	// FrameResult 页面 → 服务: 调用结果
	FrameResult = "Result"
)

// 页面支持的钱包方法
const (
	MethodEnable           = "enable"
	MethodGetChangeAddress = "getChangeAddress"
	MethodGetUsedAddresses = "getUsedAddresses"
	MethodSignTx           = "signTx"
	MethodSubmitTx         = "submitTx"
)

// HelloFrame 页面宣告的钱包插件
type HelloFrame struct {
	Providers []string `json:"providers"`
}

// CallFrame 一次钱包调用
type CallFrame struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Method   string `json:"method"`
	Params   any    `json:"params,omitempty"`
}

// ResultError 页面上报的错误, Code 为 refused / sign_refused / failure
type ResultError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

// ResultFrame 页面返回的调用结果
type ResultFrame struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ResultError    `json:"error,omitempty"`
}

// AuthResult 认证结果
type AuthResult struct {
	Code    int    `json:"code"`
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// SignParams signTx 参数
type SignParams struct {
	Tx      any  `json:"tx"`
	Partial bool `json:"partial"`
}

// SubmitParams submitTx 参数
type SubmitParams struct {
	Tx string `json:"tx"`
}

// EncodeFrame 编码为 Type|json
func EncodeFrame(typ string, payload any) ([]byte, error) {
	body, err := sonic.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s frame", typ)
	}
	out := make([]byte, 0, len(typ)+1+len(body))
	out = append(out, typ...)
	out = append(out, '|')
	return append(out, body...), nil
}

// SplitFrame 按第一个 | 拆分帧类型和内容
func SplitFrame(raw string) (typ string, body string, ok bool) {
	index := strings.Index(raw, "|")
	if index == -1 {
		return "", "", false
	}
	return raw[:index], raw[index+1:], true
}
