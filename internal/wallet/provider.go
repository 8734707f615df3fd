// Package wallet abstracts browser wallet extensions (CIP-30 providers) behind a
// process-wide gateway that owns the connected session.
// Package wallet 将浏览器钱包插件（CIP-30）抽象为进程级网关，网关独占当前会话
package wallet

import (
	"context"
	"fmt"
)

// KeyConnectedWallet durable storage key holding the last connected provider name
// KeyConnectedWallet 持久化存储中记录上次连接钱包名称的键
const KeyConnectedWallet = "connectedWallet"

// Provider a wallet extension injected by the host environment
// Provider 宿主环境注入的钱包插件
type Provider interface {
	Name() string
	// Enable asks the user for consent and returns the wallet API handle
	// Enable 请求用户授权并返回钱包 API 句柄
	Enable(ctx context.Context) (API, error)
}

// API narrow capability set every provider adapter must satisfy
// API 每个钱包适配器必须实现的能力接口
type API interface {
	// ChangeAddress returns the raw hex change address
	ChangeAddress(ctx context.Context) (string, error)
	// UsedAddresses returns bech32 addresses already used by the account
	UsedAddresses(ctx context.Context) ([]string, error)
	// SignTx builds and signs tx; partial allows witnesses for a subset of inputs
	SignTx(ctx context.Context, tx *UnsignedTx, partial bool) (SignedTx, error)
	// SubmitTx broadcasts a signed transaction and returns its id
	SubmitTx(ctx context.Context, tx SignedTx) (string, error)
}

// Registry providers currently injected by the host
// Registry 宿主当前注入的钱包插件集合
type Registry interface {
	Providers(ctx context.Context) ([]string, error)
	Lookup(ctx context.Context, name string) (Provider, bool)
}

// KVStore durable client-side key/value storage
// KVStore 客户端持久化键值存储
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Output a value-bearing transaction output
// Output 携带金额的交易输出
type Output struct {
	Address  string `json:"address"`
	Lovelace uint64 `json:"lovelace"`
}

// UnsignedTx transaction description handed to the provider for building and signing
// UnsignedTx 交给钱包构建并签名的交易描述
type UnsignedTx struct {
	Outputs  []Output       `json:"outputs"`
	Metadata map[uint64]any `json:"metadata"`
}

// SignedTx signed transaction in CBOR hex
// SignedTx CBOR 十六进制表示的已签名交易
type SignedTx string

// ProviderErrorCode error classes reported by provider adapters
// ProviderErrorCode 钱包适配器上报的错误分类
type ProviderErrorCode string

const (
	// ProviderRefused the user declined access
	ProviderRefused ProviderErrorCode = "refused"
	// ProviderSignRefused the user declined to sign
	ProviderSignRefused ProviderErrorCode = "sign_refused"
	// ProviderFailure any other provider failure
	ProviderFailure ProviderErrorCode = "failure"
)

// ProviderError error raised at the adapter boundary
// ProviderError 适配器边界抛出的错误
type ProviderError struct {
	Code ProviderErrorCode
	Info string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet provider %s: %s", e.Code, e.Info)
}

// NewProviderError 创建适配器错误，未知代码归为 ProviderFailure
func NewProviderError(c string, info string) *ProviderError {
	switch ProviderErrorCode(c) {
	case ProviderRefused, ProviderSignRefused:
		return &ProviderError{Code: ProviderErrorCode(c), Info: info}
	}
	return &ProviderError{Code: ProviderFailure, Info: info}
}
