package bridge

import (
	"context"

	"github.com/haierkeys/fast-note-anchor/internal/wallet"
)

// provider 某个页面中的一个钱包插件
type provider struct {
	hub  *Hub
	page *page
	name string
}

func (p *provider) Name() string { return p.name }

// Enable 请求插件授权, 用户拒绝时页面返回 refused
func (p *provider) Enable(ctx context.Context) (wallet.API, error) {
	if err := p.hub.call(ctx, p.page, p.name, MethodEnable, nil, nil); err != nil {
		return nil, err
	}
	return &api{provider: p}, nil
}

// api 已授权的插件句柄, 每个方法对应一次页面调用
type api struct {
	provider *provider
}

func (a *api) call(ctx context.Context, method string, params any, out any) error {
	return a.provider.hub.call(ctx, a.provider.page, a.provider.name, method, params, out)
}

func (a *api) ChangeAddress(ctx context.Context) (string, error) {
	var hex string
	if err := a.call(ctx, MethodGetChangeAddress, nil, &hex); err != nil {
		return "", err
	}
	return hex, nil
}

func (a *api) UsedAddresses(ctx context.Context) ([]string, error) {
	var used []string
	if err := a.call(ctx, MethodGetUsedAddresses, nil, &used); err != nil {
		return nil, err
	}
	return used, nil
}

// SignTx 页面负责构建交易（输出与 674 元数据）并调用插件签名
func (a *api) SignTx(ctx context.Context, tx *wallet.UnsignedTx, partial bool) (wallet.SignedTx, error) {
	var signed string
	if err := a.call(ctx, MethodSignTx, SignParams{Tx: tx, Partial: partial}, &signed); err != nil {
		return "", err
	}
	return wallet.SignedTx(signed), nil
}

func (a *api) SubmitTx(ctx context.Context, tx wallet.SignedTx) (string, error) {
	var txHash string
	if err := a.call(ctx, MethodSubmitTx, SubmitParams{Tx: string(tx)}, &txHash); err != nil {
		return "", err
	}
	return txHash, nil
}
