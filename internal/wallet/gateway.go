package wallet

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"
	"github.com/haierkeys/fast-note-anchor/pkg/code"
	"github.com/haierkeys/fast-note-anchor/pkg/logger"

	"go.uber.org/zap"
)

// Config gateway tuning
// Config 网关参数
type Config struct {
	// DiscoveryAttempts maximum discovery polls before giving up
	DiscoveryAttempts int
	// DiscoveryInterval first wait between polls
	DiscoveryInterval time.Duration
	// DiscoveryMaxInterval upper bound of the backoff wait
	DiscoveryMaxInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.DiscoveryAttempts <= 0 {
		c.DiscoveryAttempts = 10
	}
	if c.DiscoveryInterval <= 0 {
		c.DiscoveryInterval = 200 * time.Millisecond
	}
	if c.DiscoveryMaxInterval < c.DiscoveryInterval {
		c.DiscoveryMaxInterval = 10 * c.DiscoveryInterval
	}
	return c
}

// Gateway owns the single process-wide wallet session
// Gateway 持有进程唯一的钱包会话，只有它能修改会话
type Gateway struct {
	registry Registry
	store    KVStore
	logger   *zap.Logger
	cfg      Config

	mu        sync.RWMutex
	state     State
	session   Session
	epoch     uint64
	providers []string
}

// NewGateway 创建钱包网关
func NewGateway(registry Registry, store KVStore, logger *zap.Logger, cfg Config) *Gateway {
	return &Gateway{
		registry: registry,
		store:    store,
		logger:   logger,
		cfg:      cfg.withDefaults(),
	}
}

// State returns the current connection state
func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Session returns a copy of the current session
// Session 返回当前会话的副本
func (g *Gateway) Session() Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session
}

// Connect requests consent from the named provider and reads both address encodings.
// A second call while a connection is in flight is rejected.
// Connect 通过指定钱包请求授权并读取两种地址编码，连接中再次调用会被拒绝
func (g *Gateway) Connect(ctx context.Context, name string) (Session, error) {
	g.mu.Lock()
	if g.state == Connecting {
		g.mu.Unlock()
		return Session{}, apperrors.NewAppError(code.ErrorConnectInProgress, nil)
	}
	if g.state == Connected {
		// switching wallets drops the current session first
		g.session = Session{}
		g.state = Disconnected
	}
	g.epoch++
	epoch := g.epoch
	g.state = Connecting
	g.session = Session{ProviderName: name, Connecting: true}
	g.mu.Unlock()

	sess, err := g.open(ctx, name)

	g.mu.Lock()
	defer g.mu.Unlock()

	if epoch != g.epoch {
		// Disconnect won the race
		return Session{}, apperrors.NewAppErrorWithMessage(code.ErrorUserRejected.Code(), "connection cancelled", err)
	}
	if err != nil {
		g.state = Disconnected
		g.session = Session{}
		g.logger.Warn("wallet connect failed", zap.String(logger.FieldProvider, name), zap.Error(err))
		return Session{}, err
	}

	g.state = Connected
	g.session = sess
	if err := g.store.Set(ctx, KeyConnectedWallet, name); err != nil {
		g.logger.Warn("persist connected wallet failed", zap.String(logger.FieldProvider, name), zap.Error(err))
	}
	g.logger.Info("wallet connected",
		zap.String(logger.FieldProvider, name),
		zap.String(logger.FieldAddress, sess.AddressBech32))
	return sess, nil
}

func (g *Gateway) open(ctx context.Context, name string) (Session, error) {
	provider, ok := g.registry.Lookup(ctx, name)
	if !ok {
		return Session{}, apperrors.NewAppError(code.ErrorProviderNotFound, nil).WithDetails(name)
	}

	api, err := provider.Enable(ctx)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Code == ProviderRefused {
			return Session{}, apperrors.NewAppError(code.ErrorUserRejected, err)
		}
		if ctx.Err() != nil {
			return Session{}, apperrors.NewAppError(code.ErrorUserRejected, ctx.Err())
		}
		return Session{}, apperrors.NewAppError(code.ErrorProviderFailure, err)
	}

	hex, err := api.ChangeAddress(ctx)
	if err != nil {
		return Session{}, apperrors.NewAppError(code.ErrorAddressRetrieval, err)
	}
	if hex == "" {
		return Session{}, apperrors.NewAppError(code.ErrorAddressRetrieval, nil).WithDetails("empty change address")
	}

	used, err := api.UsedAddresses(ctx)
	if err != nil {
		return Session{}, apperrors.NewAppError(code.ErrorAddressRetrieval, err)
	}
	if len(used) == 0 || used[0] == "" {
		return Session{}, apperrors.NewAppError(code.ErrorAddressRetrieval, nil).WithDetails("no used address")
	}

	return Session{
		ProviderName:  name,
		Address:       hex,
		AddressBech32: used[0],
		Connected:     true,
		api:           api,
	}, nil
}

// Disconnect clears the session and the auto-reconnect record. Safe to call at any time.
// Disconnect 清除会话和自动重连记录，可重复调用
func (g *Gateway) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.epoch++
	name := g.session.ProviderName
	g.state = Disconnected
	g.session = Session{}

	if err := g.store.Delete(ctx, KeyConnectedWallet); err != nil {
		return apperrors.NewAppError(code.ErrorServerInternal, err)
	}
	if name != "" {
		g.logger.Info("wallet disconnected", zap.String(logger.FieldProvider, name))
	}
	return nil
}

// AutoReconnect silently restores the persisted session at startup.
// Any failure clears the record and leaves the gateway disconnected.
// AutoReconnect 启动时静默恢复上次的会话，失败则清除记录并保持断开
func (g *Gateway) AutoReconnect(ctx context.Context) (Session, bool) {
	name, ok, err := g.store.Get(ctx, KeyConnectedWallet)
	if err != nil {
		g.logger.Warn("read connected wallet failed", zap.Error(err))
		return Session{}, false
	}
	if !ok || name == "" {
		return Session{}, false
	}

	names, err := g.Discover(ctx)
	if err != nil {
		// cancelled, keep the record for the next start
		g.logger.Info("auto reconnect cancelled", zap.String(logger.FieldProvider, name), zap.Error(err))
		return Session{}, false
	}
	if !contains(names, name) {
		g.logger.Info("auto reconnect skipped, provider not available", zap.String(logger.FieldProvider, name))
		g.forget(ctx)
		return Session{}, false
	}

	sess, err := g.Connect(ctx, name)
	if err != nil {
		if errors.Is(err, apperrors.ErrConnectInProgress) {
			return Session{}, false
		}
		g.logger.Info("auto reconnect failed", zap.String(logger.FieldProvider, name), zap.Error(err))
		g.forget(ctx)
		return Session{}, false
	}
	return sess, true
}

func (g *Gateway) forget(ctx context.Context) {
	if err := g.store.Delete(ctx, KeyConnectedWallet); err != nil {
		g.logger.Warn("clear connected wallet failed", zap.Error(err))
	}
}

// SignAndSubmit signs tx with the connected provider and broadcasts it
// SignAndSubmit 使用已连接钱包签名并广播交易
func (g *Gateway) SignAndSubmit(ctx context.Context, tx *UnsignedTx) (string, error) {
	g.mu.RLock()
	api := g.session.api
	connected := g.state == Connected
	provider := g.session.ProviderName
	g.mu.RUnlock()

	if !connected || api == nil {
		return "", apperrors.NewAppError(code.ErrorNoActiveSession, nil)
	}

	signed, err := api.SignTx(ctx, tx, true)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && (pe.Code == ProviderSignRefused || pe.Code == ProviderRefused) {
			return "", apperrors.NewAppError(code.ErrorSigningRejected, err)
		}
		if ctx.Err() != nil {
			return "", apperrors.NewAppError(code.ErrorSigningRejected, ctx.Err())
		}
		// building failures (insufficient funds, invalid tx) surface as submission errors
		return "", apperrors.NewAppError(code.ErrorSubmission, err)
	}

	txHash, err := api.SubmitTx(ctx, signed)
	if err != nil {
		return "", apperrors.NewAppError(code.ErrorSubmission, err)
	}
	if txHash == "" {
		return "", apperrors.NewAppError(code.ErrorSubmission, nil).WithDetails("empty transaction id")
	}

	g.logger.Info("transaction submitted", zap.String(logger.FieldProvider, provider), zap.String(logger.FieldTxHash, txHash))
	return txHash, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
