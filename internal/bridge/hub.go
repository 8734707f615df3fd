package bridge

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/wallet"
	pkgapp "github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"
	"github.com/haierkeys/fast-note-anchor/pkg/logger"
	"github.com/haierkeys/fast-note-anchor/pkg/metrics"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lxzan/gws"
	"go.uber.org/zap"
)

const (
	DefaultPingInterval = 25 * time.Second
	DefaultPingWait     = 40 * time.Second
	// DefaultCallTimeout 非交互调用的超时，signTx 等待用户确认不受此限制
	DefaultCallTimeout = 2 * time.Minute
)

// Config 桥接参数
type Config struct {
	PingInterval time.Duration
	PingWait     time.Duration
	CallTimeout  time.Duration
	GWSOption    gws.ServerOption
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PingWait <= 0 {
		c.PingWait = DefaultPingWait
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	return c
}

// Hub websocket 服务端, 同时作为钱包插件注册表
type Hub struct {
	tokens pkgapp.TokenManager
	logger *zap.Logger
	cfg    Config
	up     *gws.Upgrader

	mu    sync.RWMutex
	pages map[*gws.Conn]*page
	seq   atomic.Uint64
}

var _ wallet.Registry = (*Hub)(nil)
var _ gws.Event = (*Hub)(nil)

// NewHub 创建桥接服务, tokens 为 nil 时不校验页面身份
func NewHub(tokens pkgapp.TokenManager, logger *zap.Logger, cfg Config) *Hub {
	h := &Hub{
		tokens: tokens,
		logger: logger,
		cfg:    cfg.withDefaults(),
		pages:  make(map[*gws.Conn]*page),
	}
	h.up = gws.NewUpgrader(h, &h.cfg.GWSOption)
	return h
}

// Handler gin 处理函数, 升级为 websocket
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		socket, err := h.up.Upgrade(c.Writer, c.Request)
		if err != nil {
			h.logger.Error("bridge upgrade failed", zap.Error(err))
			return
		}
		p := newPage(socket, h.seq.Add(1), pkgapp.GetRequestIP(c))
		p.authorized = h.tokens == nil
		h.mu.Lock()
		h.pages[socket] = p
		metrics.BridgePages.Set(float64(len(h.pages)))
		h.mu.Unlock()
		go socket.ReadLoop()
	}
}

// Providers 所有已认证页面宣告的钱包插件, 去重排序
func (h *Hub) Providers(context.Context) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, p := range h.pages {
		for _, name := range p.providerList() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Lookup 找到宣告该插件的最新页面
func (h *Hub) Lookup(_ context.Context, name string) (wallet.Provider, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var found *page
	for _, p := range h.pages {
		if !p.has(name) {
			continue
		}
		if found == nil || p.seq > found.seq {
			found = p
		}
	}
	if found == nil {
		return nil, false
	}
	return &provider{hub: h, page: found, name: name}, true
}

// PageCount 当前连接的页面数
func (h *Hub) PageCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pages)
}

// Close 断开所有页面
func (h *Hub) Close() {
	h.mu.Lock()
	pages := make([]*page, 0, len(h.pages))
	for _, p := range h.pages {
		pages = append(pages, p)
	}
	h.mu.Unlock()
	for _, p := range pages {
		p.conn.WriteClose(1001, []byte("ServerShutdown"))
	}
}

func (h *Hub) get(conn *gws.Conn) *page {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pages[conn]
}

func (h *Hub) OnOpen(conn *gws.Conn) {
	_ = conn.SetDeadline(time.Now().Add(h.cfg.PingWait))
	h.logger.Info("bridge page connected", zap.Int("count", h.PageCount()))
}

func (h *Hub) OnClose(conn *gws.Conn, err error) {
	h.mu.Lock()
	p := h.pages[conn]
	delete(h.pages, conn)
	metrics.BridgePages.Set(float64(len(h.pages)))
	h.mu.Unlock()

	if p != nil {
		p.close()
		h.logger.Info("bridge page left",
			zap.String("page", p.id),
			zap.Strings("providers", p.providerList()),
			zap.Error(err))
	}
}

func (h *Hub) OnPing(conn *gws.Conn, payload []byte) {
	_ = conn.SetDeadline(time.Now().Add(h.cfg.PingWait))
	_ = conn.WritePong(payload)
}

func (h *Hub) OnPong(conn *gws.Conn, payload []byte) {
	_ = conn.SetDeadline(time.Now().Add(h.cfg.PingWait))
}

func (h *Hub) OnMessage(conn *gws.Conn, message *gws.Message) {
	defer message.Close()
	if message.Opcode != gws.OpcodeText {
		return
	}
	_ = conn.SetDeadline(time.Now().Add(h.cfg.PingWait))

	p := h.get(conn)
	if p == nil {
		return
	}

	typ, body, ok := SplitFrame(message.Data.String())
	if !ok {
		h.logger.Warn("bridge frame without type", zap.String("page", p.id))
		return
	}

	if typ == FrameAuthorization {
		h.authorize(p, body)
		return
	}
	if !p.isAuthorized() {
		h.reply(p, FrameAuthorization, code.ErrorInvalidAuthToken)
		return
	}

	switch typ {
	case FrameHello:
		var hello HelloFrame
		if err := sonic.UnmarshalString(body, &hello); err != nil {
			h.logger.Warn("bridge hello malformed", zap.String("page", p.id), zap.Error(err))
			return
		}
		p.setProviders(hello.Providers)
		h.logger.Info("bridge providers announced", zap.String("page", p.id), zap.Strings("providers", hello.Providers))
	case FrameResult:
		var res ResultFrame
		if err := sonic.UnmarshalString(body, &res); err != nil {
			h.logger.Warn("bridge result malformed", zap.String("page", p.id), zap.Error(err))
			return
		}
		if !p.deliver(&res) {
			h.logger.Debug("bridge result without caller", zap.String("page", p.id), zap.String("id", res.ID))
		}
	default:
		h.logger.Warn("bridge unknown frame", zap.String("page", p.id), zap.String("type", typ))
	}
}

func (h *Hub) authorize(p *page, token string) {
	if h.tokens != nil {
		if err := h.tokens.Validate(token, pkgapp.ScopeBridge); err != nil {
			h.logger.Warn("bridge authorization failed", zap.String("page", p.id), zap.String("ip", p.ip), zap.Error(err))
			h.reply(p, FrameAuthorization, code.ErrorInvalidAuthToken)
			p.conn.WriteClose(1000, []byte("AuthorizationFailed"))
			return
		}
	}
	p.authorize()
	h.reply(p, FrameAuthorization, code.Success)
	h.logger.Info("bridge page authorized", zap.String("page", p.id), zap.String("ip", p.ip))
	go p.pingLoop(h.cfg.PingInterval, h.logger)
}

func (h *Hub) reply(p *page, typ string, c *code.Code) {
	frame, err := EncodeFrame(typ, AuthResult{Code: c.Code(), Status: c.Status(), Message: c.Msg()})
	if err != nil {
		h.logger.Error("bridge reply", zap.Error(err))
		return
	}
	_ = p.conn.WriteMessage(gws.OpcodeText, frame)
}

// call 向页面发出调用并等待结果
func (h *Hub) call(ctx context.Context, p *page, providerName, method string, params any, out any) error {
	id := uuid.NewString()
	ch := p.register(id)
	defer p.unregister(id)

	frame, err := EncodeFrame(FrameCall, CallFrame{ID: id, Provider: providerName, Method: method, Params: params})
	if err != nil {
		return wallet.NewProviderError(string(wallet.ProviderFailure), err.Error())
	}
	if err := p.conn.WriteMessage(gws.OpcodeText, frame); err != nil {
		return wallet.NewProviderError(string(wallet.ProviderFailure), "write to wallet page: "+err.Error())
	}

	// signTx 需要用户操作，只在页面断开或 ctx 结束时放弃等待
	var timeout <-chan time.Time
	if method != MethodSignTx {
		timer := time.NewTimer(h.cfg.CallTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	h.logger.Debug("bridge call", zap.String(logger.FieldProvider, providerName), zap.String(logger.FieldMethod, method), zap.String("id", id))

	select {
	case res := <-ch:
		if res.Error != nil {
			return wallet.NewProviderError(res.Error.Code, res.Error.Info)
		}
		if out == nil || len(res.Data) == 0 {
			return nil
		}
		if err := sonic.Unmarshal(res.Data, out); err != nil {
			return wallet.NewProviderError(string(wallet.ProviderFailure), "malformed "+method+" result: "+err.Error())
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return wallet.NewProviderError(string(wallet.ProviderFailure), "wallet page disconnected")
	case <-timeout:
		return wallet.NewProviderError(string(wallet.ProviderFailure), method+" timed out")
	}
}
