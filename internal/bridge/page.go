package bridge

import (
	"strconv"
	"sync"
	"time"

	"github.com/lxzan/gws"
	"go.uber.org/zap"
)

// page 一个已连接的浏览器页面
type page struct {
	id   string
	seq  uint64
	ip   string
	conn *gws.Conn

	mu         sync.Mutex
	authorized bool
	providers  []string
	pending    map[string]chan *ResultFrame

	closed    chan struct{}
	closeOnce sync.Once
}

func newPage(conn *gws.Conn, seq uint64, ip string) *page {
	return &page{
		id:      "page-" + strconv.FormatUint(seq, 10),
		seq:     seq,
		ip:      ip,
		conn:    conn,
		pending: make(map[string]chan *ResultFrame),
		closed:  make(chan struct{}),
	}
}

func (p *page) authorize() {
	p.mu.Lock()
	p.authorized = true
	p.mu.Unlock()
}

func (p *page) isAuthorized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authorized
}

// setProviders 每次 Hello 整体替换插件列表
func (p *page) setProviders(names []string) {
	list := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			list = append(list, n)
		}
	}
	p.mu.Lock()
	p.providers = list
	p.mu.Unlock()
}

// providerList 未认证页面不参与注册表
func (p *page) providerList() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.authorized {
		return nil
	}
	return append([]string(nil), p.providers...)
}

func (p *page) has(name string) bool {
	for _, n := range p.providerList() {
		if n == name {
			return true
		}
	}
	return false
}

func (p *page) register(id string) <-chan *ResultFrame {
	ch := make(chan *ResultFrame, 1)
	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	return ch
}

func (p *page) unregister(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// deliver 把结果交给等待中的调用方, 返回是否有人等待
func (p *page) deliver(res *ResultFrame) bool {
	p.mu.Lock()
	ch, ok := p.pending[res.ID]
	delete(p.pending, res.ID)
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- res
	return true
}

func (p *page) close() {
	p.closeOnce.Do(func() { close(p.closed) })
}

// pingLoop 定期发送 Ping, 页面关闭时退出
func (p *page) pingLoop(interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.closed:
			return
		case <-ticker.C:
			if err := p.conn.WritePing(nil); err != nil {
				logger.Debug("bridge ping failed", zap.String("page", p.id), zap.Error(err))
				return
			}
		}
	}
}
