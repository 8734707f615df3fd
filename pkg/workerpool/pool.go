// Package workerpool 提供有界并发的任务池
// Bounded goroutine pool used by background verification batches.
package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrPoolFull 任务队列已满
	ErrPoolFull = errors.New("worker pool queue is full")
	// ErrPoolClosed 任务池已关闭
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrJobCancelled 任务在执行前被取消
	ErrJobCancelled = errors.New("job was cancelled before it started")
)

// Job 池中执行的单元
type Job func(ctx context.Context) error

// Config 任务池配置
type Config struct {
	// MaxWorkers 最大并发 worker 数
	MaxWorkers int `yaml:"max-workers" default:"4"`
	// QueueSize 队列长度
	QueueSize int `yaml:"queue-size" default:"64"`
	// WarningPercent 活跃率告警阈值 (0,1]
	WarningPercent float64 `yaml:"warning-percent" default:"0.8"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxWorkers:     4,
		QueueSize:      64,
		WarningPercent: 0.8,
	}
}

type envelope struct {
	ctx  context.Context
	job  Job
	done chan error
}

// Pool 有界任务池
type Pool struct {
	config Config
	logger *zap.Logger

	jobs chan envelope
	wg   sync.WaitGroup

	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// New 创建任务池, cfg 为 nil 时使用默认配置
func New(cfg *Config, logger *zap.Logger) *Pool {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.WarningPercent <= 0 || c.WarningPercent > 1 {
		c.WarningPercent = 0.8
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		config: c,
		logger: logger,
		jobs:   make(chan envelope, c.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < c.MaxWorkers; i++ {
		p.wg.Add(1)
		go p.loop()
	}

	p.logger.Info("worker pool started",
		zap.Int("maxWorkers", c.MaxWorkers),
		zap.Int("queueSize", c.QueueSize))

	return p
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case env, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(env)
		}
	}
}

func (p *Pool) run(env envelope) {
	n := p.active.Add(1)
	defer p.active.Add(-1)

	if threshold := int64(float64(p.config.MaxWorkers) * p.config.WarningPercent); threshold > 0 && n >= threshold {
		p.logger.Debug("worker pool near capacity",
			zap.Int64("active", n),
			zap.Int("maxWorkers", p.config.MaxWorkers))
	}

	var err error
	if env.ctx.Err() != nil {
		err = ErrJobCancelled
	} else {
		err = p.safeCall(env)
	}

	if err != nil {
		p.failed.Add(1)
	} else {
		p.completed.Add(1)
	}

	if env.done != nil {
		env.done <- err
	}
}

// safeCall 捕获 job 内部 panic, 转为错误
func (p *Pool) safeCall(env envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker pool job panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = errors.New("worker pool job panicked")
		}
	}()
	return env.job(env.ctx)
}

func (p *Pool) enqueue(env envelope) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- env:
		return nil
	default:
		return ErrPoolFull
	}
}

// Submit 提交并等待 job 结束
func (p *Pool) Submit(ctx context.Context, job Job) error {
	done := make(chan error, 1)
	if err := p.enqueue(envelope{ctx: ctx, job: job, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// SubmitAsync 提交后立即返回
func (p *Pool) SubmitAsync(ctx context.Context, job Job) error {
	return p.enqueue(envelope{ctx: ctx, job: job})
}

// RunAll 将一批 job 放入池中并等待全部完成
// 队列满时在调用方 goroutine 中直接执行, 返回每个 job 的结果(顺序与入参一致)
func (p *Pool) RunAll(ctx context.Context, jobs []Job) []error {
	results := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		done := make(chan error, 1)
		err := p.enqueue(envelope{ctx: ctx, job: job, done: done})
		if errors.Is(err, ErrPoolFull) {
			results[i] = p.safeCall(envelope{ctx: ctx, job: job})
			continue
		}
		if err != nil {
			results[i] = err
			continue
		}
		wg.Add(1)
		go func(i int, done <-chan error) {
			defer wg.Done()
			select {
			case results[i] = <-done:
			case <-p.ctx.Done():
				results[i] = ErrPoolClosed
			}
		}(i, done)
	}
	wg.Wait()
	return results
}

// ActiveCount 当前执行中的 job 数
func (p *Pool) ActiveCount() int64 { return p.active.Load() }

// QueuedCount 排队中的 job 数
func (p *Pool) QueuedCount() int { return len(p.jobs) }

// IsClosed 是否已关闭
func (p *Pool) IsClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Shutdown 停止接收新 job, 等待已排队 job 执行完; ctx 到期则强制取消
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.logger.Info("worker pool shutting down",
		zap.Int64("active", p.active.Load()),
		zap.Int("queued", len(p.jobs)))

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn("worker pool shutdown timed out, cancelling remaining jobs")
		return ctx.Err()
	}
}

// Metrics 任务池指标快照
type Metrics struct {
	MaxWorkers    int   `json:"maxWorkers"`
	Active        int64 `json:"active"`
	Queued        int   `json:"queued"`
	QueueCapacity int   `json:"queueCapacity"`
	Completed     int64 `json:"completed"`
	Failed        int64 `json:"failed"`
	Closed        bool  `json:"closed"`
}

// GetMetrics 返回当前指标
func (p *Pool) GetMetrics() Metrics {
	return Metrics{
		MaxWorkers:    p.config.MaxWorkers,
		Active:        p.active.Load(),
		Queued:        len(p.jobs),
		QueueCapacity: p.config.QueueSize,
		Completed:     p.completed.Load(),
		Failed:        p.failed.Load(),
		Closed:        p.IsClosed(),
	}
}

// idle 供测试等待池空闲
func (p *Pool) idle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.active.Load() == 0 && len(p.jobs) == 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
