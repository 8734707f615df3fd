package task

import (
	"context"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/app"
	"github.com/haierkeys/fast-note-anchor/internal/service"
	"github.com/haierkeys/fast-note-anchor/pkg/util"

	"go.uber.org/zap"
)

// VerificationExpireTask 将重试耗尽的校验记录标记为过期
type VerificationExpireTask struct {
	service  service.VerificationService
	logger   *zap.Logger
	interval time.Duration
}

// Name 返回任务名称
func (t *VerificationExpireTask) Name() string {
	return "VerificationExpire"
}

// LoopInterval 返回执行间隔
func (t *VerificationExpireTask) LoopInterval() time.Duration {
	return t.interval
}

// IsStartupRun 是否立即执行一次
func (t *VerificationExpireTask) IsStartupRun() bool {
	return false
}

// Run 执行过期标记
func (t *VerificationExpireTask) Run(ctx context.Context) error {
	n, err := t.service.MarkExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		t.logger.Info("task log",
			zap.String("task", t.Name()),
			zap.Int("expired", n))
	}
	return nil
}

// NewVerificationExpireTask 创建过期标记任务
func NewVerificationExpireTask(appContainer *app.App) (Task, error) {
	cfg := appContainer.Config().Verification
	if !appContainer.Config().VerificationEnabled() || appContainer.VerificationService == nil {
		return nil, nil
	}
	interval := 5 * time.Minute
	if cfg.ExpireInterval != "" {
		d, err := util.ParseDuration(cfg.ExpireInterval)
		if err != nil {
			return nil, err
		}
		if d > 0 {
			interval = d
		}
	}
	return &VerificationExpireTask{
		service:  appContainer.VerificationService,
		logger:   appContainer.Logger(),
		interval: interval,
	}, nil
}

func init() {
	RegisterWithApp("VerificationExpire", NewVerificationExpireTask)
}
