package task

import (
	"context"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/app"
	"github.com/haierkeys/fast-note-anchor/internal/service"

	"go.uber.org/zap"
)

// DefaultVerificationSpec 默认每 30 秒处理一批待校验交易
const DefaultVerificationSpec = "@every 30s"

// VerificationTask 周期性处理待校验的锚定交易
type VerificationTask struct {
	service service.VerificationService
	logger  *zap.Logger
	spec    string
	batch   int
}

// Name 返回任务名称
func (t *VerificationTask) Name() string {
	return "TransactionVerification"
}

// LoopInterval Spec 为空时的兜底间隔
func (t *VerificationTask) LoopInterval() time.Duration {
	return 30 * time.Second
}

// Spec 调度表达式
func (t *VerificationTask) Spec() string {
	return t.spec
}

// IsStartupRun 启动时先处理一次积压
func (t *VerificationTask) IsStartupRun() bool {
	return true
}

// Run 执行一批校验
func (t *VerificationTask) Run(ctx context.Context) error {
	report, err := t.service.ProcessPending(ctx, t.batch)
	if err != nil {
		return err
	}
	if report.Processed > 0 {
		t.logger.Info("task log",
			zap.String("task", t.Name()),
			zap.Int("processed", report.Processed),
			zap.Int("verified", report.Verified),
			zap.Int("failed", report.Failed))
	}
	return nil
}

// NewVerificationTask 创建校验任务，校验关闭时返回 nil
func NewVerificationTask(appContainer *app.App) (Task, error) {
	cfg := appContainer.Config().Verification
	if !appContainer.Config().VerificationEnabled() || appContainer.VerificationService == nil {
		return nil, nil
	}
	spec := cfg.Schedule
	if spec == "" {
		spec = DefaultVerificationSpec
	}
	if _, err := ParseSpec(spec); err != nil {
		return nil, err
	}
	return &VerificationTask{
		service: appContainer.VerificationService,
		logger:  appContainer.Logger(),
		spec:    spec,
		batch:   cfg.BatchSize,
	}, nil
}

func init() {
	RegisterWithApp("TransactionVerification", NewVerificationTask)
}
