package task

import (
	"context"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/app"
	"github.com/haierkeys/fast-note-anchor/internal/service"
	"github.com/haierkeys/fast-note-anchor/pkg/logger"

	"go.uber.org/zap"
)

// PendingCreatesTask 定期列出未完成的创建流程（同时刷新 pending 指标），提醒可续跑的笔记
type PendingCreatesTask struct {
	anchor service.AnchorService
	logger *zap.Logger
}

// Name 返回任务名称
func (t *PendingCreatesTask) Name() string {
	return "PendingCreates"
}

// LoopInterval 返回执行间隔
func (t *PendingCreatesTask) LoopInterval() time.Duration {
	return 10 * time.Minute
}

// IsStartupRun 启动时从日志表恢复指标
func (t *PendingCreatesTask) IsStartupRun() bool {
	return true
}

// Run 统计未完成的创建
func (t *PendingCreatesTask) Run(ctx context.Context) error {
	pending, err := t.anchor.PendingCreates(ctx)
	if err != nil {
		return err
	}
	for _, saga := range pending {
		t.logger.Warn("note created but not anchored",
			zap.String(logger.FieldNoteID, saga.NoteID),
			zap.String(logger.FieldSagaState, string(saga.State)),
			zap.String(logger.FieldTxHash, saga.TxHash),
			zap.Int("attempts", saga.Attempts))
	}
	return nil
}

// NewPendingCreatesTask 创建任务
func NewPendingCreatesTask(appContainer *app.App) (Task, error) {
	if appContainer.AnchorService == nil {
		return nil, nil
	}
	return &PendingCreatesTask{
		anchor: appContainer.AnchorService,
		logger: appContainer.Logger(),
	}, nil
}

func init() {
	RegisterWithApp("PendingCreates", NewPendingCreatesTask)
}
