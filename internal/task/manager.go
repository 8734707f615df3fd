package task

import (
	"fmt"

	"github.com/haierkeys/fast-note-anchor/internal/app"
	"github.com/haierkeys/fast-note-anchor/pkg/safe_close"

	"go.uber.org/zap"
)

// Manager 任务管理器,负责创建和管理所有任务
type Manager struct {
	scheduler *Scheduler
	logger    *zap.Logger
	app       *app.App
}

// NewManager 创建任务管理器
func NewManager(logger *zap.Logger, sc *safe_close.SafeClose, appContainer *app.App) *Manager {
	return &Manager{
		scheduler: NewScheduler(logger, sc),
		logger:    logger,
		app:       appContainer,
	}
}

// RegisterTasks 通过已登记的工厂创建所有任务
// 单个任务创建失败只跳过该任务，全部失败时返回错误
func (m *Manager) RegisterTasks() error {
	var failed []string
	for _, r := range registrations() {
		t, err := r.factory(m.app)
		if err != nil {
			m.logger.Warn("failed to create task", zap.String("name", r.name), zap.Error(err))
			failed = append(failed, r.name)
			continue
		}
		if t == nil {
			m.logger.Info("task disabled by config", zap.String("name", r.name))
			continue
		}
		m.scheduler.AddTask(t)
		m.logger.Info("task registered", zap.String("name", t.Name()))
	}
	if len(failed) > 0 && len(m.scheduler.Tasks()) == 0 {
		return fmt.Errorf("no task could be created, failed: %v", failed)
	}
	return nil
}

// Start 启动所有已注册的任务
func (m *Manager) Start() {
	m.scheduler.Start()
}
