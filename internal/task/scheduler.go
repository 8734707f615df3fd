package task

import (
	"context"
	"time"

	"github.com/haierkeys/fast-note-anchor/pkg/safe_close"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task 定义任务接口
type Task interface {
	Name() string                  // 任务名称
	Run(ctx context.Context) error // 执行任务
	LoopInterval() time.Duration   // 执行间隔
	IsStartupRun() bool            // 是否立即执行一次
}

// CronTask 按 cron 表达式调度的任务, Spec 非空时优先于 LoopInterval
type CronTask interface {
	Task
	Spec() string
}

// cronParser 五段式表达式, 另支持 @every / @hourly 等描述符
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec 解析 cron 表达式
func ParseSpec(spec string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cron spec %q", spec)
	}
	return schedule, nil
}

// Scheduler 任务调度器
type Scheduler struct {
	logger *zap.Logger
	tasks  []Task
	sc     *safe_close.SafeClose
}

// NewScheduler 创建任务调度器
func NewScheduler(logger *zap.Logger, sc *safe_close.SafeClose) *Scheduler {
	return &Scheduler{
		logger: logger,
		tasks:  make([]Task, 0),
		sc:     sc,
	}
}

// AddTask 添加任务
func (s *Scheduler) AddTask(task Task) {
	s.tasks = append(s.tasks, task)
}

// Tasks 已添加的任务
func (s *Scheduler) Tasks() []Task {
	return append([]Task(nil), s.tasks...)
}

// Start 启动所有任务
func (s *Scheduler) Start() {
	if len(s.tasks) == 0 {
		s.logger.Info("no tasks to schedule")
		return
	}

	s.logger.Info("tasks starting", zap.Int("count", len(s.tasks)))

	for _, task := range s.tasks {
		s.startTask(task)
	}
}

// next 返回下一次执行的等待时长, ok=false 表示不再循环
func (s *Scheduler) next(task Task, schedule cron.Schedule, now time.Time) (time.Duration, bool) {
	if schedule != nil {
		return schedule.Next(now).Sub(now), true
	}
	if task.LoopInterval() <= 0 {
		return 0, false
	}
	return task.LoopInterval(), true
}

// startTask 启动单个任务
func (s *Scheduler) startTask(task Task) {
	var schedule cron.Schedule
	if ct, ok := task.(CronTask); ok && ct.Spec() != "" {
		sch, err := ParseSpec(ct.Spec())
		if err != nil {
			s.logger.Error("task not scheduled", zap.String("name", task.Name()), zap.Error(err))
			return
		}
		schedule = sch
	}

	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()

		// 关闭信号到达时取消正在执行的任务
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-closeSignal:
				cancel()
			case <-ctx.Done():
			}
		}()

		if task.IsStartupRun() {
			s.runOnce(ctx, task, "startupRun")
		}

		wait, ok := s.next(task, schedule, time.Now())
		if !ok {
			return
		}

		timer := time.NewTimer(wait)
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
				s.runOnce(ctx, task, "loopRun")
				wait, _ = s.next(task, schedule, time.Now())
				timer.Reset(wait)
			case <-closeSignal:
				s.logger.Info("task stopped", zap.String("name", task.Name()))
				return
			}
		}
	})
}

// runOnce 执行一次任务, panic 被捕获并记录
func (s *Scheduler) runOnce(ctx context.Context, task Task, mode string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panic",
				zap.String("name", task.Name()),
				zap.String("mode", mode),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	if ctx.Err() != nil {
		return
	}
	s.logger.Debug("task running", zap.String("name", task.Name()), zap.String("mode", mode))
	if err := task.Run(ctx); err != nil {
		s.logger.Error("task running error",
			zap.String("name", task.Name()),
			zap.String("mode", mode),
			zap.Error(err))
	}
}
