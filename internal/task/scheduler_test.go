package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/domain"
	"github.com/haierkeys/fast-note-anchor/internal/service"
	"github.com/haierkeys/fast-note-anchor/pkg/safe_close"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingTask struct {
	name     string
	interval time.Duration
	startup  bool
	spec     string
	runs     atomic.Int32
	fn       func(ctx context.Context) error
}

func (t *countingTask) Name() string                { return t.name }
func (t *countingTask) LoopInterval() time.Duration { return t.interval }
func (t *countingTask) IsStartupRun() bool          { return t.startup }
func (t *countingTask) Spec() string                { return t.spec }

func (t *countingTask) Run(ctx context.Context) error {
	t.runs.Add(1)
	if t.fn != nil {
		return t.fn(ctx)
	}
	return nil
}

func TestSchedulerLoopsUntilClose(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(zap.NewNop(), sc)
	task := &countingTask{name: "loop", interval: 5 * time.Millisecond}
	s.AddTask(task)
	s.Start()

	assert.Eventually(t, func() bool { return task.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	sc.SendCloseSignal(nil)
	require.NoError(t, sc.WaitClosed())
	after := task.runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, task.runs.Load())
}

func TestSchedulerStartupRunOnly(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(zap.NewNop(), sc)
	task := &countingTask{name: "once", startup: true}
	s.AddTask(task)
	s.Start()

	require.NoError(t, sc.WaitClosed())
	assert.Equal(t, int32(1), task.runs.Load())
}

func TestSchedulerRecoversPanicAndErrors(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(zap.NewNop(), sc)

	var calls atomic.Int32
	task := &countingTask{name: "flaky", interval: 5 * time.Millisecond, fn: func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return errors.New("still failing")
	}}
	s.AddTask(task)
	s.Start()

	assert.Eventually(t, func() bool { return task.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	sc.SendCloseSignal(nil)
	require.NoError(t, sc.WaitClosed())
}

func TestSchedulerCancelsRunningTaskOnClose(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(zap.NewNop(), sc)

	started := make(chan struct{})
	var cancelled atomic.Bool
	task := &countingTask{name: "slow", startup: true, interval: time.Hour, fn: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}}
	s.AddTask(task)
	s.Start()

	<-started
	sc.SendCloseSignal(nil)
	require.NoError(t, sc.WaitClosed())
	assert.True(t, cancelled.Load())
}

func TestSchedulerSkipsInvalidSpec(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(zap.NewNop(), sc)
	task := &countingTask{name: "bad", spec: "not a spec", startup: true}
	s.AddTask(task)
	s.Start()

	require.NoError(t, sc.WaitClosed())
	assert.Zero(t, task.runs.Load())
}

func TestParseSpec(t *testing.T) {
	sch, err := ParseSpec(DefaultVerificationSpec)
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 30*time.Second, sch.Next(now).Sub(now))

	sch, err = ParseSpec("*/5 * * * *")
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), sch.Next(now))

	_, err = ParseSpec("61 * * * *")
	assert.Error(t, err)
}

type stubVerification struct {
	service.VerificationService
	batch   int
	report  *service.ProcessReport
	expired int
	err     error
}

func (s *stubVerification) ProcessPending(_ context.Context, batch int) (*service.ProcessReport, error) {
	s.batch = batch
	return s.report, s.err
}

func (s *stubVerification) MarkExpired(context.Context) (int, error) {
	return s.expired, s.err
}

func TestVerificationTaskRun(t *testing.T) {
	stub := &stubVerification{report: &service.ProcessReport{Processed: 2, Verified: 1, Failed: 1}}
	task := &VerificationTask{service: stub, logger: zap.NewNop(), spec: DefaultVerificationSpec, batch: 7}

	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, 7, stub.batch)
	assert.Equal(t, DefaultVerificationSpec, task.Spec())

	stub.err = errors.New("db down")
	assert.Error(t, task.Run(context.Background()))
}

func TestVerificationExpireTaskRun(t *testing.T) {
	stub := &stubVerification{expired: 3}
	task := &VerificationExpireTask{service: stub, logger: zap.NewNop(), interval: time.Minute}
	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, time.Minute, task.LoopInterval())
	assert.False(t, task.IsStartupRun())
}

type stubAnchor struct {
	service.AnchorService
	pending []*domain.AnchorSaga
}

func (s *stubAnchor) PendingCreates(context.Context) ([]*domain.AnchorSaga, error) {
	return s.pending, nil
}

func TestPendingCreatesTaskRun(t *testing.T) {
	task := &PendingCreatesTask{
		anchor: &stubAnchor{pending: []*domain.AnchorSaga{{NoteID: "1", State: domain.SagaPersistedUnanchored, Attempts: 2}}},
		logger: zap.NewNop(),
	}
	require.NoError(t, task.Run(context.Background()))
	assert.True(t, task.IsStartupRun())
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"PendingCreates", "TransactionVerification", "VerificationExpire"}, Registered())
	assert.Panics(t, func() { RegisterWithApp("PendingCreates", NewPendingCreatesTask) })
}
