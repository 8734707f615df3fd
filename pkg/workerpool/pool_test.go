package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitReturnsJobError(t *testing.T) {
	p := New(&Config{MaxWorkers: 2, QueueSize: 4}, nil)
	defer p.Shutdown(context.Background())

	want := errors.New("boom")
	err := p.Submit(context.Background(), func(ctx context.Context) error { return want })
	assert.ErrorIs(t, err, want)

	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) error { return nil }))
	require.True(t, p.idle(time.Second))

	m := p.GetMetrics()
	assert.Equal(t, int64(1), m.Completed)
	assert.Equal(t, int64(1), m.Failed)
}

func TestRunAllPreservesOrder(t *testing.T) {
	p := New(&Config{MaxWorkers: 3, QueueSize: 2}, nil)
	defer p.Shutdown(context.Background())

	var calls atomic.Int32
	jobs := make([]Job, 10)
	for i := range jobs {
		i := i
		jobs[i] = func(ctx context.Context) error {
			calls.Add(1)
			if i%2 == 0 {
				return errors.New("even")
			}
			return nil
		}
	}

	results := p.RunAll(context.Background(), jobs)
	require.Len(t, results, 10)
	assert.Equal(t, int32(10), calls.Load())
	for i, err := range results {
		if i%2 == 0 {
			assert.Error(t, err, "job %d", i)
		} else {
			assert.NoError(t, err, "job %d", i)
		}
	}
}

func TestJobPanicBecomesError(t *testing.T) {
	p := New(nil, nil)
	defer p.Shutdown(context.Background())

	err := p.Submit(context.Background(), func(ctx context.Context) error { panic("bad job") })
	assert.Error(t, err)
}

func TestSubmitAfterShutdown(t *testing.T) {
	p := New(&Config{MaxWorkers: 1, QueueSize: 1}, nil)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, p.IsClosed())

	assert.ErrorIs(t, p.Submit(context.Background(), func(ctx context.Context) error { return nil }), ErrPoolClosed)
	assert.ErrorIs(t, p.SubmitAsync(context.Background(), func(ctx context.Context) error { return nil }), ErrPoolClosed)
	// 重复关闭无副作用
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestCancelledJobIsSkipped(t *testing.T) {
	p := New(&Config{MaxWorkers: 1, QueueSize: 2}, nil)
	defer p.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	results := p.RunAll(ctx, []Job{func(ctx context.Context) error { ran = true; return nil }})
	assert.ErrorIs(t, results[0], ErrJobCancelled)
	assert.False(t, ran)
}
