package service

import (
	"context"
	"testing"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/dao"
	"github.com/haierkeys/fast-note-anchor/internal/domain"
	"github.com/haierkeys/fast-note-anchor/internal/metadata"
	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"
	"github.com/haierkeys/fast-note-anchor/pkg/workerpool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type verificationFixture struct {
	repo     domain.VerificationRepository
	explorer *fakeExplorer
	svc      VerificationService
}

func newVerificationFixture(t *testing.T, pool *workerpool.Pool, cfg VerificationServiceConfig) *verificationFixture {
	f := &verificationFixture{
		repo:     dao.NewVerificationRepository(newTestDao(t)),
		explorer: &fakeExplorer{anchors: map[string]metadata.Metadata{}},
	}
	f.svc = NewVerificationService(f.repo, f.explorer, pool, zap.NewNop(), cfg)
	return f
}

func (f *verificationFixture) onChain(txHash, noteID, hash string) {
	f.explorer.anchors[txHash] = metadata.Format(metadata.AnchorRequest{
		Action:    metadata.ActionCreate,
		NoteID:    noteID,
		Owner:     testOwner,
		Timestamp: time.UnixMilli(1700000000123),
	}, hash)
}

func (f *verificationFixture) queue(t *testing.T, noteID, txHash, hash string) *domain.Verification {
	t.Helper()
	v, err := f.svc.Queue(context.Background(), QueueRequest{
		NoteID:      noteID,
		TxHash:      txHash,
		Action:      "CREATE",
		ContentHash: hash,
		OwnerWallet: testOwner,
	})
	require.NoError(t, err)
	return v
}

func TestQueueIsIdempotentPerTxHash(t *testing.T) {
	f := newVerificationFixture(t, nil, VerificationServiceConfig{})

	first := f.queue(t, "1", "tx-1", groceriesHash)
	second := f.queue(t, "1", "tx-1", groceriesHash)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.VerificationPending, first.Status)
	assert.Equal(t, 10, first.MaxRetries)

	_, err := f.svc.Queue(context.Background(), QueueRequest{NoteID: "1"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestVerifyTransactionMatches(t *testing.T) {
	f := newVerificationFixture(t, nil, VerificationServiceConfig{})
	v := f.queue(t, "1", "tx-1", groceriesHash)
	f.onChain("tx-1", "1", groceriesHash)

	got, err := f.svc.VerifyTransaction(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, got.Status)
	require.NotNil(t, got.HashMatch)
	assert.True(t, *got.HashMatch)
	assert.Equal(t, groceriesHash, got.ChainContentHash)
	assert.Equal(t, "CREATE", got.ChainAction)
	assert.Equal(t, testOwner, got.ChainOwner)
	assert.False(t, got.VerifiedAt.IsZero())
	assert.Empty(t, got.LastError)
}

func TestVerifyTransactionHashMismatch(t *testing.T) {
	f := newVerificationFixture(t, nil, VerificationServiceConfig{})
	v := f.queue(t, "1", "tx-1", groceriesHash)
	f.onChain("tx-1", "1", "ffff")

	got, err := f.svc.VerifyTransaction(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.HashMatch)
	assert.False(t, *got.HashMatch)
	assert.Contains(t, got.LastError, "mismatch")
}

func TestVerifyTransactionExpiresAfterMaxRetries(t *testing.T) {
	f := newVerificationFixture(t, nil, VerificationServiceConfig{MaxRetries: 2})
	v := f.queue(t, "1", "tx-missing", groceriesHash)

	got, err := f.svc.VerifyTransaction(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationFailed, got.Status)

	got, err = f.svc.VerifyTransaction(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationExpired, got.Status)
	assert.Equal(t, 2, got.RetryCount)

	_, err = f.svc.VerifyTransaction(context.Background(), 9999)
	assert.ErrorIs(t, err, apperrors.ErrVerificationMissing)
}

func TestRetry(t *testing.T) {
	f := newVerificationFixture(t, nil, VerificationServiceConfig{})
	ctx := context.Background()
	v := f.queue(t, "1", "tx-1", groceriesHash)

	got, err := f.svc.VerifyTransaction(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, domain.VerificationFailed, got.Status)

	f.onChain("tx-1", "1", groceriesHash)
	got, err = f.svc.Retry(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, got.Status)

	_, err = f.svc.Retry(ctx, v.ID)
	assert.ErrorIs(t, err, apperrors.ErrRetryNotAllowed)
	_, err = f.svc.Retry(ctx, 12345)
	assert.ErrorIs(t, err, apperrors.ErrVerificationMissing)
}

func TestProcessPendingThroughPool(t *testing.T) {
	pool := workerpool.New(&workerpool.Config{MaxWorkers: 2, QueueSize: 4}, zap.NewNop())
	defer pool.Shutdown(context.Background())

	f := newVerificationFixture(t, pool, VerificationServiceConfig{})
	ctx := context.Background()
	f.queue(t, "1", "tx-1", groceriesHash)
	f.queue(t, "2", "tx-2", groceriesHash)
	f.queue(t, "3", "tx-3", groceriesHash)
	f.onChain("tx-1", "1", groceriesHash)
	f.onChain("tx-3", "3", groceriesHash)

	report, err := f.svc.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, &ProcessReport{Processed: 3, Verified: 2, Failed: 1}, report)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &VerificationStats{Verified: 2, Failed: 1, Total: 3}, stats)

	list, err := f.svc.ListForNote(ctx, "2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "tx-2", list[0].TxHash)

	// 已校验的记录不会再次处理
	report, err = f.svc.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
}

func TestMarkExpired(t *testing.T) {
	f := newVerificationFixture(t, nil, VerificationServiceConfig{})
	ctx := context.Background()

	_, err := f.repo.Create(ctx, &domain.Verification{
		NoteID: "1", TxHash: "tx-old", Status: domain.VerificationFailed, RetryCount: 3, MaxRetries: 3,
	})
	require.NoError(t, err)
	f.queue(t, "2", "tx-new", groceriesHash)

	n, err := f.svc.MarkExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Expired)
	assert.Equal(t, int64(1), stats.Pending)
}

func TestWaitConfirmed(t *testing.T) {
	cfg := VerificationServiceConfig{ConfirmInterval: time.Millisecond, ConfirmTimeout: time.Second}

	t.Run("visible after polling", func(t *testing.T) {
		f := newVerificationFixture(t, nil, cfg)
		f.onChain("tx-1", "1", groceriesHash)
		f.explorer.visibleAfter = 2

		require.NoError(t, f.svc.WaitConfirmed(context.Background(), "tx-1"))
		assert.Equal(t, 3, f.explorer.polls)
	})

	t.Run("times out", func(t *testing.T) {
		f := newVerificationFixture(t, nil, VerificationServiceConfig{ConfirmInterval: time.Millisecond, ConfirmTimeout: 30 * time.Millisecond})
		err := f.svc.WaitConfirmed(context.Background(), "tx-never")
		assert.ErrorIs(t, err, apperrors.ErrConfirmationTimeout)
		assert.Greater(t, f.explorer.polls, 1)
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newVerificationFixture(t, nil, cfg)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := f.svc.WaitConfirmed(ctx, "tx-never")
		assert.ErrorIs(t, err, apperrors.ErrConfirmationTimeout)
	})
}

func TestVerificationReads(t *testing.T) {
	f := newVerificationFixture(t, nil, VerificationServiceConfig{})
	ctx := context.Background()
	first := f.queue(t, "1", "tx-1", groceriesHash)
	second := f.queue(t, "1", "tx-2", groceriesHash)
	f.queue(t, "2", "tx-3", groceriesHash)

	got, err := f.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", got.TxHash)
	_, err = f.svc.Get(ctx, 9999)
	assert.ErrorIs(t, err, apperrors.ErrVerificationMissing)

	got, err = f.svc.GetByTxHash(ctx, "tx-3")
	require.NoError(t, err)
	assert.Equal(t, "2", got.NoteID)
	_, err = f.svc.GetByTxHash(ctx, "tx-unknown")
	assert.ErrorIs(t, err, apperrors.ErrVerificationMissing)
	_, err = f.svc.GetByTxHash(ctx, " ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	latest, err := f.svc.LatestForNote(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	_, err = f.svc.LatestForNote(ctx, "42")
	assert.ErrorIs(t, err, apperrors.ErrVerificationMissing)

	f.onChain("tx-1", "1", groceriesHash)
	_, err = f.svc.VerifyTransaction(ctx, first.ID)
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, v := range pending {
		assert.NotEqual(t, "tx-1", v.TxHash)
	}

	pending, err = f.svc.ListPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
