package service

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/haierkeys/fast-note-anchor/internal/blockfrost"
	"github.com/haierkeys/fast-note-anchor/internal/dao"
	"github.com/haierkeys/fast-note-anchor/internal/metadata"
	"github.com/haierkeys/fast-note-anchor/internal/notesapi"
	"github.com/haierkeys/fast-note-anchor/internal/wallet"
	"github.com/haierkeys/fast-note-anchor/pkg/code"
	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 90 个字符的 bech32 地址
const testOwner = "addr1qx2fxv2umyhttkxyxp8x0dlpdt3k6cwng5pxj3jhsydzer3n0d3vllmyqwsx5wktcd8cc3sq835lu7drv2xwl"

func connectedSession() wallet.Session {
	return wallet.Session{
		ProviderName:  "nami",
		Address:       "01a2b3c4",
		AddressBech32: testOwner,
		Connected:     true,
	}
}

// fakeStore 内存版笔记服务
type fakeStore struct {
	mu     sync.Mutex
	notes  map[string]notesapi.Note
	nextID int

	creates, updates, deletes, gets, lists int

	createErr error
	updateErr error
	deleteErr error
	// afterCreate 在记录落盘后调用
	afterCreate func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{notes: map[string]notesapi.Note{}, nextID: 1}
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates + s.updates + s.deletes + s.gets + s.lists
}

func (s *fakeStore) put(n notesapi.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.ID.String()] = n
}

func (s *fakeStore) note(id string) notesapi.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes[id]
}

func (s *fakeStore) List(context.Context) ([]notesapi.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	out := make([]notesapi.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	return out, nil
}

func (s *fakeStore) Get(_ context.Context, id notesapi.ID) (*notesapi.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	n, ok := s.notes[id.String()]
	if !ok {
		return nil, apperrors.NewPersistenceError(404, "not found")
	}
	return &n, nil
}

func (s *fakeStore) Create(ctx context.Context, req notesapi.CreateRequest) (*notesapi.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.createErr != nil {
		return nil, s.createErr
	}
	n := notesapi.Note{
		ID:          notesapi.ID(strconv.Itoa(s.nextID)),
		Title:       req.Title,
		Content:     req.Content,
		OwnerWallet: req.OwnerWallet,
	}
	s.nextID++
	s.notes[n.ID.String()] = n
	if s.afterCreate != nil {
		s.afterCreate()
	}
	return &n, nil
}

func (s *fakeStore) Update(ctx context.Context, id notesapi.ID, req notesapi.UpdateRequest) (*notesapi.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	n, ok := s.notes[id.String()]
	if !ok {
		return nil, apperrors.NewPersistenceError(404, "not found")
	}
	n.Title, n.Content = req.Title, req.Content
	n.ContentHash, n.LastTxHash, n.OwnerWallet = req.ContentHash, req.LastTxHash, req.OwnerWallet
	s.notes[id.String()] = n
	return &n, nil
}

func (s *fakeStore) Delete(ctx context.Context, id notesapi.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.notes, id.String())
	return nil
}

// fakeSigner 记录签名请求
type fakeSigner struct {
	mu     sync.Mutex
	calls  int
	txs    []*wallet.UnsignedTx
	txHash string
	err    error
	// gate 非 nil 时阻塞直到关闭，用于模拟等待用户签名
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeSigner) SignAndSubmit(ctx context.Context, tx *wallet.UnsignedTx) (string, error) {
	f.mu.Lock()
	f.calls++
	f.txs = append(f.txs, tx)
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.txHash, nil
}

func (f *fakeSigner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type staticSessions struct{ session wallet.Session }

func (s staticSessions) Session() wallet.Session { return s.session }

// fakeExplorer 返回预置的链上元数据
type fakeExplorer struct {
	mu      sync.Mutex
	anchors map[string]metadata.Metadata
	polls   int
	// visibleAfter 第 N 次查询后交易可见
	visibleAfter int
}

func (e *fakeExplorer) TxMetadata(_ context.Context, txHash string) ([]blockfrost.MetadataEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.polls++
	if _, ok := e.anchors[txHash]; !ok || e.polls <= e.visibleAfter {
		return nil, apperrors.NewAppError(code.ErrorTxNotFound, nil).WithDetails(txHash)
	}
	return []blockfrost.MetadataEntry{{Label: "674"}}, nil
}

func (e *fakeExplorer) AnchorMetadata(ctx context.Context, txHash string) (metadata.Metadata, error) {
	if _, err := e.TxMetadata(ctx, txHash); err != nil {
		return metadata.Metadata{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.anchors[txHash], nil
}

func newTestDao(t *testing.T) *dao.Dao {
	t.Helper()
	db, err := dao.NewDBEngine(dao.DatabaseConfig{Type: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return dao.New(db, context.Background(), dao.WithLogger(zap.NewNop()))
}
