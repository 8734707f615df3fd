package wallet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testHex    = "01a2b3c4d5e6f70812233445566778899aabbccddeeff00112233445566778899aabbccddeeff0011223344"
	testBech32 = "addr_test1qz2fxv2umyhttkxyxp8x0dlpdt3k6cwng5pxj3jhsydzer3n0d3vllmyqwsx5wktcd8cc3sq835lu7drv2xwl2wywfgs68faae"
)

type fakeAPI struct {
	changeErr   error
	usedErr     error
	used        []string
	signErr     error
	submitErr   error
	txHash      string
	lastTx      *UnsignedTx
	lastPartial bool
}

func (a *fakeAPI) ChangeAddress(context.Context) (string, error) {
	if a.changeErr != nil {
		return "", a.changeErr
	}
	return testHex, nil
}

func (a *fakeAPI) UsedAddresses(context.Context) ([]string, error) {
	if a.usedErr != nil {
		return nil, a.usedErr
	}
	if a.used != nil {
		return a.used, nil
	}
	return []string{testBech32}, nil
}

func (a *fakeAPI) SignTx(_ context.Context, tx *UnsignedTx, partial bool) (SignedTx, error) {
	a.lastTx = tx
	a.lastPartial = partial
	if a.signErr != nil {
		return "", a.signErr
	}
	return SignedTx("84a4deadbeef"), nil
}

func (a *fakeAPI) SubmitTx(context.Context, SignedTx) (string, error) {
	if a.submitErr != nil {
		return "", a.submitErr
	}
	return a.txHash, nil
}

type fakeProvider struct {
	name      string
	api       *fakeAPI
	enableErr error
	// gate blocks Enable until closed
	gate chan struct{}
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Enable(ctx context.Context) (API, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.enableErr != nil {
		return nil, p.enableErr
	}
	return p.api, nil
}

type fakeRegistry struct {
	mu        sync.Mutex
	providers map[string]Provider
	// visibleAfter hides providers for the first N polls
	visibleAfter int
	polls        int
}

func newRegistry(providers ...*fakeProvider) *fakeRegistry {
	r := &fakeRegistry{providers: map[string]Provider{}}
	for _, p := range providers {
		r.providers[p.name] = p
	}
	return r
}

func (r *fakeRegistry) Providers(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls++
	if r.polls <= r.visibleAfter {
		return nil, nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names, nil
}

func (r *fakeRegistry) Lookup(_ context.Context, name string) (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[name]
	return p, ok
}

func testConfig() Config {
	return Config{DiscoveryAttempts: 5, DiscoveryInterval: time.Millisecond, DiscoveryMaxInterval: 2 * time.Millisecond}
}

func newTestGateway(reg Registry, store KVStore) *Gateway {
	return NewGateway(reg, store, zap.NewNop(), testConfig())
}

func TestDiscoverWaitsForLateProviders(t *testing.T) {
	reg := newRegistry(&fakeProvider{name: "nami", api: &fakeAPI{}}, &fakeProvider{name: "eternl", api: &fakeAPI{}})
	reg.visibleAfter = 3

	gw := newTestGateway(reg, NewMemoryStore())
	names, err := gw.Discover(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"eternl", "nami"}, names)
	assert.Equal(t, 4, reg.polls)
	assert.Equal(t, names, gw.Providers())
}

func TestDiscoverGivesUpAfterMaxAttempts(t *testing.T) {
	reg := newRegistry()

	gw := newTestGateway(reg, NewMemoryStore())
	names, err := gw.Discover(context.Background())

	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, testConfig().DiscoveryAttempts, reg.polls)
}

func TestDiscoverCancelled(t *testing.T) {
	reg := newRegistry()
	gw := NewGateway(reg, NewMemoryStore(), zap.NewNop(), Config{
		DiscoveryAttempts:    1000,
		DiscoveryInterval:    50 * time.Millisecond,
		DiscoveryMaxInterval: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	ch := gw.DiscoverAsync(ctx)
	cancel()

	select {
	case res := <-ch:
		assert.Error(t, res.Err)
		assert.Empty(t, res.Providers)
	case <-time.After(2 * time.Second):
		t.Fatal("discovery did not stop after cancel")
	}
}

func TestConnect(t *testing.T) {
	api := &fakeAPI{}
	store := NewMemoryStore()
	gw := newTestGateway(newRegistry(&fakeProvider{name: "nami", api: api}), store)

	sess, err := gw.Connect(context.Background(), "nami")
	require.NoError(t, err)

	assert.True(t, sess.Connected)
	assert.False(t, sess.Connecting)
	assert.Equal(t, "nami", sess.ProviderName)
	assert.Equal(t, testHex, sess.Address)
	assert.Equal(t, testBech32, sess.AddressBech32)
	assert.Equal(t, Connected, gw.State())

	name, ok, _ := store.Get(context.Background(), KeyConnectedWallet)
	assert.True(t, ok)
	assert.Equal(t, "nami", name)
}

func TestConnectFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		connect  string
		want     error
	}{
		{
			name:     "unknown provider",
			provider: &fakeProvider{name: "nami", api: &fakeAPI{}},
			connect:  "flint",
			want:     apperrors.ErrProviderNotFound,
		},
		{
			name:     "consent declined",
			provider: &fakeProvider{name: "nami", enableErr: NewProviderError("refused", "user declined")},
			connect:  "nami",
			want:     apperrors.ErrUserRejected,
		},
		{
			name:     "enable failure",
			provider: &fakeProvider{name: "nami", enableErr: errors.New("extension crashed")},
			connect:  "nami",
			want:     apperrors.ErrProviderFailure,
		},
		{
			name:     "change address error",
			provider: &fakeProvider{name: "nami", api: &fakeAPI{changeErr: errors.New("locked")}},
			connect:  "nami",
			want:     apperrors.ErrAddressRetrieval,
		},
		{
			name:     "no used address",
			provider: &fakeProvider{name: "nami", api: &fakeAPI{used: []string{}}},
			connect:  "nami",
			want:     apperrors.ErrAddressRetrieval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			gw := newTestGateway(newRegistry(tt.provider), store)

			_, err := gw.Connect(context.Background(), tt.connect)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, Disconnected, gw.State())
			assert.Equal(t, Session{}, gw.Session())

			_, ok, _ := store.Get(context.Background(), KeyConnectedWallet)
			assert.False(t, ok)
		})
	}
}

func TestConnectRejectsConcurrentAttempt(t *testing.T) {
	gate := make(chan struct{})
	gw := newTestGateway(newRegistry(&fakeProvider{name: "nami", api: &fakeAPI{}, gate: gate}), NewMemoryStore())

	done := make(chan error, 1)
	go func() {
		_, err := gw.Connect(context.Background(), "nami")
		done <- err
	}()

	require.Eventually(t, func() bool { return gw.State() == Connecting }, time.Second, time.Millisecond)
	assert.True(t, gw.Session().Connecting)

	_, err := gw.Connect(context.Background(), "nami")
	assert.ErrorIs(t, err, apperrors.ErrConnectInProgress)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, Connected, gw.State())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	gw := newTestGateway(newRegistry(&fakeProvider{name: "nami", api: &fakeAPI{}}), store)

	require.NoError(t, gw.Disconnect(context.Background()))

	_, err := gw.Connect(context.Background(), "nami")
	require.NoError(t, err)

	require.NoError(t, gw.Disconnect(context.Background()))
	require.NoError(t, gw.Disconnect(context.Background()))

	assert.Equal(t, Disconnected, gw.State())
	assert.Equal(t, Session{}, gw.Session())
	_, ok, _ := store.Get(context.Background(), KeyConnectedWallet)
	assert.False(t, ok)
}

func TestAutoReconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("restores persisted provider", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set(ctx, KeyConnectedWallet, "nami"))
		gw := newTestGateway(newRegistry(&fakeProvider{name: "nami", api: &fakeAPI{}}), store)

		sess, ok := gw.AutoReconnect(ctx)
		assert.True(t, ok)
		assert.Equal(t, "nami", sess.ProviderName)
		assert.Equal(t, Connected, gw.State())
	})

	t.Run("nothing persisted", func(t *testing.T) {
		reg := newRegistry(&fakeProvider{name: "nami", api: &fakeAPI{}})
		gw := newTestGateway(reg, NewMemoryStore())

		_, ok := gw.AutoReconnect(ctx)
		assert.False(t, ok)
		assert.Zero(t, reg.polls)
	})

	t.Run("failure clears record silently", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set(ctx, KeyConnectedWallet, "nami"))
		gw := newTestGateway(newRegistry(&fakeProvider{name: "nami", enableErr: NewProviderError("refused", "no")}), store)

		_, ok := gw.AutoReconnect(ctx)
		assert.False(t, ok)
		assert.Equal(t, Disconnected, gw.State())
		_, persisted, _ := store.Get(ctx, KeyConnectedWallet)
		assert.False(t, persisted)
	})

	t.Run("provider no longer injected", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set(ctx, KeyConnectedWallet, "flint"))
		gw := newTestGateway(newRegistry(&fakeProvider{name: "nami", api: &fakeAPI{}}), store)

		_, ok := gw.AutoReconnect(ctx)
		assert.False(t, ok)
		_, persisted, _ := store.Get(ctx, KeyConnectedWallet)
		assert.False(t, persisted)
	})
}

func TestSignAndSubmit(t *testing.T) {
	ctx := context.Background()
	tx := &UnsignedTx{Outputs: []Output{{Address: testBech32, Lovelace: 1_000_000}}, Metadata: map[uint64]any{674: "x"}}

	t.Run("no session", func(t *testing.T) {
		gw := newTestGateway(newRegistry(), NewMemoryStore())
		_, err := gw.SignAndSubmit(ctx, tx)
		assert.ErrorIs(t, err, apperrors.ErrNoActiveSession)
	})

	cases := []struct {
		name string
		api  *fakeAPI
		want error
	}{
		{name: "sign refused", api: &fakeAPI{signErr: NewProviderError("sign_refused", "user declined")}, want: apperrors.ErrSigningRejected},
		{name: "build failure", api: &fakeAPI{signErr: NewProviderError("failure", "insufficient funds")}, want: apperrors.ErrSubmission},
		{name: "submit failure", api: &fakeAPI{submitErr: errors.New("network down")}, want: apperrors.ErrSubmission},
		{name: "empty tx id", api: &fakeAPI{}, want: apperrors.ErrSubmission},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newTestGateway(newRegistry(&fakeProvider{name: "nami", api: tc.api}), NewMemoryStore())
			_, err := gw.Connect(ctx, "nami")
			require.NoError(t, err)

			_, err = gw.SignAndSubmit(ctx, tx)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, Connected, gw.State())
		})
	}

	t.Run("success", func(t *testing.T) {
		api := &fakeAPI{txHash: "abc123"}
		gw := newTestGateway(newRegistry(&fakeProvider{name: "nami", api: api}), NewMemoryStore())
		_, err := gw.Connect(ctx, "nami")
		require.NoError(t, err)

		txHash, err := gw.SignAndSubmit(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, "abc123", txHash)
		assert.True(t, api.lastPartial)
		assert.Same(t, tx, api.lastTx)
	})
}

// the gateway must settle in a consistent state after any operation sequence
func TestProperty5_GatewayStateMachine(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("session mirrors state after every operation", prop.ForAll(
		func(ops []int) bool {
			var fail atomic.Bool
			good := &fakeProvider{name: "nami", api: &fakeAPI{txHash: "h"}}
			bad := &fakeProvider{name: "flint", enableErr: NewProviderError("refused", "no")}
			gw := newTestGateway(newRegistry(good, bad), NewMemoryStore())
			ctx := context.Background()

			for _, op := range ops {
				switch op {
				case 0:
					_, _ = gw.Connect(ctx, "nami")
				case 1:
					_, _ = gw.Connect(ctx, "flint")
				case 2:
					_ = gw.Disconnect(ctx)
				case 3:
					_, _ = gw.SignAndSubmit(ctx, &UnsignedTx{})
				}

				s, sess := gw.State(), gw.Session()
				switch s {
				case Connected:
					if !sess.Connected || sess.AddressBech32 == "" || sess.Address == "" {
						fail.Store(true)
					}
				case Disconnected:
					if sess != (Session{}) {
						fail.Store(true)
					}
				default:
					fail.Store(true)
				}
			}
			return !fail.Load()
		},
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}
