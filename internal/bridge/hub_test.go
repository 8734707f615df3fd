package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/metadata"
	"github.com/haierkeys/fast-note-anchor/internal/wallet"
	pkgapp "github.com/haierkeys/fast-note-anchor/pkg/app"
	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/lxzan/gws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testHex    = "01a2b3c4d5e6f70812233445566778899aabbccddeeff00112233445566778899aabbccddeeff0011223344"
	testBech32 = "addr1qx2fxv2umyhttkxyxp8x0dlpdt3k6cwng5pxj3jhsydzer3n0d3vllmyqwsx5wktcd8cc3sq835lu7drv2xwl"
)

type incomingCall struct {
	ID       string          `json:"id"`
	Provider string          `json:"provider"`
	Method   string          `json:"method"`
	Params   json.RawMessage `json:"params"`
}

// fakePage 模拟浏览器中的桥接页面
type fakePage struct {
	gws.BuiltinEventHandler

	token     string
	providers []string
	// respond 返回 (data, error, reply)，reply=false 表示不回复
	respond func(call incomingCall) (any, *ResultError, bool)

	mu    sync.Mutex
	calls []incomingCall
	auth  chan AuthResult
}

func (f *fakePage) OnOpen(conn *gws.Conn) {
	_ = conn.WriteMessage(gws.OpcodeText, []byte(FrameAuthorization+"|"+f.token))
}

func (f *fakePage) OnMessage(conn *gws.Conn, message *gws.Message) {
	defer message.Close()
	typ, body, ok := SplitFrame(message.Data.String())
	if !ok {
		return
	}
	switch typ {
	case FrameAuthorization:
		var res AuthResult
		_ = sonic.UnmarshalString(body, &res)
		f.auth <- res
		if res.Status {
			frame, _ := EncodeFrame(FrameHello, HelloFrame{Providers: f.providers})
			_ = conn.WriteMessage(gws.OpcodeText, frame)
		}
	case FrameCall:
		var call incomingCall
		_ = sonic.UnmarshalString(body, &call)
		f.mu.Lock()
		f.calls = append(f.calls, call)
		respond := f.respond
		f.mu.Unlock()

		data, resErr, reply := defaultRespond(call)
		if respond != nil {
			data, resErr, reply = respond(call)
		}
		if !reply {
			return
		}
		res := map[string]any{"id": call.ID}
		if resErr != nil {
			res["error"] = resErr
		} else {
			res["data"] = data
		}
		frame, _ := EncodeFrame(FrameResult, res)
		_ = conn.WriteMessage(gws.OpcodeText, frame)
	}
}

func (f *fakePage) callsFor(method string) []incomingCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []incomingCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func defaultRespond(call incomingCall) (any, *ResultError, bool) {
	switch call.Method {
	case MethodEnable:
		return true, nil, true
	case MethodGetChangeAddress:
		return testHex, nil, true
	case MethodGetUsedAddresses:
		return []string{testBech32}, nil, true
	case MethodSignTx:
		return "84a4signed", nil, true
	case MethodSubmitTx:
		return "txhash-1", nil, true
	}
	return nil, &ResultError{Code: "failure", Info: "unknown"}, true
}

type bridgeFixture struct {
	hub    *Hub
	tokens pkgapp.TokenManager
	server *httptest.Server
}

func newBridgeFixture(t *testing.T, cfg Config) *bridgeFixture {
	gin.SetMode(gin.TestMode)
	tokens := pkgapp.NewTokenManager(pkgapp.TokenConfig{SecretKey: "bridge-test"})
	hub := NewHub(tokens, zap.NewNop(), cfg)

	r := gin.New()
	r.GET("/", hub.PageHandler("/bridge"))
	r.GET("/bridge", hub.Handler())
	server := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return &bridgeFixture{hub: hub, tokens: tokens, server: server}
}

func (f *bridgeFixture) openPage(t *testing.T, page *fakePage) *gws.Conn {
	t.Helper()
	if page.auth == nil {
		page.auth = make(chan AuthResult, 4)
	}
	addr := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/bridge"
	conn, _, err := gws.NewClient(page, &gws.ClientOption{Addr: addr})
	require.NoError(t, err)
	go conn.ReadLoop()
	t.Cleanup(func() { _ = conn.NetConn().Close() })
	return conn
}

func (f *bridgeFixture) validToken(t *testing.T) string {
	token, err := f.tokens.Generate(pkgapp.ScopeBridge, "127.0.0.1")
	require.NoError(t, err)
	return token
}

func (f *bridgeFixture) waitProviders(t *testing.T, want []string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		got, _ := f.hub.Providers(context.Background())
		return assert.ObjectsAreEqual(want, got)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBridgeAnnouncesProviders(t *testing.T) {
	f := newBridgeFixture(t, Config{})
	page := &fakePage{token: f.validToken(t), providers: []string{"nami", "eternl", ""}}
	f.openPage(t, page)

	res := <-page.auth
	assert.True(t, res.Status)
	f.waitProviders(t, []string{"eternl", "nami"})

	p, ok := f.hub.Lookup(context.Background(), "nami")
	require.True(t, ok)
	assert.Equal(t, "nami", p.Name())
	_, ok = f.hub.Lookup(context.Background(), "flint")
	assert.False(t, ok)
}

func TestBridgeRejectsInvalidToken(t *testing.T) {
	f := newBridgeFixture(t, Config{})
	page := &fakePage{token: "not-a-token", providers: []string{"nami"}}
	f.openPage(t, page)

	select {
	case res := <-page.auth:
		assert.False(t, res.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no authorization reply")
	}
	names, err := f.hub.Providers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestBridgeDiscoveryIsAsynchronous(t *testing.T) {
	f := newBridgeFixture(t, Config{})
	gw := wallet.NewGateway(f.hub, wallet.NewMemoryStore(), zap.NewNop(), wallet.Config{
		DiscoveryAttempts:    200,
		DiscoveryInterval:    5 * time.Millisecond,
		DiscoveryMaxInterval: 10 * time.Millisecond,
	})

	ch := gw.DiscoverAsync(context.Background())
	time.Sleep(20 * time.Millisecond)
	f.openPage(t, &fakePage{token: f.validToken(t), providers: []string{"nami"}})

	select {
	case res := <-ch:
		require.NoError(t, res.Err)
		assert.Equal(t, []string{"nami"}, res.Providers)
	case <-time.After(5 * time.Second):
		t.Fatal("discovery did not finish")
	}
}

func TestBridgeConnectSignAndSubmit(t *testing.T) {
	f := newBridgeFixture(t, Config{})
	page := &fakePage{token: f.validToken(t), providers: []string{"nami"}}
	f.openPage(t, page)
	f.waitProviders(t, []string{"nami"})

	gw := wallet.NewGateway(f.hub, wallet.NewMemoryStore(), zap.NewNop(), wallet.Config{})
	ctx := context.Background()

	sess, err := gw.Connect(ctx, "nami")
	require.NoError(t, err)
	assert.Equal(t, testHex, sess.Address)
	assert.Equal(t, testBech32, sess.AddressBech32)
	assert.True(t, sess.IsConnected())

	md := metadata.Format(metadata.AnchorRequest{Action: metadata.ActionCreate, NoteID: "1", Owner: testBech32, Timestamp: time.UnixMilli(1700000000123)}, strings.Repeat("a", 64))
	txHash, err := gw.SignAndSubmit(ctx, &wallet.UnsignedTx{
		Outputs:  []wallet.Output{{Address: testBech32, Lovelace: 1_000_000}},
		Metadata: map[uint64]any{metadata.Label: md},
	})
	require.NoError(t, err)
	assert.Equal(t, "txhash-1", txHash)

	signs := page.callsFor(MethodSignTx)
	require.Len(t, signs, 1)
	var params struct {
		Tx struct {
			Outputs []wallet.Output `json:"outputs"`
		} `json:"tx"`
		Partial bool `json:"partial"`
	}
	require.NoError(t, sonic.Unmarshal(signs[0].Params, &params))
	assert.True(t, params.Partial)
	require.Len(t, params.Tx.Outputs, 1)
	assert.Equal(t, uint64(1_000_000), params.Tx.Outputs[0].Lovelace)
	assert.Contains(t, string(signs[0].Params), `"674"`)

	submits := page.callsFor(MethodSubmitTx)
	require.Len(t, submits, 1)
	assert.Contains(t, string(submits[0].Params), "84a4signed")
}

func TestBridgeProviderErrors(t *testing.T) {
	t.Run("enable refused", func(t *testing.T) {
		f := newBridgeFixture(t, Config{})
		f.openPage(t, &fakePage{token: f.validToken(t), providers: []string{"nami"}, respond: func(call incomingCall) (any, *ResultError, bool) {
			if call.Method == MethodEnable {
				return nil, &ResultError{Code: "refused", Info: "user declined"}, true
			}
			return defaultRespond(call)
		}})
		f.waitProviders(t, []string{"nami"})

		gw := wallet.NewGateway(f.hub, wallet.NewMemoryStore(), zap.NewNop(), wallet.Config{})
		_, err := gw.Connect(context.Background(), "nami")
		assert.ErrorIs(t, err, apperrors.ErrUserRejected)
		assert.Equal(t, wallet.Disconnected, gw.State())
	})

	t.Run("sign refused", func(t *testing.T) {
		f := newBridgeFixture(t, Config{})
		f.openPage(t, &fakePage{token: f.validToken(t), providers: []string{"nami"}, respond: func(call incomingCall) (any, *ResultError, bool) {
			if call.Method == MethodSignTx {
				return nil, &ResultError{Code: "sign_refused", Info: "user declined"}, true
			}
			return defaultRespond(call)
		}})
		f.waitProviders(t, []string{"nami"})

		gw := wallet.NewGateway(f.hub, wallet.NewMemoryStore(), zap.NewNop(), wallet.Config{})
		_, err := gw.Connect(context.Background(), "nami")
		require.NoError(t, err)
		_, err = gw.SignAndSubmit(context.Background(), &wallet.UnsignedTx{})
		assert.ErrorIs(t, err, apperrors.ErrSigningRejected)
	})

	t.Run("unknown code is a provider failure", func(t *testing.T) {
		f := newBridgeFixture(t, Config{})
		f.openPage(t, &fakePage{token: f.validToken(t), providers: []string{"nami"}, respond: func(call incomingCall) (any, *ResultError, bool) {
			return nil, &ResultError{Code: "quota", Info: "boom"}, true
		}})
		f.waitProviders(t, []string{"nami"})

		gw := wallet.NewGateway(f.hub, wallet.NewMemoryStore(), zap.NewNop(), wallet.Config{})
		_, err := gw.Connect(context.Background(), "nami")
		assert.ErrorIs(t, err, apperrors.ErrProviderFailure)
	})
}

func TestBridgeCallTimeout(t *testing.T) {
	f := newBridgeFixture(t, Config{CallTimeout: 50 * time.Millisecond})
	f.openPage(t, &fakePage{token: f.validToken(t), providers: []string{"nami"}, respond: func(incomingCall) (any, *ResultError, bool) {
		return nil, nil, false
	}})
	f.waitProviders(t, []string{"nami"})

	p, ok := f.hub.Lookup(context.Background(), "nami")
	require.True(t, ok)
	_, err := p.Enable(context.Background())
	var pe *wallet.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, wallet.ProviderFailure, pe.Code)
}

func TestBridgePageDisconnectFailsPendingCall(t *testing.T) {
	f := newBridgeFixture(t, Config{})
	entered := make(chan struct{}, 1)
	page := &fakePage{token: f.validToken(t), providers: []string{"nami"}, respond: func(incomingCall) (any, *ResultError, bool) {
		entered <- struct{}{}
		return nil, nil, false
	}}
	conn := f.openPage(t, page)
	f.waitProviders(t, []string{"nami"})

	p, ok := f.hub.Lookup(context.Background(), "nami")
	require.True(t, ok)

	done := make(chan error, 1)
	go func() {
		_, err := p.Enable(context.Background())
		done <- err
	}()
	<-entered
	conn.WriteClose(1000, nil)

	select {
	case err := <-done:
		var pe *wallet.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, wallet.ProviderFailure, pe.Code)
	case <-time.After(3 * time.Second):
		t.Fatal("pending call not released")
	}
	f.waitProviders(t, []string{})
}

func TestBridgeCallCancelled(t *testing.T) {
	f := newBridgeFixture(t, Config{})
	f.openPage(t, &fakePage{token: f.validToken(t), providers: []string{"nami"}, respond: func(incomingCall) (any, *ResultError, bool) {
		return nil, nil, false
	}})
	f.waitProviders(t, []string{"nami"})

	p, _ := f.hub.Lookup(context.Background(), "nami")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Enable(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPageHandlerIssuesToken(t *testing.T) {
	f := newBridgeFixture(t, Config{})

	resp, err := http.Get(f.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Contains(t, string(body), "Wallet bridge")
	assert.Contains(t, string(body), `const path = "/bridge"`)
	assert.Contains(t, string(body), `const token = "ey`)
}

func TestFrameCodec(t *testing.T) {
	frame, err := EncodeFrame(FrameHello, HelloFrame{Providers: []string{"nami"}})
	require.NoError(t, err)
	assert.Equal(t, `Hello|{"providers":["nami"]}`, string(frame))

	typ, body, ok := SplitFrame(`Result|{"id":"a|b"}`)
	assert.True(t, ok)
	assert.Equal(t, FrameResult, typ)
	assert.Equal(t, `{"id":"a|b"}`, body)

	_, _, ok = SplitFrame("garbage")
	assert.False(t, ok)
}

func TestBridgeSignTxIsNotTimedOut(t *testing.T) {
	f := newBridgeFixture(t, Config{CallTimeout: 50 * time.Millisecond})
	f.openPage(t, &fakePage{token: f.validToken(t), providers: []string{"nami"}, respond: func(call incomingCall) (any, *ResultError, bool) {
		if call.Method == MethodSignTx {
			// 用户在插件里确认的时间远超 CallTimeout
			time.Sleep(200 * time.Millisecond)
		}
		return defaultRespond(call)
	}})
	f.waitProviders(t, []string{"nami"})

	gw := wallet.NewGateway(f.hub, wallet.NewMemoryStore(), zap.NewNop(), wallet.Config{})
	_, err := gw.Connect(context.Background(), "nami")
	require.NoError(t, err)

	txHash, err := gw.SignAndSubmit(context.Background(), &wallet.UnsignedTx{
		Outputs: []wallet.Output{{Address: testBech32, Lovelace: 1_000_000}},
	})
	require.NoError(t, err)
	assert.Equal(t, "txhash-1", txHash)
}
