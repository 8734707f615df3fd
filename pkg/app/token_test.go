package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManagerGenerateAndParse(t *testing.T) {
	tm := NewTokenManager(TokenConfig{SecretKey: "bridge-secret", Expiry: time.Hour, Issuer: "test-issuer"})

	token, err := tm.Generate(ScopeBridge, "127.0.0.1")
	require.NoError(t, err)

	claims, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, ScopeBridge, claims.Scope)
	assert.Equal(t, "127.0.0.1", claims.IP)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	// 过期时间允许 1 秒误差
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Second)

	assert.NoError(t, tm.Validate(token, ScopeBridge))
	assert.Error(t, tm.Validate(token, ScopeAPI))
}

func TestTokenManagerRejectsForeignTokens(t *testing.T) {
	tm := NewTokenManager(TokenConfig{SecretKey: "bridge-secret"})
	other := NewTokenManager(TokenConfig{SecretKey: "wrong-secret"})

	foreign, err := other.Generate(ScopeBridge, "")
	require.NoError(t, err)
	_, err = tm.Parse(foreign)
	assert.Error(t, err)

	token, err := tm.Generate(ScopeBridge, "")
	require.NoError(t, err)
	_, err = tm.Parse(token + "tampered")
	assert.Error(t, err)
}

func TestTokenManagerExpired(t *testing.T) {
	tm := NewTokenManager(TokenConfig{SecretKey: "bridge-secret", Expiry: -time.Minute})
	token, err := tm.Generate(ScopeAPI, "")
	require.NoError(t, err)
	assert.Error(t, tm.Validate(token, ScopeAPI))
}

func TestGetToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{"query", "/?token=abc", "", "abc"},
		{"authorization query", "/?authorization=def", "", "def"},
		{"bearer header", "/", "Bearer ghi", "ghi"},
		{"raw header", "/", "jkl", "jkl"},
		{"none", "/", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				c.Request.Header.Set("Authorization", tc.header)
			}
			assert.Equal(t, tc.want, GetToken(c))
		})
	}
}
