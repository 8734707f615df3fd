package notesapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/"}, zap.NewNop())
}

func TestCreateSendsNoChainFields(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/notes", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(raw, &got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":17,"title":"Groceries","content":"Milk, eggs, bread"}`))
	})

	note, err := c.Create(context.Background(), CreateRequest{Title: "Groceries", Content: "Milk, eggs, bread"})
	require.NoError(t, err)

	assert.Equal(t, ID("17"), note.ID)
	assert.Equal(t, "Groceries", note.Title)
	assert.NotContains(t, got, "contentHash")
	assert.NotContains(t, got, "lastTxHash")
	assert.NotContains(t, got, "ownerWallet")
}

func TestCreateWithoutIDFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"title":"x","content":"y"}`))
	})

	_, err := c.Create(context.Background(), CreateRequest{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}

func TestUpdateAndStringID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/notes/abc-1", r.URL.Path)
		var body UpdateRequest
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(raw, &body))
		body.Title = body.Title + "!"
		resp, _ := sonic.Marshal(Note{ID: "abc-1", Title: body.Title, Content: body.Content, ContentHash: body.ContentHash, LastTxHash: body.LastTxHash})
		_, _ = w.Write(resp)
	})

	note, err := c.Update(context.Background(), "abc-1", UpdateRequest{Title: "t", Content: "c", ContentHash: "h", LastTxHash: "tx"})
	require.NoError(t, err)
	assert.Equal(t, ID("abc-1"), note.ID)
	assert.Equal(t, "t!", note.Title)
	assert.True(t, note.IsAnchored())
}

func TestNon2xxIsPersistenceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("database unavailable"))
	})

	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, []string{"database unavailable"}, appErr.Details)
}

func TestDeleteAcceptsNoContent(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Delete(context.Background(), "5"))
	assert.True(t, called)
}

func TestDeleteNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.Delete(context.Background(), "5")
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestListEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	notes, err := c.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)
}

func TestTransportFailure(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	_, err := c.Get(context.Background(), "1")
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}

func TestIDUnmarshal(t *testing.T) {
	var n Note
	require.NoError(t, sonic.Unmarshal([]byte(`{"id":"x9"}`), &n))
	assert.Equal(t, ID("x9"), n.ID)

	require.NoError(t, sonic.Unmarshal([]byte(`{"id":42}`), &n))
	assert.Equal(t, ID("42"), n.ID)

	assert.Error(t, sonic.Unmarshal([]byte(`{"id":true}`), &n))
}
