package notesapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"
	"github.com/haierkeys/fast-note-anchor/pkg/code"
	"github.com/haierkeys/fast-note-anchor/pkg/logger"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Store operations the orchestrator needs from the notes service
// Store 编排层依赖的笔记服务操作
type Store interface {
	List(ctx context.Context) ([]Note, error)
	Get(ctx context.Context, id ID) (*Note, error)
	Create(ctx context.Context, req CreateRequest) (*Note, error)
	Update(ctx context.Context, id ID, req UpdateRequest) (*Note, error)
	Delete(ctx context.Context, id ID) error
}

// Config 客户端配置
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client HTTP implementation of Store
// Client Store 的 HTTP 实现
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ Store = (*Client)(nil)

// maxErrorBody response bytes kept in a PersistenceError
const maxErrorBody = 2048

func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) List(ctx context.Context) ([]Note, error) {
	var notes []Note
	if err := c.do(ctx, http.MethodGet, "/api/notes", nil, &notes); err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}

func (c *Client) Get(ctx context.Context, id ID) (*Note, error) {
	var note Note
	if err := c.do(ctx, http.MethodGet, notePath(id), nil, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// Create phase-1 create, returns the note with its assigned id
// Create 第一阶段创建，返回带有分配 ID 的笔记
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Note, error) {
	var note Note
	if err := c.do(ctx, http.MethodPost, "/api/notes", req, &note); err != nil {
		return nil, err
	}
	if note.ID.IsZero() {
		return nil, apperrors.NewAppError(code.ErrorPersistence, nil).WithDetails("created note has no id")
	}
	return &note, nil
}

func (c *Client) Update(ctx context.Context, id ID, req UpdateRequest) (*Note, error) {
	var note Note
	if err := c.do(ctx, http.MethodPut, notePath(id), req, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

func (c *Client) Delete(ctx context.Context, id ID) error {
	return c.do(ctx, http.MethodDelete, notePath(id), nil, nil)
}

func notePath(id ID) string {
	return "/api/notes/" + url.PathEscape(id.String())
}

// do sends one request; any non-2xx becomes a PersistenceError carrying the status
// do 发送请求，非 2xx 一律转为携带状态码的 PersistenceError
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return apperrors.NewAppError(code.ErrorPersistence, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewAppError(code.ErrorPersistence, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("notes api request failed",
			zap.String(logger.FieldMethod, method),
			zap.String(logger.FieldURL, path),
			zap.Error(err))
		return apperrors.NewAppError(code.ErrorPersistence, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("notes api",
		zap.String(logger.FieldMethod, method),
		zap.String(logger.FieldURL, path),
		zap.Int("status", resp.StatusCode),
		zap.Duration(logger.FieldDuration, time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperrors.NewPersistenceError(resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewAppError(code.ErrorPersistence, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return apperrors.NewAppError(code.ErrorPersistence, err).WithDetails("decode response")
	}
	return nil
}
