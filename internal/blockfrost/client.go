// Package blockfrost queries the Blockfrost chain explorer for anchored transaction metadata.
// Package blockfrost 通过 Blockfrost 浏览器查询已锚定交易的元数据
package blockfrost

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/metadata"
	apperrors "github.com/haierkeys/fast-note-anchor/pkg/errors"
	"github.com/haierkeys/fast-note-anchor/pkg/code"
	"github.com/haierkeys/fast-note-anchor/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/juju/ratelimit"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	MainnetURL = "https://cardano-mainnet.blockfrost.io/api/v0"
	PreprodURL = "https://cardano-preprod.blockfrost.io/api/v0"
	PreviewURL = "https://cardano-preview.blockfrost.io/api/v0"
)

// Config 浏览器客户端配置
type Config struct {
	ProjectID string
	// BaseURL 为空时按 project id 前缀选择网络
	BaseURL string
	Timeout time.Duration
	// RatePerSecond 客户端令牌桶速率
	RatePerSecond float64
	Burst         int64
	// CacheTTL 已找到的元数据缓存时间，0 表示不缓存
	CacheTTL time.Duration
}

// MetadataEntry one label of a transaction's metadata
// MetadataEntry 交易元数据中的一个标签
type MetadataEntry struct {
	Label        string `json:"label"`
	JSONMetadata any    `json:"json_metadata"`
}

// Explorer chain lookups used by verification
// Explorer 校验流程使用的链上查询
type Explorer interface {
	TxMetadata(ctx context.Context, txHash string) ([]MetadataEntry, error)
	AnchorMetadata(ctx context.Context, txHash string) (metadata.Metadata, error)
}

// Client Blockfrost HTTP client
type Client struct {
	projectID string
	baseURL   string
	http      *http.Client
	bucket    *ratelimit.Bucket
	cache     *cache.Cache
	cacheTTL  time.Duration
	group     singleflight.Group
	logger    *zap.Logger
}

var _ Explorer = (*Client)(nil)

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 50
	}
	base := cfg.BaseURL
	if base == "" {
		base = NetworkURL(cfg.ProjectID)
	}

	c := &Client{
		projectID: cfg.ProjectID,
		baseURL:   strings.TrimRight(base, "/"),
		http:      &http.Client{Timeout: cfg.Timeout},
		bucket:    ratelimit.NewBucketWithRate(cfg.RatePerSecond, cfg.Burst),
		cacheTTL:  cfg.CacheTTL,
		logger:    logger,
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return c
}

// NetworkURL picks the API endpoint from the project id prefix
// NetworkURL 根据 project id 前缀选择网络
func NetworkURL(projectID string) string {
	switch {
	case strings.HasPrefix(projectID, "preprod"):
		return PreprodURL
	case strings.HasPrefix(projectID, "preview"):
		return PreviewURL
	}
	return MainnetURL
}

// TxMetadata GET /txs/{hash}/metadata
func (c *Client) TxMetadata(ctx context.Context, txHash string) ([]MetadataEntry, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(txHash); ok {
			return v.([]MetadataEntry), nil
		}
	}

	v, err, _ := c.group.Do(txHash, func() (any, error) {
		return c.fetch(ctx, txHash)
	})
	if err != nil {
		return nil, err
	}
	entries := v.([]MetadataEntry)
	if c.cache != nil {
		c.cache.Set(txHash, entries, cache.DefaultExpiration)
	}
	return entries, nil
}

// AnchorMetadata returns the label 674 entry of txHash parsed into Metadata
// AnchorMetadata 返回交易中标签 674 的元数据
func (c *Client) AnchorMetadata(ctx context.Context, txHash string) (metadata.Metadata, error) {
	entries, err := c.TxMetadata(ctx, txHash)
	if err != nil {
		return metadata.Metadata{}, err
	}
	return FindAnchor(entries)
}

// FindAnchor locates and parses the label 674 entry
func FindAnchor(entries []MetadataEntry) (metadata.Metadata, error) {
	label := strconv.FormatUint(metadata.Label, 10)
	for _, e := range entries {
		if e.Label != label {
			continue
		}
		m, err := metadata.Parse(e.JSONMetadata)
		if err != nil {
			return metadata.Metadata{}, apperrors.NewAppError(code.ErrorExplorer, err)
		}
		return m, nil
	}
	return metadata.Metadata{}, apperrors.NewAppError(code.ErrorExplorer, nil).WithDetails("no label " + label + " metadata")
}

func (c *Client) fetch(ctx context.Context, txHash string) ([]MetadataEntry, error) {
	if c.projectID == "" {
		return nil, apperrors.NewAppError(code.ErrorExplorer, nil).WithDetails("blockfrost project id not configured")
	}
	if err := c.wait(ctx); err != nil {
		return nil, apperrors.NewAppError(code.ErrorExplorer, err)
	}

	endpoint := c.baseURL + "/txs/" + url.PathEscape(txHash) + "/metadata"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorExplorer, err)
	}
	req.Header.Set("project_id", c.projectID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorExplorer, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewAppError(code.ErrorExplorer, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Debug("transaction not found", zap.String(logger.FieldTxHash, txHash))
		return nil, apperrors.NewAppError(code.ErrorTxNotFound, nil).WithDetails(txHash)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		e := apperrors.NewAppError(code.ErrorExplorer, nil).WithDetails(strings.TrimSpace(string(raw)))
		e.Status = resp.StatusCode
		c.logger.Warn("blockfrost error", zap.String(logger.FieldTxHash, txHash), zap.Int("status", resp.StatusCode))
		return nil, e
	}

	var entries []MetadataEntry
	if err := sonic.Unmarshal(raw, &entries); err != nil {
		return nil, apperrors.NewAppError(code.ErrorExplorer, err).WithDetails("decode metadata")
	}
	if entries == nil {
		entries = []MetadataEntry{}
	}
	c.logger.Debug("fetched transaction metadata", zap.String(logger.FieldTxHash, txHash), zap.Int("labels", len(entries)))
	return entries, nil
}

// wait takes one token from the bucket, honouring ctx cancellation
func (c *Client) wait(ctx context.Context) error {
	d := c.bucket.Take(1)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
