// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/blockfrost"
	"github.com/haierkeys/fast-note-anchor/internal/bridge"
	"github.com/haierkeys/fast-note-anchor/internal/notesapi"
	"github.com/haierkeys/fast-note-anchor/internal/service"
	"github.com/haierkeys/fast-note-anchor/internal/wallet"
	"github.com/haierkeys/fast-note-anchor/pkg/util"
	"github.com/haierkeys/fast-note-anchor/pkg/workerpool"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// 可由环境变量或 .env 覆盖的配置项
const (
	EnvNotesAPIURL         = "FNA_NOTES_API_URL"
	EnvBlockfrostProjectID = "FNA_BLOCKFROST_PROJECT_ID"
	EnvAuthToken           = "FNA_AUTH_TOKEN"
)

// AppConfig 应用配置
type AppConfig struct {
	File         string             `yaml:"-"` // 配置文件路径，不序列化
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	NotesAPI     NotesAPIConfig     `yaml:"notes-api"`
	Blockfrost   BlockfrostConfig   `yaml:"blockfrost"`
	Wallet       WalletConfig       `yaml:"wallet"`
	Anchor       AnchorConfig       `yaml:"anchor"`
	Verification VerificationConfig `yaml:"verification"`
	App          AppSettings        `yaml:"app"`
	Security     SecurityConfig     `yaml:"security"`
	Tracer       TracerConfig       `yaml:"tracer"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别，参见 zapcore.ParseLevel
	Level string `yaml:"level" default:"info" validate:"oneof=debug info warn error dpanic panic fatal"`
	// File 日志文件路径，为空则只输出到控制台
	File string `yaml:"file" default:"storage/logs/anchor.log"`
	// Production 是否启用 JSON 输出
	Production bool `yaml:"production" default:"true"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// RunMode 运行模式
	RunMode string `yaml:"run-mode" default:"release" validate:"oneof=debug release test"`
	// HttpPort HTTP 监听地址，默认只监听本机
	HttpPort string `yaml:"http-port" default:"127.0.0.1:9200" validate:"required"`
	// ReadTimeout 读取超时（秒）
	ReadTimeout int `yaml:"read-timeout" default:"60"`
	// WriteTimeout 写入超时（秒），需覆盖等待用户签名的时间
	WriteTimeout int `yaml:"write-timeout" default:"300"`
	// PrivateHttpListen 私有 HTTP 监听地址（metrics / expvar），为空不启动
	PrivateHttpListen string `yaml:"private-http-listen" default:"127.0.0.1:9201"`
}

// DatabaseConfig 本地数据库配置
type DatabaseConfig struct {
	// Type 数据库类型
	Type string `yaml:"type" default:"sqlite" validate:"oneof=sqlite mysql postgres"`
	// Path SQLite 数据库文件路径
	Path string `yaml:"path" default:"storage/database/anchor.sqlite3"`
	// UserName 用户名
	UserName string `yaml:"username"`
	// Password 密码
	Password string `yaml:"password"`
	// Host 主机
	Host string `yaml:"host"`
	// Port 端口，0 使用驱动默认值
	Port int `yaml:"port"`
	// Name 数据库名
	Name string `yaml:"name"`
	// TablePrefix 表前缀
	TablePrefix string `yaml:"table-prefix"`
	// AutoMigrate 是否启用自动迁移
	AutoMigrate bool `yaml:"auto-migrate" default:"true"`
	// Charset 字符集
	Charset string `yaml:"charset" default:"utf8mb4"`
	// ParseTime 是否解析时间
	ParseTime bool `yaml:"parse-time" default:"true"`
	// SSLMode postgres sslmode
	SSLMode string `yaml:"ssl-mode" default:"disable"`
	// MaxIdleConns 最大闲置连接数
	MaxIdleConns int `yaml:"max-idle-conns" default:"10"`
	// MaxOpenConns 最大打开连接数
	MaxOpenConns int `yaml:"max-open-conns" default:"50"`
	// ConnMaxLifetime 连接最大生命周期
	ConnMaxLifetime string `yaml:"conn-max-lifetime" default:"30m"`
	// ConnMaxIdleTime 空闲连接最大生命周期
	ConnMaxIdleTime string `yaml:"conn-max-idle-time" default:"10m"`
}

// NotesAPIConfig 笔记服务配置
type NotesAPIConfig struct {
	// BaseURL 笔记服务地址，如 http://localhost:5000
	BaseURL string `yaml:"base-url" default:"http://localhost:5000" validate:"required,url"`
	// Timeout 请求超时
	Timeout string `yaml:"timeout" default:"15s"`
}

// BlockfrostConfig 链浏览器配置
type BlockfrostConfig struct {
	// ProjectID Blockfrost project id，为空时关闭链上校验
	ProjectID string `yaml:"project-id"`
	// BaseURL 为空时按 project id 前缀选择网络
	BaseURL string `yaml:"base-url" validate:"omitempty,url"`
	Timeout string `yaml:"timeout" default:"10s"`
	// RatePerSecond 客户端限速
	RatePerSecond float64 `yaml:"rate-per-second" default:"10"`
	Burst         int64   `yaml:"burst" default:"50"`
	// CacheTTL 已找到的元数据缓存时间
	CacheTTL string `yaml:"cache-ttl" default:"10m"`
}

// WalletConfig 钱包与桥接页面配置
type WalletConfig struct {
	// AutoReconnect 启动时恢复上次连接的钱包
	AutoReconnect bool `yaml:"auto-reconnect" default:"true"`
	// DiscoveryAttempts 发现钱包插件的最大轮询次数
	DiscoveryAttempts int `yaml:"discovery-attempts" default:"10" validate:"gte=1"`
	// DiscoveryInterval 首次轮询间隔
	DiscoveryInterval string `yaml:"discovery-interval" default:"500ms"`
	// DiscoveryMaxInterval 轮询间隔上限
	DiscoveryMaxInterval string `yaml:"discovery-max-interval" default:"5s"`
	// CallTimeout 单次钱包调用超时（含用户确认）
	CallTimeout string `yaml:"call-timeout" default:"2m"`
	// PingInterval 桥接页面心跳间隔
	PingInterval string `yaml:"ping-interval" default:"25s"`
	// PingWait 心跳超时
	PingWait string `yaml:"ping-wait" default:"40s"`
}

// AnchorConfig 锚定配置
type AnchorConfig struct {
	// SelfPaymentLovelace 锚定交易的自付款金额
	SelfPaymentLovelace uint64 `yaml:"self-payment-lovelace" default:"1000000" validate:"gte=1000000"`
	// RequireDeleteConfirmation 删除前等待锚定交易上链
	RequireDeleteConfirmation bool `yaml:"require-delete-confirmation" default:"true"`
}

// VerificationConfig 链上校验配置
type VerificationConfig struct {
	// Enabled 是否启用后台校验任务（需要 blockfrost.project-id）
	Enabled bool `yaml:"enabled" default:"true"`
	// Schedule cron 表达式或 @every 描述符
	Schedule string `yaml:"schedule" default:"@every 30s"`
	// BatchSize 每批处理数量
	BatchSize int `yaml:"batch-size" default:"10" validate:"gte=1,lte=500"`
	// MaxRetries 单笔交易最大校验次数
	MaxRetries int `yaml:"max-retries" default:"10" validate:"gte=1"`
	// ExpireInterval 过期标记任务间隔
	ExpireInterval string `yaml:"expire-interval" default:"5m"`
	// ConfirmTimeout 删除前等待上链的超时时间
	ConfirmTimeout string `yaml:"confirm-timeout" default:"3m"`
	// ConfirmInterval 等待上链的首次轮询间隔
	ConfirmInterval string `yaml:"confirm-interval" default:"5s"`
}

// AppSettings 应用设置
type AppSettings struct {
	// DefaultContextTimeout 默认请求超时（秒），锚定接口除外
	DefaultContextTimeout int `yaml:"default-context-timeout" default:"60"`
	// Language 默认响应语言
	Language string `yaml:"language" default:"en" validate:"oneof=en zh_cn"`
	// Worker Pool 配置
	WorkerPoolMaxWorkers int `yaml:"worker-pool-max-workers" default:"4"`
	WorkerPoolQueueSize  int `yaml:"worker-pool-queue-size" default:"64"`
	// RateLimit 控制接口每秒请求数，0 表示不限制
	RateLimit float64 `yaml:"rate-limit" default:"20"`
	RateBurst int64   `yaml:"rate-burst" default:"40"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	// AuthToken 控制接口访问令牌，为空不校验
	AuthToken string `yaml:"auth-token"`
	// BridgeTokenKey 桥接页面 token 签名密钥
	BridgeTokenKey string `yaml:"bridge-token-key" default:"fast-note-anchor-Bridge-Token"`
	// BridgeTokenExpiry 桥接页面 token 过期时间，支持 d 后缀
	BridgeTokenExpiry string `yaml:"bridge-token-expiry" default:"1d"`
}

// TracerConfig 请求追踪配置
type TracerConfig struct {
	// Enabled 是否启用追踪
	Enabled bool `yaml:"enabled" default:"true"`
	// Header 追踪 ID 请求头名称
	Header string `yaml:"header" default:"X-Trace-ID"`
}

// LoadConfig 从文件加载配置
// 返回配置实例和配置文件的绝对路径
func LoadConfig(f string) (*AppConfig, string, error) {
	realpath, err := filepath.Abs(f)
	if err != nil {
		return nil, "", err
	}
	realpath = filepath.Clean(realpath)

	c := new(AppConfig)
	c.File = realpath

	// 设置默认值
	if err := defaults.Set(c); err != nil {
		return nil, realpath, errors.Wrap(err, "set default config failed")
	}

	file, err := os.ReadFile(realpath)
	if err != nil {
		return nil, realpath, errors.Wrap(err, "read config file failed")
	}

	if err := yaml.Unmarshal(file, c); err != nil {
		return nil, realpath, errors.Wrap(err, "parse config file failed")
	}

	// 默认值只在解析前填充一次，否则显式的 false / 0 会被改回默认值

	// .env 与环境变量覆盖密钥类配置
	envFile := filepath.Join(filepath.Dir(realpath), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, realpath, errors.Wrap(err, "load .env failed")
		}
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, realpath, err
	}

	return c, realpath, nil
}

// applyEnv 环境变量优先于配置文件
func (c *AppConfig) applyEnv() {
	if v := os.Getenv(EnvNotesAPIURL); v != "" {
		c.NotesAPI.BaseURL = v
	}
	if v := os.Getenv(EnvBlockfrostProjectID); v != "" {
		c.Blockfrost.ProjectID = v
	}
	if v := os.Getenv(EnvAuthToken); v != "" {
		c.Security.AuthToken = v
	}
}

// Validate 校验配置取值以及时长格式
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	durations := map[string]string{
		"notes-api.timeout":                c.NotesAPI.Timeout,
		"blockfrost.timeout":               c.Blockfrost.Timeout,
		"blockfrost.cache-ttl":             c.Blockfrost.CacheTTL,
		"wallet.discovery-interval":        c.Wallet.DiscoveryInterval,
		"wallet.discovery-max-interval":    c.Wallet.DiscoveryMaxInterval,
		"wallet.call-timeout":              c.Wallet.CallTimeout,
		"wallet.ping-interval":             c.Wallet.PingInterval,
		"wallet.ping-wait":                 c.Wallet.PingWait,
		"verification.expire-interval":     c.Verification.ExpireInterval,
		"verification.confirm-timeout":     c.Verification.ConfirmTimeout,
		"verification.confirm-interval":    c.Verification.ConfirmInterval,
		"security.bridge-token-expiry":     c.Security.BridgeTokenExpiry,
		"database.conn-max-lifetime":       c.Database.ConnMaxLifetime,
		"database.conn-max-idle-time":      c.Database.ConnMaxIdleTime,
	}
	for key, v := range durations {
		if v == "" {
			continue
		}
		if _, err := util.ParseDuration(v); err != nil {
			return errors.Wrapf(err, "invalid config %s", key)
		}
	}
	return nil
}

// Save 保存配置到文件
func (c *AppConfig) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config failed")
	}

	if err := os.WriteFile(c.File, data, 0644); err != nil {
		return errors.Wrap(err, "write config file failed")
	}

	return nil
}

// duration 已在 Validate 中校验，解析失败时退回 def
func duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := util.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// GetWorkerPoolConfig 获取 Worker Pool 配置
func (c *AppConfig) GetWorkerPoolConfig() workerpool.Config {
	cfg := workerpool.DefaultConfig()

	if c.App.WorkerPoolMaxWorkers > 0 {
		cfg.MaxWorkers = c.App.WorkerPoolMaxWorkers
	}
	if c.App.WorkerPoolQueueSize > 0 {
		cfg.QueueSize = c.App.WorkerPoolQueueSize
	}

	return cfg
}

// GetNotesAPIConfig 笔记服务客户端配置
func (c *AppConfig) GetNotesAPIConfig() notesapi.Config {
	return notesapi.Config{
		BaseURL: c.NotesAPI.BaseURL,
		Timeout: duration(c.NotesAPI.Timeout, 15*time.Second),
	}
}

// GetBlockfrostConfig 链浏览器客户端配置
func (c *AppConfig) GetBlockfrostConfig() blockfrost.Config {
	return blockfrost.Config{
		ProjectID:     c.Blockfrost.ProjectID,
		BaseURL:       c.Blockfrost.BaseURL,
		Timeout:       duration(c.Blockfrost.Timeout, 10*time.Second),
		RatePerSecond: c.Blockfrost.RatePerSecond,
		Burst:         c.Blockfrost.Burst,
		CacheTTL:      duration(c.Blockfrost.CacheTTL, 0),
	}
}

// VerificationEnabled 链上校验需要 project id
func (c *AppConfig) VerificationEnabled() bool {
	return c.Verification.Enabled && c.Blockfrost.ProjectID != ""
}

// GetWalletConfig 钱包网关配置
func (c *AppConfig) GetWalletConfig() wallet.Config {
	return wallet.Config{
		DiscoveryAttempts:    c.Wallet.DiscoveryAttempts,
		DiscoveryInterval:    duration(c.Wallet.DiscoveryInterval, 500*time.Millisecond),
		DiscoveryMaxInterval: duration(c.Wallet.DiscoveryMaxInterval, 5*time.Second),
	}
}

// GetBridgeConfig 桥接页面配置
func (c *AppConfig) GetBridgeConfig() bridge.Config {
	return bridge.Config{
		PingInterval: duration(c.Wallet.PingInterval, bridge.DefaultPingInterval),
		PingWait:     duration(c.Wallet.PingWait, bridge.DefaultPingWait),
		CallTimeout:  duration(c.Wallet.CallTimeout, bridge.DefaultCallTimeout),
	}
}

// GetServiceConfig 服务层配置
func (c *AppConfig) GetServiceConfig() *service.ServiceConfig {
	return &service.ServiceConfig{
		Anchor: service.AnchorServiceConfig{
			SelfPaymentLovelace:       c.Anchor.SelfPaymentLovelace,
			RequireDeleteConfirmation: c.Anchor.RequireDeleteConfirmation,
		},
		Verification: service.VerificationServiceConfig{
			MaxRetries:      c.Verification.MaxRetries,
			BatchSize:       c.Verification.BatchSize,
			ConfirmTimeout:  duration(c.Verification.ConfirmTimeout, 3*time.Minute),
			ConfirmInterval: duration(c.Verification.ConfirmInterval, 5*time.Second),
		},
	}
}

// GetBridgeTokenExpiry 获取桥接页面 Token 过期时间
func (c *AppConfig) GetBridgeTokenExpiry() time.Duration {
	return duration(c.Security.BridgeTokenExpiry, 24*time.Hour)
}
