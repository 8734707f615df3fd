// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/blockfrost"
	"github.com/haierkeys/fast-note-anchor/internal/bridge"
	"github.com/haierkeys/fast-note-anchor/internal/dao"
	"github.com/haierkeys/fast-note-anchor/internal/domain"
	"github.com/haierkeys/fast-note-anchor/internal/notesapi"
	"github.com/haierkeys/fast-note-anchor/internal/service"
	"github.com/haierkeys/fast-note-anchor/internal/wallet"
	pkgapp "github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/workerpool"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 应用容器，封装所有依赖和服务
type App struct {
	// 基础设施（注入的依赖）
	config *AppConfig
	logger *zap.Logger
	DB     *gorm.DB
	Dao    *dao.Dao

	// 并发控制组件
	workerPool *workerpool.Pool

	// Repository 层
	SagaRepo         domain.AnchorSagaRepository
	VerificationRepo domain.VerificationRepository
	WalletKVRepo     domain.WalletKVRepository

	// 外部服务客户端
	NotesClient *notesapi.Client
	Explorer    *blockfrost.Client

	// 钱包
	Bridge *bridge.Hub
	Wallet *wallet.Gateway

	// Service 层
	AnchorService       service.AnchorService
	VerificationService service.VerificationService
	NoteService         service.NoteService

	// 基础设施组件
	TokenManager pkgapp.TokenManager

	// 关闭控制
	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// NewApp 创建应用容器实例
// 初始化所有依赖并进行依赖注入
// cfg: 应用配置（必须）
// logger: zap 日志器（必须）
// db: 数据库连接（必须）
func NewApp(cfg *AppConfig, logger *zap.Logger, db *gorm.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	a := &App{
		config:     cfg,
		logger:     logger,
		DB:         db,
		shutdownCh: make(chan struct{}),
	}

	// 初始化 Worker Pool
	wpConfig := cfg.GetWorkerPoolConfig()
	a.workerPool = workerpool.New(&wpConfig, logger)

	// 初始化 DAO
	dbConfig := cfg.GetDatabaseConfig()
	a.Dao = dao.New(db, context.Background(),
		dao.WithConfig(&dbConfig),
		dao.WithLogger(logger),
	)

	// 初始化 TokenManager
	a.TokenManager = pkgapp.NewTokenManager(pkgapp.TokenConfig{
		SecretKey: cfg.Security.BridgeTokenKey,
		Issuer:    pkgapp.DefaultTokenIssuer,
		Expiry:    cfg.GetBridgeTokenExpiry(),
	})

	// 初始化 Repository 层
	a.SagaRepo = dao.NewAnchorSagaRepository(a.Dao)
	a.VerificationRepo = dao.NewVerificationRepository(a.Dao)
	a.WalletKVRepo = dao.NewWalletKVRepository(a.Dao)

	// 外部服务
	a.NotesClient = notesapi.NewClient(cfg.GetNotesAPIConfig(), logger)
	a.Explorer = blockfrost.NewClient(cfg.GetBlockfrostConfig(), logger)

	// 钱包桥接页面与网关
	a.Bridge = bridge.NewHub(a.TokenManager, logger, cfg.GetBridgeConfig())
	a.Wallet = wallet.NewGateway(a.Bridge, a.WalletKVRepo, logger, cfg.GetWalletConfig())

	// 初始化 Service 层（依赖注入）
	svcConfig := cfg.GetServiceConfig()
	a.AnchorService = service.NewAnchorService(a.NotesClient, a.Wallet, a.SagaRepo, logger, svcConfig.Anchor)
	a.VerificationService = service.NewVerificationService(a.VerificationRepo, a.Explorer, a.workerPool, logger, svcConfig.Verification)

	// 未配置 project id 时不登记校验记录，也不等待删除交易上链
	var verification service.VerificationService
	if cfg.VerificationEnabled() {
		verification = a.VerificationService
	} else {
		logger.Warn("chain verification disabled, set blockfrost.project-id to enable it")
	}
	a.NoteService = service.NewNoteService(a.NotesClient, a.AnchorService, verification, a.Wallet, logger, svcConfig)

	logger.Info("App container initialized successfully",
		zap.Int("workerPoolMaxWorkers", wpConfig.MaxWorkers),
		zap.String("notesApi", cfg.NotesAPI.BaseURL),
		zap.Bool("verification", cfg.VerificationEnabled()))

	return a, nil
}

// GetDatabaseConfig DAO 层使用的数据库配置
func (c *AppConfig) GetDatabaseConfig() dao.DatabaseConfig {
	return dao.DatabaseConfig{
		Type:            c.Database.Type,
		Path:            c.Database.Path,
		UserName:        c.Database.UserName,
		Password:        c.Database.Password,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		Name:            c.Database.Name,
		TablePrefix:     c.Database.TablePrefix,
		AutoMigrate:     c.Database.AutoMigrate,
		Charset:         c.Database.Charset,
		ParseTime:       c.Database.ParseTime,
		SSLMode:         c.Database.SSLMode,
		MaxIdleConns:    c.Database.MaxIdleConns,
		MaxOpenConns:    c.Database.MaxOpenConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
		RunMode:         c.Server.RunMode,
	}
}

// Close 释放应用容器持有的资源
func (a *App) Close() error {
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		a.logger.Info("Database connection closed")
	}
	return nil
}

// Config 获取应用配置
func (a *App) Config() *AppConfig {
	return a.config
}

// Logger 获取日志器
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// SubmitTask 提交任务到 Worker Pool
// 返回错误如果池已满或已关闭
func (a *App) SubmitTask(ctx context.Context, task func(context.Context) error) error {
	return a.workerPool.Submit(ctx, task)
}

// WorkerPool 获取 Worker Pool（用于高级操作）
func (a *App) WorkerPool() *workerpool.Pool {
	return a.workerPool
}

// Version 获取版本信息
func (a *App) Version() pkgapp.VersionInfo {
	return pkgapp.VersionInfo{
		Version:   Version,
		GitTag:    GitTag,
		BuildTime: BuildTime,
	}
}

// IsProductionMode 是否为生产模式
// 根据日志配置中的 Production 字段判断
func (a *App) IsProductionMode() bool {
	return a.config.Log.Production
}

// RestoreWallet 启动时恢复上次连接的钱包
// 桥接页面需要先连上来，所以在后台按发现策略重试
func (a *App) RestoreWallet(ctx context.Context) {
	if !a.config.Wallet.AutoReconnect {
		return
	}
	done := a.TrackOperation()
	go func() {
		defer done()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-a.shutdownCh:
				cancel()
			case <-ctx.Done():
			}
		}()
		if session, ok := a.Wallet.AutoReconnect(ctx); ok {
			a.logger.Info("wallet restored",
				zap.String("provider", session.ProviderName),
				zap.String("address", session.AddressBech32))
		}
	}()
}

// DefaultShutdownTimeout 默认关闭超时时间
const DefaultShutdownTimeout = 30 * time.Second

// Shutdown 优雅关闭应用容器
// 按顺序关闭：桥接页面 -> Worker Pool -> 后台操作 -> Database
// ctx 用于控制关闭超时，如果为 nil 则使用默认 30 秒超时
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("App container shutting down...")

	// 如果没有提供 context，使用默认超时
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
	}

	// 标记关闭
	select {
	case <-a.shutdownCh:
		// 已经关闭
		return nil
	default:
		close(a.shutdownCh)
	}

	var errs []error

	// 0. 断开桥接页面，挂起中的钱包调用立即失败
	if a.Bridge != nil {
		a.logger.Info("Closing wallet bridge pages...", zap.Int("pages", a.Bridge.PageCount()))
		a.Bridge.Close()
	}

	// 1. 关闭 Worker Pool（停止接受新任务，等待现有任务完成）
	if a.workerPool != nil {
		a.logger.Info("Shutting down worker pool...")
		if err := a.workerPool.Shutdown(ctx); err != nil {
			a.logger.Warn("Worker pool shutdown error", zap.Error(err))
			errs = append(errs, fmt.Errorf("worker pool shutdown: %w", err))
		} else {
			a.logger.Info("Worker pool shutdown completed")
		}
	}

	// 2. 等待所有后台操作完成
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("All background operations completed")
	case <-ctx.Done():
		a.logger.Warn("Shutdown timeout waiting for background operations")
		errs = append(errs, fmt.Errorf("background operations timeout: %w", ctx.Err()))
	}

	// 3. 关闭数据库连接
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		a.logger.Warn("App container shutdown completed with errors",
			zap.Int("errorCount", len(errs)))
		return fmt.Errorf("shutdown completed with %d errors: %v", len(errs), errs)
	}

	a.logger.Info("App container shutdown completed successfully")
	return nil
}

// IsShuttingDown 检查应用是否正在关闭
func (a *App) IsShuttingDown() bool {
	select {
	case <-a.shutdownCh:
		return true
	default:
		return false
	}
}

// ShutdownCh 返回关闭信号通道（用于监听关闭事件）
func (a *App) ShutdownCh() <-chan struct{} {
	return a.shutdownCh
}

// TrackOperation 跟踪后台操作（用于优雅关闭时等待）
// 返回一个函数，在操作完成时调用
func (a *App) TrackOperation() func() {
	a.wg.Add(1)
	return func() {
		a.wg.Done()
	}
}
