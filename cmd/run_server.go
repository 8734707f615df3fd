package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	internalApp "github.com/haierkeys/fast-note-anchor/internal/app"
	"github.com/haierkeys/fast-note-anchor/internal/dao"
	"github.com/haierkeys/fast-note-anchor/internal/routers"
	"github.com/haierkeys/fast-note-anchor/internal/routers/api_router"
	"github.com/haierkeys/fast-note-anchor/internal/task"
	pkgapp "github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"
	"github.com/haierkeys/fast-note-anchor/pkg/logger"
	"github.com/haierkeys/fast-note-anchor/pkg/safe_close"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// defaultSecretKeys 需要提示修改的默认密钥
var defaultSecretKeys = []string{
	defaultAuthToken,
	"fast-note-anchor-Bridge-Token",
}

// activeApp 当前运行中的 App Container，配置热加载后会被替换
var activeApp atomic.Pointer[internalApp.App]

type Server struct {
	logger            *zap.Logger             // 日志对象
	config            *internalApp.AppConfig  // 应用配置
	db                *gorm.DB                // 数据库连接
	ut                *ut.UniversalTranslator // 翻译器
	httpServer        *http.Server
	privateHttpServer *http.Server
	sc                *safe_close.SafeClose
	app               *internalApp.App
}

// checkSecurityConfig 使用默认密钥或未设置控制接口令牌时输出警告
func checkSecurityConfig(cfg *internalApp.AppConfig, lg *zap.Logger) {
	var warnings []string
	if cfg.Security.AuthToken == "" {
		warnings = append(warnings, "security.auth-token is empty, the control API is open to anyone who can reach "+cfg.Server.HttpPort)
	}
	for _, key := range defaultSecretKeys {
		if cfg.Security.AuthToken == key || cfg.Security.BridgeTokenKey == key {
			warnings = append(warnings, "security keys still use the default value, please change them in "+cfg.File)
			break
		}
	}
	if len(warnings) == 0 {
		return
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("⚠️  SECURITY WARNING")
	for _, w := range warnings {
		fmt.Println("  " + w)
		lg.Warn(w)
	}
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println()
}

func NewServer(runEnv *runFlags) (*Server, error) {

	appConfig, configRealpath, err := internalApp.LoadConfig(runEnv.config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 命令行参数优先于配置文件
	if len(runEnv.runMode) > 0 {
		appConfig.Server.RunMode = runEnv.runMode
	}
	if len(runEnv.port) > 0 {
		appConfig.Server.HttpPort = overrideListenPort(appConfig.Server.HttpPort, runEnv.port)
	}
	gin.SetMode(appConfig.Server.RunMode)

	s := &Server{
		config: appConfig,
		sc:     safe_close.NewSafeClose(),
	}

	if err := initLoggerWithConfig(s, appConfig); err != nil {
		return nil, fmt.Errorf("initLogger: %w", err)
	}

	checkSecurityConfig(appConfig, s.logger)

	if err := code.SetGlobalDefaultLang(appConfig.App.Language); err != nil {
		s.logger.Warn("app.language", zap.Error(err))
	}

	if err := initStorageWithConfig(appConfig); err != nil {
		return nil, fmt.Errorf("initStorage: %w", err)
	}

	db, err := dao.NewDBEngine(appConfig.GetDatabaseConfig())
	if err != nil {
		return nil, fmt.Errorf("initDatabase: %w", err)
	}
	s.db = db

	app, err := internalApp.NewApp(appConfig, s.logger, db)
	if err != nil {
		return nil, fmt.Errorf("failed to create app container: %w", err)
	}
	s.app = app
	activeApp.Store(app)

	uni, err := pkgapp.NewTranslator()
	if err != nil {
		return nil, fmt.Errorf("initValidator: %w", err)
	}
	s.ut = uni

	api_router.PublishExpvars(activeApp.Load)

	// 启动调度器
	initScheduler(s)

	banner := `
    ______           __     _   __      __          ___                __
   / ____/___ ______/ /_   / | / /___  / /____     /   |  ____  _____/ /_  ____  _____
  / /_  / __ '/ ___/ __/  /  |/ / __ \/ __/ _ \   / /| | / __ \/ ___/ __ \/ __ \/ ___/
 / __/ / /_/ (__  ) /_   / /|  / /_/ / /_/  __/  / ___ |/ / / / /__/ / / / /_/ / /
/_/    \__,_/____/\__/  /_/ |_/\____/\__/\___/  /_/  |_/_/ /_/\___/_/ /_/\____/_/     `
	s.logger.Warn(fmt.Sprintf("%s\n\n%s v%s\nGit: %s\nBuildTime: %s\n", banner, internalApp.Name, internalApp.Version, internalApp.GitTag, internalApp.BuildTime))

	s.logger.Warn("config loaded", zap.String("path", configRealpath))

	// 控制接口与钱包桥接页面
	if httpAddr := appConfig.Server.HttpPort; len(httpAddr) > 0 {
		s.logger.Warn("api_router", zap.String("config.server.HttpPort", httpAddr),
			zap.String("bridge", "http://"+httpAddr+"/"))
		s.httpServer = &http.Server{
			Addr:           httpAddr,
			Handler:        routers.NewRouter(s.app, s.ut),
			ReadTimeout:    time.Duration(appConfig.Server.ReadTimeout) * time.Second,
			WriteTimeout:   time.Duration(appConfig.Server.WriteTimeout) * time.Second,
			MaxHeaderBytes: 1 << 20,
		}
		s.attachHTTPServer("api service", s.httpServer)
	}

	if httpAddr := appConfig.Server.PrivateHttpListen; len(httpAddr) > 0 {
		s.logger.Info("api_router", zap.String("config.server.PrivateHttpListen", httpAddr))
		s.privateHttpServer = &http.Server{
			Addr:           httpAddr,
			Handler:        routers.NewPrivateRouterWithLogger(appConfig.Server.RunMode, s.logger),
			ReadTimeout:    time.Duration(appConfig.Server.ReadTimeout) * time.Second,
			WriteTimeout:   time.Duration(appConfig.Server.WriteTimeout) * time.Second,
			MaxHeaderBytes: 1 << 20,
		}
		s.attachHTTPServer("private api service", s.privateHttpServer)
	}

	// 桥接页面连上之后恢复上次的钱包会话
	s.app.RestoreWallet(context.Background())

	// 注册 App Container 的优雅关闭
	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		<-closeSignal
		if s.app != nil {
			ctx, cancel := context.WithTimeout(context.Background(), internalApp.DefaultShutdownTimeout)
			defer cancel()

			if err := s.app.Shutdown(ctx); err != nil {
				s.logger.Error("failed to shutdown app container", zap.Error(err))
			} else {
				s.logger.Info("App container shutdown gracefully")
			}
		}
		_ = s.logger.Sync()
	})

	return s, nil
}

// attachHTTPServer 在 safe_close 中运行 http.Server，收到关闭信号时优雅停止
func (s *Server) attachHTTPServer(name string, srv *http.Server) {
	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		errChan := make(chan error, 1)
		go func() {
			errChan <- srv.ListenAndServe()
		}()
		select {
		case err := <-errChan:
			s.logger.Error(name+" err", zap.Error(err))
			s.sc.SendCloseSignal(err)
		case <-closeSignal:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				s.logger.Error(name+" shutdown error", zap.Error(err))
			}
		}
	})
}

func initScheduler(s *Server) {
	manager := task.NewManager(s.logger, s.sc, s.app)

	// 注册所有任务(业务层控制)
	if err := manager.RegisterTasks(); err != nil {
		s.logger.Error("failed to register tasks", zap.Error(err))
		return
	}

	manager.Start()
}

// initLoggerWithConfig 初始化日志器
func initLoggerWithConfig(s *Server, cfg *internalApp.AppConfig) error {
	lg, err := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		Production: cfg.Log.Production,
	})
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	s.logger = lg

	return nil
}

// initStorageWithConfig 创建日志与 SQLite 所在目录
func initStorageWithConfig(cfg *internalApp.AppConfig) error {
	dirs := []string{filepath.Dir(cfg.Log.File)}
	if cfg.Database.Type == "sqlite" && cfg.Database.Path != ":memory:" {
		dirs = append(dirs, filepath.Dir(cfg.Database.Path))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0754); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// overrideListenPort 用 -p 覆盖监听地址
// 只给端口时保留配置中的主机部分
func overrideListenPort(addr, port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, port)
}

// GetApp 获取 App Container
func (s *Server) GetApp() *internalApp.App {
	return s.app
}

// GetConfig 获取应用配置
func (s *Server) GetConfig() *internalApp.AppConfig {
	return s.config
}
