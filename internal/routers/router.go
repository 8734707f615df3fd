package routers

import (
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/app"
	"github.com/haierkeys/fast-note-anchor/internal/middleware"
	"github.com/haierkeys/fast-note-anchor/internal/routers/api_router"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
)

// BridgePath 钱包桥接页面的 websocket 路径
const BridgePath = "/bridge"

func NewRouter(appContainer *app.App, uni *ut.UniversalTranslator) *gin.Engine {

	// 获取配置
	cfg := appContainer.Config()
	logger := appContainer.Logger()

	r := gin.New()
	r.Use(middleware.RecoveryWithLogger(logger))

	// 钱包桥接页面，浏览器插件只在页面上下文中可用
	r.GET("/", appContainer.Bridge.PageHandler(BridgePath))
	r.GET(BridgePath, appContainer.Bridge.Handler())

	healthHandler := api_router.NewHealthHandler(appContainer)
	walletHandler := api_router.NewWalletHandler(appContainer)
	noteHandler := api_router.NewNoteHandler(appContainer)
	verificationHandler := api_router.NewVerificationHandler(appContainer)

	api := r.Group("/api")
	{
		api.Use(middleware.TraceMiddleware(cfg.Tracer.Enabled, cfg.Tracer.Header)) // Trace ID 中间件
		api.Use(middleware.AccessLog(logger))
		api.Use(middleware.RateLimiter(middleware.NewIPLimiter(cfg.App.RateLimit, cfg.App.RateBurst)))
		api.Use(middleware.LangWithTranslator(uni, cfg.App.Language))

		// 无需认证
		api.GET("/health", healthHandler.Check)
		api.GET("/version", healthHandler.Version)

		auth := api.Group("", middleware.SimpleAuthTokenWithConfig(cfg.Security.AuthToken))

		// 普通接口使用默认超时
		// 锚定接口需要等待用户在钱包中确认签名，不设请求超时
		timed := auth.Group("", middleware.ContextTimeout(time.Duration(cfg.App.DefaultContextTimeout)*time.Second))
		{
			timed.GET("/wallet", walletHandler.Get)
			timed.GET("/wallet/providers", walletHandler.Providers)
			timed.POST("/wallet/disconnect", walletHandler.Disconnect)

			timed.GET("/notes", noteHandler.List)
			timed.GET("/notes/pending", noteHandler.Pending)
			timed.GET("/notes/:id/verify", noteHandler.Verify)
			timed.GET("/notes/:id/verifications", verificationHandler.ListForNote)
			timed.GET("/notes/:id/verifications/latest", verificationHandler.LatestForNote)

			timed.GET("/verifications/stats", verificationHandler.Stats)
			timed.GET("/verifications/pending", verificationHandler.Pending)
			timed.GET("/verifications/worker/status", verificationHandler.WorkerStatus)
			timed.GET("/verifications/tx/:txHash", verificationHandler.GetByTxHash)
			timed.GET("/verifications/:id", verificationHandler.Get)
			timed.POST("/verifications/:id/retry", verificationHandler.Retry)
		}

		auth.POST("/wallet/connect", walletHandler.Connect)
		auth.POST("/notes", noteHandler.Create)
		auth.PUT("/notes/:id", noteHandler.Update)
		auth.DELETE("/notes/:id", noteHandler.Delete)
		auth.POST("/notes/:id/resume", noteHandler.Resume)
	}

	r.NoRoute(middleware.NoFound())

	return r
}
