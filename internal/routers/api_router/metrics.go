package api_router

import (
	"expvar"
	"sync"

	"github.com/haierkeys/fast-note-anchor/internal/app"

	"github.com/gin-gonic/gin"
)

var publishOnce sync.Once

// PublishExpvars 导出钱包与桥接状态，同一进程只注册一次
// 配置热重载会重建 App，变量读取最新的容器
func PublishExpvars(current func() *app.App) {
	publishOnce.Do(func() {
		expvar.Publish("wallet_state", expvar.Func(func() any {
			if a := current(); a != nil {
				return a.Wallet.State().String()
			}
			return ""
		}))
		expvar.Publish("bridge_pages", expvar.Func(func() any {
			if a := current(); a != nil {
				return a.Bridge.PageCount()
			}
			return 0
		}))
		expvar.Publish("worker_pool", expvar.Func(func() any {
			if a := current(); a != nil {
				return a.WorkerPool().GetMetrics()
			}
			return nil
		}))
	})
}

// Expvar 以 JSON 输出全部 expvar 变量
var Expvar = gin.WrapH(expvar.Handler())
