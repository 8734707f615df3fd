package api_router

import (
	"github.com/haierkeys/fast-note-anchor/internal/app"
	"github.com/haierkeys/fast-note-anchor/internal/dto"
	pkgapp "github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WalletHandler 钱包 API 路由处理器
type WalletHandler struct {
	*Handler
}

// NewWalletHandler 创建 WalletHandler 实例
func NewWalletHandler(a *app.App) *WalletHandler {
	return &WalletHandler{Handler: NewHandler(a)}
}

func (h *WalletHandler) state(c *gin.Context) *dto.WalletStateResponse {
	session := h.App.Wallet.Session()
	providers, _ := h.App.Bridge.Providers(c.Request.Context())
	return &dto.WalletStateResponse{
		State:         h.App.Wallet.State().String(),
		ProviderName:  session.ProviderName,
		Address:       session.Address,
		AddressBech32: session.AddressBech32,
		Providers:     providers,
		BridgePages:   h.App.Bridge.PageCount(),
	}
}

// Get 当前钱包会话
// GET /api/wallet
func (h *WalletHandler) Get(c *gin.Context) {
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(h.state(c)))
}

// Providers 已发现的钱包插件
// GET /api/wallet/providers?wait=true
func (h *WalletHandler) Providers(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.WalletProvidersRequest{}
	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		h.App.Logger().Error("WalletHandler.Providers.BindAndValid err", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()
	if params.Wait {
		providers, err := h.App.Wallet.Discover(ctx)
		if err != nil {
			h.renderError(c, "WalletHandler.Providers", err)
			return
		}
		response.ToResponse(code.Success.WithData(providers))
		return
	}

	providers, err := h.App.Bridge.Providers(ctx)
	if err != nil {
		h.renderError(c, "WalletHandler.Providers", err)
		return
	}
	response.ToResponse(code.Success.WithData(providers))
}

// Connect 连接钱包插件
// POST /api/wallet/connect
func (h *WalletHandler) Connect(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.WalletConnectRequest{}
	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		h.App.Logger().Error("WalletHandler.Connect.BindAndValid err", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	if _, err := h.App.Wallet.Connect(c.Request.Context(), params.Provider); err != nil {
		h.renderError(c, "WalletHandler.Connect", err)
		return
	}
	response.ToResponse(code.Success.WithData(h.state(c)))
}

// Disconnect 断开钱包
// POST /api/wallet/disconnect
func (h *WalletHandler) Disconnect(c *gin.Context) {
	if err := h.App.Wallet.Disconnect(c.Request.Context()); err != nil {
		h.renderError(c, "WalletHandler.Disconnect", err)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(h.state(c)))
}
