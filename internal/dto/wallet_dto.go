package dto

// WalletConnectRequest 连接钱包请求
type WalletConnectRequest struct {
	// Provider 钱包插件名称，如 nami / eternl
	Provider string `json:"provider" form:"provider" binding:"required,max=64"`
}

// WalletProvidersRequest 钱包插件列表请求
type WalletProvidersRequest struct {
	// Wait 为 true 时按发现策略轮询直到出现插件
	Wait bool `json:"wait" form:"wait"`
}

// WalletStateResponse 当前钱包状态
type WalletStateResponse struct {
	State         string   `json:"state"`
	ProviderName  string   `json:"providerName,omitempty"`
	Address       string   `json:"address,omitempty"`
	AddressBech32 string   `json:"addressBech32,omitempty"`
	Providers     []string `json:"providers"`
	BridgePages   int      `json:"bridgePages"`
}
