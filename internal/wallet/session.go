package wallet

// State connection state of the gateway
// State 网关连接状态
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// Session wallet session snapshot, readers always receive a copy
// Session 钱包会话快照，调用方拿到的始终是副本
type Session struct {
	ProviderName  string `json:"providerName"`
	Address       string `json:"address"`
	AddressBech32 string `json:"addressBech32"`
	Connected     bool   `json:"connected"`
	Connecting    bool   `json:"connecting"`

	api API
}

// IsConnected reports whether the session is settled and usable for signing
func (s Session) IsConnected() bool {
	return s.Connected && !s.Connecting
}
