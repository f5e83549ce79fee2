package wallet_bridge_service

import (
	"encoding/json"
	"wave-portal-client/service/wallet_service"
)

// SocketData WebSocket generic data structure
type SocketData struct {
	M string      `json:"M"`           // method
	C interface{} `json:"C"`           // code
	D interface{} `json:"D,omitempty"` // data
}

// WebSocket method constants
const (
	// Heartbeat
	HEART_BEAT = "HEART_BEAT"
	PONG       = "PONG"

	// 钱包中继
	WALLET_REQUEST  = "WALLET_REQUEST"  // 客户端 -> 浏览器钱包
	WALLET_RESPONSE = "WALLET_RESPONSE" // 浏览器钱包 -> 客户端
	WALLET_EVENT    = "WALLET_EVENT"    // 钱包通知
)

// WebSocket code constants
const (
	WS_CODE_HEART_BEAT   = 10
	WS_CODE_REQUEST      = 1
	WS_CODE_SEND_SUCCESS = 200
	WS_CODE_SEND_ERROR   = 400
)

// EventChainChanged EIP-1193 chainChanged
const EventChainChanged = "chainChanged"

// WalletRequest EIP-1193 request({method, params})
type WalletRequest struct {
	ID     string        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params,omitempty"`
}

// WalletResponse 浏览器端 request 的结果
type WalletResponse struct {
	ID     string                        `json:"id"`
	Result json.RawMessage               `json:"result,omitempty"`
	Error  *wallet_service.ProviderError `json:"error,omitempty"`
}

// WalletEvent 钱包通知
type WalletEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// switchChainParam wallet_switchEthereumChain 参数
type switchChainParam struct {
	ChainID string `json:"chainId"`
}

// sendTxParam eth_sendTransaction 参数
type sendTxParam struct {
	From string `json:"from"`
	To   string `json:"to"`
	Data string `json:"data"`
	Gas  string `json:"gas"`
}
