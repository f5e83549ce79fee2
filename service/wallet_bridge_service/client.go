package wallet_bridge_service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"
	"wave-portal-client/service/wallet_service"

	"github.com/google/uuid"
	"github.com/zishang520/socket.io/clients/engine/v3/transports"
	socketio "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

// Config Socket.IO 客户端配置
type Config struct {
	ServerURL string `yaml:"server_url" json:"server_url"` // 中继服务器地址
	BridgeKey string `yaml:"bridge_key" json:"bridge_key"` // 与浏览器页面配对的 key
	Path      string `yaml:"path" json:"path"`             // Socket.IO路径，默认 "/socket.io/"
	Timeout   int    `yaml:"timeout" json:"timeout"`       // 连接超时秒数，默认10秒
}

// Client Socket.IO 客户端，转发 EIP-1193 请求到浏览器钱包
type Client struct {
	config    *Config
	socket    *socketio.Socket
	connected bool
	mu        sync.RWMutex

	emit func(event string, args ...interface{})

	pendingMu sync.Mutex
	pending   map[string]chan *WalletResponse

	handlersMu sync.RWMutex
	handlers   map[string][]EventHandler

	OnConnect    func()
	OnDisconnect func()
	OnError      func(error)
}

// NewClient 创建新的客户端
func NewClient(config *Config) *Client {
	if config.Path == "" {
		config.Path = "/socket.io/"
	}
	if config.Timeout == 0 {
		config.Timeout = 10
	}

	return &Client{
		config:   config,
		pending:  make(map[string]chan *WalletResponse),
		handlers: make(map[string][]EventHandler),
	}
}

// Start 启动客户端连接
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.socket != nil && c.connected {
		return nil
	}

	options := socketio.DefaultOptions()
	options.SetTransports(types.NewSet(
		transports.Polling,
		transports.WebSocket,
	))
	options.SetPath(c.config.Path)
	options.SetQuery(
		url.Values{
			"bridgeKey": {c.config.BridgeKey},
		},
	)
	options.SetTimeout(time.Duration(c.config.Timeout) * time.Second)

	socket, err := socketio.Connect(c.config.ServerURL, options)
	if err != nil {
		log.Printf("❌ Failed to connect to wallet bridge: %v", err)
		if c.OnError != nil {
			go c.OnError(err)
		}
		return err
	}

	c.socket = socket
	c.emit = func(event string, args ...interface{}) {
		socket.Emit(event, args...)
	}
	c.setupEventHandlers()

	log.Printf("🚀 Wallet bridge connecting to %s", c.config.ServerURL)
	return nil
}

// Stop 停止客户端，未完成的请求以 4900 结束
func (c *Client) Stop() {
	c.mu.Lock()
	if c.socket != nil {
		c.socket.Disconnect()
		c.socket = nil
	}
	c.connected = false
	c.mu.Unlock()

	c.failPending(wallet_service.NewProviderError(wallet_service.CodeDisconnected, "wallet bridge stopped"))
	log.Println("📴 Wallet bridge stopped")
}

// IsConnected 检查是否已连接
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return false
	}
	if c.socket == nil {
		return c.emit != nil
	}

	// 安全地检查连接状态，防止 panic
	connected := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ Panic recovered when checking socket.Connected(): %v", r)
				connected = false
			}
		}()
		connected = c.socket.Connected()
	}()
	return connected
}

// setupEventHandlers 设置事件处理器
func (c *Client) setupEventHandlers() {
	if c.socket == nil {
		return
	}

	c.socket.On("connect", func(data ...interface{}) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ Panic recovered in connect handler: %v", r)
			}
		}()

		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()

		log.Printf("✅ Wallet bridge connected")
		if c.OnConnect != nil {
			go c.OnConnect()
		}
		go c.startHeartbeat()
	})

	c.socket.On("disconnect", func(data ...interface{}) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ Panic recovered in disconnect handler: %v", r)
			}
		}()

		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()

		log.Printf("❌ Wallet bridge disconnected")
		c.failPending(wallet_service.NewProviderError(wallet_service.CodeDisconnected, "wallet bridge disconnected"))
		if c.OnDisconnect != nil {
			go c.OnDisconnect()
		}
	})

	c.socket.On("connect_error", func(data ...interface{}) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ Panic recovered in connect_error handler: %v", r)
			}
		}()

		err := errorFromData("connection error", data)
		log.Printf("🔥 Wallet bridge connect error: %v", err)
		if c.OnError != nil {
			go c.OnError(err)
		}
	})

	c.socket.On("message", func(data ...interface{}) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ Panic recovered in message handler: %v", r)
			}
		}()

		c.handleSocketData(data)
	})
}

func errorFromData(prefix string, data []interface{}) error {
	if len(data) > 0 && data[0] != nil {
		if e, ok := data[0].(error); ok {
			return e
		}
		return fmt.Errorf("%s: %v", prefix, data[0])
	}
	return errors.New(prefix + ": unknown error")
}

// parseSocketData 字符串或 map 形式的 SocketData
func parseSocketData(raw interface{}) (*SocketData, error) {
	socketData := &SocketData{}
	switch v := raw.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), socketData); err != nil {
			return nil, err
		}
	case map[string]interface{}:
		if m, ok := v["M"].(string); ok {
			socketData.M = m
		}
		socketData.C = v["C"]
		socketData.D = v["D"]
	default:
		return nil, fmt.Errorf("unknown SocketData format: %T", raw)
	}
	return socketData, nil
}

// decodePayload 把 D 转成具体结构
func decodePayload(d interface{}, out interface{}) error {
	var raw []byte
	switch v := d.(type) {
	case string:
		raw = []byte(v)
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = b
	}
	return json.Unmarshal(raw, out)
}

// handleSocketData 处理服务端的SocketData格式消息
func (c *Client) handleSocketData(data []interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ Panic recovered in handleSocketData: %v", r)
		}
	}()

	if len(data) == 0 {
		return
	}
	socketData, err := parseSocketData(data[0])
	if err != nil {
		log.Printf("⚠️ Failed to parse SocketData: %v", err)
		return
	}

	switch strings.ToUpper(socketData.M) {
	case HEART_BEAT, PONG:
	case WALLET_RESPONSE:
		var resp WalletResponse
		if err := decodePayload(socketData.D, &resp); err != nil {
			log.Printf("⚠️ Bad wallet response: %v", err)
			return
		}
		c.resolve(&resp)
	case WALLET_EVENT:
		var ev WalletEvent
		if err := decodePayload(socketData.D, &ev); err != nil {
			log.Printf("⚠️ Bad wallet event: %v", err)
			return
		}
		log.Printf("📨 Wallet event %s: %s", ev.Event, string(ev.Data))
		c.dispatch(ev)
	default:
		log.Printf("📨 未知方法: %s, 数据: %v", socketData.M, socketData.D)
	}
}

func (c *Client) resolve(resp *WalletResponse) {
	c.pendingMu.Lock()
	ch, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.pendingMu.Unlock()
	if !ok {
		log.Printf("⚠️ Wallet response for unknown request %s", resp.ID)
		return
	}
	ch <- resp
}

func (c *Client) failPending(err *wallet_service.ProviderError) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan *WalletResponse)
	c.pendingMu.Unlock()

	for id, ch := range pending {
		ch <- &WalletResponse{ID: id, Error: err}
	}
}

// EventHandler 钱包事件处理器，在 socket 读循环里同步调用，不能阻塞
type EventHandler func(data json.RawMessage)

// On 注册钱包事件处理器
func (c *Client) On(event string, handler EventHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

func (c *Client) dispatch(ev WalletEvent) {
	c.handlersMu.RLock()
	handlers := append([]EventHandler(nil), c.handlers[ev.Event]...)
	c.handlersMu.RUnlock()
	for _, h := range handlers {
		h(ev.Data)
	}
}

// Request 发送一次 EIP-1193 请求并等待浏览器端响应
func (c *Client) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if !c.IsConnected() {
		return nil, wallet_service.NewProviderError(wallet_service.CodeDisconnected, "wallet bridge not connected")
	}

	req := &WalletRequest{ID: uuid.NewString(), Method: method, Params: params}
	ch := make(chan *WalletResponse, 1)
	c.pendingMu.Lock()
	c.pending[req.ID] = ch
	c.pendingMu.Unlock()

	if err := c.sendSocketData(&SocketData{M: WALLET_REQUEST, C: WS_CODE_REQUEST, D: req}); err != nil {
		c.forget(req.ID)
		return nil, wallet_service.NewProviderError(wallet_service.CodeDisconnected, err.Error())
	}
	log.Printf("📤 Wallet request %s (%s)", method, req.ID)

	select {
	case <-ctx.Done():
		c.forget(req.ID)
		return nil, ctx.Err()
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

func (c *Client) forget(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// sendSocketData 发送SocketData格式消息
func (c *Client) sendSocketData(socketData *SocketData) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ Panic recovered in sendSocketData: %v", r)
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()

	c.mu.RLock()
	emit := c.emit
	c.mu.RUnlock()

	if emit == nil || !c.IsConnected() {
		return errors.New("client not connected")
	}
	emit("message", socketData)
	return nil
}

// startHeartbeat 启动心跳
func (c *Client) startHeartbeat() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ Panic recovered in startHeartbeat: %v", r)
		}
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if !c.IsConnected() {
			return
		}
		if err := c.sendSocketData(&SocketData{M: PONG, C: WS_CODE_HEART_BEAT}); err != nil {
			return
		}
	}
}
