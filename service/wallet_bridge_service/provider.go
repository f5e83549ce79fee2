package wallet_bridge_service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"wave-portal-client/models"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Provider 通过 socket.io 中继访问浏览器里的钱包扩展
type Provider struct {
	client *Client
	config *Config
	mu     sync.RWMutex
}

// NewProvider 创建中继钱包
func NewProvider(config *Config) *Provider {
	return &Provider{
		config: config,
		client: NewClient(config),
	}
}

// Start 连接中继服务器
func (p *Provider) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.client.OnConnect = func() {
		log.Printf("🚀 Wallet bridge ready for key %s", p.config.BridgeKey)
	}
	p.client.OnDisconnect = func() {
		log.Printf("📴 Wallet bridge disconnected, wallet treated as absent")
	}
	p.client.OnError = func(err error) {
		log.Printf("🔥 Wallet bridge error: %v", err)
	}
	return p.client.Start()
}

// Stop 断开中继
func (p *Provider) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client.Stop()
}

// IsRunning 中继是否在线
func (p *Provider) IsRunning() bool {
	return p.client.IsConnected()
}

func (p *Provider) RequestAccounts(ctx context.Context) ([]string, error) {
	return p.accounts(ctx, "eth_requestAccounts")
}

func (p *Provider) GetAuthorizedAccounts(ctx context.Context) ([]string, error) {
	return p.accounts(ctx, "eth_accounts")
}

func (p *Provider) accounts(ctx context.Context, method string) ([]string, error) {
	raw, err := p.client.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := decodeResult(raw, &accounts); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return accounts, nil
}

func (p *Provider) GetActiveNetwork(ctx context.Context) (string, error) {
	raw, err := p.client.Request(ctx, "eth_chainId")
	if err != nil {
		return "", err
	}
	var chainID string
	if err := decodeResult(raw, &chainID); err != nil {
		return "", fmt.Errorf("eth_chainId: %w", err)
	}
	return chainID, nil
}

func (p *Provider) RequestNetworkSwitch(ctx context.Context, chainID string) error {
	_, err := p.client.Request(ctx, "wallet_switchEthereumChain", switchChainParam{ChainID: chainID})
	return err
}

func (p *Provider) RequestNetworkAdd(ctx context.Context, descriptor models.NetworkDescriptor) error {
	_, err := p.client.Request(ctx, "wallet_addEthereumChain", descriptor)
	return err
}

func (p *Provider) SignAndSend(ctx context.Context, tx models.TxRequest) (string, error) {
	raw, err := p.client.Request(ctx, "eth_sendTransaction", sendTxParam{
		From: tx.From,
		To:   tx.To,
		Data: hexutil.Encode(tx.Data),
		Gas:  hexutil.EncodeUint64(tx.Gas),
	})
	if err != nil {
		return "", err
	}
	var hash string
	if err := decodeResult(raw, &hash); err != nil {
		return "", fmt.Errorf("eth_sendTransaction: %w", err)
	}
	return hash, nil
}

// OnNetworkChanged chainChanged 通知
func (p *Provider) OnNetworkChanged(handler func(chainID string)) {
	p.client.On(EventChainChanged, func(data json.RawMessage) {
		var chainID string
		if err := json.Unmarshal(data, &chainID); err != nil {
			log.Printf("⚠️ Bad chainChanged payload: %v", err)
			return
		}
		handler(chainID)
	})
}

func decodeResult(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty result")
	}
	return json.Unmarshal(raw, out)
}
