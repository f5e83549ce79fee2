package wallet_service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"wave-portal-client/models"
)

// Provider 钱包扩展暴露的能力（EIP-1193 子集）
type Provider interface {
	// RequestAccounts eth_requestAccounts，会弹出授权
	RequestAccounts(ctx context.Context) ([]string, error)

	// GetAuthorizedAccounts eth_accounts，不弹窗
	GetAuthorizedAccounts(ctx context.Context) ([]string, error)

	// GetActiveNetwork eth_chainId，返回十六进制链ID
	GetActiveNetwork(ctx context.Context) (string, error)

	// RequestNetworkSwitch wallet_switchEthereumChain
	RequestNetworkSwitch(ctx context.Context, chainID string) error

	// RequestNetworkAdd wallet_addEthereumChain
	RequestNetworkAdd(ctx context.Context, descriptor models.NetworkDescriptor) error

	// SignAndSend eth_sendTransaction，返回交易哈希
	SignAndSend(ctx context.Context, tx models.TxRequest) (string, error)
}

// NetworkNotifier is implemented by providers that can report chainChanged.
type NetworkNotifier interface {
	OnNetworkChanged(handler func(chainID string))
}

// EIP-1193 / EIP-3085 provider error codes
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
)

// ProviderError 钱包返回的错误
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// NewProviderError 创建钱包错误
func NewProviderError(code int, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

// ProviderErrorCode 提取错误码，非钱包错误返回 0
func ProviderErrorCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}

// IsUserRejected 用户拒绝
func IsUserRejected(err error) bool {
	return ProviderErrorCode(err) == CodeUserRejected
}

// IsDisconnected 钱包不可达（扩展未安装或桥未连接）
func IsDisconnected(err error) bool {
	code := ProviderErrorCode(err)
	return code == CodeDisconnected || code == CodeChainDisconnected
}

// ParseChainID 解析链ID，接受 0x 十六进制或十进制，忽略大小写和前导零
func ParseChainID(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	id, ok := new(big.Int).SetString(s, base)
	if !ok || s == "" {
		return nil, fmt.Errorf("invalid chain id %q", s)
	}
	return id, nil
}

// SameChain 数值比较两个链ID
func SameChain(a, b string) bool {
	x, err := ParseChainID(a)
	if err != nil {
		return false
	}
	y, err := ParseChainID(b)
	if err != nil {
		return false
	}
	return x.Cmp(y) == 0
}
