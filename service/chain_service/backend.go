package chain_service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend RPC 能力：合约调用 + 回执查询
type Backend interface {
	bind.ContractCaller
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// DialFunc 建立一次 RPC 连接
type DialFunc func(ctx context.Context, rpcURL string) (Backend, error)

// DialEthClient 默认实现，使用 ethclient
func DialEthClient(ctx context.Context, rpcURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// RetryPolicy 重试参数
type RetryPolicy struct {
	MaxRetries   uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy 读请求默认重试策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// NewBackOff 按策略构造指数退避，ctx 取消时停止
func (p RetryPolicy) NewBackOff(ctx context.Context) backoff.BackOffContext {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	maxDelay := p.MaxDelay
	if maxDelay < initial {
		maxDelay = initial
	}
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(maxDelay),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}
