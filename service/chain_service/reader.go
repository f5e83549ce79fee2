package chain_service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"
	"wave-portal-client/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// Reader is the ChainReader. Each call dials the public RPC and closes it afterwards.
type Reader struct {
	rpcURL   string
	contract common.Address
	dial     DialFunc
	retry    RetryPolicy
}

// ReadResult ReadAll 的结果
type ReadResult struct {
	TotalCount uint64
	Messages   []models.MessageRecord
}

// NewReader dial 为 nil 时使用 ethclient
func NewReader(rpcURL string, contract common.Address, dial DialFunc, retry RetryPolicy) *Reader {
	if dial == nil {
		dial = DialEthClient
	}
	return &Reader{
		rpcURL:   rpcURL,
		contract: contract,
		dial:     dial,
		retry:    retry,
	}
}

// GetTotalCount getTotalWaves()
func (r *Reader) GetTotalCount(ctx context.Context) (uint64, error) {
	var count uint64
	err := r.call(ctx, MethodGetTotalWaves, func(c *bind.BoundContract) error {
		var out []interface{}
		if err := c.Call(&bind.CallOpts{Context: ctx}, &out, MethodGetTotalWaves); err != nil {
			return err
		}
		if len(out) == 0 {
			return fmt.Errorf("%s: empty result", MethodGetTotalWaves)
		}
		n := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
		if n == nil || !n.IsUint64() {
			return backoff.Permanent(fmt.Errorf("%s: count out of range", MethodGetTotalWaves))
		}
		count = n.Uint64()
		return nil
	})
	return count, err
}

// GetAllMessages getAllWaves()，按合约存储顺序返回
func (r *Reader) GetAllMessages(ctx context.Context) ([]models.MessageRecord, error) {
	var records []models.MessageRecord
	err := r.call(ctx, MethodGetAllWaves, func(c *bind.BoundContract) error {
		var out []interface{}
		if err := c.Call(&bind.CallOpts{Context: ctx}, &out, MethodGetAllWaves); err != nil {
			return err
		}
		if len(out) == 0 {
			return fmt.Errorf("%s: empty result", MethodGetAllWaves)
		}
		waves := *abi.ConvertType(out[0], new([]WavePortalWave)).(*[]WavePortalWave)
		records = make([]models.MessageRecord, 0, len(waves))
		for _, w := range waves {
			records = append(records, w.ToRecord())
		}
		return nil
	})
	return records, err
}

// ReadAll 并发读取总数和全部留言
func (r *Reader) ReadAll(ctx context.Context) (ReadResult, error) {
	var res ReadResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := r.GetTotalCount(gctx)
		res.TotalCount = n
		return err
	})
	g.Go(func() error {
		msgs, err := r.GetAllMessages(gctx)
		res.Messages = msgs
		return err
	})
	if err := g.Wait(); err != nil {
		return ReadResult{}, err
	}
	log.Printf("📥 Read %d waves (total %d) from chain", len(res.Messages), res.TotalCount)
	return res, nil
}

func (r *Reader) call(ctx context.Context, method string, fn func(c *bind.BoundContract) error) error {
	attempt := 0
	op := func() error {
		attempt++
		client, err := r.dial(ctx, r.rpcURL)
		if err != nil {
			return err
		}
		defer client.Close()

		contract := bind.NewBoundContract(r.contract, parsedABI, client, nil, nil)
		if err := fn(contract); err != nil {
			if errors.Is(err, bind.ErrNoCode) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Printf("⚠️ %s attempt %d failed, retrying in %s: %v", method, attempt, next, err)
	}

	if err := backoff.RetryNotify(op, r.retry.NewBackOff(ctx), notify); err != nil {
		log.Printf("❌ %s failed after %d attempts: %v", method, attempt, err)
		return fmt.Errorf("%w: %s: %w", models.ErrRpcUnavailable, method, err)
	}
	return nil
}
