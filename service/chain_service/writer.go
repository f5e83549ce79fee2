package chain_service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
	"wave-portal-client/models"
	"wave-portal-client/service/state_service"
	"wave-portal-client/service/wallet_service"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// NetworkGuard 写之前确认网络
type NetworkGuard interface {
	EnsureNetwork(ctx context.Context) error
}

// WriterConfig ChainWriter 参数
type WriterConfig struct {
	RPCURL        string
	Contract      common.Address
	GasLimit      uint64        // 固定 gas 上限
	Confirmations uint64        // 打包后额外等待的区块数
	PollInterval  time.Duration // 回执轮询间隔
	Reconnect     RetryPolicy   // 轮询期间连接断开后的重连策略
}

// Writer is the ChainWriter. At most one write occupies the compose slot.
type Writer struct {
	cfg      WriterConfig
	dial     DialFunc
	provider wallet_service.Provider
	guard    NetworkGuard
	reader   *Reader
	store    *state_service.Store

	mu       sync.Mutex
	busy     bool
	lifetime context.Context
}

// NewWriter provider 为 nil 时所有发送都返回 ErrWalletNotPresent
func NewWriter(cfg WriterConfig, dial DialFunc, provider wallet_service.Provider, guard NetworkGuard, reader *Reader, store *state_service.Store) *Writer {
	if dial == nil {
		dial = DialEthClient
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 300000
	}
	return &Writer{
		cfg:      cfg,
		dial:     dial,
		provider: provider,
		guard:    guard,
		reader:   reader,
		store:    store,
	}
}

// Bind 绑定会话生命周期。交易广播后的确认等待只随会话结束，不随调用方取消
func (w *Writer) Bind(ctx context.Context) {
	w.mu.Lock()
	w.lifetime = ctx
	w.mu.Unlock()
}

func (w *Writer) finalityContext(ctx context.Context) context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lifetime != nil {
		return w.lifetime
	}
	return context.WithoutCancel(ctx)
}

func (w *Writer) acquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return false
	}
	w.busy = true
	return true
}

func (w *Writer) release() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

// Send 提交一条留言并阻塞到终态（Confirmed / Failed）。
// ctx 只管到广播为止，之后的等待用 Bind 绑定的会话 ctx
func (w *Writer) Send(ctx context.Context, text string) (models.WriteOutcome, error) {
	outcome := models.WriteOutcome{State: models.WriteStateIdle, Text: text}

	if w.provider == nil {
		return outcome, models.ErrWalletNotPresent
	}
	state := w.store.Snapshot()
	if !state.WalletPresent {
		return outcome, fmt.Errorf("%w: wallet bridge has no wallet attached", models.ErrWalletNotPresent)
	}
	account := state.Account
	if account == "" {
		return outcome, models.ErrNotConnected
	}
	if !w.acquire() {
		log.Printf("⚠️ Send rejected, a write is already in flight")
		return outcome, models.ErrWriteInProgress
	}
	defer w.release()

	if err := w.guard.EnsureNetwork(ctx); err != nil {
		log.Printf("❌ Trying to wave from the wrong network: %v", err)
		return outcome, fmt.Errorf("%w: %w", models.ErrWrongNetwork, err)
	}

	w.store.Merge(state_service.Update{
		Source:     state_service.SourceWriter,
		WriteState: state_service.Ptr(models.WriteStateSubmitting),
		ClearErr:   true,
	})
	outcome.State = models.WriteStateSubmitting

	// 广播前先刷新一次总数，基线从 store 现取
	if count, err := w.reader.GetTotalCount(ctx); err != nil {
		log.Printf("⚠️ Pre-send count refresh failed: %v", err)
	} else {
		w.store.Merge(state_service.Update{Source: state_service.SourceWriter, TotalCount: state_service.Ptr(count)})
	}
	outcome.TotalCountBefore = w.store.Snapshot().TotalCount

	data, err := PackWave(text)
	if err != nil {
		return w.fail(outcome, fmt.Errorf("%w: pack calldata: %w", models.ErrTransactionFailed, err))
	}

	log.Printf("📤 Waving with message: %q", text)
	txHash, err := w.provider.SignAndSend(ctx, models.TxRequest{
		From: account,
		To:   w.cfg.Contract.Hex(),
		Data: data,
		Gas:  w.cfg.GasLimit,
	})
	if err != nil {
		if wallet_service.IsUserRejected(err) {
			return w.fail(outcome, fmt.Errorf("%w: %w", models.ErrSignerRejected, err))
		}
		return w.fail(outcome, fmt.Errorf("%w: submit: %w", models.ErrTransactionFailed, err))
	}

	outcome.TxHash = txHash
	outcome.SubmittedAt = time.Now()
	outcome.State = models.WriteStatePendingConfirmation
	w.store.Merge(state_service.Update{
		Source:     state_service.SourceWriter,
		WriteState: state_service.Ptr(models.WriteStatePendingConfirmation),
		Pending: &models.PendingWrite{
			DraftText:   text,
			SubmittedAt: outcome.SubmittedAt,
			TxHash:      txHash,
		},
	})
	log.Printf("⛏️ Mining... %s", txHash)

	// 已广播，调用方离开也要等到终态，否则 PendingWrite 被清掉会导致重复发送
	ctx = w.finalityContext(ctx)
	receipt, err := w.waitFinal(ctx, common.HexToHash(txHash))
	if err != nil {
		return w.fail(outcome, err)
	}
	outcome.BlockNumber = blockOf(receipt)
	log.Printf("✅ Mined -- %s (block %d)", txHash, outcome.BlockNumber)

	if records := DecodeReceiptWaves(receipt, w.cfg.Contract); len(records) > 0 {
		w.store.Merge(state_service.Update{Source: state_service.SourceWriter, Messages: records})
	}

	// 权威路径：确认后重新读取链上状态
	res, err := w.reader.ReadAll(ctx)
	if err != nil {
		log.Printf("⚠️ Post-confirmation refresh failed: %v", err)
	} else {
		w.store.Merge(state_service.Update{
			Source:     state_service.SourceReader,
			TotalCount: state_service.Ptr(res.TotalCount),
			Messages:   res.Messages,
			Stale:      state_service.Ptr(false),
		})
	}

	snapshot := w.store.Merge(state_service.Update{
		Source:       state_service.SourceWriter,
		WriteState:   state_service.Ptr(models.WriteStateConfirmed),
		ClearPending: true,
	})
	outcome.State = models.WriteStateConfirmed
	outcome.FinishedAt = time.Now()
	outcome.TotalCountAfter = snapshot.TotalCount
	if outcome.TotalCountAfter < outcome.TotalCountBefore+1 {
		log.Printf("⚠️ Total count %d after confirmation, expected at least %d", outcome.TotalCountAfter, outcome.TotalCountBefore+1)
	}
	return outcome, nil
}

func (w *Writer) fail(outcome models.WriteOutcome, err error) (models.WriteOutcome, error) {
	log.Printf("❌ Wave failed: %v", err)
	w.store.Merge(state_service.Update{
		Source:       state_service.SourceWriter,
		WriteState:   state_service.Ptr(models.WriteStateFailed),
		ClearPending: true,
	})
	outcome.State = models.WriteStateFailed
	outcome.FinishedAt = time.Now()
	outcome.TotalCountAfter = w.store.Snapshot().TotalCount
	return outcome, err
}

// waitFinal 轮询回执直到打包，再等待确认区块数
func (w *Writer) waitFinal(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var client Backend
	defer func() {
		if client != nil {
			client.Close()
		}
	}()

	bo := w.cfg.Reconnect.NewBackOff(ctx)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	var receipt *types.Receipt
	for {
		if client == nil {
			c, err := w.dial(ctx, w.cfg.RPCURL)
			if err != nil {
				if werr := w.waitReconnect(ctx, bo, err); werr != nil {
					return nil, werr
				}
				continue
			}
			client = c
		}

		var err error
		if receipt == nil {
			receipt, err = client.TransactionReceipt(ctx, hash)
			if errors.Is(err, ethereum.NotFound) {
				receipt, err = nil, nil
			}
			if err == nil && receipt != nil {
				if ferr := w.checkReceipt(receipt); ferr != nil {
					return nil, ferr
				}
			}
		}
		if err == nil && receipt != nil {
			var done bool
			receipt, done, err = w.confirmed(ctx, client, hash, receipt)
			if err == nil && done {
				return receipt, nil
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", models.ErrTransactionFailed, ctx.Err())
			}
			client.Close()
			client = nil
			if werr := w.waitReconnect(ctx, bo, err); werr != nil {
				return nil, werr
			}
			continue
		}
		bo.Reset()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", models.ErrTransactionFailed, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (w *Writer) waitReconnect(ctx context.Context, bo backoff.BackOff, cause error) error {
	next := bo.NextBackOff()
	if next == backoff.Stop {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", models.ErrTransactionFailed, ctx.Err())
		}
		return fmt.Errorf("%w: connection lost before finality: %w", models.ErrTransactionFailed, cause)
	}
	log.Printf("⚠️ Receipt poll failed, reconnecting in %s: %v", next, cause)
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", models.ErrTransactionFailed, ctx.Err())
	case <-time.After(next):
		return nil
	}
}

func (w *Writer) checkReceipt(receipt *types.Receipt) error {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: transaction %s reverted", models.ErrTransactionFailed, receipt.TxHash.Hex())
	}
	if receipt.GasUsed >= w.cfg.GasLimit {
		log.Printf("⚠️ Transaction %s used its whole gas limit (%d)", receipt.TxHash.Hex(), receipt.GasUsed)
	}
	return nil
}

// confirmed 等待确认期间每轮重新取回执。回执消失或块哈希变化说明发生了重组，
// 返回 nil 让下一轮重新取回执并检查状态
func (w *Writer) confirmed(ctx context.Context, client Backend, hash common.Hash, receipt *types.Receipt) (*types.Receipt, bool, error) {
	if w.cfg.Confirmations == 0 {
		return receipt, true, nil
	}
	latest, err := client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		log.Printf("🔀 %s dropped from block %d by a reorg, waiting for re-inclusion", hash.Hex(), blockOf(receipt))
		return nil, false, nil
	}
	if err != nil {
		return receipt, false, err
	}
	if latest.BlockHash != receipt.BlockHash {
		log.Printf("🔀 %s moved from block %d to %d", hash.Hex(), blockOf(receipt), blockOf(latest))
		return nil, false, nil
	}

	head, err := client.BlockNumber(ctx)
	if err != nil {
		return receipt, false, err
	}
	return receipt, head >= blockOf(receipt)+w.cfg.Confirmations, nil
}

func blockOf(receipt *types.Receipt) uint64 {
	if receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}
