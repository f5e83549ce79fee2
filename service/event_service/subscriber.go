package event_service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"
	"wave-portal-client/models"
	"wave-portal-client/service/chain_service"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// LogBackend 订阅需要的 RPC 能力（需要 ws 连接）
type LogBackend interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	Close()
}

// DialFunc 建立订阅连接
type DialFunc func(ctx context.Context, wsURL string) (LogBackend, error)

// DialEthClient 默认 ws 连接
func DialEthClient(ctx context.Context, wsURL string) (LogBackend, error) {
	client, err := ethclient.DialContext(ctx, wsURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// OnMessage 每条新事件回调一次
type OnMessage func(record models.MessageRecord)

// Config 订阅参数
type Config struct {
	WSURL    string
	Contract common.Address
	Retry    chain_service.RetryPolicy
}

// Subscriber is the EventSubscriber. One goroutine owns the log subscription.
type Subscriber struct {
	cfg  Config
	dial DialFunc

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	lastBlock uint64
	active    bool

	onState func(subscribed bool)
}

// NewSubscriber dial 为 nil 时使用 ethclient
func NewSubscriber(cfg Config, dial DialFunc) *Subscriber {
	if dial == nil {
		dial = DialEthClient
	}
	return &Subscriber{cfg: cfg, dial: dial}
}

// OnStateChange 订阅建立/断开时回调
func (s *Subscriber) OnStateChange(fn func(subscribed bool)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

// Subscribe 启动订阅协程，重复调用返回错误
func (s *Subscriber) Subscribe(ctx context.Context, onMessage OnMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return errors.New("already subscribed")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, onMessage, s.done)
	log.Printf("🚀 Subscribing to %s events on %s", chain_service.EventNewWave, s.cfg.Contract.Hex())
	return nil
}

// Unsubscribe 取消订阅并等待协程退出，可重复调用
func (s *Subscriber) Unsubscribe() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Printf("🛑 Event subscription released")
}

// Active 当前是否持有订阅
func (s *Subscriber) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Subscriber) query(from uint64) ethereum.FilterQuery {
	q := ethereum.FilterQuery{
		Addresses: []common.Address{s.cfg.Contract},
		Topics:    [][]common.Hash{{chain_service.NewWaveTopic()}},
	}
	if from > 0 {
		q.FromBlock = new(big.Int).SetUint64(from)
	}
	return q
}

func (s *Subscriber) run(ctx context.Context, onMessage OnMessage, done chan struct{}) {
	defer close(done)
	defer s.setActive(false)

	bo := s.cfg.Retry.NewBackOff(ctx)
	first := true
	for {
		err := s.session(ctx, onMessage, !first, bo)
		if ctx.Err() != nil {
			return
		}
		first = false

		next := bo.NextBackOff()
		if next == backoff.Stop {
			log.Printf("❌ Event subscription retries exhausted, continuing without live updates: %v", err)
			return
		}
		log.Printf("⚠️ Event subscription dropped, reconnecting in %s: %v", next, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(next):
		}
	}
}

// session 一次连接的生命周期，返回断开原因
func (s *Subscriber) session(ctx context.Context, onMessage OnMessage, backfill bool, bo backoff.BackOff) error {
	client, err := s.dial(ctx, s.cfg.WSURL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	logs := make(chan types.Log, 64)
	sub, err := client.SubscribeFilterLogs(ctx, s.query(0), logs)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	if backfill {
		if err := s.backfill(ctx, client, onMessage); err != nil {
			return err
		}
	}

	s.setActive(true)
	bo.Reset()
	if backfill {
		log.Printf("✅ Event subscription restored")
	} else {
		log.Printf("✅ Event subscription established")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			s.setActive(false)
			if err == nil {
				err = errors.New("subscription closed")
			}
			return err
		case l := <-logs:
			s.handle(l, onMessage)
		}
	}
}

// backfill 补拉断线期间的日志，重复的由 store 去重
func (s *Subscriber) backfill(ctx context.Context, client LogBackend, onMessage OnMessage) error {
	s.mu.Lock()
	from := s.lastBlock
	s.mu.Unlock()
	if from == 0 {
		return nil
	}
	missed, err := client.FilterLogs(ctx, s.query(from))
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	log.Printf("📨 Backfilled %d logs from block %d", len(missed), from)
	for _, l := range missed {
		s.handle(l, onMessage)
	}
	return nil
}

func (s *Subscriber) handle(l types.Log, onMessage OnMessage) {
	if l.Removed {
		log.Printf("⚠️ Skipping removed log %s#%d", l.TxHash.Hex(), l.Index)
		return
	}
	record, err := chain_service.DecodeNewWave(l, models.RecordSourceEvent)
	if err != nil {
		log.Printf("⚠️ Undecodable log %s#%d: %v", l.TxHash.Hex(), l.Index, err)
		return
	}

	s.mu.Lock()
	if l.BlockNumber > s.lastBlock {
		s.lastBlock = l.BlockNumber
	}
	s.mu.Unlock()

	log.Printf("📨 NewWave from %s: %q", record.Sender, record.Text)
	onMessage(record)
}

func (s *Subscriber) setActive(active bool) {
	s.mu.Lock()
	changed := s.active != active
	s.active = active
	fn := s.onState
	s.mu.Unlock()
	if changed && fn != nil {
		fn(active)
	}
}
