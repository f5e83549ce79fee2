package wave_center

import (
	"context"
	"fmt"
	"log"
	"sync"
	"wave-portal-client/models"
	"wave-portal-client/service/chain_service"
	"wave-portal-client/service/event_service"
	"wave-portal-client/service/network_service"
	"wave-portal-client/service/pebble_service"
	"wave-portal-client/service/state_service"
	"wave-portal-client/service/wallet_service"
	"wave-portal-client/tool"
)

// Config 会话配置
type Config struct {
	Network      models.NetworkDescriptor   `yaml:"network" json:"network"`             // 目标链（EIP-3085 描述）
	RPCURL       string                     `yaml:"rpc_url" json:"rpc_url"`             // 公共只读 RPC
	Writer       chain_service.WriterConfig `yaml:"writer" json:"writer"`               // 写交易参数
	ReadRetry    chain_service.RetryPolicy  `yaml:"read_retry" json:"read_retry"`       // 读请求重试
	EventEnabled bool                       `yaml:"event_enabled" json:"event_enabled"` // 是否订阅 NewWave
	Event        event_service.Config       `yaml:"event" json:"event"`
	PebbleConfig *pebble_service.Config     `yaml:"pebble" json:"pebble"` // nil 时不缓存

	Dial      chain_service.DialFunc `yaml:"-" json:"-"` // 默认 ethclient
	EventDial event_service.DialFunc `yaml:"-" json:"-"` // 默认 ethclient ws
}

// lifecycle 需要启动/停止的钱包（socket.io 中继）
type lifecycle interface {
	Start() error
	Stop()
}

// WaveCenter 会话上下文，持有全部组件
type WaveCenter struct {
	config   *Config
	provider wallet_service.Provider

	store      *state_service.Store
	session    *wallet_service.Session
	guard      *network_service.Guard
	reader     *chain_service.Reader
	writer     *chain_service.Writer
	subscriber *event_service.Subscriber
	cache      *pebble_service.PebbleService

	running bool
	mu      sync.RWMutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// countMu 保护会话 ctx 和总数刷新状态，事件回调里使用，不能依赖 mu
	countMu      sync.Mutex
	sessionCtx   context.Context
	countRunning bool
	countAgain   bool

	savedCount uint64
}

// NewWaveCenter provider 为 nil 表示没有钱包，只读模式
func NewWaveCenter(config *Config, provider wallet_service.Provider) *WaveCenter {
	store := state_service.NewStore()
	contract := config.Writer.Contract
	if config.Writer.RPCURL == "" {
		config.Writer.RPCURL = config.RPCURL
	}

	reader := chain_service.NewReader(config.RPCURL, contract, config.Dial, config.ReadRetry)
	guard := network_service.NewGuard(provider, config.Network, store)

	wc := &WaveCenter{
		config:   config,
		provider: provider,
		store:    store,
		session:  wallet_service.NewSession(provider, store),
		guard:    guard,
		reader:   reader,
		writer:   chain_service.NewWriter(config.Writer, config.Dial, provider, guard, reader, store),
	}
	if config.EventEnabled {
		config.Event.Contract = contract
		wc.subscriber = event_service.NewSubscriber(config.Event, config.EventDial)
	}
	if config.PebbleConfig != nil {
		wc.cache = pebble_service.NewPebbleService(config.PebbleConfig)
	}
	return wc
}

// Initialize 打开缓存并载入上次的数据（标记为 stale）
func (wc *WaveCenter) Initialize() error {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	log.Printf("🚀 Initializing wave session %s", wc.store.Snapshot().SessionID)

	if wc.cache != nil {
		if err := wc.cache.Initialize(); err != nil {
			log.Printf("❌ 初始化缓存失败: %v", err)
			return fmt.Errorf("初始化缓存失败: %w", err)
		}
		if err := wc.loadCache(); err != nil {
			log.Printf("⚠️ Cached waves unavailable: %v", err)
		}
		wc.store.AddListener(wc.persist)
	}

	log.Printf("✅ Wave session initialized")
	return nil
}

func (wc *WaveCenter) loadCache() error {
	if err := wc.cache.BindContract(wc.config.Network.ChainID, wc.config.Writer.Contract.Hex()); err != nil {
		return err
	}
	waves, err := wc.cache.LoadWaves()
	if err != nil {
		return err
	}
	count, err := wc.cache.LoadTotalCount()
	if err != nil {
		return err
	}
	wc.savedCount = count
	if len(waves) == 0 && count == 0 {
		return nil
	}
	wc.store.Merge(state_service.Update{
		Source:     state_service.SourceCache,
		Messages:   waves,
		TotalCount: state_service.Ptr(count),
		Stale:      state_service.Ptr(true),
	})
	log.Printf("📦 Loaded %d cached waves (total %d)", len(waves), count)
	return nil
}

// persist store 监听器：未缓存过的新记录和更大的总数写入缓存
func (wc *WaveCenter) persist(snapshot models.SessionState, added []models.MessageRecord) {
	var fresh []models.MessageRecord
	for _, r := range added {
		if r.Source == models.RecordSourceCache {
			continue
		}
		if known, err := wc.cache.IsKnownWave(r.Key()); err == nil && known {
			continue
		}
		fresh = append(fresh, r)
	}
	if err := wc.cache.SaveWaves(fresh); err != nil {
		log.Printf("⚠️ Caching waves failed: %v", err)
	}

	wc.countMu.Lock()
	changed := snapshot.TotalCount > wc.savedCount
	if changed {
		wc.savedCount = snapshot.TotalCount
	}
	wc.countMu.Unlock()
	if changed {
		if err := wc.cache.SaveTotalCount(snapshot.TotalCount); err != nil {
			log.Printf("⚠️ Caching total count failed: %v", err)
		}
	}
}

// Run 检查授权、读取链上数据并订阅事件
func (wc *WaveCenter) Run(ctx context.Context) error {
	wc.mu.Lock()
	if wc.running {
		wc.mu.Unlock()
		return fmt.Errorf("wave session already running")
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	wc.cancel = cancel
	wc.running = true
	wc.mu.Unlock()

	wc.countMu.Lock()
	wc.sessionCtx = sessionCtx
	wc.countMu.Unlock()
	wc.writer.Bind(sessionCtx)

	log.Printf("🚀 Starting wave session...")

	if bridge, ok := wc.provider.(lifecycle); ok {
		if err := bridge.Start(); err != nil {
			log.Printf("⚠️ Wallet bridge unavailable, continuing read-only: %v", err)
		}
	}

	if _, err := wc.session.CheckAuthorization(sessionCtx); err != nil {
		wc.recordError(err)
	}

	// 无论是否授权都读取链上数据
	if err := wc.Refresh(sessionCtx); err != nil {
		log.Printf("⚠️ Initial chain read failed, showing cached data: %v", err)
	}

	if wc.subscriber != nil {
		wc.subscriber.OnStateChange(func(subscribed bool) {
			wc.store.Merge(state_service.Update{Source: state_service.SourceEvent, Subscribed: state_service.Ptr(subscribed)})
		})
		if err := wc.subscriber.Subscribe(sessionCtx, wc.onEvent); err != nil {
			log.Printf("⚠️ Event subscription not started: %v", err)
		}
	}

	log.Printf("✅ Wave session running")
	return nil
}

// Stop 结束会话：订阅必定释放
func (wc *WaveCenter) Stop() error {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	log.Printf("🛑 Stopping wave session...")

	if wc.cancel != nil {
		wc.cancel()
	}
	if wc.subscriber != nil {
		wc.subscriber.Unsubscribe()
	}
	wc.wg.Wait()

	if bridge, ok := wc.provider.(lifecycle); ok && wc.running {
		bridge.Stop()
	}
	if wc.cache != nil {
		if err := wc.cache.Close(); err != nil {
			log.Printf("⚠️ 关闭缓存时出现错误: %v", err)
		}
	}

	wc.running = false
	log.Printf("✅ Wave session stopped")
	return nil
}

// IsRunning 会话是否在运行
func (wc *WaveCenter) IsRunning() bool {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	return wc.running
}

// Snapshot 当前快照
func (wc *WaveCenter) Snapshot() models.SessionState {
	return wc.store.Snapshot()
}

// Connect 请求钱包授权，确认网络，然后重新读取
func (wc *WaveCenter) Connect(ctx context.Context) (models.SessionState, error) {
	if _, err := wc.session.RequestConnection(ctx); err != nil {
		wc.recordError(err)
		return wc.store.Snapshot(), err
	}
	wc.store.Merge(state_service.Update{Source: state_service.SourceWallet, ClearErr: true})

	netErr := wc.guard.EnsureNetwork(ctx)
	if netErr != nil {
		wc.recordError(netErr)
	}
	if err := wc.Refresh(ctx); err != nil && netErr == nil {
		return wc.store.Snapshot(), err
	}
	return wc.store.Snapshot(), netErr
}

// UpdateDraft 编辑草稿
func (wc *WaveCenter) UpdateDraft(text string) models.SessionState {
	return wc.store.Merge(state_service.Update{Source: state_service.SourceUser, Draft: state_service.Ptr(text)})
}

type sendResult struct {
	outcome models.WriteOutcome
	err     error
}

// SendDraft 发送当前草稿，阻塞到终态。
// 交易广播后调用方离开（ctx 结束）时返回 PendingConfirmation，确认在会话里继续
func (wc *WaveCenter) SendDraft(ctx context.Context) (models.WriteOutcome, error) {
	draft := wc.store.Snapshot().Draft
	done := make(chan sendResult, 1)

	wc.wg.Add(1)
	go func() {
		defer wc.wg.Done()
		outcome, err := wc.writer.Send(ctx, draft)
		if err != nil {
			wc.recordError(err)
		} else {
			update := state_service.Update{Source: state_service.SourceUser, ClearErr: true}
			// 等待期间编辑过的草稿保留
			if wc.store.Snapshot().Draft == draft {
				update.Draft = state_service.Ptr("")
			}
			wc.store.Merge(update)
		}
		done <- sendResult{outcome: outcome, err: err}
	}()

	select {
	case r := <-done:
		return r.outcome, r.err
	case <-ctx.Done():
	}

	snapshot := wc.store.Snapshot()
	if p := snapshot.Pending; p != nil && p.DraftText == draft {
		log.Printf("⏳ Caller left, %s keeps confirming in the session", p.TxHash)
		return models.WriteOutcome{
			State:       models.WriteStatePendingConfirmation,
			Text:        draft,
			TxHash:      p.TxHash,
			SubmittedAt: p.SubmittedAt,
		}, nil
	}
	// 还没广播，等 Send 自己因 ctx 结束返回
	r := <-done
	return r.outcome, r.err
}

// Refresh 重新读取总数和全部留言
func (wc *WaveCenter) Refresh(ctx context.Context) error {
	res, err := wc.reader.ReadAll(ctx)
	if err != nil {
		wc.recordError(err)
		return err
	}
	update := state_service.Update{
		Source:     state_service.SourceReader,
		TotalCount: state_service.Ptr(res.TotalCount),
		Messages:   res.Messages,
		Stale:      state_service.Ptr(false),
	}
	if wc.store.Snapshot().LastErrorCode == models.ErrorCodeRpcUnavailable {
		update.ClearErr = true
	}
	wc.store.Merge(update)
	return nil
}

// onEvent 事件合并后异步刷新总数
func (wc *WaveCenter) onEvent(record models.MessageRecord) {
	log.Printf("📨 New wave from %s at %s", record.Sender, tool.MakeDate(record.SentAt.UnixMilli()))
	wc.store.Merge(state_service.Update{Source: state_service.SourceEvent, Messages: []models.MessageRecord{record}})
	wc.scheduleCountRefresh()
}

// scheduleCountRefresh 合并并发的刷新请求，同一时间最多一个
func (wc *WaveCenter) scheduleCountRefresh() {
	wc.countMu.Lock()
	if wc.countRunning {
		wc.countAgain = true
		wc.countMu.Unlock()
		return
	}
	wc.countRunning = true
	ctx := wc.sessionCtx
	wc.countMu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	wc.wg.Add(1)
	go func() {
		defer wc.wg.Done()
		for {
			if count, err := wc.reader.GetTotalCount(ctx); err != nil {
				log.Printf("⚠️ Count refresh after event failed: %v", err)
			} else {
				wc.store.Merge(state_service.Update{Source: state_service.SourceReader, TotalCount: state_service.Ptr(count)})
			}

			wc.countMu.Lock()
			if !wc.countAgain || ctx.Err() != nil {
				wc.countRunning = false
				wc.countAgain = false
				wc.countMu.Unlock()
				return
			}
			wc.countAgain = false
			wc.countMu.Unlock()
		}
	}()
}

func (wc *WaveCenter) recordError(err error) {
	log.Printf("❌ %s: %v", models.ErrorCode(err), err)
	wc.store.Merge(state_service.Update{Source: state_service.SourceLifetime, Err: err})
}
