// Package chaintest provides an in-memory WavePortal chain and wallet for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
	"wave-portal-client/models"
	"wave-portal-client/service/chain_service"
	"wave-portal-client/service/wallet_service"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ContractAddress 测试合约地址
var ContractAddress = common.HexToAddress("0x83b751F54a56EFcB8bB54E69e40aC414080F5CDb")

// Chain 内存链：合约调用、回执、日志订阅
type Chain struct {
	mu       sync.Mutex
	waves    []chain_service.WavePortalWave
	logs     []types.Log
	receipts map[common.Hash]*types.Receipt
	held     []*types.Receipt
	block    uint64
	nonce    uint64
	subs     map[*subscription]struct{}

	// FailCalls 接下来多少次 CallContract 返回错误
	FailCalls int
	// FailReceipts 接下来多少次 TransactionReceipt 返回连接错误
	FailReceipts int
	// HoldReceipts 为 true 时新交易的回执在 Release 之前不可见
	HoldReceipts bool
	// Revert 为 true 时新交易回滚
	Revert bool
	// GasUsed 交易需要的 gas，默认 50000；超过交易 gas 上限时回执失败
	GasUsed uint64

	calls int
	dials int
}

// NewChain 创建空链
func NewChain() *Chain {
	return &Chain{
		receipts: make(map[common.Hash]*types.Receipt),
		subs:     make(map[*subscription]struct{}),
		block:    100,
		GasUsed:  50000,
	}
}

// Dial chain_service.DialFunc
func (c *Chain) Dial(ctx context.Context, rpcURL string) (chain_service.Backend, error) {
	c.mu.Lock()
	c.dials++
	c.mu.Unlock()
	return c, nil
}

// Dials 建立过的连接数
func (c *Chain) Dials() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dials
}

// Calls 成功的合约调用次数
func (c *Chain) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Seed 预置一条历史留言（不产生日志）
func (c *Chain) Seed(from common.Address, text string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waves = append(c.waves, chain_service.WavePortalWave{Waver: from, Message: text, Timestamp: big.NewInt(at.Unix())})
}

// TotalWaves 链上总数
func (c *Chain) TotalWaves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waves)
}

func (c *Chain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	if contract != ContractAddress {
		return nil, nil
	}
	return []byte{0x60, 0x80}, nil
}

func (c *Chain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailCalls > 0 {
		c.FailCalls--
		return nil, errors.New("connection refused")
	}
	if call.To == nil || *call.To != ContractAddress {
		return nil, nil
	}
	parsed := chain_service.ParsedABI()
	method, err := parsed.MethodById(call.Data)
	if err != nil {
		return nil, err
	}
	c.calls++
	switch method.Name {
	case chain_service.MethodGetTotalWaves:
		return method.Outputs.Pack(big.NewInt(int64(len(c.waves))))
	case chain_service.MethodGetAllWaves:
		return method.Outputs.Pack(append([]chain_service.WavePortalWave(nil), c.waves...))
	default:
		return nil, fmt.Errorf("method %s is not a view", method.Name)
	}
}

func (c *Chain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailReceipts > 0 {
		c.FailReceipts--
		return nil, errors.New("connection reset by peer")
	}
	r, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block, nil
}

// Close 内存链无需关闭
func (c *Chain) Close() {}

// Mine 打包一笔 wave 交易，返回交易哈希
func (c *Chain) Mine(from common.Address, text string, gas uint64) common.Hash {
	c.mu.Lock()
	c.nonce++
	c.block++
	txHash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s|%d|%s", from.Hex(), c.nonce, text)))
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		GasUsed:     c.GasUsed,
		BlockNumber: new(big.Int).SetUint64(c.block),
		BlockHash:   blockHash(c.block, 0),
	}
	outOfGas := gas > 0 && c.GasUsed > gas
	if outOfGas {
		receipt.GasUsed = gas
	}

	var delivered *types.Log
	if c.Revert || outOfGas {
		receipt.Status = types.ReceiptStatusFailed
	} else {
		ts := time.Now().Unix()
		c.waves = append(c.waves, chain_service.WavePortalWave{Waver: from, Message: text, Timestamp: big.NewInt(ts)})
		l := c.newWaveLog(from, text, ts, txHash)
		c.logs = append(c.logs, l)
		receipt.Logs = []*types.Log{&l}
		delivered = &l
	}

	if c.HoldReceipts {
		c.held = append(c.held, receipt)
	} else {
		c.receipts[txHash] = receipt
	}
	subs := c.subscribers()
	c.mu.Unlock()

	if delivered != nil {
		for _, s := range subs {
			s.deliver(*delivered)
		}
	}
	return txHash
}

// Release 让被挂起的回执可见
func (c *Chain) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.held {
		c.receipts[r.TxHash] = r
	}
	c.held = nil
	c.HoldReceipts = false
}

// Reorg 模拟重组：交易从原来的块里消失，重新打包进下一个块
func (c *Chain) Reorg(txHash common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[txHash]
	if !ok {
		return
	}
	c.block++
	moved := *r
	moved.BlockNumber = new(big.Int).SetUint64(c.block)
	moved.BlockHash = blockHash(c.block, 1)
	c.receipts[txHash] = &moved
}

// Receipt 当前可见的回执
func (c *Chain) Receipt(txHash common.Hash) *types.Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipts[txHash]
}

func blockHash(number uint64, fork int) common.Hash {
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("block|%d|%d", number, fork)))
}

// AdvanceBlocks 出块
func (c *Chain) AdvanceBlocks(n uint64) {
	c.mu.Lock()
	c.block += n
	c.mu.Unlock()
}

func (c *Chain) newWaveLog(from common.Address, text string, ts int64, txHash common.Hash) types.Log {
	event := chain_service.ParsedABI().Events[chain_service.EventNewWave]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(ts), text)
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address:     ContractAddress,
		Topics:      []common.Hash{chain_service.NewWaveTopic(), common.BytesToHash(from.Bytes())},
		Data:        data,
		BlockNumber: c.block,
		TxHash:      txHash,
		Index:       uint(len(c.logs)),
	}
}

// FilterLogs 按地址、主题和起始区块过滤历史日志
func (c *Chain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []types.Log
	for _, l := range c.logs {
		if matches(q, l) {
			out = append(out, l)
		}
	}
	return out, nil
}

// SubscribeFilterLogs 实时日志订阅
func (c *Chain) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	s := &subscription{
		chain: c,
		query: q,
		ch:    ch,
		err:   make(chan error, 1),
		quit:  make(chan struct{}),
	}
	c.mu.Lock()
	c.subs[s] = struct{}{}
	c.mu.Unlock()
	return s, nil
}

// Subscriptions 当前活跃订阅数
func (c *Chain) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// DropSubscriptions 模拟连接断开
func (c *Chain) DropSubscriptions() {
	c.mu.Lock()
	subs := c.subscribers()
	c.subs = make(map[*subscription]struct{})
	c.mu.Unlock()
	for _, s := range subs {
		s.err <- errors.New("websocket: close 1006 (abnormal closure)")
	}
}

func (c *Chain) subscribers() []*subscription {
	out := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		out = append(out, s)
	}
	return out
}

func matches(q ethereum.FilterQuery, l types.Log) bool {
	if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
		return false
	}
	if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
		return false
	}
	if len(q.Addresses) > 0 {
		found := false
		for _, a := range q.Addresses {
			if a == l.Address {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if len(q.Topics) > 0 && len(q.Topics[0]) > 0 {
		found := false
		for _, t := range q.Topics[0] {
			if len(l.Topics) > 0 && t == l.Topics[0] {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type subscription struct {
	chain *Chain
	query ethereum.FilterQuery
	ch    chan<- types.Log
	err   chan error
	quit  chan struct{}
	once  sync.Once
}

func (s *subscription) deliver(l types.Log) {
	if !matches(s.query, l) {
		return
	}
	select {
	case s.ch <- l:
	case <-s.quit:
	}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.chain.mu.Lock()
		delete(s.chain.subs, s)
		s.chain.mu.Unlock()
		close(s.quit)
	})
}

func (s *subscription) Err() <-chan error {
	return s.err
}

// Wallet 内存钱包，签名即打包
type Wallet struct {
	Chain   *Chain
	Account common.Address

	mu         sync.Mutex
	active     string
	known      map[string]bool
	authorized bool

	// RejectConnect / RejectSwitch / RejectAdd / RejectSign 模拟用户拒绝
	RejectConnect bool
	RejectSwitch  bool
	RejectAdd     bool
	RejectSign    bool

	requests int
	sent     int
}

// NewWallet 钱包当前网络为 activeChainID，且只认识这一条链
func NewWallet(chain *Chain, account common.Address, activeChainID string) *Wallet {
	return &Wallet{
		Chain:   chain,
		Account: account,
		active:  activeChainID,
		known:   map[string]bool{strings.ToLower(activeChainID): true},
	}
}

// Authorize 预先授权账户
func (w *Wallet) Authorize() {
	w.mu.Lock()
	w.authorized = true
	w.mu.Unlock()
}

// Requests 钱包收到的请求数
func (w *Wallet) Requests() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.requests
}

// Sent 广播的交易数
func (w *Wallet) Sent() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sent
}

// Active 当前网络
func (w *Wallet) Active() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *Wallet) RequestAccounts(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requests++
	if w.RejectConnect {
		return nil, wallet_service.NewProviderError(wallet_service.CodeUserRejected, "User rejected the request.")
	}
	w.authorized = true
	return []string{w.Account.Hex()}, nil
}

func (w *Wallet) GetAuthorizedAccounts(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requests++
	if !w.authorized {
		return []string{}, nil
	}
	return []string{w.Account.Hex()}, nil
}

func (w *Wallet) GetActiveNetwork(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requests++
	return w.active, nil
}

func (w *Wallet) RequestNetworkSwitch(ctx context.Context, chainID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requests++
	if w.RejectSwitch {
		return wallet_service.NewProviderError(wallet_service.CodeUserRejected, "User rejected the request.")
	}
	if !w.known[strings.ToLower(chainID)] {
		return wallet_service.NewProviderError(wallet_service.CodeUnrecognizedChain, "Unrecognized chain ID "+chainID)
	}
	w.active = chainID
	return nil
}

func (w *Wallet) RequestNetworkAdd(ctx context.Context, d models.NetworkDescriptor) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requests++
	if w.RejectAdd {
		return wallet_service.NewProviderError(wallet_service.CodeUserRejected, "User rejected the request.")
	}
	w.known[strings.ToLower(d.ChainID)] = true
	w.active = d.ChainID
	return nil
}

func (w *Wallet) SignAndSend(ctx context.Context, tx models.TxRequest) (string, error) {
	w.mu.Lock()
	w.requests++
	if w.RejectSign {
		w.mu.Unlock()
		return "", wallet_service.NewProviderError(wallet_service.CodeUserRejected, "User denied transaction signature.")
	}
	if !strings.EqualFold(tx.From, w.Account.Hex()) {
		w.mu.Unlock()
		return "", wallet_service.NewProviderError(wallet_service.CodeUnauthorized, "unknown account")
	}
	w.sent++
	w.mu.Unlock()

	parsed := chain_service.ParsedABI()
	method, err := parsed.MethodById(tx.Data)
	if err != nil {
		return "", err
	}
	args, err := method.Inputs.Unpack(tx.Data[4:])
	if err != nil {
		return "", err
	}
	text, _ := args[0].(string)
	return w.Chain.Mine(w.Account, text, tx.Gas).Hex(), nil
}

// EncodeChainID 十进制链ID 转钱包格式
func EncodeChainID(id int64) string {
	return hexutil.EncodeBig(big.NewInt(id))
}
