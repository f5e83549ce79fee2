package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MessageRecord 一条链上留言
type MessageRecord struct {
	Sender      string       `json:"sender"`                // 发送者地址
	SentAt      time.Time    `json:"sentAt"`                // 上链时间（合约时间戳，秒）
	Text        string       `json:"text"`                  // 留言内容
	TxHash      string       `json:"txHash,omitempty"`      // 事件/回执来源时的交易哈希
	LogIndex    uint         `json:"logIndex,omitempty"`    // 事件日志序号
	BlockNumber uint64       `json:"blockNumber,omitempty"` // 区块高度
	Source      RecordSource `json:"source"`                // 记录来源
}

// Key 去重键：bulk read 没有日志标识，所以只能用 sender+timestamp+text
func (m MessageRecord) Key() string {
	raw := fmt.Sprintf("%s|%d|%s", strings.ToLower(m.Sender), m.SentAt.Unix(), m.Text)
	return chainhash.HashH([]byte(raw)).String()
}

// PendingWrite 已广播但未最终确认的写操作
type PendingWrite struct {
	DraftText   string    `json:"draftText"`
	SubmittedAt time.Time `json:"submittedAt"`
	TxHash      string    `json:"txHash"`
}

// WriteOutcome ChainWriter 一次发送的终态
type WriteOutcome struct {
	State            WriteState `json:"state"`
	Text             string     `json:"text"`
	TxHash           string     `json:"txHash,omitempty"`
	SubmittedAt      time.Time  `json:"submittedAt"`
	FinishedAt       time.Time  `json:"finishedAt"`
	BlockNumber      uint64     `json:"blockNumber,omitempty"`
	TotalCountBefore uint64     `json:"totalCountBefore"`
	TotalCountAfter  uint64     `json:"totalCountAfter"`
}

// NativeCurrency EIP-3085 nativeCurrency
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// NetworkDescriptor EIP-3085 wallet_addEthereumChain 参数
type NetworkDescriptor struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
}

// TxRequest 交给钱包签名并广播的交易
type TxRequest struct {
	From string
	To   string
	Data []byte
	Gas  uint64
}

// SessionState presentation layer 读取的快照
type SessionState struct {
	SessionID     string          `json:"sessionId"`
	WalletPresent bool            `json:"walletPresent"`
	Account       string          `json:"account"`
	NetworkMatch  bool            `json:"networkMatch"`
	Messages      []MessageRecord `json:"messages"` // chronological
	TotalCount    uint64          `json:"totalCount"`
	Draft         string          `json:"draft"`
	WriteState    WriteState      `json:"writeState"`
	Pending       *PendingWrite   `json:"pending,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
	LastErrorCode string          `json:"lastErrorCode,omitempty"`
	Stale         bool            `json:"stale"`
	Subscribed    bool            `json:"subscribed"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// HasAccount 是否已授权账户
func (s SessionState) HasAccount() bool {
	return s.Account != ""
}

// NewestFirst 展示顺序
func (s SessionState) NewestFirst() []MessageRecord {
	out := make([]MessageRecord, len(s.Messages))
	for i, m := range s.Messages {
		out[len(s.Messages)-1-i] = m
	}
	return out
}
