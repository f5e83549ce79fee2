package chain_service

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"wave-portal-client/models"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// WavePortalABI 合约接口：getTotalWaves / getAllWaves / wave / NewWave
const WavePortalABI = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"internalType":"address","name":"from","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"},
		{"indexed":false,"internalType":"string","name":"message","type":"string"}],
	 "name":"NewWave","type":"event"},
	{"inputs":[],"name":"getAllWaves","outputs":[
		{"components":[
			{"internalType":"address","name":"waver","type":"address"},
			{"internalType":"string","name":"message","type":"string"},
			{"internalType":"uint256","name":"timestamp","type":"uint256"}],
		 "internalType":"struct WavePortal.Wave[]","name":"","type":"tuple[]"}],
	 "stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getTotalWaves","outputs":[
		{"internalType":"uint256","name":"","type":"uint256"}],
	 "stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"string","name":"_message","type":"string"}],
	 "name":"wave","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const (
	MethodGetTotalWaves = "getTotalWaves"
	MethodGetAllWaves   = "getAllWaves"
	MethodWave          = "wave"
	EventNewWave        = "NewWave"
)

// WavePortalWave getAllWaves 返回的元组
type WavePortalWave struct {
	Waver     common.Address
	Message   string
	Timestamp *big.Int
}

var parsedABI abi.ABI

func init() {
	var err error
	parsedABI, err = abi.JSON(strings.NewReader(WavePortalABI))
	if err != nil {
		panic(fmt.Sprintf("wave portal abi: %v", err))
	}
}

// ParsedABI 解析好的合约 ABI
func ParsedABI() abi.ABI {
	return parsedABI
}

// NewWaveTopic NewWave 事件签名哈希
func NewWaveTopic() common.Hash {
	return parsedABI.Events[EventNewWave].ID
}

// PackWave wave(string) 调用数据
func PackWave(text string) ([]byte, error) {
	return parsedABI.Pack(MethodWave, text)
}

// ToRecord 合约元组转 MessageRecord
func (w WavePortalWave) ToRecord() models.MessageRecord {
	return models.MessageRecord{
		Sender: w.Waver.Hex(),
		SentAt: unixSeconds(w.Timestamp),
		Text:   w.Message,
		Source: models.RecordSourceBulkRead,
	}
}

var errNotNewWave = errors.New("log is not a NewWave event")

// DecodeNewWave 把 NewWave 日志解码为 MessageRecord
func DecodeNewWave(l types.Log, source models.RecordSource) (models.MessageRecord, error) {
	if len(l.Topics) < 2 || l.Topics[0] != NewWaveTopic() {
		return models.MessageRecord{}, errNotNewWave
	}
	values, err := parsedABI.Unpack(EventNewWave, l.Data)
	if err != nil {
		return models.MessageRecord{}, fmt.Errorf("unpack NewWave: %w", err)
	}
	if len(values) != 2 {
		return models.MessageRecord{}, fmt.Errorf("unpack NewWave: got %d values", len(values))
	}
	ts, ok := values[0].(*big.Int)
	if !ok {
		return models.MessageRecord{}, fmt.Errorf("unpack NewWave: timestamp type %T", values[0])
	}
	text, ok := values[1].(string)
	if !ok {
		return models.MessageRecord{}, fmt.Errorf("unpack NewWave: message type %T", values[1])
	}

	return models.MessageRecord{
		Sender:      common.BytesToAddress(l.Topics[1].Bytes()).Hex(),
		SentAt:      unixSeconds(ts),
		Text:        text,
		TxHash:      l.TxHash.Hex(),
		LogIndex:    l.Index,
		BlockNumber: l.BlockNumber,
		Source:      source,
	}, nil
}

// DecodeReceiptWaves 从回执中取出本合约的 NewWave 记录
func DecodeReceiptWaves(receipt *types.Receipt, contract common.Address) []models.MessageRecord {
	var out []models.MessageRecord
	for _, l := range receipt.Logs {
		if l == nil || l.Address != contract {
			continue
		}
		rec, err := DecodeNewWave(*l, models.RecordSourceReceipt)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func unixSeconds(ts *big.Int) time.Time {
	if ts == nil || !ts.IsInt64() {
		return time.Unix(0, 0).UTC()
	}
	return time.Unix(ts.Int64(), 0).UTC()
}
