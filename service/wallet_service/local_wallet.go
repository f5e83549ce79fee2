package wallet_service

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"wave-portal-client/models"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/crypto/sha3"
)

// TxBackend 本地钱包广播交易需要的 RPC 能力
type TxBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// LocalWallet 无浏览器时使用的本地私钥钱包
type LocalWallet struct {
	key     *btcec.PrivateKey
	address common.Address
	backend TxBackend

	mu      sync.Mutex
	chainID *big.Int
}

// NewLocalWallet 从十六进制私钥创建本地钱包
func NewLocalWallet(privateKeyHex string, backend TxBackend) (*LocalWallet, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("解析私钥失败: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("私钥长度错误: %d", len(raw))
	}
	key, pub := btcec.PrivKeyFromBytes(raw)

	w := &LocalWallet{
		key:     key,
		address: pubkeyToAddress(pub),
		backend: backend,
	}
	log.Printf("🔑 Local wallet loaded: %s", w.address.Hex())
	return w, nil
}

// pubkeyToAddress keccak256(X||Y) 的后 20 字节
func pubkeyToAddress(pub *btcec.PublicKey) common.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:])
	return common.BytesToAddress(h.Sum(nil)[12:])
}

// Address 钱包地址
func (w *LocalWallet) Address() common.Address {
	return w.address
}

func (w *LocalWallet) RequestAccounts(ctx context.Context) ([]string, error) {
	return []string{w.address.Hex()}, nil
}

func (w *LocalWallet) GetAuthorizedAccounts(ctx context.Context) ([]string, error) {
	return []string{w.address.Hex()}, nil
}

func (w *LocalWallet) GetActiveNetwork(ctx context.Context) (string, error) {
	id, err := w.loadChainID(ctx)
	if err != nil {
		return "", NewProviderError(CodeChainDisconnected, err.Error())
	}
	return hexutil.EncodeBig(id), nil
}

// RequestNetworkSwitch 本地钱包只认 RPC 所在的链
func (w *LocalWallet) RequestNetworkSwitch(ctx context.Context, chainID string) error {
	active, err := w.GetActiveNetwork(ctx)
	if err != nil {
		return err
	}
	if !SameChain(chainID, active) {
		return NewProviderError(CodeUnrecognizedChain, fmt.Sprintf("local wallet is bound to chain %s", active))
	}
	return nil
}

func (w *LocalWallet) RequestNetworkAdd(ctx context.Context, descriptor models.NetworkDescriptor) error {
	return NewProviderError(CodeUnsupportedMethod, "local wallet cannot add networks")
}

// SignAndSend 构造 legacy 交易，EIP-155 签名后广播
func (w *LocalWallet) SignAndSend(ctx context.Context, req models.TxRequest) (string, error) {
	if !strings.EqualFold(req.From, w.address.Hex()) {
		return "", NewProviderError(CodeUnauthorized, fmt.Sprintf("account %s is not managed by this wallet", req.From))
	}
	chainID, err := w.loadChainID(ctx)
	if err != nil {
		return "", err
	}
	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", fmt.Errorf("获取 nonce 失败: %w", err)
	}
	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("获取 gas price 失败: %w", err)
	}

	to := common.HexToAddress(req.To)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      req.Gas,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signed, err := w.sign(tx, chainID)
	if err != nil {
		return "", err
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("广播交易失败: %w", err)
	}
	log.Printf("📤 Local wallet broadcast %s (nonce=%d)", signed.Hash().Hex(), nonce)
	return signed.Hash().Hex(), nil
}

func (w *LocalWallet) sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.NewEIP155Signer(chainID)
	hash := signer.Hash(tx)

	compact := btcecdsa.SignCompact(w.key, hash[:], false)
	// btcec 输出 [v+27 | R | S]，以太坊需要 [R | S | v]
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27

	return tx.WithSignature(signer, sig)
}

func (w *LocalWallet) loadChainID(ctx context.Context) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.chainID != nil {
		return w.chainID, nil
	}
	id, err := w.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取链ID失败: %w", err)
	}
	w.chainID = id
	return id, nil
}
