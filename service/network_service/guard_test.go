package network_service

import (
	"context"
	"errors"
	"testing"
	"wave-portal-client/models"
	"wave-portal-client/service/chain_service/chaintest"
	"wave-portal-client/service/state_service"
	"wave-portal-client/service/wallet_service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var avalanche = models.NetworkDescriptor{
	ChainID:        "0xa86a",
	ChainName:      "Avalanche Network",
	RPCURLs:        []string{"https://api.avax.network/ext/bc/C/rpc"},
	NativeCurrency: models.NativeCurrency{Name: "Avalanche", Symbol: "AVAX", Decimals: 18},
}

var alice = common.HexToAddress("0x1111111111111111111111111111111111111111")

// disconnectedWallet 页面已关闭的中继钱包
type disconnectedWallet struct {
	*chaintest.Wallet
}

func (disconnectedWallet) GetActiveNetwork(ctx context.Context) (string, error) {
	return "", wallet_service.NewProviderError(wallet_service.CodeDisconnected, "bridge offline")
}

func TestEnsureNetworkAlreadyOnChain(t *testing.T) {
	wallet := chaintest.NewWallet(chaintest.NewChain(), alice, "0xA86A")
	store := state_service.NewStore()
	guard := NewGuard(wallet, avalanche, store)

	require.NoError(t, guard.EnsureNetwork(context.Background()))
	assert.True(t, store.Snapshot().NetworkMatch)
	assert.Equal(t, 1, wallet.Requests())

	// 已确认后不再询问钱包
	require.NoError(t, guard.EnsureNetwork(context.Background()))
	assert.Equal(t, 1, wallet.Requests())

	guard.Invalidate()
	require.NoError(t, guard.EnsureNetwork(context.Background()))
	assert.Equal(t, 2, wallet.Requests())
}

func TestEnsureNetworkSwitchesKnownChain(t *testing.T) {
	wallet := chaintest.NewWallet(chaintest.NewChain(), alice, "0x1")
	require.NoError(t, wallet.RequestNetworkAdd(context.Background(), avalanche))
	require.NoError(t, wallet.RequestNetworkSwitch(context.Background(), "0x1"))

	store := state_service.NewStore()
	guard := NewGuard(wallet, avalanche, store)
	require.NoError(t, guard.EnsureNetwork(context.Background()))
	assert.Equal(t, "0xa86a", wallet.Active())
	assert.True(t, store.Snapshot().NetworkMatch)
}

func TestEnsureNetworkAddsUnknownChain(t *testing.T) {
	wallet := chaintest.NewWallet(chaintest.NewChain(), alice, "0x1")
	guard := NewGuard(wallet, avalanche, state_service.NewStore())

	require.NoError(t, guard.EnsureNetwork(context.Background()))
	assert.Equal(t, "0xa86a", wallet.Active())
	// eth_chainId, switch(4902), add, eth_chainId
	assert.Equal(t, 4, wallet.Requests())
}

func TestEnsureNetworkAddFailure(t *testing.T) {
	wallet := chaintest.NewWallet(chaintest.NewChain(), alice, "0x1")
	wallet.RejectAdd = true
	store := state_service.NewStore()
	guard := NewGuard(wallet, avalanche, store)

	err := guard.EnsureNetwork(context.Background())
	assert.ErrorIs(t, err, models.ErrNetworkAddFailed)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
	assert.Equal(t, wallet_service.CodeUserRejected, wallet_service.ProviderErrorCode(err))
	assert.False(t, store.Snapshot().NetworkMatch)
	assert.Equal(t, "0x1", wallet.Active())
}

func TestEnsureNetworkSwitchDenied(t *testing.T) {
	wallet := chaintest.NewWallet(chaintest.NewChain(), alice, "0x1")
	wallet.RejectSwitch = true
	guard := NewGuard(wallet, avalanche, state_service.NewStore())

	err := guard.EnsureNetwork(context.Background())
	assert.ErrorIs(t, err, models.ErrNetworkSwitchDenied)
	assert.False(t, errors.Is(err, models.ErrNetworkAddFailed))

	// 拒绝后不缓存结果，下次仍会询问
	before := wallet.Requests()
	_ = guard.EnsureNetwork(context.Background())
	assert.Greater(t, wallet.Requests(), before)
}

func TestEnsureNetworkWithoutWallet(t *testing.T) {
	guard := NewGuard(nil, avalanche, state_service.NewStore())
	assert.ErrorIs(t, guard.EnsureNetwork(context.Background()), models.ErrEnvironmentMissing)
}

func TestEnsureNetworkBridgeOffline(t *testing.T) {
	wallet := disconnectedWallet{chaintest.NewWallet(chaintest.NewChain(), alice, "0xa86a")}
	guard := NewGuard(wallet, avalanche, state_service.NewStore())
	assert.ErrorIs(t, guard.EnsureNetwork(context.Background()), models.ErrWalletNotPresent)
}
