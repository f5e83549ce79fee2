package network_service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"wave-portal-client/models"
	"wave-portal-client/service/state_service"
	"wave-portal-client/service/wallet_service"
)

// Guard is the NetworkGuard: keeps the wallet on the required chain.
type Guard struct {
	provider   wallet_service.Provider
	descriptor models.NetworkDescriptor
	store      *state_service.Store

	// promptMu 串行化切换/添加流程，避免并发请求叠加弹窗；钱包往返期间只持有它
	promptMu sync.Mutex

	// mu 只保护 verified 和 epoch，chainChanged 回调在 socket 读循环里拿它
	mu       sync.Mutex
	verified bool
	epoch    uint64
}

// NewGuard provider 为 nil 时所有检查都返回 ErrWalletNotPresent
func NewGuard(provider wallet_service.Provider, descriptor models.NetworkDescriptor, store *state_service.Store) *Guard {
	g := &Guard{
		provider:   provider,
		descriptor: descriptor,
		store:      store,
	}
	if notifier, ok := provider.(wallet_service.NetworkNotifier); ok {
		notifier.OnNetworkChanged(g.handleNetworkChanged)
	}
	return g
}

// Invalidate 丢弃缓存的校验结果，下次 EnsureNetwork 会重新询问钱包
func (g *Guard) Invalidate() {
	g.mu.Lock()
	g.verified = false
	g.epoch++
	g.mu.Unlock()
}

func (g *Guard) handleNetworkChanged(chainID string) {
	match := wallet_service.SameChain(chainID, g.descriptor.ChainID)
	g.mu.Lock()
	g.verified = match
	g.epoch++
	g.mu.Unlock()
	log.Printf("🔀 Wallet network changed to %s (required %s, match=%v)", chainID, g.descriptor.ChainID, match)
	g.setMatch(match)
}

// EnsureNetwork 确保钱包当前网络为目标网络，必要时请求切换或添加
func (g *Guard) EnsureNetwork(ctx context.Context) error {
	if g.provider == nil {
		return models.ErrWalletNotPresent
	}

	g.promptMu.Lock()
	defer g.promptMu.Unlock()

	g.mu.Lock()
	verified, epoch := g.verified, g.epoch
	g.mu.Unlock()
	if verified {
		return nil
	}

	match, err := g.activeMatches(ctx)
	if err != nil {
		return err
	}
	if match {
		g.markVerified(epoch)
		return nil
	}

	log.Printf("🔀 Requesting switch to %s (%s)", g.descriptor.ChainName, g.descriptor.ChainID)
	switchErr := g.provider.RequestNetworkSwitch(ctx, g.descriptor.ChainID)
	if switchErr == nil {
		g.markVerified(epoch)
		return nil
	}

	if wallet_service.ProviderErrorCode(switchErr) != wallet_service.CodeUnrecognizedChain {
		log.Printf("❌ Network switch refused: %v", switchErr)
		g.setMatch(false)
		return fmt.Errorf("%w: %w", models.ErrNetworkSwitchDenied, switchErr)
	}

	// 钱包不认识该链，添加后再确认一次
	log.Printf("➕ Chain %s unknown to wallet, requesting add", g.descriptor.ChainID)
	if err := g.provider.RequestNetworkAdd(ctx, g.descriptor); err != nil {
		log.Printf("❌ Error adding %s: %v", g.descriptor.ChainName, err)
		g.setMatch(false)
		return fmt.Errorf("%w: %w", models.ErrNetworkAddFailed, err)
	}

	match, err = g.activeMatches(ctx)
	if err != nil {
		return err
	}
	if !match {
		if err := g.provider.RequestNetworkSwitch(ctx, g.descriptor.ChainID); err != nil {
			g.setMatch(false)
			return fmt.Errorf("%w: %w", models.ErrNetworkSwitchDenied, err)
		}
	}
	g.markVerified(epoch)
	return nil
}

func (g *Guard) activeMatches(ctx context.Context) (bool, error) {
	active, err := g.provider.GetActiveNetwork(ctx)
	if err != nil {
		if wallet_service.IsDisconnected(err) {
			return false, fmt.Errorf("%w: %w", models.ErrWalletNotPresent, err)
		}
		return false, fmt.Errorf("read active network: %w", err)
	}
	return wallet_service.SameChain(active, g.descriptor.ChainID), nil
}

// markVerified 流程期间收到过 chainChanged 时以事件为准，不覆盖 verified
func (g *Guard) markVerified(epoch uint64) {
	g.mu.Lock()
	current := g.epoch == epoch
	if current {
		g.verified = true
	}
	g.mu.Unlock()
	log.Printf("✅ Wallet is on %s", g.descriptor.ChainName)
	if current {
		g.setMatch(true)
	}
}

func (g *Guard) setMatch(match bool) {
	if g.store == nil {
		return
	}
	g.store.Merge(state_service.Update{Source: state_service.SourceNetwork, NetworkMatch: state_service.Ptr(match)})
}
