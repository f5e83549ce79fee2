package wallet_service

import (
	"context"
	"fmt"
	"log"
	"wave-portal-client/models"
	"wave-portal-client/service/state_service"
)

// Session is the WalletSession: which account, if any, is authorized.
type Session struct {
	provider Provider
	store    *state_service.Store
}

// NewSession provider 为 nil 表示没有钱包扩展
func NewSession(provider Provider, store *state_service.Store) *Session {
	store.Merge(state_service.Update{Source: state_service.SourceWallet, WalletPresent: state_service.Ptr(provider != nil)})
	return &Session{provider: provider, store: store}
}

// CheckAuthorization 查询已授权账户，不弹窗
func (s *Session) CheckAuthorization(ctx context.Context) (string, error) {
	if s.provider == nil {
		log.Printf("⚠️ Make sure you have a wallet extension, continuing read-only")
		return "", models.ErrWalletNotPresent
	}

	accounts, err := s.provider.GetAuthorizedAccounts(ctx)
	if err != nil {
		if IsDisconnected(err) {
			s.setPresent(false)
			return "", fmt.Errorf("%w: %w", models.ErrWalletNotPresent, err)
		}
		return "", fmt.Errorf("check authorization: %w", err)
	}
	s.setPresent(true)
	if len(accounts) == 0 {
		log.Printf("📭 No authorized account found")
		return "", nil
	}

	account := accounts[0]
	log.Printf("✅ Found an authorized account: %s", account)
	s.store.Merge(state_service.Update{Source: state_service.SourceWallet, Account: state_service.Ptr(account)})
	return account, nil
}

// RequestConnection 主动请求授权
func (s *Session) RequestConnection(ctx context.Context) (string, error) {
	if s.provider == nil {
		return "", models.ErrWalletNotPresent
	}

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		switch {
		case IsUserRejected(err):
			return "", fmt.Errorf("%w: %w", models.ErrUserRejected, err)
		case IsDisconnected(err):
			s.setPresent(false)
			return "", fmt.Errorf("%w: %w", models.ErrWalletNotPresent, err)
		default:
			return "", fmt.Errorf("request accounts: %w", err)
		}
	}
	s.setPresent(true)
	if len(accounts) == 0 {
		return "", models.ErrUserRejected
	}

	account := accounts[0]
	log.Printf("🔗 Connected %s", account)
	s.store.Merge(state_service.Update{Source: state_service.SourceWallet, Account: state_service.Ptr(account)})
	return account, nil
}

// setPresent 中继模式下页面可能没连上，钱包是否可用以最近一次应答为准
func (s *Session) setPresent(present bool) {
	if s.store.Snapshot().WalletPresent == present {
		return
	}
	if !present {
		log.Printf("📴 Wallet bridge has no wallet page attached")
	}
	s.store.Merge(state_service.Update{Source: state_service.SourceWallet, WalletPresent: state_service.Ptr(present)})
}
