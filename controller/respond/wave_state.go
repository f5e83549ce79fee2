package respond

import "wave-portal-client/models"

// WaveState 展示层读取的会话快照
// @Description 当前账户、留言列表（新的在前）、总数和写入状态
type WaveState struct {
	SessionID     string                 `json:"sessionId"`
	Account       string                 `json:"account" example:"0x1111111111111111111111111111111111111111"`
	WalletPresent bool                   `json:"walletPresent"`
	NetworkMatch  bool                   `json:"networkMatch"`
	TotalCount    uint64                 `json:"totalCount" example:"42"`
	Messages      []models.MessageRecord `json:"messages"`
	Draft         string                 `json:"draft"`
	WriteState    string                 `json:"writeState" example:"idle"`
	Pending       *models.PendingWrite   `json:"pending,omitempty"`
	LastError     string                 `json:"lastError,omitempty"`
	LastErrorCode string                 `json:"lastErrorCode,omitempty" example:"WrongNetwork"`
	Stale         bool                   `json:"stale"`
	Subscribed    bool                   `json:"subscribed"`
}

// NewWaveState limit <= 0 时返回全部留言
func NewWaveState(s models.SessionState, limit int) WaveState {
	messages := s.NewestFirst()
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return WaveState{
		SessionID:     s.SessionID,
		Account:       s.Account,
		WalletPresent: s.WalletPresent,
		NetworkMatch:  s.NetworkMatch,
		TotalCount:    s.TotalCount,
		Messages:      messages,
		Draft:         s.Draft,
		WriteState:    s.WriteState.String(),
		Pending:       s.Pending,
		LastError:     s.LastError,
		LastErrorCode: s.LastErrorCode,
		Stale:         s.Stale,
		Subscribed:    s.Subscribed,
	}
}
