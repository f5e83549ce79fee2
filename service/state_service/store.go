package state_service

import (
	"log"
	"sort"
	"sync"
	"time"
	"wave-portal-client/models"

	"github.com/google/uuid"
)

// UpdateSource 更新来源，仅用于日志
type UpdateSource string

const (
	SourceWallet   UpdateSource = "wallet"
	SourceNetwork  UpdateSource = "network"
	SourceReader   UpdateSource = "reader"
	SourceWriter   UpdateSource = "writer"
	SourceEvent    UpdateSource = "event"
	SourceCache    UpdateSource = "cache"
	SourceUser     UpdateSource = "user"
	SourceLifetime UpdateSource = "lifetime"
)

// Update 局部更新；nil 字段表示不修改
type Update struct {
	Source UpdateSource

	WalletPresent *bool
	Account       *string
	NetworkMatch  *bool
	Messages      []models.MessageRecord
	TotalCount    *uint64
	Draft         *string
	WriteState    *models.WriteState
	Pending       *models.PendingWrite
	ClearPending  bool
	Err           error
	ClearErr      bool
	Stale         *bool
	Subscribed    *bool
}

// Listener 每次合并后收到快照和本次新增的记录
type Listener func(snapshot models.SessionState, added []models.MessageRecord)

// Store is the ClientStateStore. Merge is the only way to mutate session state.
type Store struct {
	mu        sync.RWMutex
	state     models.SessionState
	seen      map[string]struct{}
	listeners []Listener
}

// NewStore 创建会话状态
func NewStore() *Store {
	return &Store{
		state: models.SessionState{
			SessionID:  uuid.NewString(),
			Messages:   []models.MessageRecord{},
			WriteState: models.WriteStateIdle,
			UpdatedAt:  time.Now(),
		},
		seen: make(map[string]struct{}),
	}
}

// AddListener 注册快照监听
func (s *Store) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Merge 合并一次局部更新并发布快照
func (s *Store) Merge(u Update) models.SessionState {
	s.mu.Lock()
	added := s.apply(u)
	s.state.UpdatedAt = time.Now()
	snapshot := s.copyLocked()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot, added)
	}
	return snapshot
}

func (s *Store) apply(u Update) []models.MessageRecord {
	if u.WalletPresent != nil {
		s.state.WalletPresent = *u.WalletPresent
	}
	if u.Account != nil {
		s.state.Account = *u.Account
	}
	if u.NetworkMatch != nil {
		s.state.NetworkMatch = *u.NetworkMatch
	}
	if u.TotalCount != nil {
		if *u.TotalCount < s.state.TotalCount {
			log.Printf("⚠️ [%s] stale total count %d ignored, keeping %d", u.Source, *u.TotalCount, s.state.TotalCount)
		} else {
			s.state.TotalCount = *u.TotalCount
		}
	}
	if u.Draft != nil {
		s.state.Draft = *u.Draft
	}
	if u.WriteState != nil {
		s.state.WriteState = *u.WriteState
	}
	if u.ClearPending {
		s.state.Pending = nil
	}
	if u.Pending != nil {
		p := *u.Pending
		s.state.Pending = &p
	}
	if u.ClearErr {
		s.state.LastError = ""
		s.state.LastErrorCode = ""
	}
	if u.Err != nil {
		s.state.LastError = u.Err.Error()
		s.state.LastErrorCode = models.ErrorCode(u.Err)
	}
	if u.Stale != nil {
		s.state.Stale = *u.Stale
	}
	if u.Subscribed != nil {
		s.state.Subscribed = *u.Subscribed
	}
	return s.mergeMessages(u.Messages)
}

func (s *Store) mergeMessages(incoming []models.MessageRecord) []models.MessageRecord {
	if len(incoming) == 0 {
		return nil
	}
	var added []models.MessageRecord
	for _, m := range incoming {
		key := m.Key()
		if _, ok := s.seen[key]; ok {
			s.enrich(key, m)
			continue
		}
		s.seen[key] = struct{}{}
		s.state.Messages = append(s.state.Messages, m)
		added = append(added, m)
	}
	if len(added) > 0 {
		sort.SliceStable(s.state.Messages, func(i, j int) bool {
			return s.state.Messages[i].SentAt.Before(s.state.Messages[j].SentAt)
		})
	}
	return added
}

// enrich fills chain log identifiers on a record first seen through a bulk read.
func (s *Store) enrich(key string, m models.MessageRecord) {
	if m.TxHash == "" {
		return
	}
	for i := range s.state.Messages {
		existing := &s.state.Messages[i]
		if existing.TxHash == "" && existing.Key() == key {
			existing.TxHash = m.TxHash
			existing.LogIndex = m.LogIndex
			existing.BlockNumber = m.BlockNumber
			return
		}
	}
}

// Snapshot 返回不可变快照（深拷贝）
func (s *Store) Snapshot() models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() models.SessionState {
	out := s.state
	out.Messages = append([]models.MessageRecord(nil), s.state.Messages...)
	if out.Messages == nil {
		out.Messages = []models.MessageRecord{}
	}
	if s.state.Pending != nil {
		p := *s.state.Pending
		out.Pending = &p
	}
	return out
}

// Ptr 构造 Update 字段的小工具
func Ptr[T any](v T) *T {
	return &v
}
