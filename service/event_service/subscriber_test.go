package event_service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"wave-portal-client/models"
	"wave-portal-client/service/chain_service"
	"wave-portal-client/service/chain_service/chaintest"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = common.HexToAddress("0x1111111111111111111111111111111111111111")

type collector struct {
	mu      sync.Mutex
	records []models.MessageRecord
}

func (c *collector) add(r models.MessageRecord) {
	c.mu.Lock()
	c.records = append(c.records, r)
	c.mu.Unlock()
}

func (c *collector) texts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int)
	for _, r := range c.records {
		out[r.Text]++
	}
	return out
}

func newTestSubscriber(chain *chaintest.Chain) *Subscriber {
	dial := func(ctx context.Context, url string) (LogBackend, error) { return chain, nil }
	return NewSubscriber(Config{
		WSURL:    "memory",
		Contract: chaintest.ContractAddress,
		Retry:    chain_service.RetryPolicy{MaxRetries: 5, InitialDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond},
	}, dial)
}

func TestSubscribeDeliversEvents(t *testing.T) {
	chain := chaintest.NewChain()
	sub := newTestSubscriber(chain)
	got := &collector{}

	var states []bool
	var mu sync.Mutex
	sub.OnStateChange(func(subscribed bool) {
		mu.Lock()
		states = append(states, subscribed)
		mu.Unlock()
	})

	require.NoError(t, sub.Subscribe(context.Background(), got.add))
	defer sub.Unsubscribe()
	require.Eventually(t, func() bool { return chain.Subscriptions() == 1 && sub.Active() }, time.Second, 5*time.Millisecond)

	hash := chain.Mine(alice, "gm", 300000)
	require.Eventually(t, func() bool { return got.texts()["gm"] == 1 }, time.Second, 5*time.Millisecond)

	got.mu.Lock()
	rec := got.records[0]
	got.mu.Unlock()
	assert.Equal(t, alice.Hex(), rec.Sender)
	assert.Equal(t, hash.Hex(), rec.TxHash)
	assert.Equal(t, models.RecordSourceEvent, rec.Source)

	assert.Error(t, sub.Subscribe(context.Background(), got.add))

	mu.Lock()
	assert.Equal(t, []bool{true}, states)
	mu.Unlock()
}

func TestReconnectBackfillsMissedEvents(t *testing.T) {
	chain := chaintest.NewChain()
	sub := newTestSubscriber(chain)
	got := &collector{}

	require.NoError(t, sub.Subscribe(context.Background(), got.add))
	defer sub.Unsubscribe()
	require.Eventually(t, func() bool { return chain.Subscriptions() == 1 }, time.Second, 5*time.Millisecond)

	chain.Mine(alice, "before", 300000)
	require.Eventually(t, func() bool { return got.texts()["before"] >= 1 }, time.Second, 5*time.Millisecond)

	chain.DropSubscriptions()
	chain.Mine(alice, "during", 300000)

	require.Eventually(t, func() bool { return got.texts()["during"] >= 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return chain.Subscriptions() == 1 }, time.Second, 5*time.Millisecond)

	chain.Mine(alice, "after", 300000)
	require.Eventually(t, func() bool { return got.texts()["after"] == 1 }, time.Second, 5*time.Millisecond)
}

func TestUnsubscribeReleasesConnection(t *testing.T) {
	chain := chaintest.NewChain()
	sub := newTestSubscriber(chain)

	require.NoError(t, sub.Subscribe(context.Background(), func(models.MessageRecord) {}))
	require.Eventually(t, func() bool { return chain.Subscriptions() == 1 }, time.Second, 5*time.Millisecond)

	sub.Unsubscribe()
	assert.Equal(t, 0, chain.Subscriptions())
	assert.False(t, sub.Active())

	sub.Unsubscribe()
}

func TestUnsubscribeWithoutSubscribe(t *testing.T) {
	sub := newTestSubscriber(chaintest.NewChain())
	sub.Unsubscribe()
	assert.False(t, sub.Active())
}

func TestRetriesExhausted(t *testing.T) {
	var dials int32
	sub := NewSubscriber(Config{
		WSURL:    "memory",
		Contract: chaintest.ContractAddress,
		Retry:    chain_service.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}, func(ctx context.Context, url string) (LogBackend, error) {
		atomic.AddInt32(&dials, 1)
		return nil, errors.New("dial tcp: connection refused")
	})

	require.NoError(t, sub.Subscribe(context.Background(), func(models.MessageRecord) {}))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&dials) == 3 }, time.Second, time.Millisecond)

	sub.Unsubscribe()
	assert.Equal(t, int32(3), atomic.LoadInt32(&dials))
	assert.False(t, sub.Active())
}

func TestRemovedLogsAreSkipped(t *testing.T) {
	chain := chaintest.NewChain()
	hash := chain.Mine(alice, "reorged", 300000)
	receipt, err := chain.TransactionReceipt(context.Background(), hash)
	require.NoError(t, err)

	sub := newTestSubscriber(chain)
	got := &collector{}

	l := *receipt.Logs[0]
	l.Removed = true
	sub.handle(l, got.add)
	assert.Empty(t, got.texts())

	l.Removed = false
	sub.handle(l, got.add)
	assert.Equal(t, 1, got.texts()["reorged"])
	assert.Equal(t, l.BlockNumber, sub.lastBlock)
}
