package state_service

import (
	"errors"
	"sync"
	"testing"
	"time"
	"wave-portal-client/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alice = "0x00000000000000000000000000000000000000a1"

func rec(sender string, ts int64, text string, src models.RecordSource) models.MessageRecord {
	return models.MessageRecord{Sender: sender, SentAt: time.Unix(ts, 0), Text: text, Source: src}
}

func TestMergeDeduplicatesAcrossSources(t *testing.T) {
	s := NewStore()
	bulk := []models.MessageRecord{
		rec(alice, 100, "first", models.RecordSourceBulkRead),
		rec(alice, 200, "second", models.RecordSourceBulkRead),
	}
	s.Merge(Update{Source: SourceReader, Messages: bulk})
	s.Merge(Update{Source: SourceEvent, Messages: []models.MessageRecord{rec(alice, 200, "second", models.RecordSourceEvent)}})
	s.Merge(Update{Source: SourceReader, Messages: bulk})

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "first", snap.Messages[0].Text)
	assert.Equal(t, "second", snap.Messages[1].Text)
}

func TestMergeOrdersChronologically(t *testing.T) {
	s := NewStore()
	s.Merge(Update{Messages: []models.MessageRecord{rec(alice, 300, "c", models.RecordSourceEvent)}})
	s.Merge(Update{Messages: []models.MessageRecord{
		rec(alice, 200, "b", models.RecordSourceBulkRead),
		rec(alice, 100, "a", models.RecordSourceBulkRead),
	}})

	var texts []string
	for _, m := range s.Snapshot().Messages {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"a", "b", "c"}, texts)
}

func TestMergeKeepsArrivalOrderForEqualTimestamps(t *testing.T) {
	s := NewStore()
	s.Merge(Update{Messages: []models.MessageRecord{rec(alice, 100, "x", models.RecordSourceEvent)}})
	s.Merge(Update{Messages: []models.MessageRecord{rec(alice, 100, "y", models.RecordSourceEvent)}})

	snap := s.Snapshot()
	assert.Equal(t, "x", snap.Messages[0].Text)
	assert.Equal(t, "y", snap.Messages[1].Text)
}

func TestTotalCountNeverRegresses(t *testing.T) {
	s := NewStore()
	for _, n := range []uint64{3, 5, 4, 5, 2, 7, 6} {
		s.Merge(Update{Source: SourceReader, TotalCount: Ptr(n)})
	}
	assert.Equal(t, uint64(7), s.Snapshot().TotalCount)
}

func TestEventEnrichesBulkRecord(t *testing.T) {
	s := NewStore()
	s.Merge(Update{Messages: []models.MessageRecord{rec(alice, 100, "hi", models.RecordSourceBulkRead)}})
	ev := rec(alice, 100, "hi", models.RecordSourceEvent)
	ev.TxHash = "0xfeed"
	ev.LogIndex = 2
	ev.BlockNumber = 42
	s.Merge(Update{Messages: []models.MessageRecord{ev}})

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "0xfeed", snap.Messages[0].TxHash)
	assert.Equal(t, uint64(42), snap.Messages[0].BlockNumber)
}

func TestSnapshotIsImmutable(t *testing.T) {
	s := NewStore()
	s.Merge(Update{
		Messages: []models.MessageRecord{rec(alice, 100, "a", models.RecordSourceBulkRead)},
		Pending:  &models.PendingWrite{DraftText: "a", TxHash: "0x1"},
	})
	snap := s.Snapshot()
	snap.Messages[0].Text = "mutated"
	snap.Pending.TxHash = "0x2"

	again := s.Snapshot()
	assert.Equal(t, "a", again.Messages[0].Text)
	assert.Equal(t, "0x1", again.Pending.TxHash)
}

func TestErrorAndPendingFields(t *testing.T) {
	s := NewStore()
	s.Merge(Update{Err: models.ErrWriteInProgress})
	snap := s.Snapshot()
	assert.Equal(t, models.ErrorCodeWriteInProgress, snap.LastErrorCode)

	s.Merge(Update{ClearErr: true, Pending: &models.PendingWrite{TxHash: "0xabc"}, WriteState: Ptr(models.WriteStatePendingConfirmation)})
	snap = s.Snapshot()
	assert.Empty(t, snap.LastError)
	require.NotNil(t, snap.Pending)
	assert.Equal(t, models.WriteStatePendingConfirmation, snap.WriteState)

	s.Merge(Update{ClearPending: true, WriteState: Ptr(models.WriteStateConfirmed)})
	assert.Nil(t, s.Snapshot().Pending)

	s.Merge(Update{Err: errors.New("boom")})
	assert.Equal(t, models.ErrorCodeUnknown, s.Snapshot().LastErrorCode)
}

func TestListenersReceiveOnlyNewRecords(t *testing.T) {
	s := NewStore()
	var mu sync.Mutex
	var got [][]models.MessageRecord
	s.AddListener(func(_ models.SessionState, added []models.MessageRecord) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, added)
	})

	batch := []models.MessageRecord{rec(alice, 1, "a", models.RecordSourceBulkRead)}
	s.Merge(Update{Messages: batch})
	s.Merge(Update{Messages: batch})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Len(t, got[0], 1)
	assert.Empty(t, got[1])
}

func TestConcurrentMergeIsIdempotent(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(src models.RecordSource) {
			defer wg.Done()
			s.Merge(Update{Messages: []models.MessageRecord{
				rec(alice, 10, "same", src),
				rec(alice, 11, "other", src),
			}})
		}(models.RecordSourceEvent)
	}
	wg.Wait()
	assert.Len(t, s.Snapshot().Messages, 2)
}
