package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageRecordKeyIgnoresSourceAndCase(t *testing.T) {
	at := time.Unix(1700000000, 0)
	bulk := MessageRecord{Sender: "0xAbCd000000000000000000000000000000000001", SentAt: at, Text: "hello", Source: RecordSourceBulkRead}
	event := MessageRecord{Sender: "0xabcd000000000000000000000000000000000001", SentAt: at, Text: "hello", Source: RecordSourceEvent, TxHash: "0x01", LogIndex: 3}

	assert.Equal(t, bulk.Key(), event.Key())
	assert.NotEqual(t, bulk.Key(), MessageRecord{Sender: bulk.Sender, SentAt: at, Text: "hello!"}.Key())
	assert.NotEqual(t, bulk.Key(), MessageRecord{Sender: bulk.Sender, SentAt: at.Add(time.Second), Text: "hello"}.Key())
}

func TestNewestFirst(t *testing.T) {
	s := SessionState{Messages: []MessageRecord{{Text: "a"}, {Text: "b"}, {Text: "c"}}}
	out := s.NewestFirst()
	assert.Equal(t, []string{"c", "b", "a"}, []string{out[0].Text, out[1].Text, out[2].Text})
	assert.Equal(t, "a", s.Messages[0].Text)
}

func TestErrorCode(t *testing.T) {
	cases := map[error]string{
		nil:                    "",
		ErrWalletNotPresent:    ErrorCodeEnvironmentMissing,
		ErrUserRejected:        ErrorCodePermissionDenied,
		ErrNetworkAddFailed:    ErrorCodePermissionDenied,
		ErrSignerRejected:      ErrorCodePermissionDenied,
		ErrWriteInProgress:     ErrorCodeWriteInProgress,
		ErrNotConnected:        ErrorCodeNotConnected,
		fmt.Errorf("x: %w", ErrRpcUnavailable): ErrorCodeRpcUnavailable,
		fmt.Errorf("%w: %w", ErrWrongNetwork, ErrNetworkSwitchDenied): ErrorCodeWrongNetwork,
		fmt.Errorf("%w: reverted", ErrTransactionFailed):           ErrorCodeTransactionFailed,
		fmt.Errorf("boom"): ErrorCodeUnknown,
	}
	for err, want := range cases {
		assert.Equal(t, want, ErrorCode(err), "%v", err)
	}
}

func TestWriteStateInFlight(t *testing.T) {
	assert.True(t, WriteStateSubmitting.InFlight())
	assert.True(t, WriteStatePendingConfirmation.InFlight())
	assert.False(t, WriteStateIdle.InFlight())
	assert.False(t, WriteStateConfirmed.InFlight())
	assert.False(t, WriteStateFailed.InFlight())
	assert.Equal(t, "pending_confirmation", WriteStatePendingConfirmation.String())
}
