package models

// WriteState ChainWriter 状态机
type WriteState int64

const (
	WriteStateIdle                WriteState = 0
	WriteStateSubmitting          WriteState = 1
	WriteStatePendingConfirmation WriteState = 2
	WriteStateConfirmed           WriteState = 3
	WriteStateFailed              WriteState = 4
)

func (s WriteState) String() string {
	switch s {
	case WriteStateIdle:
		return "idle"
	case WriteStateSubmitting:
		return "submitting"
	case WriteStatePendingConfirmation:
		return "pending_confirmation"
	case WriteStateConfirmed:
		return "confirmed"
	case WriteStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InFlight reports whether a write currently occupies the compose slot.
func (s WriteState) InFlight() bool {
	return s == WriteStateSubmitting || s == WriteStatePendingConfirmation
}

// RecordSource 记录来源
type RecordSource string

const (
	RecordSourceBulkRead RecordSource = "bulk_read"
	RecordSourceEvent    RecordSource = "event"
	RecordSourceReceipt  RecordSource = "receipt"
	RecordSourceCache    RecordSource = "cache"
)
