package models

import (
	"errors"
	"fmt"
)

// Error taxonomy. Component errors wrap one of these so errors.Is can classify them.
var (
	ErrEnvironmentMissing = errors.New("no wallet extension detected, install a wallet to send messages")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrWrongNetwork       = errors.New("wallet is not on the required network")
	ErrWriteInProgress    = errors.New("a message is already being sent")
	ErrTransactionFailed  = errors.New("transaction failed")
	ErrRpcUnavailable     = errors.New("rpc endpoint unavailable")
	ErrNotConnected       = errors.New("no authorized account, connect a wallet first")
)

var (
	ErrWalletNotPresent    = fmt.Errorf("wallet not present: %w", ErrEnvironmentMissing)
	ErrUserRejected        = fmt.Errorf("user rejected the request: %w", ErrPermissionDenied)
	ErrNetworkSwitchDenied = fmt.Errorf("network switch denied: %w", ErrPermissionDenied)
	ErrNetworkAddFailed    = fmt.Errorf("adding the network to the wallet failed: %w", ErrPermissionDenied)
	ErrSignerRejected      = fmt.Errorf("signature request declined: %w", ErrPermissionDenied)
)

const (
	ErrorCodeEnvironmentMissing = "EnvironmentMissing"
	ErrorCodePermissionDenied   = "PermissionDenied"
	ErrorCodeWrongNetwork       = "WrongNetwork"
	ErrorCodeWriteInProgress    = "WriteInProgress"
	ErrorCodeTransactionFailed  = "TransactionFailed"
	ErrorCodeRpcUnavailable     = "RpcUnavailable"
	ErrorCodeNotConnected       = "NotConnected"
	ErrorCodeUnknown            = "Unknown"
)

// ErrorCode maps err to its taxonomy name. WrongNetwork is checked before
// PermissionDenied because a refused switch surfaces to writers as WrongNetwork.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEnvironmentMissing):
		return ErrorCodeEnvironmentMissing
	case errors.Is(err, ErrWrongNetwork):
		return ErrorCodeWrongNetwork
	case errors.Is(err, ErrWriteInProgress):
		return ErrorCodeWriteInProgress
	case errors.Is(err, ErrTransactionFailed):
		return ErrorCodeTransactionFailed
	case errors.Is(err, ErrPermissionDenied):
		return ErrorCodePermissionDenied
	case errors.Is(err, ErrRpcUnavailable):
		return ErrorCodeRpcUnavailable
	case errors.Is(err, ErrNotConnected):
		return ErrorCodeNotConnected
	default:
		return ErrorCodeUnknown
	}
}
