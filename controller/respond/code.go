package respond

const (
	HttpsCodeSuccess = 0
	HttpsCodeError   = 400

	// 会话错误码，对应 models.ErrorCode
	HttpsCodeEnvironmentMissing = 4001
	HttpsCodePermissionDenied   = 4002
	HttpsCodeWrongNetwork       = 4003
	HttpsCodeWriteInProgress    = 4004
	HttpsCodeTransactionFailed  = 4005
	HttpsCodeRpcUnavailable     = 4006
	HttpsCodeNotConnected       = 4007

	RespMessageSuccess = "success"
)
