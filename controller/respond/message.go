package respond

import "wave-portal-client/models"

// Message 通用响应结构
// @Description 统一的 API 响应格式
type Message struct {
	Code           int         `json:"code" example:"0" description:"响应代码，0表示成功"`
	Message        string      `json:"message" example:"success" description:"响应消息"`
	ProcessingTime int64       `json:"processingTime" example:"123" description:"处理时间（毫秒）"`
	Data           interface{} `json:"data" description:"响应数据"`
}

// Response 通用响应结构（用于 Swagger 文档）
// @Description 统一的 API 响应格式
type Response struct {
	Code           int         `json:"code" example:"0" description:"响应代码，0表示成功"`
	Message        string      `json:"message" example:"success" description:"响应消息"`
	ProcessingTime int64       `json:"processingTime" example:"123" description:"处理时间（毫秒）"`
	Data           interface{} `json:"data" description:"响应数据"`
}

func RespSuccess(data interface{}, time int64) Message {
	return Message{
		Code:           HttpsCodeSuccess,
		Message:        RespMessageSuccess,
		ProcessingTime: time,
		Data:           data,
	}
}

func RespErr(err error, time int64, code int) Message {
	return RespErrWithData(err, nil, time, code)
}

// RespErrWithData 出错时仍返回当前会话快照
func RespErrWithData(err error, data interface{}, time int64, code int) Message {
	if code == 0 {
		code = HttpsCodeError
	}
	return Message{
		Code:           code,
		Message:        err.Error(),
		ProcessingTime: time,
		Data:           data,
	}
}

// CodeOf 会话错误对应的响应码
func CodeOf(err error) int {
	switch models.ErrorCode(err) {
	case models.ErrorCodeEnvironmentMissing:
		return HttpsCodeEnvironmentMissing
	case models.ErrorCodePermissionDenied:
		return HttpsCodePermissionDenied
	case models.ErrorCodeWrongNetwork:
		return HttpsCodeWrongNetwork
	case models.ErrorCodeWriteInProgress:
		return HttpsCodeWriteInProgress
	case models.ErrorCodeTransactionFailed:
		return HttpsCodeTransactionFailed
	case models.ErrorCodeRpcUnavailable:
		return HttpsCodeRpcUnavailable
	case models.ErrorCodeNotConnected:
		return HttpsCodeNotConnected
	default:
		return HttpsCodeError
	}
}
