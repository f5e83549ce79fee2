package controller

import (
	"errors"
	"net/http"
	"wave-portal-client/controller/request"
	"wave-portal-client/controller/respond"
	"wave-portal-client/service/wave_center"
	"wave-portal-client/tool"

	"github.com/gin-gonic/gin"
)

// WaveController 展示层接口
type WaveController struct {
	center *wave_center.WaveCenter
}

func NewWaveController(center *wave_center.WaveCenter) *WaveController {
	return &WaveController{center: center}
}

// GetState godoc
// @Summary 获取会话快照
// @Description 当前账户、留言列表（新的在前）、总数、草稿和写入状态
// @Tags Wave API
// @Produce json
// @Param limit query int false "最多返回的留言数，默认全部"
// @Success 200 {object} respond.Response{data=respond.WaveState} "成功响应"
// @Router /v1/wave/state [get]
func (w *WaveController) GetState(c *gin.Context) {
	var t int64 = tool.MakeTimestamp()

	limit := int(tool.StrToInt64(c.Query("limit")))
	c.JSONP(http.StatusOK, respond.RespSuccess(respond.NewWaveState(w.center.Snapshot(), limit), tool.MakeTimestamp()-t))
}

// Connect godoc
// @Summary 连接钱包
// @Description 请求钱包授权账户，并确认钱包处于目标网络
// @Tags Wave API
// @Produce json
// @Success 200 {object} respond.Response{data=respond.WaveState} "成功响应"
// @Failure 200 {object} respond.Response{data=respond.WaveState} "EnvironmentMissing / PermissionDenied"
// @Router /v1/wave/connect [post]
func (w *WaveController) Connect(c *gin.Context) {
	var t int64 = tool.MakeTimestamp()

	snapshot, err := w.center.Connect(c.Request.Context())
	if err != nil {
		c.JSONP(http.StatusOK, respond.RespErrWithData(err, respond.NewWaveState(snapshot, 0), tool.MakeTimestamp()-t, respond.CodeOf(err)))
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(respond.NewWaveState(snapshot, 0), tool.MakeTimestamp()-t))
}

// UpdateDraft godoc
// @Summary 编辑草稿
// @Tags Wave API
// @Accept json
// @Produce json
// @Param request body request.UpdateDraftReq true "草稿内容"
// @Success 200 {object} respond.Response{data=respond.WaveState} "成功响应"
// @Failure 400 {object} respond.Response "参数错误"
// @Router /v1/wave/draft [post]
func (w *WaveController) UpdateDraft(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel *request.UpdateDraftReq
	)

	if c.ShouldBindJSON(&requestModel) == nil && requestModel != nil {
		snapshot := w.center.UpdateDraft(requestModel.Text)
		c.JSONP(http.StatusOK, respond.RespSuccess(respond.NewWaveState(snapshot, 0), tool.MakeTimestamp()-t))
		return
	}

	c.JSONP(http.StatusBadRequest, respond.RespErr(errors.New("参数错误"), tool.MakeTimestamp()-t, respond.HttpsCodeError))
}

// SendDraft godoc
// @Summary 发送草稿
// @Description 将当前草稿作为 wave 交易提交，阻塞到交易确认或失败；请求中断时若已广播则返回 pendingConfirmation，确认在会话里继续
// @Tags Wave API
// @Produce json
// @Success 200 {object} respond.Response{data=models.WriteOutcome} "成功响应"
// @Failure 200 {object} respond.Response{data=models.WriteOutcome} "WrongNetwork / WriteInProgress / TransactionFailed ..."
// @Router /v1/wave/send [post]
func (w *WaveController) SendDraft(c *gin.Context) {
	var t int64 = tool.MakeTimestamp()

	outcome, err := w.center.SendDraft(c.Request.Context())
	if err != nil {
		c.JSONP(http.StatusOK, respond.RespErrWithData(err, outcome, tool.MakeTimestamp()-t, respond.CodeOf(err)))
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(outcome, tool.MakeTimestamp()-t))
}

// Refresh godoc
// @Summary 重新读取链上数据
// @Tags Wave API
// @Produce json
// @Success 200 {object} respond.Response{data=respond.WaveState} "成功响应"
// @Failure 200 {object} respond.Response{data=respond.WaveState} "RpcUnavailable"
// @Router /v1/wave/refresh [post]
func (w *WaveController) Refresh(c *gin.Context) {
	var t int64 = tool.MakeTimestamp()

	if err := w.center.Refresh(c.Request.Context()); err != nil {
		c.JSONP(http.StatusOK, respond.RespErrWithData(err, respond.NewWaveState(w.center.Snapshot(), 0), tool.MakeTimestamp()-t, respond.CodeOf(err)))
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(respond.NewWaveState(w.center.Snapshot(), 0), tool.MakeTimestamp()-t))
}
