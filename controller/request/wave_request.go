package request

// UpdateDraftReq 编辑草稿请求参数，空字符串表示清空
type UpdateDraftReq struct {
	Text string `json:"text"`
}
