package tool

import "strconv"

// StrToInt64 解析失败返回 0
func StrToInt64(str string) int64 {
	data, _ := strconv.ParseInt(str, 10, 64)
	return data
}
