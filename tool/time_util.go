package tool

import (
	"time"
)

var l, _ = time.LoadLocation("UTC")

// MakeTimestamp 毫秒时间戳
func MakeTimestamp() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// MakeDate 毫秒时间戳格式化为 UTC 时间
func MakeDate(timestamp int64) string {
	timeFormat := "2006-01-02 15:04:05(UTC)"
	return time.Unix(timestamp/1000, 0).In(l).Format(timeFormat)
}
