package model

import (
	"fmt"
	"time"
)

// LocalTime 以 "YYYY-MM-DD HH:MM:SS" 格式输出时间，用于审核接口和命令行展示。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

// NewLocalTime 将可空时间转换为 *LocalTime，nil 保持为 nil。
func NewLocalTime(t *time.Time) *LocalTime {
	if t == nil {
		return nil
	}
	lt := LocalTime(*t)
	return &lt
}

// String 实现 fmt.Stringer。
func (t LocalTime) String() string {
	return time.Time(t).Format(timeFormat)
}

// MarshalJSON implements the json.Marshaler interface.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", t.String())), nil
}
