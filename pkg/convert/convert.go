// Package convert 请求参数的字符串转换
package convert

import (
	"strconv"
	"strings"
)

// StrTo 查询参数、路径参数等字符串取值
type StrTo string

func (s StrTo) String() string {
	return strings.TrimSpace(string(s))
}

func (s StrTo) Int() (int, error) {
	return strconv.Atoi(s.String())
}

// MustInt 解析失败返回 0
func (s StrTo) MustInt() int {
	v, _ := s.Int()
	return v
}

func (s StrTo) Int64() (int64, error) {
	return strconv.ParseInt(s.String(), 10, 64)
}

// MustInt64 解析失败返回 0
func (s StrTo) MustInt64() int64 {
	v, _ := s.Int64()
	return v
}

// ID 数据库自增主键，只接受正整数
func (s StrTo) ID() (int64, bool) {
	v, err := s.Int64()
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
