package code

import (
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// 支持的响应语言
const (
	LangEN   = "en"
	LangZhCN = "zh_cn"
)

// lang 错误码的中英文消息
type lang struct {
	en    string
	zh_cn string
}

// defaultLang 在声明处初始化，包级错误码变量初始化时就会读取它
var defaultLang = func() (v atomic.Value) {
	v.Store(LangEN)
	return
}()

// Message 返回指定语言的消息，缺失时回退到英文
func (l lang) Message(language string) string {
	if NormalizeLang(language) == LangZhCN && l.zh_cn != "" {
		return l.zh_cn
	}
	return l.en
}

// GetMessage 默认语言的消息
func (l lang) GetMessage() string {
	return l.Message(GetGlobalDefaultLang())
}

// NormalizeLang 把 zh-CN / zh_cn / zh 等写法归一，不支持的语言返回空串
func NormalizeLang(language string) string {
	language = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(language), "-", "_"))
	switch {
	case strings.HasPrefix(language, "zh"):
		return LangZhCN
	case strings.HasPrefix(language, "en"):
		return LangEN
	default:
		return ""
	}
}

// GetSupportedLanguages 支持的语言列表
func GetSupportedLanguages() []string {
	return []string{LangEN, LangZhCN}
}

// SetGlobalDefaultLang 设置请求未指定语言时使用的默认语言
func SetGlobalDefaultLang(language string) error {
	l := NormalizeLang(language)
	if l == "" {
		defaultLang.Store(LangEN)
		return errors.Errorf("unsupported language %q, defaulting to %s", language, LangEN)
	}
	defaultLang.Store(l)
	return nil
}

// GetGlobalDefaultLang 默认语言
func GetGlobalDefaultLang() string {
	if l, ok := defaultLang.Load().(string); ok && l != "" {
		return l
	}
	return LangEN
}
