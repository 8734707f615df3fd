package middleware

import (
	"github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
)

// LangWithTranslator 按 ?lang= 或 lang / Accept-Language 请求头选择响应语言与校验翻译器
// 请求未指定或不支持时使用 defaultLang
func LangWithTranslator(uni *ut.UniversalTranslator, defaultLang string) gin.HandlerFunc {
	fallback := code.NormalizeLang(defaultLang)
	if fallback == "" {
		fallback = code.LangEN
	}

	return func(c *gin.Context) {
		requested := c.Query("lang")
		if requested == "" {
			requested = c.GetHeader("lang")
		}
		if requested == "" {
			requested = c.GetHeader("Accept-Language")
		}

		lang := code.NormalizeLang(requested)
		if lang == "" {
			lang = fallback
		}
		c.Set(app.LangKey, lang)

		// 校验翻译器的 locale 为 zh / en
		locale := "en"
		if lang == code.LangZhCN {
			locale = "zh"
		}
		trans, found := uni.GetTranslator(locale)
		if !found {
			trans, _ = uni.GetTranslator("en")
		}
		c.Set("trans", trans)

		c.Next()
	}
}
