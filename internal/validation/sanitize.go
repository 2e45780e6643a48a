package validation

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strictPolicy 去除全部标签，script/style 的内容一并丢弃
var strictPolicy = bluemonday.StrictPolicy()

// SanitizeString 去掉 HTML 标签并修剪首尾空白。
// bluemonday 会转义剩余文本，这里还原实体，保证普通文本（如 "A & B"）不被改写。
func SanitizeString(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// Sanitize 递归清洗 map / slice 中的字符串，返回新值，不修改入参。
// 键名含 password 的字段原样保留。
func Sanitize(value any) any {
	switch v := value.(type) {
	case string:
		return SanitizeString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if isSecretKey(k) {
				out[k] = item
				continue
			}
			out[k] = Sanitize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Sanitize(item)
		}
		return out
	default:
		return value
	}
}

func isSecretKey(key string) bool {
	return strings.Contains(strings.ToLower(key), "password")
}
