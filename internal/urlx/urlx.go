// Package urlx 负责把站点标识与页面中的图片引用规范化为可请求的形式。
//
// 所有函数都不返回错误：空输入或无法识别的输入退化为空串，由调用方过滤。
package urlx

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/imgscrape/internal/domain"
)

const (
	insecurePrefix = "http://"
	securePrefix   = "https://"
	inlinePrefix   = "data:"
	inlineMarker   = ";base64,"
	fallbackBase   = "image"
)

var (
	bgURLRE     = regexp.MustCompile(`(?i)url\(\s*["']?(.*?)["']?\s*\)`)
	inlineFmtRE = regexp.MustCompile(`(?i)^data:image/([a-z]{3,4})`)
)

// NormalizeSiteLocation 把用户给出的站点标识变成可请求的地址。
//
// 规则（固定）：
// - 空串 => 空串
// - https:// => 降级为 http://（本工具统一走 http）
// - 已有 http:// => 原样返回
// - 无 scheme => 补 http://
func NormalizeSiteLocation(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	switch {
	case hasPrefixFold(raw, securePrefix):
		return insecurePrefix + raw[len(securePrefix):]
	case hasPrefixFold(raw, insecurePrefix):
		return raw
	default:
		return insecurePrefix + raw
	}
}

// ResolveReference 把页面中的原始引用解析为绝对地址或内联数据。
//
// - data: 开头：原样返回（不是网络地址，也不去查询串）
// - 已带 http(s)://：保持不变
// - //host/x：补 http:
// - /x：拼到 base 后面，保证恰好一个 '/'
// - x：同上（不论两侧是否已有 '/'）
//
// 结果会去掉第一个 '?' 及其后的查询串：下载的规范键不含查询参数。
func ResolveReference(ref, base string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if hasPrefixFold(ref, inlinePrefix) {
		return ref
	}

	switch {
	case hasPrefixFold(ref, insecurePrefix), hasPrefixFold(ref, securePrefix):
		// 已是绝对地址
	case strings.HasPrefix(ref, "//"):
		ref = insecurePrefix + strings.TrimLeft(ref, "/")
	default:
		ref = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
	}

	if i := strings.IndexByte(ref, '?'); i >= 0 {
		ref = ref[:i]
	}
	return ref
}

// BackgroundImageURL 从 style 文本中取出 background-image 的 url(...) 载荷。
// 只看第一个包含 "background-image" 的声明；找不到时返回空串。
func BackgroundImageURL(style string) string {
	for _, part := range strings.Split(style, ";") {
		if !strings.Contains(part, "background-image") {
			continue
		}
		m := bgURLRE.FindStringSubmatch(part)
		if len(m) < 2 {
			return ""
		}
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ParseReference 把已解析的引用字符串转换为 tagged variant。
// 空串返回 ok=false。
func ParseReference(s string) (domain.Reference, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Reference{}, false
	}
	if !hasPrefixFold(s, inlinePrefix) {
		return domain.Reference{Kind: domain.RefRemote, Raw: s}, true
	}

	r := domain.Reference{Kind: domain.RefInline, Raw: s}
	if m := inlineFmtRE.FindStringSubmatch(s); len(m) == 2 {
		r.Format = strings.ToLower(m[1])
	}
	if i := strings.Index(strings.ToLower(s), inlineMarker); i >= 0 {
		r.Payload = s[i+len(inlineMarker):]
	}
	return r, true
}

// Basename 取地址最后一段路径作为文件名；没有可用的段时回退为 "image"。
//
// url.Parse 会解码 %2e%2e、%2f 等，解码后是 "."/".." 或仍含路径分隔符的段同样回退，
// 保证结果只能是目标目录内的一个文件名。
func Basename(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	switch {
	case name == "", name == ".", name == "..", name == "/":
		return fallbackBase
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fallbackBase
	}
	return name
}

// Truncate 用于展示：超过 max 个字节时截断（max<=0 表示不截断）。
// 截断点回退到字符边界，不产生半个 UTF-8 字符。
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
