// Package extract 从页面 DOM 中按固定规则表提取图片引用。
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/imgscrape/internal/urlx"
)

// Rule 描述一类元素上的取值方式：Attrs 按顺序逐个检查，存在的属性各自产出一条引用。
type Rule struct {
	Tag   string
	Attrs []string
}

// DefaultRules 是识别规则表（顺序即输出顺序）：
// 1) div 的 style 中的 background-image
// 2) source 的 src
// 3) img 的懒加载/响应式/普通属性（全部存在则全部产出，不是“首个命中”）
var DefaultRules = []Rule{
	{Tag: "div", Attrs: []string{"style"}},
	{Tag: "source", Attrs: []string{"src"}},
	{Tag: "img", Attrs: []string{"data-lazyload", "data-srcset", "data-src", "src"}},
}

// Extract 使用 DefaultRules 提取并解析引用。
func Extract(doc *goquery.Document, base string) []string {
	return ExtractRules(doc, base, DefaultRules)
}

// ExtractRules 按规则顺序、文档顺序提取引用，并用 base 解析为绝对地址或内联数据。
//
// 不去重：同一图片出现在多个属性中会产出多条。解析为空的条目被丢弃。
func ExtractRules(doc *goquery.Document, base string, rules []Rule) []string {
	if doc == nil {
		return nil
	}
	var out []string
	for _, rule := range rules {
		doc.Find(rule.Tag).Each(func(_ int, s *goquery.Selection) {
			for _, attr := range rule.Attrs {
				v, ok := s.Attr(attr)
				if !ok || strings.TrimSpace(v) == "" {
					continue
				}
				raw := attrValue(attr, v)
				if ref := urlx.ResolveReference(raw, base); ref != "" {
					out = append(out, ref)
				}
			}
		})
	}
	return out
}

func attrValue(attr, v string) string {
	switch attr {
	case "style":
		return urlx.BackgroundImageURL(v)
	case "data-srcset", "srcset":
		return firstSrcsetCandidate(v)
	default:
		return v
	}
}

// firstSrcsetCandidate 从 "a.jpg 1x, b.jpg 2x" 中取第一个候选地址；
// 内联数据本身含逗号，不拆分。
func firstSrcsetCandidate(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(strings.ToLower(v), "data:") {
		return v
	}
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	if f := strings.Fields(v); len(f) > 0 {
		return f[0]
	}
	return ""
}
