package domain

import (
	"sort"
	"strings"
)

// LocationKeys 是站点记录中被识别为“站点地址”的元数据键（按优先级）。
var LocationKeys = []string{"website", "url", "site", "location"}

// SiteRecord 是一条输入站点记录：站点地址 + 任意元数据。
//
// 约束：
// - 读入后不可变；编排层只读取，不修改
// - Keys 保存元数据的原始列顺序（用于 manifest 输出）；为空时按键名排序输出
type SiteRecord struct {
	Location string
	Meta     map[string]string
	Keys     []string
}

// Get 读取元数据（去首尾空白）；不存在时返回空串。
func (r SiteRecord) Get(key string) string {
	if r.Meta == nil {
		return ""
	}
	return strings.TrimSpace(r.Meta[key])
}

// HasMeta 表示是否提供了“站点地址以外”的元数据。
func (r SiteRecord) HasMeta() bool {
	for k := range r.Meta {
		if !isLocationKey(k) {
			return true
		}
	}
	return false
}

// OrderedKeys 返回用于输出的元数据键顺序：先 Keys（去重、过滤不存在的键），再补齐剩余键（字典序）。
func (r SiteRecord) OrderedKeys() []string {
	seen := make(map[string]struct{}, len(r.Meta))
	out := make([]string, 0, len(r.Meta))
	for _, k := range r.Keys {
		if _, ok := r.Meta[k]; !ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	rest := make([]string, 0, len(r.Meta)-len(out))
	for k := range r.Meta {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// DisplayName 返回用于目录命名的展示名：
// name/display_name > first_name + last_name > 原始站点地址。
func (r SiteRecord) DisplayName() string {
	for _, k := range []string{"name", "display_name"} {
		if v := r.Get(k); v != "" {
			return v
		}
	}
	if first := r.Get("first_name"); first != "" {
		return strings.TrimSpace(first + " " + r.Get("last_name"))
	}
	return strings.TrimSpace(r.Location)
}

func isLocationKey(k string) bool {
	for _, lk := range LocationKeys {
		if k == lk {
			return true
		}
	}
	return false
}
