// Package sitelist 把命令行地址或分隔文本表读成 SiteRecord 列表。
package sitelist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/John-Robertt/imgscrape/internal/domain"
)

// DefaultDelimiter 是表格默认的字段分隔符。
const DefaultDelimiter = "\t"

// FromLocations 把直接给出的地址列表转换为记录（无元数据）。
func FromLocations(locs []string) []domain.SiteRecord {
	out := make([]domain.SiteRecord, 0, len(locs))
	for _, l := range locs {
		out = append(out, domain.SiteRecord{Location: strings.TrimSpace(l)})
	}
	return out
}

// LoadFile 打开 path 并按 LoadTable 读取。
func LoadFile(path, delimiter string) ([]domain.SiteRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTable(f, delimiter)
}

// LoadTable 读取分隔文本表：
// - 首行是表头：去空白、转小写、空格替换为 '_'，作为元数据键
// - 其余行按位置对应表头；行短则缺失的键不出现，行长则多余单元格忽略
// - 地址取自 domain.LocationKeys 中第一个存在的列（可能为空，由编排层跳过）
// - 空行跳过
//
// 不做引号处理：分隔符就是分隔符（与常见的制表符导出格式保持一致）。
func LoadTable(r io.Reader, delimiter string) ([]domain.SiteRecord, error) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		keys []string
		out  []domain.SiteRecord
		line int
	)
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if line == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
			keys = headerKeys(text, delimiter)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, record(keys, strings.Split(text, delimiter)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取站点列表失败（第 %d 行附近）：%w", line, err)
	}
	return out, nil
}

func headerKeys(text, delimiter string) []string {
	cells := strings.Split(text, delimiter)
	keys := make([]string, 0, len(cells))
	for _, c := range cells {
		keys = append(keys, strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c)), " ", "_"))
	}
	return keys
}

func record(keys, cells []string) domain.SiteRecord {
	rec := domain.SiteRecord{Meta: make(map[string]string, len(keys))}
	for i, c := range cells {
		if i >= len(keys) || keys[i] == "" {
			continue
		}
		if _, dup := rec.Meta[keys[i]]; !dup {
			rec.Keys = append(rec.Keys, keys[i])
		}
		rec.Meta[keys[i]] = strings.TrimSpace(c)
	}
	for _, k := range domain.LocationKeys {
		if v, ok := rec.Meta[k]; ok {
			rec.Location = v
			break
		}
	}
	return rec
}
