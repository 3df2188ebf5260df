// Package manifest 生成每个站点目录下的清单文件（INFO.txt）。
package manifest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/imgscrape/internal/domain"
	"github.com/John-Robertt/imgscrape/internal/infra/fsx"
)

// DefaultName 是清单文件的固定文件名。
const DefaultName = "INFO.txt"

// Encode 生成清单内容。
//
// 结构（固定）：
// - 若提供了地址以外的元数据：每个键一行 "key:\tvalue"（列顺序）
// - 空行 + "Images:"，随后每条引用一行 "NN)\t<ref>"（序号从 01 开始）
// - res 非空时追加空行 + "Results:"，每条 "NN)\tOK\t<file>" 或 "NN)\tFAILED\t<code>"
func Encode(rec domain.SiteRecord, refs []string, res *domain.Summary) []byte {
	var b bytes.Buffer

	if rec.HasMeta() {
		for _, k := range rec.OrderedKeys() {
			fmt.Fprintf(&b, "%s:\t%s\n", k, oneLine(rec.Meta[k]))
		}
	}

	b.WriteString("\nImages:\n")
	for i, ref := range refs {
		fmt.Fprintf(&b, "%02d)\t%s\n", i+1, oneLine(ref))
	}

	if res != nil {
		b.WriteString("\nResults:\n")
		for _, o := range res.Outcomes {
			if o.OK {
				fmt.Fprintf(&b, "%02d)\tOK\t%s\n", o.Index, filepath.Base(o.Path))
				continue
			}
			fmt.Fprintf(&b, "%02d)\tFAILED\t%s\n", o.Index, o.ErrorCode)
		}
		fmt.Fprintf(&b, "\n%d/%d Images Downloaded\n", res.Succeeded, res.Attempted)
	}
	return b.Bytes()
}

// Write 原子写入（覆盖）dir/name。
func Write(dir, name string, data []byte) error {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	return fsx.WriteFileAtomicReplace(dir, name, data)
}

func oneLine(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
