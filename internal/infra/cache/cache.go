package cache

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/imgscrape/internal/infra/fsx"
)

// PageFileName 是页面快照在站点目录中的文件名。
const PageFileName = "page.html"

// Store 提供站点目录下页面 HTML 快照的写入。
//
// 约束：
// - save_html=false：拒绝写入（ReadOnly=true）
// - save_html=true：允许写，已有快照被原子替换
type Store struct {
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(readOnly bool) Store {
	return Store{ReadOnly: readOnly}
}

// pagePath 返回站点目录下页面快照的绝对路径。
func (s Store) pagePath(folder string) (string, error) {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return "", fmt.Errorf("folder 不能为空")
	}
	return filepath.Join(filepath.Clean(folder), PageFileName), nil
}

func (s Store) WritePage(folder string, html []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.pagePath(folder)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), PageFileName, html)
}
