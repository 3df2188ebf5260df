package fsx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Sanitize 把任意字符串映射为文件系统安全的 token：
// [A-Za-z0-9] 以外的每个字符替换为一个 '_'（按字符计，不合并连续占位符）。
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Disambiguate 返回第 n 个候选名：<stem>.NN<ext>（n>=1，至少两位）。
func Disambiguate(path string, n int) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s.%02d%s", stem, n, ext)
}

// CreateUnique 以 O_CREATE|O_EXCL 原子创建 desired；名字被占用时递增后缀重试（不设上限）。
//
// 先跳过已存在的候选名，再以 O_EXCL 落定：只有创建冲突才换名，
// 多个 goroutine 并发写同一目录也不会互相覆盖。
// 返回已打开的文件（调用方负责 Close）与实际路径。
func CreateUnique(desired string) (*os.File, string, error) {
	for n := 0; ; n++ {
		var p string
		p, n = freeSlot(desired, n)
		f, err := createFunc(p)
		if err == nil {
			return f, p, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
	}
}

// freeSlot 从第 n 个候选名开始，返回第一个当前不存在的路径及其序号。
// 只是检查，不占位；结果需经 O_EXCL 创建确认。
func freeSlot(desired string, n int) (string, int) {
	for ; ; n++ {
		p := slotName(desired, n)
		if !exists(p) {
			return p, n
		}
	}
}

// slotName：n=0 为 desired 本身，否则为 Disambiguate(desired, n)。
func slotName(desired string, n int) string {
	if n == 0 {
		return desired
	}
	return Disambiguate(desired, n)
}

// WriteUnique 把 data 写入 dir/name 对应的唯一路径，返回实际路径与写入字节数。
//
// 写入失败时删除已创建的文件；ctx 取消等外部中断导致的半成品不在此处理。
//
// name 必须是单个文件名（不含路径分隔符，且不是 "."/".."），否则返回 ErrInvalidName。
func WriteUnique(dir, name string, data []byte) (string, int64, error) {
	if !validName(name) {
		return "", 0, fmt.Errorf("%w：%q", ErrInvalidName, name)
	}
	f, p, err := CreateUnique(filepath.Join(dir, name))
	if err != nil {
		return "", 0, err
	}
	if err := writeAll(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return "", 0, err
	}
	return p, int64(len(data)), nil
}

// ErrInvalidName 表示文件名会指向目标目录之外（或目录本身）。
var ErrInvalidName = errors.New("非法文件名")

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`+"\x00") {
		return false
	}
	return filepath.Base(name) == name
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
