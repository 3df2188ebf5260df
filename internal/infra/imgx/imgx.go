package imgx

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // 注册 webp 解码器（无编码器，见 Reencode）

	"github.com/John-Robertt/imgscrape/internal/domain"
)

// InlineBaseName 是内联图片落盘的固定文件名（不含扩展名）。
const InlineBaseName = "data_image"

var (
	// ErrNotInline 表示传入的引用不是内联数据。
	ErrNotInline = errors.New("不是内联图片数据")
	// ErrUnknownFormat 表示 data: 前缀中没有可识别的图片格式。
	ErrUnknownFormat = errors.New("无法识别内联图片格式")
	// ErrNoPayload 表示缺少 ;base64, 载荷。
	ErrNoPayload = errors.New("内联图片缺少 base64 载荷")
)

// InlineFileName 返回内联图片的文件名：data_image.<声明的格式>。
func InlineFileName(format string) string {
	return InlineBaseName + "." + strings.ToLower(format)
}

// DecodeInline 解码内联图片并按声明格式重新编码，返回可直接落盘的字节。
//
// 约束：
// - 格式取自 data:image/<fmt>，jpg 按 jpeg 编码
// - 先 base64 解码、再按图片解码（不是图片则失败），最后重新编码
func DecodeInline(ref domain.Reference) ([]byte, error) {
	if !ref.IsInline() {
		return nil, ErrNotInline
	}
	format := EncodingFormat(ref.Format)
	if !Supported(format) {
		if ref.Format == "" {
			return nil, ErrUnknownFormat
		}
		return nil, fmt.Errorf("%w：%q", ErrUnknownFormat, ref.Format)
	}
	if strings.TrimSpace(ref.Payload) == "" {
		return nil, ErrNoPayload
	}

	raw, err := decodeBase64(ref.Payload)
	if err != nil {
		return nil, fmt.Errorf("base64 解码失败：%w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("图片解码失败：%w", err)
	}
	return Reencode(img, raw, format)
}

// EncodingFormat 把声明格式规范化为编码格式名（jpg => jpeg）。
func EncodingFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "jpg" {
		return "jpeg"
	}
	return format
}

// Supported 表示是否能按该格式保存。
func Supported(format string) bool {
	switch format {
	case "jpeg", "png", "gif", "bmp", "tiff", "webp":
		return true
	default:
		return false
	}
}

// Reencode 把解码后的图片按 format 重新编码。
// webp 在 x/image 中只有解码器：已成功解码的 webp 直接保存原始字节。
func Reencode(img image.Image, raw []byte, format string) ([]byte, error) {
	var out bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&out, img, &jpeg.Options{Quality: 95})
	case "png":
		err = png.Encode(&out, img)
	case "gif":
		err = gif.Encode(&out, img, nil)
	case "bmp":
		err = bmp.Encode(&out, img)
	case "tiff":
		err = tiff.Encode(&out, img, nil)
	case "webp":
		return append([]byte(nil), raw...), nil
	default:
		return nil, fmt.Errorf("%w：%q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}
	// 部分页面会省略 padding。
	if b2, err2 := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); err2 == nil {
		return b2, nil
	}
	return nil, err
}
