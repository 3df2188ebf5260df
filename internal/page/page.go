// Package page 负责抓取站点页面并解析为 goquery 文档。
package page

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher 抓取一个页面的原始 HTML。
//
// 约束：不做缓存、不做重试（失败即该站点零引用）。
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// HTTPFetcher 用给定的 client 抓取页面（请求头/超时由 httpx 统一提供）。
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	return Get(ctx, f.Client, pageURL)
}

// Get 发起一次 GET 请求并读取完整 body；非 2xx 返回 *HTTPStatusError。
func Get(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return io.ReadAll(resp.Body)
}

// Parse 把 HTML 解析为 goquery 文档。空输入得到空文档（零引用），不是错误。
func Parse(html []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(html))
}
