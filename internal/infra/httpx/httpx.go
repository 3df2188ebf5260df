package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout 是单次请求（含读 body）的固定超时。
	DefaultTimeout = 10 * time.Second

	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.97 Safari/537.36"
)

// DefaultHeaders 返回固定的请求头集合（内容协商 + 语言 + UA）。
//
// 注意：不设置 Accept-Encoding，让 net/http 自己处理 gzip 透明解压。
func DefaultHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9")
	h.Set("Accept-Language", "en-GB,en-US;q=0.9,en;q=0.8")
	h.Set("Dnt", "1")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("User-Agent", DefaultUserAgent)
	return h
}

// Options 描述 client 的全部可配置项（由 config.EffectiveConfig 提供）。
type Options struct {
	Timeout   time.Duration
	ProxyURL  string
	UserAgent string
	// Headers 覆盖/追加到 DefaultHeaders 之上。
	Headers map[string]string
}

// Transport 把“固定请求头 + 代理”固化为统一策略；不做任何重试。
//
// 设计目标：页面抓取与图片下载只关心 URL，不关心请求头细节。
type Transport struct {
	Base   *http.Transport
	Header http.Header
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// Clone 会复制 Header 等，避免在 RoundTripper 内部“污染”调用方的 request。
	r := req.Clone(req.Context())
	for k, vs := range t.Header {
		if r.Header.Get(k) != "" {
			continue
		}
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	return t.Base.RoundTrip(r)
}

// NewClient 构造页面抓取与图片下载共用的 HTTP client。
//
// 规则：
// - proxyURL 非空：走代理，且禁用 keep-alive（每请求新连接）
// - 固定请求头；UserAgent/Headers 可覆盖
// - 固定总超时（Timeout<=0 时使用 DefaultTimeout）；失败不重试
func NewClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}

	proxyURL := strings.TrimSpace(opts.ProxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy.url 必须包含 scheme 与 host")
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
	}

	h := DefaultHeaders()
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		h.Set("User-Agent", ua)
	}
	for k, v := range opts.Headers {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		h.Set(k, v)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Transport: &Transport{Base: base, Header: h},
		Timeout:   timeout,
	}, nil
}
