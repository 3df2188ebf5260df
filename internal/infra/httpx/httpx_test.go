package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewClient(Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives {
		t.Fatalf("期望禁用 keep-alive，但 Base.DisableKeepAlives=false")
	}
}

func TestNewClient_DefaultsAndTimeout(t *testing.T) {
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c.Timeout != DefaultTimeout {
		t.Fatalf("期望默认超时 %s，实际 %s", DefaultTimeout, c.Timeout)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}

	c2, _ := NewClient(Options{Timeout: 3 * time.Second})
	if c2.Timeout != 3*time.Second {
		t.Fatalf("期望超时 3s，实际 %s", c2.Timeout)
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewClient(Options{ProxyURL: "http://[::1"}); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if _, err := NewClient(Options{ProxyURL: "127.0.0.1"}); err == nil {
		t.Fatalf("缺少 scheme 的代理地址期望错误")
	}
}

func TestTransport_SendsFixedHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	c, err := NewClient(Options{UserAgent: "ua-test", Headers: map[string]string{"X-Extra": "1"}})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Accept-Language", "zh-CN")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()

	if got.Get("User-Agent") != "ua-test" {
		t.Fatalf("UA 不符合预期：%q", got.Get("User-Agent"))
	}
	if got.Get("Accept") == "" || got.Get("X-Extra") != "1" {
		t.Fatalf("固定请求头缺失：%v", got)
	}
	// 调用方显式设置的请求头优先。
	if got.Get("Accept-Language") != "zh-CN" {
		t.Fatalf("调用方请求头被覆盖：%q", got.Get("Accept-Language"))
	}
	if req.Header.Get("User-Agent") != "" {
		t.Fatalf("RoundTrip 不应修改调用方 request")
	}
}
