package page

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("<html><img src='a.jpg'></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := HTTPFetcher{Client: srv.Client()}

	b, err := f.Fetch(context.Background(), srv.URL+"/ok")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	doc, err := Parse(b)
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if doc.Find("img").Length() != 1 {
		t.Fatalf("期望 1 个 img")
	}

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	var hs *HTTPStatusError
	if !errors.As(err, &hs) || hs.StatusCode != http.StatusNotFound {
		t.Fatalf("期望 HTTP 404 错误，实际 %v", err)
	}
}

func TestGet_NilClient(t *testing.T) {
	if _, err := Get(context.Background(), nil, "http://example.test"); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestParse_Empty(t *testing.T) {
	doc, err := Parse(nil)
	if err != nil {
		t.Fatalf("空输入不期望错误：%v", err)
	}
	if doc.Find("img").Length() != 0 {
		t.Fatalf("空文档不应有元素")
	}
}
