package retrieve

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/John-Robertt/imgscrape/internal/domain"
	"github.com/John-Robertt/imgscrape/internal/urlx"
)

func refs(t *testing.T, raws ...string) []domain.Reference {
	t.Helper()
	out := make([]domain.Reference, 0, len(raws))
	for _, s := range raws {
		r, ok := urlx.ParseReference(s)
		if !ok {
			t.Fatalf("无法解析引用：%q", s)
		}
		out = append(out, r)
	}
	return out
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("生成 png 失败：%v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/ok/"):
			_, _ = w.Write([]byte("img:" + r.URL.Path))
		case strings.HasPrefix(r.URL.Path, "/boom/"):
			// 模拟网络错误：直接断开连接。
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Errorf("ResponseWriter 不支持 Hijack")
				return
			}
			conn, _, err := hj.Hijack()
			if err == nil {
				_ = conn.Close()
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRetrieve_PartialFailuresAreIsolated(t *testing.T) {
	srv := imageServer(t)
	dir := t.TempDir()

	in := refs(t,
		srv.URL+"/ok/a.jpg",
		srv.URL+"/boom/b.jpg",
		srv.URL+"/ok/c.png",
		srv.URL+"/missing/d.jpg",
		pngDataURI(t),
		"data:image/png;base64,not-an-image",
		srv.URL+"/ok/e.gif",
	)

	e := &Engine{Client: srv.Client(), Concurrency: 3}
	s := e.Retrieve(context.Background(), in, dir)

	if s.Attempted != len(in) {
		t.Fatalf("期望 attempted=%d，实际 %d", len(in), s.Attempted)
	}
	if s.Succeeded != len(in)-3 {
		t.Fatalf("期望 succeeded=%d，实际 %d：%+v", len(in)-3, s.Succeeded, s.Outcomes)
	}

	wantCodes := map[int]string{
		2: domain.ErrCodeFetchFailed,
		4: domain.ErrCodeHTTPStatus,
		6: domain.ErrCodeDecodeFailed,
	}
	for i, o := range s.Outcomes {
		if o.Index != i+1 || o.Ref != in[i].Raw {
			t.Fatalf("outcomes 未按派发顺序排列：%+v", o)
		}
		if code, bad := wantCodes[o.Index]; bad {
			if o.OK || o.ErrorCode != code {
				t.Fatalf("条目 %d 期望失败 %s，实际 %+v", o.Index, code, o)
			}
			continue
		}
		if !o.OK || o.Bytes <= 0 {
			t.Fatalf("条目 %d 期望成功，实际 %+v", o.Index, o)
		}
	}

	b, err := os.ReadFile(filepath.Join(dir, "a.jpg"))
	if err != nil || string(b) != "img:/ok/a.jpg" {
		t.Fatalf("a.jpg 内容不符：%q err=%v", string(b), err)
	}
	if _, err := png.Decode(mustOpen(t, filepath.Join(dir, "data_image.png"))); err != nil {
		t.Fatalf("内联图片未按 png 保存：%v", err)
	}
}

func TestRetrieve_DuplicateNamesDisambiguated(t *testing.T) {
	srv := imageServer(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.jpg"), []byte("old"), 0o644); err != nil {
		t.Fatalf("写入已有文件失败：%v", err)
	}

	var raws []string
	for i := 0; i < 8; i++ {
		raws = append(raws, srv.URL+"/ok/x.jpg")
	}
	e := &Engine{Client: srv.Client()} // 不限并发
	s := e.Retrieve(context.Background(), refs(t, raws...), dir)

	if s.Succeeded != 8 {
		t.Fatalf("期望全部成功，实际 %+v", s)
	}
	seen := map[string]bool{}
	for _, o := range s.Outcomes {
		if seen[o.Path] {
			t.Fatalf("重复写入同一路径：%q", o.Path)
		}
		seen[o.Path] = true
	}
	old, _ := os.ReadFile(filepath.Join(dir, "x.jpg"))
	if string(old) != "old" {
		t.Fatalf("已有文件被覆盖：%q", string(old))
	}
}

func TestRetrieve_DotDotSegmentsStayInsideDir(t *testing.T) {
	srv := imageServer(t)
	parent := t.TempDir()
	dir := filepath.Join(parent, "site")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	in := refs(t,
		urlx.ResolveReference("ok/%2e%2e", srv.URL),
		urlx.ResolveReference("ok/..", srv.URL),
		urlx.ResolveReference("ok/%2E%2e/", srv.URL),
	)
	e := &Engine{Client: srv.Client(), Concurrency: 1}
	s := e.Retrieve(context.Background(), in, dir)

	if s.Succeeded != len(in) {
		t.Fatalf("期望全部成功，实际 %+v", s.Outcomes)
	}
	for _, o := range s.Outcomes {
		if filepath.Dir(o.Path) != dir {
			t.Fatalf("文件应写在站点目录内：ref=%q path=%q", o.Ref, o.Path)
		}
		if !strings.HasPrefix(filepath.Base(o.Path), "image") {
			t.Fatalf("\"..\" 段应回退为 image：%q", o.Path)
		}
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "site" {
		t.Fatalf("站点目录之外出现了文件：%v", entries)
	}
}

func TestRetrieve_OnDoneCalledForEveryItem(t *testing.T) {
	srv := imageServer(t)

	var mu sync.Mutex
	got := map[int]bool{}
	e := &Engine{
		Client:      srv.Client(),
		Concurrency: 2,
		OnDone: func(o domain.Outcome) {
			mu.Lock()
			defer mu.Unlock()
			got[o.Index] = true
		},
	}
	e.Retrieve(context.Background(), refs(t, srv.URL+"/ok/1.jpg", srv.URL+"/missing/2.jpg", srv.URL+"/ok/3.jpg"), t.TempDir())

	if len(got) != 3 {
		t.Fatalf("期望 3 次回调，实际 %v", got)
	}
}

func TestRetrieve_CanceledContext(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := &Engine{Client: srv.Client(), Concurrency: 1}
	s := e.Retrieve(ctx, refs(t, srv.URL+"/a.jpg", srv.URL+"/b.jpg"), t.TempDir())

	if s.Succeeded != 0 || s.Attempted != 2 {
		t.Fatalf("取消后不应有成功条目：%+v", s)
	}
	for _, o := range s.Outcomes {
		if o.ErrorCode != domain.ErrCodeCanceled {
			t.Fatalf("期望 canceled，实际 %+v", o)
		}
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("取消后不应发出请求，实际 %d 次", hits)
	}
}

func TestRetrieve_WriteFailure(t *testing.T) {
	srv := imageServer(t)
	// 目标目录不存在：写入失败应计入 write_failed，而不是 panic/中断。
	dir := filepath.Join(t.TempDir(), "missing")

	e := &Engine{Client: srv.Client()}
	s := e.Retrieve(context.Background(), refs(t, srv.URL+"/ok/a.jpg"), dir)
	if s.Succeeded != 0 || s.Outcomes[0].ErrorCode != domain.ErrCodeWriteFailed {
		t.Fatalf("期望 write_failed，实际 %+v", s.Outcomes)
	}
}

func mustOpen(t *testing.T, p string) *os.File {
	t.Helper()
	f, err := os.Open(p)
	if err != nil {
		t.Fatalf("打开 %q 失败：%v", p, err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}
