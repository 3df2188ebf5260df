package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/imgscrape/internal/app/run"
	"github.com/John-Robertt/imgscrape/internal/domain"
	"github.com/John-Robertt/imgscrape/internal/urlx"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是控制台进度输出（与日志分离）。
//
// 输出格式（固定）：
//
//	--- Starting N Item(s) ---
//	+ <name> [i of N]
//		---- NN) <ref>
//		-XX- NN) <ref> (FAILED)
//		X/Y Images Downloaded
type progressUI struct {
	w     io.Writer
	width int

	mu sync.Mutex
}

func newProgressUI(w io.Writer, width int) *progressUI {
	if width <= 0 {
		width = 150
	}
	return &progressUI{w: w, width: width}
}

func (p *progressUI) OnStart(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "--- Starting %d Item(s) ---\n", total)
}

func (p *progressUI) OnSiteStart(idx, total int, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "+ %s [%d of %d]\n", name, idx, total)
}

func (p *progressUI) OnReference(o domain.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ref := urlx.Truncate(o.Ref, p.width)
	if o.OK {
		fmt.Fprintf(p.w, "\t---- %02d) %s\n", o.Index, ref)
		return
	}
	fmt.Fprintf(p.w, "\t-XX- %02d) %s (FAILED)\n", o.Index, ref)
}

func (p *progressUI) OnSiteDone(idx, total int, rep domain.SiteReport, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\t%d/%d Images Downloaded\n", rep.Summary.Succeeded, rep.Summary.Attempted)
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + urlx.Truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}
