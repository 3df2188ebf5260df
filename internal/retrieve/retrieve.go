// Package retrieve 并发下载（或解码）一个站点的全部图片引用并落盘。
package retrieve

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/imgscrape/internal/domain"
	"github.com/John-Robertt/imgscrape/internal/infra/fsx"
	"github.com/John-Robertt/imgscrape/internal/infra/imgx"
	"github.com/John-Robertt/imgscrape/internal/page"
	"github.com/John-Robertt/imgscrape/internal/urlx"
)

// DefaultDisplayWidth 是日志中引用文本的截断宽度。
const DefaultDisplayWidth = 150

// Engine 负责一个站点的图片下载批次。
//
// 约束：
// - 每条引用是独立的并发单元：任何一条失败都不影响其它条目
// - 条目之间唯一共享的是目标目录的文件名空间，由 fsx.CreateUnique 原子分配
// - 不重试：一次失败即该条目在本次运行中的终态
type Engine struct {
	Client *http.Client
	// Concurrency<=0 表示不限并发（每条引用一个 goroutine）。
	Concurrency  int
	DisplayWidth int
	Log          zerolog.Logger

	// OnDone 在每条引用完成时调用（来自多个 goroutine，实现必须并发安全）。
	OnDone func(o domain.Outcome)
}

// Retrieve 并发处理 refs，等待全部完成后返回汇总。
//
// Summary.Outcomes 按派发顺序（即 refs 顺序）排列，与完成顺序无关。
// ctx 取消后，尚未开始的条目直接记为 canceled；已写出的半成品文件不清理。
func (e *Engine) Retrieve(ctx context.Context, refs []domain.Reference, dir string) domain.Summary {
	outcomes := make([]domain.Outcome, len(refs))

	var g errgroup.Group
	if e.Concurrency > 0 {
		g.SetLimit(e.Concurrency)
	}
	for i := range refs {
		i := i
		g.Go(func() error {
			o := e.one(ctx, i+1, refs[i], dir)
			outcomes[i] = o
			if e.OnDone != nil {
				e.OnDone(o)
			}
			return nil
		})
	}
	_ = g.Wait()

	var s domain.Summary
	s.Outcomes = make([]domain.Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		s.Add(o)
	}
	return s
}

func (e *Engine) one(ctx context.Context, idx int, ref domain.Reference, dir string) domain.Outcome {
	o := domain.Outcome{Index: idx, Ref: ref.Raw}
	display := urlx.Truncate(ref.Raw, e.width())

	if err := ctx.Err(); err != nil {
		return e.fail(o, display, domain.ErrCodeCanceled, err)
	}

	var (
		data []byte
		name string
	)
	if ref.IsInline() {
		b, err := imgx.DecodeInline(ref)
		if err != nil {
			return e.fail(o, display, domain.ErrCodeDecodeFailed, err)
		}
		data, name = b, imgx.InlineFileName(ref.Format)
	} else {
		b, err := page.Get(ctx, e.Client, ref.Raw)
		if err != nil {
			return e.fail(o, display, fetchErrCode(ctx, err), err)
		}
		data, name = b, urlx.Basename(ref.Raw)
	}

	p, n, err := fsx.WriteUnique(dir, name, data)
	if err != nil {
		return e.fail(o, display, domain.ErrCodeWriteFailed, err)
	}

	o.OK = true
	o.Path = p
	o.Bytes = n
	e.Log.Debug().Int("idx", idx).Str("ref", display).Str("path", p).Int64("bytes", n).Msg("图片已保存")
	return o
}

func (e *Engine) fail(o domain.Outcome, display, code string, err error) domain.Outcome {
	o.OK = false
	o.ErrorCode = code
	o.ErrorMsg = err.Error()
	e.Log.Warn().Int("idx", o.Index).Str("ref", display).Str("code", code).Err(err).Msg("图片下载失败")
	return o
}

func (e *Engine) width() int {
	if e.DisplayWidth > 0 {
		return e.DisplayWidth
	}
	return DefaultDisplayWidth
}

func fetchErrCode(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return domain.ErrCodeCanceled
	}
	var hs *page.HTTPStatusError
	if errors.As(err, &hs) {
		return domain.ErrCodeHTTPStatus
	}
	return domain.ErrCodeFetchFailed
}
