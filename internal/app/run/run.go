// Package run 按输入顺序逐个处理站点：抓取页面、提取引用、写清单、并发下载。
package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/imgscrape/internal/config"
	"github.com/John-Robertt/imgscrape/internal/domain"
	"github.com/John-Robertt/imgscrape/internal/extract"
	"github.com/John-Robertt/imgscrape/internal/infra/cache"
	"github.com/John-Robertt/imgscrape/internal/infra/fsx"
	"github.com/John-Robertt/imgscrape/internal/manifest"
	"github.com/John-Robertt/imgscrape/internal/page"
	"github.com/John-Robertt/imgscrape/internal/retrieve"
	"github.com/John-Robertt/imgscrape/internal/urlx"
)

// Orchestrator 持有一次运行所需的全部依赖。
//
// 约束：
// - cfg 在构造时按值拷贝，运行期间不可变
// - 站点严格串行；并发只发生在单个站点的下载批次内
// - 除 ctx 取消外，任何站点/条目失败都不会中止整个运行
type Orchestrator struct {
	cfg     config.EffectiveConfig
	fetcher page.Fetcher
	engine  retrieve.Engine
	store   cache.Store
	log     zerolog.Logger
	obs     Observer
}

// Option 用于替换默认依赖（主要用于测试）。
type Option func(*Orchestrator)

// WithFetcher 替换页面抓取实现（默认使用同一个 http client）。
func WithFetcher(f page.Fetcher) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.fetcher = f
		}
	}
}

// WithLogger 设置结构化日志（默认 zerolog.Nop）。
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithObserver 设置进度事件接收方（默认丢弃）。
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.obs = obs
		}
	}
}

// New 构造 Orchestrator。client 同时用于页面抓取与图片下载。
func New(cfg config.EffectiveConfig, client *http.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		fetcher: page.HTTPFetcher{Client: client},
		store:   cache.New(!cfg.SaveHTML),
		log:     zerolog.Nop(),
		obs:     nopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.engine = retrieve.Engine{
		Client:       client,
		Concurrency:  cfg.Concurrency,
		DisplayWidth: cfg.DisplayWidth,
		Log:          o.log,
	}
	return o
}

// Run 处理全部站点并返回运行报告。
//
// ctx 被取消时立即停止（不再开始新站点），返回已完成部分的报告与 ctx.Err()。
func (o *Orchestrator) Run(ctx context.Context, sites []domain.SiteRecord) (domain.RunReport, error) {
	rr := domain.RunReport{
		Root:      o.cfg.Root,
		StartedAt: time.Now().UTC(),
		Sites:     make([]domain.SiteReport, 0, len(sites)),
	}
	finish := func(err error) (domain.RunReport, error) {
		rr.Canceled = err != nil
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr, err
	}

	total := len(sites)
	o.obs.OnStart(total)

	// seq 只对实际处理的站点计数（空地址记录不占号）；idx 是输入位置。
	seq := 0
	folders := make(map[string]int, len(sites))
	for i, rec := range sites {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		idx := i + 1

		if urlx.NormalizeSiteLocation(rec.Location) == "" {
			rr.Sites = append(rr.Sites, domain.SiteReport{
				Index:      idx,
				Status:     domain.StatusSkipped,
				References: []string{},
			})
			o.log.Debug().Int("site", idx).Msg("站点地址为空，跳过")
			continue
		}

		seq++
		started := time.Now()
		rep := o.site(ctx, idx, seq, total, rec, folders)
		rr.Sites = append(rr.Sites, rep)
		o.obs.OnSiteDone(seq, total, rep, time.Since(started))

		if err := ctx.Err(); err != nil {
			return finish(err)
		}
	}
	return finish(nil)
}

// folders 记录本次运行已使用的站点目录（目录 -> 首个使用它的输入位置）。
func (o *Orchestrator) site(ctx context.Context, idx, seq, total int, rec domain.SiteRecord, folders map[string]int) domain.SiteReport {
	name := rec.DisplayName()
	pageURL := urlx.NormalizeSiteLocation(rec.Location)
	rep := domain.SiteReport{
		Index:      idx,
		Location:   rec.Location,
		PageURL:    pageURL,
		Name:       name,
		Folder:     filepath.Join(o.cfg.Root, fsx.Sanitize(name)),
		Status:     domain.StatusProcessed,
		References: []string{},
	}
	log := o.log.With().Int("site", idx).Str("page", pageURL).Logger()

	// 不同名称净化后可能相同：目录被复用时清单会被后者覆盖，这里只提示不改名。
	if first, ok := folders[rep.Folder]; ok {
		log.Warn().Str("folder", rep.Folder).Int("first_site", first).Msg("站点目录被重复使用，清单将被覆盖")
	} else {
		folders[rep.Folder] = idx
	}

	o.obs.OnSiteStart(seq, total, name)

	// 页面失败：站点级、非致命；零引用继续走完（目录与清单照常生成）。
	html, err := o.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			rep.Status = domain.StatusFailed
			rep.ErrorCode = domain.ErrCodeCanceled
			rep.ErrorMsg = ctx.Err().Error()
			return rep
		}
		setFailed(&rep, domain.ErrCodePageFailed, fmt.Sprintf("抓取页面失败：%v", err))
		log.Warn().Err(err).Msg("抓取页面失败")
		html = nil
	}
	if html != nil {
		doc, err := page.Parse(html)
		if err != nil {
			setFailed(&rep, domain.ErrCodePageFailed, fmt.Sprintf("解析页面失败：%v", err))
			log.Warn().Err(err).Msg("解析页面失败")
		} else {
			rep.References = extract.Extract(doc, pageURL)
		}
	}

	if err := fsx.EnsureDir(rep.Folder); err != nil {
		code := domain.ErrCodeIOFailed
		if fsx.IsPathTypeConflict(err) {
			code = domain.ErrCodeTargetConflict
		}
		setFailed(&rep, code, fmt.Sprintf("创建目录失败：%v", err))
		log.Error().Err(err).Str("path", rep.Folder).Msg("创建站点目录失败")
		return rep
	}

	if html != nil && o.cfg.SaveHTML {
		if err := o.store.WritePage(rep.Folder, html); err != nil && !errors.Is(err, cache.ErrReadOnly) {
			log.Warn().Err(err).Bool("cross_device", fsx.IsCrossDevice(err)).Msg("保存页面快照失败")
		}
	}

	// 清单写入失败不影响下载。
	if err := manifest.Write(rep.Folder, o.cfg.ManifestName, manifest.Encode(rec, rep.References, nil)); err != nil {
		setFailed(&rep, domain.ErrCodeManifestFailed, fmt.Sprintf("写入清单失败：%v", err))
		log.Error().Err(err).Bool("cross_device", fsx.IsCrossDevice(err)).Msg("写入清单失败")
	}

	refs := make([]domain.Reference, 0, len(rep.References))
	for _, s := range rep.References {
		if r, ok := urlx.ParseReference(s); ok {
			refs = append(refs, r)
		}
	}

	eng := o.engine
	eng.Log = log
	if !o.cfg.OrderedLog {
		eng.OnDone = o.obs.OnReference
	}
	rep.Summary = eng.Retrieve(ctx, refs, rep.Folder)
	if o.cfg.OrderedLog {
		for _, oc := range rep.Summary.Outcomes {
			o.obs.OnReference(oc)
		}
	}

	if rep.ErrorCode != domain.ErrCodeManifestFailed {
		data := manifest.Encode(rec, rep.References, &rep.Summary)
		if err := manifest.Write(rep.Folder, o.cfg.ManifestName, data); err != nil {
			setFailed(&rep, domain.ErrCodeManifestFailed, fmt.Sprintf("更新清单失败：%v", err))
			log.Error().Err(err).Bool("cross_device", fsx.IsCrossDevice(err)).Msg("更新清单失败")
		}
	}

	log.Info().
		Int("ok", rep.Summary.Succeeded).
		Int("total", rep.Summary.Attempted).
		Msg("站点完成")
	return rep
}

// setFailed 只记录第一个站点级错误。
func setFailed(rep *domain.SiteReport, code, msg string) {
	rep.Status = domain.StatusFailed
	if rep.ErrorCode == "" {
		rep.ErrorCode = code
		rep.ErrorMsg = msg
	}
}
