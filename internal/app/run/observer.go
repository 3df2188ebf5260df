package run

import (
	"time"

	"github.com/John-Robertt/imgscrape/internal/domain"
)

// Observer 用于把“运行进度/站点/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何控制台输出。
// - ordered_log=false 时 OnReference 来自多个下载 goroutine，实现必须并发安全。
type Observer interface {
	// OnStart 在 Run 开始时调用，total 为输入记录数（含将被跳过的空地址记录）。
	OnStart(total int)
	// OnSiteStart 在某个站点开始处理时调用（空地址记录不会触发）。
	// idx 是已处理站点的序号（从 1 开始，跳过的记录不占号）；total 为输入记录数。
	OnSiteStart(idx, total int, name string)
	// OnReference 在某条引用处理完成时调用。
	OnReference(o domain.Outcome)
	// OnSiteDone 在站点处理完成时调用（用于打印 X/Y 统计）；idx 与 OnSiteStart 相同。
	OnSiteDone(idx, total int, rep domain.SiteReport, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnStart(int) {}
func (nopObserver) OnSiteStart(int, int, string) {}
func (nopObserver) OnReference(domain.Outcome) {}
func (nopObserver) OnSiteDone(int, int, domain.SiteReport, time.Duration) {}
