package domain

import (
	"encoding/json"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

const (
	ErrCodeFetchFailed    = "fetch_failed"
	ErrCodeHTTPStatus     = "http_status"
	ErrCodeDecodeFailed   = "decode_failed"
	ErrCodeWriteFailed    = "write_failed"
	ErrCodeCanceled       = "canceled"
	ErrCodePageFailed     = "page_failed"
	ErrCodeManifestFailed = "manifest_failed"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeTargetConflict = "target_conflict"
	ErrCodeConfigInvalid  = "config_invalid"
	ErrCodeInputInvalid   = "input_invalid"
)

// Outcome 是单条引用的下载结果。
//
// Index 从 1 开始，与派发顺序（即 manifest 中的序号）一致。
type Outcome struct {
	Index     int    `json:"index"`
	Ref       string `json:"ref"`
	OK        bool   `json:"ok"`
	Path      string `json:"path,omitempty"`
	Bytes     int64  `json:"bytes,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// Summary 是一个站点的下载汇总。
//
// Attempted = 所有非空引用数（包含失败条目）；Outcomes 按派发顺序排列。
type Summary struct {
	Succeeded int       `json:"succeeded"`
	Attempted int       `json:"attempted"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Add 追加一条结果并更新计数。
func (s *Summary) Add(o Outcome) {
	s.Attempted++
	if o.OK {
		s.Succeeded++
	}
	s.Outcomes = append(s.Outcomes, o)
}

// SiteReport 是单个站点的处理结果。
type SiteReport struct {
	Index    int    `json:"index"`
	Location string `json:"location"`
	PageURL  string `json:"page_url"`
	Name     string `json:"name"`
	Folder   string `json:"folder"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`

	References []string `json:"references"`
	Summary    Summary  `json:"summary"`
}

// RunReport 是一次运行的整体结果（按输入顺序保存站点）。
type RunReport struct {
	Root string `json:"root"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Canceled   bool      `json:"canceled"`

	Summary RunSummary   `json:"summary"`
	Sites   []SiteReport `json:"sites"`
}

type RunSummary struct {
	Sites     int `json:"sites"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Images    int `json:"images"`
	ImagesOK  int `json:"images_ok"`
	ImagesBad int `json:"images_failed"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 sites 计算得出（站点顺序保持输入顺序，不排序）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	var s RunSummary
	for _, it := range r.Sites {
		s.Sites++
		switch it.Status {
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
		s.Images += it.Summary.Attempted
		s.ImagesOK += it.Summary.Succeeded
	}
	s.ImagesBad = s.Images - s.ImagesOK
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	if r.Sites == nil {
		r.Sites = []SiteReport{}
	}
	return json.Marshal(Alias(r))
}
