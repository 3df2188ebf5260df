package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SummaryAndUTC(t *testing.T) {
	r := RunReport{
		Root:       "/abs/scrape",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Sites: []SiteReport{
			{Location: "b.com", Status: StatusProcessed, Summary: Summary{Succeeded: 2, Attempted: 3}},
			{Location: "", Status: StatusSkipped},
			{Location: "a.com", Status: StatusFailed, ErrorCode: ErrCodePageFailed},
		},
	}

	r.Finalize()

	// 站点顺序必须保持输入顺序。
	if r.Sites[0].Location != "b.com" || r.Sites[2].Location != "a.com" {
		t.Fatalf("sites 顺序被改变：%+v", r.Sites)
	}
	want := RunSummary{Sites: 3, Skipped: 1, Failed: 1, Images: 3, ImagesOK: 2, ImagesBad: 1}
	if r.Summary != want {
		t.Fatalf("summary 统计不正确：got=%+v want=%+v", r.Summary, want)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestSummary_Add(t *testing.T) {
	var s Summary
	s.Add(Outcome{Index: 1, OK: true})
	s.Add(Outcome{Index: 2, OK: false, ErrorCode: ErrCodeFetchFailed})
	s.Add(Outcome{Index: 3, OK: true})

	if s.Succeeded != 2 || s.Attempted != 3 {
		t.Fatalf("计数不正确：%+v", s)
	}
	if len(s.Outcomes) != 3 || s.Outcomes[1].Index != 2 {
		t.Fatalf("outcomes 顺序不正确：%+v", s.Outcomes)
	}
}

func TestSiteRecord_DisplayNameAndKeys(t *testing.T) {
	tests := []struct {
		name string
		rec  SiteRecord
		want string
	}{
		{"仅地址", SiteRecord{Location: " a.com "}, "a.com"},
		{"name 优先", SiteRecord{Location: "a.com", Meta: map[string]string{"name": "Acme", "first_name": "X"}}, "Acme"},
		{"first+last", SiteRecord{Location: "a.com", Meta: map[string]string{"first_name": "Ada", "last_name": "Lovelace"}}, "Ada Lovelace"},
		{"只有 first", SiteRecord{Location: "a.com", Meta: map[string]string{"first_name": "Ada"}}, "Ada"},
	}
	for _, tt := range tests {
		if got := tt.rec.DisplayName(); got != tt.want {
			t.Fatalf("%s：期望 %q，实际 %q", tt.name, tt.want, got)
		}
	}

	r := SiteRecord{
		Location: "a.com",
		Meta:     map[string]string{"website": "a.com", "zeta": "1", "alpha": "2", "last_name": "L"},
		Keys:     []string{"last_name", "website", "missing", "last_name"},
	}
	got := r.OrderedKeys()
	want := []string{"last_name", "website", "alpha", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("OrderedKeys 长度不符：%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("OrderedKeys 顺序不符：got=%v want=%v", got, want)
		}
	}
	if !r.HasMeta() {
		t.Fatalf("期望 HasMeta=true")
	}
	if (SiteRecord{Location: "a.com", Meta: map[string]string{"website": "a.com"}}).HasMeta() {
		t.Fatalf("只有地址字段时不应视为有元数据")
	}
}
