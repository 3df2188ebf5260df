package domain

// RefKind 区分引用的两种形态：网络地址 / 内联数据。
type RefKind int

const (
	RefRemote RefKind = iota + 1
	RefInline
)

// Reference 是解析后的图片引用（tagged variant）。
//
// - RefRemote：Raw 为可直接请求的绝对地址（已去掉查询串）
// - RefInline：Raw 为原始 data: 字符串；Format 为声明的图片格式（可能为空，表示无法识别），
//   Payload 为 base64 载荷（尚未解码，解码失败在下载阶段按条目计入失败）
type Reference struct {
	Kind    RefKind
	Raw     string
	Format  string
	Payload string
}

func (r Reference) IsInline() bool { return r.Kind == RefInline }
