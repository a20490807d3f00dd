package model

// SourceKind 表示 entry 来自哪种 host view
type SourceKind int

const (
	SourceThreadRow SourceKind = iota + 1
	SourceOpenedMessage
)

func (k SourceKind) String() string {
	switch k {
	case SourceThreadRow:
		return "thread_row"
	case SourceOpenedMessage:
		return "opened_message"
	default:
		return "unknown"
	}
}

// EmailSummary 是发送给分类服务的精简摘要，一次 triage 后即丢弃
type EmailSummary struct {
	Subject    string
	Snippet    string
	Sender     string
	SourceKind SourceKind
}
