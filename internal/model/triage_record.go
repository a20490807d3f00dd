package model

import "time"

// TriageRecord 一次完整 pipeline 尝试的审计记录
type TriageRecord struct {
	TraceID     string
	Source      SourceKind
	Subject     string
	Sender      string
	Category    Category
	LabelTitle  string
	Outcome     string
	Error       string
	ProcessedAt time.Time
}
