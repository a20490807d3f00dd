package model

import "time"

// Stats 吞吐计数，持久化在共享存储中。Categorized <= Processed 恒成立。
type Stats struct {
	Processed   int64     `json:"processed"`
	Categorized int64     `json:"categorized"`
	LastReset   time.Time `json:"lastReset"`
}

// StatsDelta 一次 pipeline 运行对计数的增量
type StatsDelta struct {
	Processed   int64
	Categorized int64
}

// Valid 增量不能为负，也不能让 categorized 超过 processed
func (d StatsDelta) Valid() bool {
	return d.Processed >= 0 && d.Categorized >= 0 && d.Categorized <= d.Processed
}

// IsZero 空增量不需要写存储
func (d StatsDelta) IsZero() bool {
	return d.Processed == 0 && d.Categorized == 0
}

// IsStale 距离上次重置超过 maxAge
func (s Stats) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastReset) > maxAge
}

// TriageState 控制面的完整状态
type TriageState struct {
	Enabled bool  `json:"enabled"`
	Stats   Stats `json:"stats"`
}
