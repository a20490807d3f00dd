package control

import (
	"context"
	"time"

	"inboxtriage/internal/model"
)

// 共享存储中的固定 key
const (
	KeyEnabled    = "triage:enabled"
	KeyStats      = "triage:stats"
	KeyBackendURL = "triage:backend_url"
)

// Store 控制面的持久化存储。IncrementStats 和 ResetStatsIfStale 必须是原子的读-改-写。
type Store interface {
	// GetEnabled 未设置时返回 true
	GetEnabled(ctx context.Context) (bool, error)
	SetEnabled(ctx context.Context, enabled bool) error

	// InitStats 只在 stats 不存在时写入零值计数和 lastReset=now
	InitStats(ctx context.Context, now time.Time) (model.Stats, error)
	GetStats(ctx context.Context) (model.Stats, error)
	IncrementStats(ctx context.Context, delta model.StatsDelta, now time.Time) (model.Stats, error)
	ResetStatsIfStale(ctx context.Context, now time.Time, maxAge time.Duration) (model.Stats, bool, error)

	// GetBackendURL 未设置时返回空串
	GetBackendURL(ctx context.Context) (string, error)
	SetBackendURL(ctx context.Context, url string) error
}
