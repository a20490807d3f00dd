package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	contractmq "inboxtriage/contracts/mq"
	"inboxtriage/internal/model"
	"inboxtriage/pkg/metrics"
)

const (
	DefaultResetAfter = 30 * 24 * time.Hour
	DefaultBackendURL = "http://localhost:5000/categorize"
)

// ErrInvalidDelta 负增量或 categorized 超过 processed
var ErrInvalidDelta = errors.New("invalid stats delta")

// Publisher 广播控制事件，pkg/mq.Publisher 和 mq.MemoryBus 都满足
type Publisher interface {
	Publish(routingKey string, payload any) error
}

// Snapshot 调度时刻捕获的控制状态，pipeline 运行期间不再读全局状态
type Snapshot struct {
	Enabled bool
}

type Options struct {
	ResetAfter        time.Duration
	DefaultBackendURL string
	Now               func() time.Time
}

// Plane 持有 enabled 开关和吞吐计数，并把每次变更广播给其他执行上下文
type Plane struct {
	store          Store
	pub            Publisher
	logger         *zap.Logger
	now            func() time.Time
	resetAfter     time.Duration
	defaultBackend string
}

func NewPlane(store Store, pub Publisher, logger *zap.Logger, opts Options) *Plane {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ResetAfter <= 0 {
		opts.ResetAfter = DefaultResetAfter
	}
	if opts.DefaultBackendURL == "" {
		opts.DefaultBackendURL = DefaultBackendURL
	}
	return &Plane{
		store:          store,
		pub:            pub,
		logger:         logger,
		now:            opts.Now,
		resetAfter:     opts.ResetAfter,
		defaultBackend: opts.DefaultBackendURL,
	}
}

// Init 首次启动时写入默认计数，返回当前完整状态
func (p *Plane) Init(ctx context.Context) (model.TriageState, error) {
	stats, err := p.store.InitStats(ctx, p.now())
	if err != nil {
		return model.TriageState{}, err
	}
	enabled, err := p.store.GetEnabled(ctx)
	if err != nil {
		return model.TriageState{}, err
	}
	return model.TriageState{Enabled: enabled, Stats: stats}, nil
}

func (p *Plane) GetEnabled(ctx context.Context) (bool, error) {
	return p.store.GetEnabled(ctx)
}

// SetEnabled 先持久化再广播 enabled-changed
func (p *Plane) SetEnabled(ctx context.Context, enabled bool) error {
	if err := p.store.SetEnabled(ctx, enabled); err != nil {
		return err
	}
	p.logger.Info("Triage enabled flag changed", zap.Bool("enabled", enabled))
	p.publish(contractmq.EnabledChanged(enabled))
	return nil
}

func (p *Plane) GetStats(ctx context.Context) (model.Stats, error) {
	return p.store.GetStats(ctx)
}

func (p *Plane) State(ctx context.Context) (model.TriageState, error) {
	enabled, err := p.store.GetEnabled(ctx)
	if err != nil {
		return model.TriageState{}, err
	}
	stats, err := p.store.GetStats(ctx)
	if err != nil {
		return model.TriageState{}, err
	}
	return model.TriageState{Enabled: enabled, Stats: stats}, nil
}

// IncrementStats 原子累加计数并广播 stats-changed，空增量不写存储
func (p *Plane) IncrementStats(ctx context.Context, delta model.StatsDelta) (model.Stats, error) {
	if !delta.Valid() {
		return model.Stats{}, fmt.Errorf("%w: processed=%d categorized=%d", ErrInvalidDelta, delta.Processed, delta.Categorized)
	}
	if delta.IsZero() {
		return p.store.GetStats(ctx)
	}
	stats, err := p.store.IncrementStats(ctx, delta, p.now())
	if err != nil {
		return model.Stats{}, err
	}
	p.publish(contractmq.StatsChanged(stats))
	return stats, nil
}

// ResetStatsIfStale now-lastReset 超过 resetAfter 时清零计数（硬重置）
func (p *Plane) ResetStatsIfStale(ctx context.Context) (model.Stats, bool, error) {
	stats, reset, err := p.store.ResetStatsIfStale(ctx, p.now(), p.resetAfter)
	if err != nil {
		return model.Stats{}, false, err
	}
	if reset {
		metrics.StatsResetCount.Inc()
		p.logger.Info("Stats reset", zap.Time("last_reset", stats.LastReset))
		p.publish(contractmq.StatsChanged(stats))
	}
	return stats, reset, nil
}

// BackendURL 持久化的分类服务地址，未设置或读取失败时回落到默认地址
func (p *Plane) BackendURL(ctx context.Context) string {
	url, err := p.store.GetBackendURL(ctx)
	if err != nil {
		p.logger.Warn("Failed to read backend url, using default", zap.Error(err))
		return p.defaultBackend
	}
	if url = strings.TrimSpace(url); url == "" {
		return p.defaultBackend
	}
	return url
}

func (p *Plane) SetBackendURL(ctx context.Context, url string) error {
	return p.store.SetBackendURL(ctx, strings.TrimSpace(url))
}

func (p *Plane) Snapshot(ctx context.Context) (Snapshot, error) {
	enabled, err := p.store.GetEnabled(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Enabled: enabled}, nil
}

// publish 尽力而为，失败只记日志
func (p *Plane) publish(msg contractmq.ControlMessage) {
	if p.pub == nil {
		return
	}
	if err := p.pub.Publish(contractmq.RoutingKeyFor(msg.Action), msg); err != nil {
		metrics.IncrementControlEvent(msg.Action, "publish_failed")
		p.logger.Warn("Failed to publish control event",
			zap.String("action", msg.Action),
			zap.Error(err),
		)
		return
	}
	metrics.IncrementControlEvent(msg.Action, "published")
}
