// Package coordinator is the background context: it owns the recurring stale-stats
// check and turns enable/disable commands into persisted control-plane changes.
package coordinator

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	contractmq "inboxtriage/contracts/mq"
	"inboxtriage/internal/control"
	"inboxtriage/pkg/logger"
	"inboxtriage/pkg/metrics"
	"inboxtriage/pkg/mq"
)

const DefaultCheckInterval = 24 * time.Hour

type Coordinator struct {
	plane    *control.Plane
	logger   *zap.Logger
	interval time.Duration
	router   *mq.ActionRouter
}

func NewCoordinator(plane *control.Plane, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	log = logger.Named(log, "coordinator")
	c := &Coordinator{
		plane:    plane,
		logger:   log,
		interval: DefaultCheckInterval,
	}
	c.router = mq.NewActionRouter(log)
	c.router.Register(contractmq.ActionEnable, c.handleEnable)
	c.router.Register(contractmq.ActionDisable, c.handleDisable)
	return c
}

// WithInterval 设置过期检查间隔
func (c *Coordinator) WithInterval(interval time.Duration) *Coordinator {
	if interval > 0 {
		c.interval = interval
	}
	return c
}

// Run 启动时初始化状态并立即检查一次，之后每个 interval 检查一次，直到 ctx 取消
func (c *Coordinator) Run(ctx context.Context) error {
	state, err := c.plane.Init(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("Coordinator started",
		zap.Bool("enabled", state.Enabled),
		zap.Int64("processed", state.Stats.Processed),
		zap.Int64("categorized", state.Stats.Categorized),
		zap.Time("last_reset", state.Stats.LastReset),
		zap.Duration("check_interval", c.interval),
	)

	c.CheckStats(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Coordinator stopped")
			return nil
		case <-ticker.C:
			c.CheckStats(ctx)
		}
	}
}

// CheckStats 执行一次过期检查，错误只记日志
func (c *Coordinator) CheckStats(ctx context.Context) {
	stats, reset, err := c.plane.ResetStatsIfStale(ctx)
	if err != nil {
		c.logger.Error("Stale stats check failed", zap.Error(err))
		return
	}
	if reset {
		c.logger.Info("Stats were stale and have been reset", zap.Time("last_reset", stats.LastReset))
	}
}

// HandleMessage 消费控制总线消息
func (c *Coordinator) HandleMessage(ctx context.Context, raw json.RawMessage) error {
	return c.router.Handle(ctx, raw)
}

func (c *Coordinator) handleEnable(ctx context.Context, _ json.RawMessage) error {
	return c.apply(ctx, contractmq.ActionEnable, true)
}

func (c *Coordinator) handleDisable(ctx context.Context, _ json.RawMessage) error {
	return c.apply(ctx, contractmq.ActionDisable, false)
}

func (c *Coordinator) apply(ctx context.Context, action string, enabled bool) error {
	if err := c.plane.SetEnabled(ctx, enabled); err != nil {
		metrics.IncrementControlEvent(action, "failed")
		c.logger.Error("Failed to apply control command", zap.String("action", action), zap.Error(err))
		return err
	}
	metrics.IncrementControlEvent(action, "applied")
	return nil
}
