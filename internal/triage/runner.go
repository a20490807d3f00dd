// Package triage runs the extract → guard → classify → label pipeline for host entries.
package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	contractmq "inboxtriage/contracts/mq"
	"inboxtriage/internal/control"
	"inboxtriage/internal/extract"
	"inboxtriage/internal/host"
	"inboxtriage/internal/label"
	"inboxtriage/internal/model"
	"inboxtriage/pkg/logger"
	"inboxtriage/pkg/metrics"
	"inboxtriage/pkg/mq"
	"inboxtriage/pkg/otel"
	"inboxtriage/pkg/trace"
)

const (
	DefaultBulkBatchSize = 10
	DefaultBulkPacing    = time.Second
)

// Classifier 远程分类服务
type Classifier interface {
	Classify(ctx context.Context, summary model.EmailSummary) (model.Category, error)
}

// StatsSink 原子累加吞吐计数，由 control.Plane 实现
type StatsSink interface {
	IncrementStats(ctx context.Context, delta model.StatsDelta) (model.Stats, error)
}

// Recorder 接收每次完成的尝试（审计日志），可选
type Recorder interface {
	Record(ctx context.Context, rec model.TriageRecord) error
}

type Config struct {
	BulkBatchSize    int
	BulkPacing       time.Duration
	CountPolicy      CountPolicy
	ExtraGuardTitles []string
}

type Deps struct {
	Surface    host.Surface
	Classifier Classifier
	Stats      StatsSink
	Recorder   Recorder
	Logger     *zap.Logger
}

// Runner 每个 entry 在独立 goroutine 中跑 pipeline，entry 之间不互斥
type Runner struct {
	surface    host.Surface
	classifier Classifier
	stats      StatsSink
	recorder   Recorder
	guard      *label.Guard
	applicator *label.Applicator
	logger     *zap.Logger
	cfg        Config
	router     *mq.ActionRouter

	// sleep 批量模式下两次调度之间的间隔
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	enabled     atomic.Bool
	inFlight    atomic.Int64
	bulkRunning atomic.Bool
	wg          sync.WaitGroup

	mu      sync.Mutex
	baseCtx context.Context
}

func NewRunner(deps Deps, cfg Config) *Runner {
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = DefaultBulkBatchSize
	}
	if cfg.BulkPacing <= 0 {
		cfg.BulkPacing = DefaultBulkPacing
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = logger.Named(log, "triage-runner")

	r := &Runner{
		surface:    deps.Surface,
		classifier: deps.Classifier,
		stats:      deps.Stats,
		recorder:   deps.Recorder,
		guard:      label.NewGuard(cfg.ExtraGuardTitles...),
		applicator: label.NewApplicator(log),
		logger:     log,
		cfg:        cfg,
		sleep:      sleepContext,
		now:        time.Now,
		baseCtx:    context.Background(),
	}

	r.router = mq.NewActionRouter(log)
	r.router.Register(contractmq.ActionEnable, r.handleEnable)
	r.router.Register(contractmq.ActionDisable, r.handleDisable)
	r.router.Register(contractmq.ActionEnabledChanged, r.handleEnabledChanged)
	return r
}

// Start 注册 host 钩子，按持久化的 enabled 初始化状态；启用时立即开始批量处理。
// 之后的 pipeline 都运行在与 ctx 取消解耦的 context 上。
func (r *Runner) Start(ctx context.Context, snap control.Snapshot) {
	r.mu.Lock()
	r.baseCtx = context.WithoutCancel(ctx)
	r.mu.Unlock()

	if r.surface != nil {
		r.surface.OnThreadRowRendered(func(row host.ThreadRow) { r.Schedule(row) })
		r.surface.OnMessageOpened(func(msg host.OpenedMessage) { r.Schedule(msg) })
	}

	r.logger.Info("Triage runner started",
		zap.Bool("enabled", snap.Enabled),
		zap.String("count_policy", r.cfg.CountPolicy.String()),
	)
	if snap.Enabled {
		r.Enable()
	}
}

// State 当前状态
func (r *Runner) State() State {
	if !r.enabled.Load() {
		return StateDisabled
	}
	if r.inFlight.Load() > 0 {
		return StateEnabledProcessing
	}
	return StateEnabledIdle
}

// Snapshot 调度时刻的 enabled 快照
func (r *Runner) Snapshot() control.Snapshot {
	return control.Snapshot{Enabled: r.enabled.Load()}
}

// Enable 从 Disabled 转入 Enabled 时触发一次批量处理
func (r *Runner) Enable() {
	if !r.enabled.CompareAndSwap(false, true) {
		return
	}
	r.logger.Info("Triage enabled")
	if r.surface == nil {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := r.BulkStart(r.context()); err != nil {
			r.logger.Warn("Bulk startup failed", zap.Error(err))
		}
	}()
}

// Disable 只停止新 entry 的调度，进行中的 pipeline 照常完成并计数
func (r *Runner) Disable() {
	if r.enabled.CompareAndSwap(true, false) {
		r.logger.Info("Triage disabled", zap.Int64("in_flight", r.inFlight.Load()))
	}
}

// Schedule 实时 entry：立即在独立 goroutine 中处理，不批量、不限速
func (r *Runner) Schedule(v host.View) {
	if v == nil {
		return
	}
	snap := r.Snapshot()
	if !snap.Enabled {
		metrics.IncrementEntryOutcome(v.Kind().String(), OutcomeSkippedDisabled.String())
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.ProcessEntry(r.context(), v, snap)
	}()
}

// BulkStart 依次处理当前可见的 thread row，最多 BulkBatchSize 条，每两条之间间隔
// BulkPacing；每条调度前重新检查 enabled。返回实际调度的条数。
func (r *Runner) BulkStart(ctx context.Context) (int, error) {
	if !r.bulkRunning.CompareAndSwap(false, true) {
		r.logger.Debug("Bulk startup already running")
		return 0, nil
	}
	defer r.bulkRunning.Store(false)

	rows, err := r.surface.AllVisibleThreadRows(ctx)
	if err != nil {
		return 0, fmt.Errorf("list visible thread rows: %w", err)
	}
	if len(rows) > r.cfg.BulkBatchSize {
		rows = rows[:r.cfg.BulkBatchSize]
	}

	r.logger.Info("Bulk startup", zap.Int("entries", len(rows)))

	scheduled := 0
	for i, row := range rows {
		if i > 0 {
			if err := r.sleep(ctx, r.cfg.BulkPacing); err != nil {
				return scheduled, err
			}
		}
		snap := r.Snapshot()
		if !snap.Enabled {
			r.logger.Info("Bulk startup halted by disable", zap.Int("scheduled", scheduled))
			break
		}
		r.ProcessEntry(ctx, row, snap)
		scheduled++
	}
	return scheduled, nil
}

// ProcessEntry 对一个 entry 跑完整 pipeline。snap 是调度时刻的控制状态。
func (r *Runner) ProcessEntry(ctx context.Context, v host.View, snap control.Snapshot) (outcome Outcome) {
	source := "unknown"
	if v != nil {
		source = v.Kind().String()
	}
	if !snap.Enabled {
		metrics.IncrementEntryOutcome(source, OutcomeSkippedDisabled.String())
		return OutcomeSkippedDisabled
	}

	r.inFlight.Add(1)
	metrics.InFlightEntries.Inc()
	defer func() {
		r.inFlight.Add(-1)
		metrics.InFlightEntries.Dec()
	}()

	ctx = trace.Ensure(ctx)
	log := logger.WithTrace(ctx, r.logger)

	ctx, span := otel.StartSpan(ctx, "triage.entry")
	span.SetAttributes(attribute.String("triage.source", source))
	defer func() {
		span.SetAttributes(attribute.String("triage.outcome", outcome.String()))
		span.End()
	}()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Pipeline panic recovered", zap.Any("panic", rec))
			span.SetStatus(codes.Error, "panic")
			outcome = OutcomeFailed
		}
		metrics.IncrementEntryOutcome(source, outcome.String())
	}()

	summary, err := extract.Extract(ctx, v)
	if err != nil {
		log.Debug("Entry skipped", zap.Error(err))
		return OutcomeSkippedExtraction
	}

	if r.guard.AlreadyTriaged(host.LabelTitles(v)) {
		log.Debug("Entry already triaged", zap.String("subject", summary.Subject))
		return OutcomeSkippedTriaged
	}

	rec := model.TriageRecord{
		TraceID: trace.FromContext(ctx),
		Source:  summary.SourceKind,
		Subject: summary.Subject,
		Sender:  summary.Sender,
	}

	category, err := r.classifier.Classify(ctx, summary)
	if err != nil {
		log.Warn("Classification failed",
			zap.String("subject", summary.Subject),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		outcome = OutcomeFailed
		rec.Error = err.Error()
		if r.cfg.CountPolicy == CountEveryAttempt {
			r.increment(ctx, log, model.StatsDelta{Processed: 1})
		}
		r.record(ctx, log, rec, outcome)
		return outcome
	}
	rec.Category = category

	delta := model.StatsDelta{Processed: 1}
	outcome = OutcomeUnlabeled
	if spec, ok := label.MapCategory(category); ok {
		rec.LabelTitle = spec.Title
		if r.applicator.Apply(ctx, v, spec) {
			delta.Categorized = 1
			outcome = OutcomeLabeled
		}
	}

	r.increment(ctx, log, delta)
	r.record(ctx, log, rec, outcome)

	log.Info("Entry triaged",
		zap.String("subject", summary.Subject),
		zap.String("category", string(category)),
		zap.String("outcome", outcome.String()),
	)
	return outcome
}

// HandleMessage 消费控制总线上的 enable/disable/enabled-changed
func (r *Runner) HandleMessage(ctx context.Context, raw json.RawMessage) error {
	return r.router.Handle(ctx, raw)
}

// Wait 等待所有已调度的 pipeline 和批量处理结束
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) handleEnable(context.Context, json.RawMessage) error {
	r.Enable()
	return nil
}

func (r *Runner) handleDisable(context.Context, json.RawMessage) error {
	r.Disable()
	return nil
}

func (r *Runner) handleEnabledChanged(_ context.Context, raw json.RawMessage) error {
	var msg contractmq.ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode enabled-changed: %w", err)
	}
	if msg.Enabled == nil {
		return errors.New("enabled-changed without enabled")
	}
	if *msg.Enabled {
		r.Enable()
	} else {
		r.Disable()
	}
	return nil
}

func (r *Runner) increment(ctx context.Context, log *zap.Logger, delta model.StatsDelta) {
	if r.stats == nil {
		return
	}
	if _, err := r.stats.IncrementStats(ctx, delta); err != nil {
		log.Error("Failed to increment stats",
			zap.Int64("processed", delta.Processed),
			zap.Int64("categorized", delta.Categorized),
			zap.Error(err),
		)
	}
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, rec model.TriageRecord, outcome Outcome) {
	if r.recorder == nil {
		return
	}
	rec.Outcome = outcome.String()
	rec.ProcessedAt = r.now()
	if err := r.recorder.Record(ctx, rec); err != nil {
		log.Warn("Failed to record triage attempt", zap.Error(err))
	}
}

func (r *Runner) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.baseCtx
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
