package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 分类服务调用延迟（毫秒）
	ClassifyCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_classify_call_latency_ms",
			Help:    "Classification endpoint call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50ms to ~25s
		},
		[]string{"status"},
	)

	// 每条 entry 的处理结果
	EntryOutcomeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_entry_outcome_total",
			Help: "Total number of triage pipeline runs by outcome",
		},
		[]string{"source", "outcome"},
	)

	// 打标签结果
	LabelApplyCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_label_apply_total",
			Help: "Total number of label applications by status",
		},
		[]string{"title", "status"}, // status: success, failed
	)

	// 正在处理的 entry 数量
	InFlightEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "triage_inflight_entries",
			Help: "Number of triage pipelines currently in flight",
		},
	)

	// 控制面事件计数
	ControlEventCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_control_event_total",
			Help: "Total number of control plane events published",
		},
		[]string{"action", "status"},
	)

	// 统计重置次数
	StatsResetCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_stats_reset_total",
			Help: "Total number of stale stats resets",
		},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 数据库写入延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)
)

// RecordClassifyCallLatency 记录分类调用延迟
func RecordClassifyCallLatency(status string, duration time.Duration) {
	ClassifyCallLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

// IncrementEntryOutcome 增加 entry 处理结果计数
func IncrementEntryOutcome(source, outcome string) {
	EntryOutcomeCount.WithLabelValues(source, outcome).Inc()
}

// IncrementLabelApply 增加打标签计数
func IncrementLabelApply(title, status string) {
	LabelApplyCount.WithLabelValues(title, status).Inc()
}

// IncrementControlEvent 增加控制面事件计数
func IncrementControlEvent(action, status string) {
	ControlEventCount.WithLabelValues(action, status).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
