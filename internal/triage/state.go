package triage

// State 运行器状态机
type State int32

const (
	StateDisabled State = iota
	StateEnabledIdle
	StateEnabledProcessing
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateEnabledIdle:
		return "enabled_idle"
	case StateEnabledProcessing:
		return "enabled_processing"
	default:
		return "unknown"
	}
}

// Outcome 单条 entry 的处理结果
type Outcome int

const (
	OutcomeSkippedDisabled Outcome = iota
	OutcomeSkippedExtraction
	OutcomeSkippedTriaged
	OutcomeFailed
	OutcomeUnlabeled
	OutcomeLabeled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkippedDisabled:
		return "skipped_disabled"
	case OutcomeSkippedExtraction:
		return "skipped_extraction"
	case OutcomeSkippedTriaged:
		return "skipped_triaged"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnlabeled:
		return "unlabeled"
	case OutcomeLabeled:
		return "labeled"
	default:
		return "unknown"
	}
}

// CountPolicy 决定分类失败是否计入 processed
type CountPolicy int

const (
	// CountEveryAttempt 每次分类尝试都计入 processed，包括失败
	CountEveryAttempt CountPolicy = iota
	// CountCompletedOnly 只有拿到分类结果才计入 processed
	CountCompletedOnly
)

// PolicyFor 把配置项 triage.count_failed_attempts 转成 CountPolicy
func PolicyFor(countFailedAttempts bool) CountPolicy {
	if countFailedAttempts {
		return CountEveryAttempt
	}
	return CountCompletedOnly
}

func (p CountPolicy) String() string {
	if p == CountCompletedOnly {
		return "completed_only"
	}
	return "every_attempt"
}
