package mq

import "inboxtriage/internal/model"

// 控制总线上的 action
const (
	ActionEnable         = "enable"
	ActionDisable        = "disable"
	ActionStatsChanged   = "stats-changed"
	ActionEnabledChanged = "enabled-changed"
)

// routing keys on the triage exchange
const (
	RoutingEnable         = "triage.control.enable"
	RoutingDisable        = "triage.control.disable"
	RoutingStatsChanged   = "triage.stats.changed"
	RoutingEnabledChanged = "triage.enabled.changed"
)

// ControlMessage 所有执行上下文之间交换的消息
type ControlMessage struct {
	Action  string       `json:"action"`
	Enabled *bool        `json:"enabled,omitempty"`
	Stats   *model.Stats `json:"stats,omitempty"`
}

// RoutingKeyFor 返回 action 对应的 routing key
func RoutingKeyFor(action string) string {
	switch action {
	case ActionEnable:
		return RoutingEnable
	case ActionDisable:
		return RoutingDisable
	case ActionStatsChanged:
		return RoutingStatsChanged
	case ActionEnabledChanged:
		return RoutingEnabledChanged
	default:
		return "triage.unknown"
	}
}

func EnableCommand() ControlMessage  { return ControlMessage{Action: ActionEnable} }
func DisableCommand() ControlMessage { return ControlMessage{Action: ActionDisable} }

func EnabledChanged(enabled bool) ControlMessage {
	return ControlMessage{Action: ActionEnabledChanged, Enabled: &enabled}
}

func StatsChanged(stats model.Stats) ControlMessage {
	return ControlMessage{Action: ActionStatsChanged, Stats: &stats}
}
