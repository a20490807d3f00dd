package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// ActionRouter dispatches bus messages by their "action" field.
type ActionRouter struct {
	routes map[string]MessageHandler
	logger *zap.Logger
}

func NewActionRouter(logger *zap.Logger) *ActionRouter {
	return &ActionRouter{
		routes: make(map[string]MessageHandler),
		logger: logger,
	}
}

func (r *ActionRouter) Register(action string, h MessageHandler) {
	r.routes[action] = h
}

// Handle is a MessageHandler. Unknown actions are ignored: other contexts share the
// exchange and publish events this context does not care about.
func (r *ActionRouter) Handle(ctx context.Context, data json.RawMessage) (err error) {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode action: %w", err)
	}

	h, ok := r.routes[envelope.Action]
	if !ok {
		r.logger.Debug("No handler for action", zap.String("action", envelope.Action))
		return nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Action handler panic recovered",
				zap.String("action", envelope.Action),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("action %s panicked: %v", envelope.Action, rec)
		}
	}()

	return h(ctx, data)
}
