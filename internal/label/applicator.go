package label

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"inboxtriage/internal/host"
	"inboxtriage/internal/model"
	"inboxtriage/pkg/logger"
	"inboxtriage/pkg/metrics"
)

// ErrLabelApplication is matched by errors the applicator logs.
var ErrLabelApplication = errors.New("label application failed")

// Applicator attaches labels to host views. Labeling is decoration: failures are
// logged and reported through the return value only.
type Applicator struct {
	logger *zap.Logger
}

func NewApplicator(logger *zap.Logger) *Applicator {
	return &Applicator{logger: logger}
}

// Apply returns true iff the host accepted the label.
func (a *Applicator) Apply(ctx context.Context, v host.View, spec model.LabelSpec) (applied bool) {
	log := logger.WithTrace(ctx, a.logger)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Label application panicked",
				zap.String("title", spec.Title),
				zap.Error(fmt.Errorf("%w: panic: %v", ErrLabelApplication, r)),
			)
			metrics.IncrementLabelApply(spec.Title, "failed")
			applied = false
		}
	}()

	if err := v.AddLabel(ctx, spec); err != nil {
		log.Warn("Label application failed",
			zap.String("title", spec.Title),
			zap.Error(fmt.Errorf("%w: %w", ErrLabelApplication, err)),
		)
		metrics.IncrementLabelApply(spec.Title, "failed")
		return false
	}

	metrics.IncrementLabelApply(spec.Title, "success")
	return true
}
