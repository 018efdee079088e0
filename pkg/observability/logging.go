package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/hybridqa/pkg/domain"
)

// LoggingHooks logs every lifecycle event. Node and route events are logged at
// debug level; run boundaries at info, or error when the run faulted.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_start", "run_id", e.RunID, "question", e.Question)
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "run_end",
					"run_id", e.RunID,
					"steps", e.Steps,
					"duration", e.Duration,
					"err", e.Err,
				)
				return
			}
			logger.InfoContext(ctx, "run_end", "run_id", e.RunID, "steps", e.Steps, "duration", e.Duration)
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "run_id", e.RunID, "node_id", e.NodeID, "step", e.Step)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave",
				"run_id", e.RunID,
				"node_id", e.NodeID,
				"step", e.Step,
				"changed", e.Changed,
				"duration", e.Duration,
			)
		},
		OnRoute: func(ctx context.Context, e *domain.RouteEvent) {
			logger.DebugContext(ctx, "route", "run_id", e.RunID, "from", e.From, "to", e.To)
		},
	}
}
