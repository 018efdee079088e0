package runtime

import (
	"context"
	"time"

	"github.com/aretw0/hybridqa/pkg/domain"
)

func (e *Engine) base(ctx context.Context, t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      t,
		RunID:     domain.RunIDFrom(ctx),
	}
}

func (e *Engine) emitRunStart(ctx context.Context, state domain.SharedState) {
	e.logger.Debug("workflow run start", "run_id", domain.RunIDFrom(ctx), "entry", e.graph.Entry)
	if e.hooks.OnRunStart != nil {
		e.hooks.OnRunStart(ctx, &domain.RunEvent{
			EventBase: e.base(ctx, domain.EventRunStart),
			Question:  state.Question,
		})
	}
}

func (e *Engine) emitRunEnd(ctx context.Context, exec *Execution, d time.Duration, err error) {
	if e.hooks.OnRunEnd != nil {
		e.hooks.OnRunEnd(ctx, &domain.RunEvent{
			EventBase: e.base(ctx, domain.EventRunEnd),
			Question:  exec.State.Question,
			Steps:     exec.Steps,
			Duration:  d,
			Err:       err,
		})
	}
}

func (e *Engine) emitNodeEnter(ctx context.Context, id domain.NodeID, step int) {
	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
			EventBase: e.base(ctx, domain.EventNodeEnter),
			NodeID:    id,
			Step:      step,
		})
	}
}

func (e *Engine) emitNodeLeave(ctx context.Context, id domain.NodeID, step int, changed []string, d time.Duration) {
	if e.hooks.OnNodeLeave != nil {
		e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
			EventBase: e.base(ctx, domain.EventNodeLeave),
			NodeID:    id,
			Step:      step,
			Changed:   changed,
			Duration:  d,
		})
	}
}

func (e *Engine) emitRoute(ctx context.Context, from, to domain.NodeID) {
	if e.hooks.OnRoute != nil {
		e.hooks.OnRoute(ctx, &domain.RouteEvent{
			EventBase: e.base(ctx, domain.EventRoute),
			From:      from,
			To:        to,
		})
	}
}
