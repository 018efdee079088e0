package observability

import (
	"context"
	"errors"
	"strconv"

	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hybridqa"

// Metrics holds the collectors fed by lifecycle hooks and finished records.
type Metrics struct {
	Runs         *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	NodeVisits   *prometheus.CounterVec
	NodeDuration *prometheus.HistogramVec
	Routes       *prometheus.CounterVec
	Answers      *prometheus.CounterVec
	Repairs      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered on reg are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Workflow runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a workflow run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits.",
		}, []string{"node_id"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of node executions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"node_id"}),
		Routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_total",
			Help:      "Transitions taken between nodes.",
		}, []string{"from", "to"}),
		Answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answered questions by strategy and confidence.",
		}, []string{"strategy", "confidence"}),
		Repairs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "repair_passes",
			Help:      "Repair passes used per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}),
	}

	var err error
	if m.Runs, err = registerOrReuse(reg, m.Runs); err != nil {
		return nil, err
	}
	if m.RunDuration, err = registerOrReuse(reg, m.RunDuration); err != nil {
		return nil, err
	}
	if m.NodeVisits, err = registerOrReuse(reg, m.NodeVisits); err != nil {
		return nil, err
	}
	if m.NodeDuration, err = registerOrReuse(reg, m.NodeDuration); err != nil {
		return nil, err
	}
	if m.Routes, err = registerOrReuse(reg, m.Routes); err != nil {
		return nil, err
	}
	if m.Answers, err = registerOrReuse(reg, m.Answers); err != nil {
		return nil, err
	}
	if m.Repairs, err = registerOrReuse(reg, m.Repairs); err != nil {
		return nil, err
	}
	return m, nil
}

func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

// Hooks returns lifecycle hooks that update the run, node and route collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "fault"
			}
			m.Runs.WithLabelValues(outcome).Inc()
			m.RunDuration.Observe(e.Duration.Seconds())
		},
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(string(e.NodeID)).Inc()
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeDuration.WithLabelValues(string(e.NodeID)).Observe(e.Duration.Seconds())
		},
		OnRoute: func(_ context.Context, e *domain.RouteEvent) {
			m.Routes.WithLabelValues(string(e.From), string(e.To)).Inc()
		},
	}
}

// ObserveRecord counts a finished answer.
func (m *Metrics) ObserveRecord(rec *domain.RunRecord) {
	if rec == nil {
		return
	}
	m.Answers.WithLabelValues(string(rec.Strategy), strconv.FormatFloat(rec.Output.Confidence, 'f', 1, 64)).Inc()
	m.Repairs.Observe(float64(rec.RepairCount))
}
