package metrics

import (
	"errors"
	"time"

	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/pipeline"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slingshot_sessions_started_total",
			Help: "Total number of pipeline runs started",
		},
		[]string{"mode"},
	)

	SessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slingshot_sessions_finished_total",
			Help: "Total number of pipeline runs finished",
		},
		[]string{"mode", "status"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slingshot_sessions_active",
			Help: "Pipeline runs currently in flight",
		},
	)

	SessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slingshot_session_duration_seconds",
			Help:    "Wall time from session creation to its terminal status",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"mode", "status"},
	)

	// Step metrics
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slingshot_step_duration_seconds",
			Help:    "Step execution time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode", "step_type"},
	)

	StepConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slingshot_step_confidence",
			Help:    "Confidence of emitted steps",
			Buckets: []float64{0.1, 0.3, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"step_type"},
	)

	// Tool metrics
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slingshot_tool_calls_total",
			Help: "Tool invocations by outcome",
		},
		[]string{"tool", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slingshot_tool_duration_seconds",
			Help:    "Tool call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
)

// Observer records pipeline lifecycle metrics.
type Observer struct{}

var _ pipeline.Observer = Observer{}

func (Observer) SessionStarted(snap domain.Snapshot) {
	SessionsStarted.WithLabelValues(string(snap.Mode)).Inc()
	SessionsActive.Inc()
}

func (Observer) StepEmitted(_ string, mode domain.Mode, step domain.ThoughtStep, elapsed time.Duration) {
	StepDuration.WithLabelValues(string(mode), string(step.StepType)).Observe(elapsed.Seconds())
	StepConfidence.WithLabelValues(string(step.StepType)).Observe(step.Confidence)
}

func (Observer) SessionFinished(snap domain.Snapshot) {
	SessionsActive.Dec()
	SessionsFinished.WithLabelValues(string(snap.Mode), string(snap.Status)).Inc()
	if !snap.CreatedAt.IsZero() {
		SessionDuration.WithLabelValues(string(snap.Mode), string(snap.Status)).Observe(time.Since(snap.CreatedAt).Seconds())
	}
}

// ObserveTool matches tool.Observer.
func ObserveTool(name string, elapsed time.Duration, err error) {
	status := domain.ToolSucceeded
	var failure *domain.ToolFailure
	switch {
	case errors.As(err, &failure) && failure.TimedOut:
		status = domain.ToolTimedOut
	case err != nil:
		status = domain.ToolFailed
	}
	ToolCalls.WithLabelValues(name, status).Inc()
	ToolDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
