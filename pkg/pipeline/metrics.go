package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("brushcsg.pipeline")

var (
	// passDuration measures whole evaluation passes.
	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "brushcsg",
		Subsystem: "pipeline",
		Name:      "pass_duration_seconds",
		Help:      "Duration of evaluation passes",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	// modelsEvaluated counts models that went through the CSG phases.
	modelsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brushcsg",
		Subsystem: "pipeline",
		Name:      "models_evaluated_total",
		Help:      "Models evaluated",
	})

	// modelFailures counts failed model evaluations.
	// Labels: kind (structural, capacity, consistency, internal)
	modelFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brushcsg",
		Subsystem: "pipeline",
		Name:      "model_failures_total",
		Help:      "Failed model evaluations by kind",
	}, []string{"kind"})

	// brushesRouted counts routing tables requested.
	brushesRouted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brushcsg",
		Subsystem: "pipeline",
		Name:      "brushes_routed_total",
		Help:      "Brushes routed",
	})

	// surfacesGenerated counts brushes whose surfaces were regenerated or
	// reused from the previous pass.
	// Labels: result (generated, reused)
	surfacesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brushcsg",
		Subsystem: "pipeline",
		Name:      "brush_surfaces_total",
		Help:      "Brush surface generations by result",
	}, []string{"result"})

	// unresolvedFragments counts fragments excluded for unresolved routes.
	unresolvedFragments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brushcsg",
		Subsystem: "pipeline",
		Name:      "unresolved_fragments_total",
		Help:      "Fragments excluded because their route was unresolved",
	})
)
