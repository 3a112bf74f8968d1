// Package metrics holds the Prometheus collectors and OpenTelemetry tracer
// used across memv2: lesson lifecycle counts, retrieval lane hits,
// promotion/suppression/archival transitions, validation retry events,
// referee verdicts, and step-loop session outcomes.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every Prometheus collector memv2 registers. A process
// normally builds exactly one via New and shares it across the step loop,
// the lesson store, the retriever, and the promoter.
type Registry struct {
	registry *prometheus.Registry

	LessonsByStatus *prometheus.GaugeVec
	LessonUpserts   *prometheus.CounterVec

	RetrievalLaneHits   *prometheus.CounterVec
	RetrievalLatency    *prometheus.HistogramVec

	PromoterTransitions *prometheus.CounterVec

	ValidationRetries       *prometheus.CounterVec
	ValidationRetryCapped   prometheus.Counter

	RefereeVerdicts *prometheus.CounterVec

	SessionOutcomes *prometheus.CounterVec
	SessionSteps    prometheus.Histogram
	SessionDuration prometheus.Histogram
}

var (
	sharedOnce sync.Once
	shared     *Registry
)

// New builds a Registry backed by its own prometheus.Registry, grounded on
// the teacher-pack's NewMetrics() pattern (promauto registration against a
// dedicated registry rather than the global one, so a process can run more
// than one Registry in tests without collector-already-registered panics).
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,

		LessonsByStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "memv2_lessons_by_status",
				Help: "Current number of lessons in the store by lifecycle status.",
			},
			[]string{"domain_key", "status"},
		),
		LessonUpserts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memv2_lesson_upserts_total",
				Help: "Total lesson upserts, split by whether the upsert created a new lesson or merged into an existing one.",
			},
			[]string{"domain_key", "outcome"},
		),

		RetrievalLaneHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memv2_retrieval_lane_hits_total",
				Help: "Total lessons returned by the retriever, split by lane and retrieval phase.",
			},
			[]string{"lane", "phase"},
		),
		RetrievalLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memv2_retrieval_duration_seconds",
				Help:    "Retriever call latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),

		PromoterTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memv2_promoter_transitions_total",
				Help: "Total lesson lifecycle transitions applied by the promoter.",
			},
			[]string{"to_status"},
		),

		ValidationRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memv2_validation_retries_total",
				Help: "Total tool-call shape validation retries issued by the step loop.",
			},
			[]string{"domain_key"},
		),
		ValidationRetryCapped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "memv2_validation_retry_capped_total",
				Help: "Total times the validation retry cap was hit, forcing a reflection turn.",
			},
		),

		RefereeVerdicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memv2_referee_verdicts_total",
				Help: "Total referee verdicts, split by final verdict and evaluation source.",
			},
			[]string{"verdict", "eval_source"},
		),

		SessionOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memv2_session_outcomes_total",
				Help: "Total step-loop sessions, split by domain and termination reason.",
			},
			[]string{"domain_key", "reason"},
		),
		SessionSteps: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memv2_session_steps",
				Help:    "Number of turns taken per session.",
				Buckets: prometheus.LinearBuckets(1, 5, 10),
			},
		),
		SessionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memv2_session_duration_seconds",
				Help:    "Wall-clock duration of a session.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}
}

// Shared returns a process-wide Registry, building it on first use. Most
// callers (the CLI, long-running harnesses) want this; tests that need
// isolated collectors should call New directly instead.
func Shared() *Registry {
	sharedOnce.Do(func() { shared = New() })
	return shared
}

// Handler returns the HTTP handler to mount at the configured listen
// address's /metrics path.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
