package triage

import (
	"context"
	"time"

	"github.com/linnemanlabs/sehat/internal/notify"
	"github.com/linnemanlabs/sehat/internal/patient"
	"github.com/linnemanlabs/sehat/internal/severity"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	TriagesTotal       *prometheus.CounterVec
	DecisionsTotal     *prometheus.CounterVec
	EmergencyOverrides prometheus.Counter
	FallbackRoutings   *prometheus.CounterVec
	SeverityScore      prometheus.Histogram
	ModelCallDuration  prometheus.Histogram
	ModelFailures      prometheus.Counter
	WorkerSelections   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	DeliveryAttempts   *prometheus.CounterVec
	DeliveryDuration   *prometheus.HistogramVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sehat_triages_total",
			Help: "Total triage submissions by outcome.",
		}, []string{"outcome"}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sehat_decisions_total",
			Help: "Total routing decisions by facility tier and priority.",
		}, []string{"tier", "priority"}),
		EmergencyOverrides: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sehat_emergency_overrides_total",
			Help: "Total decisions forced to emergency by keyword detection.",
		}),
		FallbackRoutings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sehat_fallback_routings_total",
			Help: "Total fallback routings by original and substituted tier.",
		}, []string{"from", "to"}),
		SeverityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sehat_severity_score",
			Help:    "Distribution of final severity scores.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 .. 100
		}),
		ModelCallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sehat_model_call_duration_seconds",
			Help:    "Duration of severity model calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
		ModelFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sehat_model_failures_total",
			Help: "Total severity model calls that returned an error.",
		}),
		WorkerSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sehat_worker_selections_total",
			Help: "Total worker selection attempts by outcome.",
		}, []string{"outcome"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sehat_notifications_total",
			Help: "Total completed notification deliveries by final status.",
		}, []string{"status"}),
		DeliveryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sehat_delivery_attempts_total",
			Help: "Total per-channel delivery attempts by outcome.",
		}, []string{"channel", "outcome"}),
		DeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sehat_delivery_duration_seconds",
			Help:    "Duration of individual delivery attempts in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"channel"}),
	}

	reg.MustRegister(
		m.TriagesTotal,
		m.DecisionsTotal,
		m.EmergencyOverrides,
		m.FallbackRoutings,
		m.SeverityScore,
		m.ModelCallDuration,
		m.ModelFailures,
		m.WorkerSelections,
		m.NotificationsTotal,
		m.DeliveryAttempts,
		m.DeliveryDuration,
	)

	return m
}

// DispatchHooks returns notification delivery hooks that record the
// corresponding metrics.
func (m *Metrics) DispatchHooks() notify.DispatchHooks {
	return notify.DispatchHooks{
		OnAttempt: func(channel string, duration float64, failed bool) {
			outcome := "success"
			if failed {
				outcome = "failure"
			}
			m.DeliveryAttempts.WithLabelValues(channel, outcome).Inc()
			m.DeliveryDuration.WithLabelValues(channel).Observe(duration)
		},
		OnComplete: func(status notify.Status) {
			m.NotificationsTotal.WithLabelValues(string(status)).Inc()
		},
	}
}

// ObserveProvider wraps a severity model provider so call durations and
// failures are recorded. A nil metrics returns the provider unwrapped.
func ObserveProvider(p severity.ModelProvider, m *Metrics) severity.ModelProvider {
	if m == nil {
		return p
	}
	return &observedProvider{inner: p, metrics: m}
}

type observedProvider struct {
	inner   severity.ModelProvider
	metrics *Metrics
}

func (p *observedProvider) Assess(ctx context.Context, symptoms []string, pctx *patient.Context) (*severity.ModelResult, error) {
	start := time.Now()
	res, err := p.inner.Assess(ctx, symptoms, pctx)
	p.metrics.ModelCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.ModelFailures.Inc()
	}
	return res, err
}
