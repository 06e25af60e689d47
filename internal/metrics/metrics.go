package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector owns the Prometheus metrics for the bot's queues and limiters.
type Collector struct {
	updatesReceivedTotal  *prometheus.CounterVec
	updatesDroppedTotal   prometheus.Counter
	jobsTotal             *prometheus.CounterVec
	jobDuration           *prometheus.HistogramVec
	jobQueueDepth         prometheus.Gauge
	rateLimitDenialsTotal *prometheus.CounterVec
	pendingDenialsTotal   prometheus.Counter
}

// NewCollector registers the metrics on the default registry.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(nil)
}

// NewCollectorWithRegistry registers the metrics on a custom registry.
// A nil registry falls back to the global default; tests pass a fresh one.
func NewCollectorWithRegistry(registry *prometheus.Registry) *Collector {
	var factory promauto.Factory
	if registry == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	} else {
		factory = promauto.With(registry)
	}

	return &Collector{
		updatesReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_updates_received_total",
				Help: "Total number of Telegram updates accepted into the ingress queue",
			},
			[]string{"transport"},
		),

		updatesDroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bot_updates_dropped_total",
				Help: "Total number of updates dropped because the ingress queue was full",
			},
		),

		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_jobs_total",
				Help: "Total number of jobs processed by the job worker",
			},
			[]string{"kind", "status"},
		),

		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bot_job_duration_seconds",
				Help:    "Time spent executing jobs against Instagram",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		jobQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bot_job_queue_depth",
				Help: "Current number of jobs waiting in the queue",
			},
		),

		rateLimitDenialsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_rate_limit_denials_total",
				Help: "Total number of user actions denied by a rate window",
			},
			[]string{"limiter"},
		),

		pendingDenialsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bot_pending_denials_total",
				Help: "Total number of jobs refused because the user hit the pending cap",
			},
		),
	}
}

func (c *Collector) RecordUpdateReceived(transport string) {
	c.updatesReceivedTotal.WithLabelValues(transport).Inc()
}

func (c *Collector) RecordUpdateDropped() {
	c.updatesDroppedTotal.Inc()
}

func (c *Collector) RecordJob(kind, status string, duration time.Duration) {
	c.jobsTotal.WithLabelValues(kind, status).Inc()
	c.jobDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (c *Collector) SetJobQueueDepth(depth int) {
	c.jobQueueDepth.Set(float64(depth))
}

func (c *Collector) RecordRateLimitDenial(limiter string) {
	c.rateLimitDenialsTotal.WithLabelValues(limiter).Inc()
}

func (c *Collector) RecordPendingDenial() {
	c.pendingDenialsTotal.Inc()
}
