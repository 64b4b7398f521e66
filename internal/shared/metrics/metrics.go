package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	jobsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docflow_jobs_submitted_total",
		Help: "Total jobs accepted for processing",
	}, []string{"engine"})
	jobsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "docflow_jobs_started_total",
		Help: "Total jobs claimed by a worker",
	})
	jobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docflow_jobs_completed_total",
		Help: "Total jobs completed",
	}, []string{"engine"})
	jobsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docflow_jobs_failed_total",
		Help: "Total jobs failed",
	}, []string{"engine"})
	summariesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "docflow_summaries_failed_total",
		Help: "Total summarizer calls that failed or returned nothing usable",
	})
	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docflow_job_duration_seconds",
		Help:    "Job processing duration from claim to terminal status",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"engine"})
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "docflow_dispatch_queue_depth",
		Help: "Jobs waiting in the dispatch queue",
	})
	inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "docflow_dispatch_in_flight",
		Help: "Jobs currently being processed",
	})
)

func init() {
	registry.MustRegister(
		jobsSubmitted,
		jobsStarted,
		jobsCompleted,
		jobsFailed,
		summariesFailed,
		jobDuration,
		queueDepth,
		inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IncJobSubmitted increments the submitted counter.
func IncJobSubmitted(engine string) {
	jobsSubmitted.WithLabelValues(engine).Inc()
}

// IncJobStarted increments the started counter.
func IncJobStarted() {
	jobsStarted.Inc()
}

// IncJobCompleted increments the completed counter.
func IncJobCompleted(engine string) {
	jobsCompleted.WithLabelValues(engine).Inc()
}

// IncJobFailed increments the failed counter.
func IncJobFailed(engine string) {
	jobsFailed.WithLabelValues(engine).Inc()
}

// IncSummaryFailed increments the summarizer failure counter.
func IncSummaryFailed() {
	summariesFailed.Inc()
}

// ObserveJobDuration records a job duration.
func ObserveJobDuration(engine string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	jobDuration.WithLabelValues(engine).Observe(d.Seconds())
}

// SetQueueDepth records the dispatch queue length.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// AddInFlight adjusts the in-flight gauge.
func AddInFlight(delta int) {
	inFlight.Add(float64(delta))
}

// Registry exposes the registry for tests and custom exporters.
func Registry() *prometheus.Registry {
	return registry
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
