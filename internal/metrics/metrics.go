package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_jobs_dispatched_total",
		Help: "The total number of jobs created and enqueued by campaign dispatch",
	})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_jobs_processed_total",
		Help: "The total number of processed jobs",
	}, []string{"status"}) // status: sent, failed

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "campaign_job_duration_seconds",
		Help:    "Duration of job processing.",
		Buckets: prometheus.LinearBuckets(0.1, 0.2, 10),
	})

	AlertsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_alerts_delivered_total",
		Help: "The total number of webhook alerts attempted",
	}, []string{"kind", "outcome"}) // kind: job_failure, campaign_complete
)

// Handler exposes the Prometheus registry for mounting on a router.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer runs a standalone HTTP server for /metrics.
func StartMetricsServer(addr string) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Println("⚠️ metrics server failed:", err)
		}
	}()
}
