// Package metrics instruments the job-orchestration core with Prometheus
// collectors: one package-level vector per signal, registered against the
// default registry at init time and served over /metrics via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ifcjobs_jobs_enqueued_total",
		Help: "Total jobs enqueued, by queue.",
	}, []string{"queue"})

	JobsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ifcjobs_jobs_started_total",
		Help: "Total jobs popped off a queue and handed to a handler.",
	}, []string{"queue"})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ifcjobs_jobs_completed_total",
		Help: "Total jobs that reached the finished terminal status.",
	}, []string{"queue"})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ifcjobs_jobs_failed_total",
		Help: "Total jobs that reached the failed or timed_out terminal status, by error kind.",
	}, []string{"queue", "error_kind"})

	JobsTimedOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ifcjobs_jobs_timed_out_total",
		Help: "Total jobs that exceeded their declared timeout.",
	}, []string{"queue"})

	BrokerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ifcjobs_broker_errors_total",
		Help: "Total broker-transport errors observed by a worker runtime.",
	}, []string{"queue"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ifcjobs_job_duration_seconds",
		Help:    "Time from handler start to a terminal finished status.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900},
	}, []string{"queue"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ifcjobs_queue_depth",
		Help: "Most recently observed depth of a queue.",
	}, []string{"queue"})

	WorkersBusy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ifcjobs_workers_busy",
		Help: "1 while a worker runtime is executing a handler, 0 while idle.",
	}, []string{"queue"})

	TokensMinted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ifcjobs_download_tokens_minted_total",
		Help: "Total artifact download tokens minted.",
	}, []string{"kind"})

	TokensRedeemed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ifcjobs_download_tokens_redeemed_total",
		Help: "Total artifact download token redemptions, by outcome.",
	}, []string{"outcome"})

	AdmissionDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ifcjobs_admission_denied_total",
		Help: "Total requests rejected by the admission middleware, by reason.",
	}, []string{"reason"})
)
