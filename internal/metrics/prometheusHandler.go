package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of jobs in queue",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var crawledDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "crawler_documents_total",
	Help: "Documents seen by the crawler labelled by category and outcome",
}, []string{"category", "outcome"})

var ingestedDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_documents_total",
	Help: "Ingestion attempts labelled by outcome",
}, []string{"outcome"})

var chunksWritten = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingest_chunks_written_total",
	Help: "Chunks written to the vector store",
})

var schedulerPhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "scheduler_phase",
	Help: "1 for the phase the update scheduler is currently in",
}, []string{"phase"})

var cycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "scheduler_cycle_duration_seconds",
	Help:    "Duration of update cycles",
	Buckets: []float64{10, 30, 60, 300, 900, 1800, 3600},
}, []string{"result"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func CountCrawledDocument(category string, outcome string) {
	crawledDocuments.WithLabelValues(category, outcome).Inc()
}

func CountIngestion(outcome string, chunks int) {
	ingestedDocuments.WithLabelValues(outcome).Inc()
	if chunks > 0 {
		chunksWritten.Add(float64(chunks))
	}
}

// SetSchedulerPhase flips the phase gauge so exactly one label reads 1.
func SetSchedulerPhase(current string, all ...string) {
	for _, p := range all {
		schedulerPhase.WithLabelValues(p).Set(0)
	}
	schedulerPhase.WithLabelValues(current).Set(1)
}

func CaptureCycleDuration(result string, timeElapsed time.Duration) {
	cycleDuration.WithLabelValues(result).Observe(timeElapsed.Seconds())
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "query_duration_seconds",
	Help:    "Total time spent answering a question.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
