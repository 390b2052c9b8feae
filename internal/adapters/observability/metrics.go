package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poi", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "poi", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	Records = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poi", Name: "records_total", Help: "Raw records seen by the batch processor."},
		[]string{"format", "outcome"}, // outcome: accepted|rejected
	)
	Rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poi", Name: "rejections_total", Help: "Rejected records by reason."},
		[]string{"format", "reason"},
	)
	Batches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poi", Name: "batches_total", Help: "Processed batches."},
		[]string{"format", "status"}, // status: ok|error
	)
	BatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "poi", Name: "batch_duration_seconds",
			Help:    "Normalize + persist duration per batch.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)
	Jobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poi", Name: "jobs_total", Help: "File import jobs."},
		[]string{"format", "status"}, // status: submitted|submit_failed|skipped|succeeded|failed
	)
	StatusEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poi", Name: "status_events_total", Help: "Status store writes/reads/errors."},
		[]string{"store", "event"},
	)
)

// Serve exposes reg on addr in the background. An empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, Records, Rejections, Batches, BatchLatency, Jobs, StatusEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveRejection(format, reason string) {
	Records.WithLabelValues(format, "rejected").Inc()
	Rejections.WithLabelValues(format, reason).Inc()
}

func ObserveBatch(format string, accepted int, err error, dur time.Duration) {
	Records.WithLabelValues(format, "accepted").Add(float64(accepted))
	status := "ok"
	if err != nil {
		status = "error"
	}
	Batches.WithLabelValues(format, status).Inc()
	BatchLatency.WithLabelValues(format).Observe(dur.Seconds())
}

func ObserveJob(format, status string) {
	Jobs.WithLabelValues(format, status).Inc()
}

func ObserveStatus(store, event string) { // event: accept|start|batch|finish|get|error
	StatusEvents.WithLabelValues(store, event).Inc()
}
