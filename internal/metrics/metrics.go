// ============================================================================
// Batchfeed Metrics - Prometheus instrumentation
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Function: Collects generator events and exposes them for Prometheus
//
// Metrics:
//
//   1. Counters:
//      - batchfeed_batches_total: batches delivered
//      - batchfeed_samples_total: samples delivered
//      - batchfeed_files_read_total: files read successfully
//      - batchfeed_read_retries_total: waits between read attempts
//      - batchfeed_read_failures_total: files that exhausted their attempts
//      - batchfeed_epochs_total: epochs started
//
//   2. Histograms:
//      - batchfeed_file_read_seconds: time from first attempt to success
//      - batchfeed_file_read_attempts: attempts needed per successful read
//      - batchfeed_prefetch_wait_seconds: time GetBatch blocked on the reader
//
//   3. Gauges:
//      - batchfeed_buffered_samples: samples held in the active buffer
//
// Example queries:
//
//   # samples per second
//   rate(batchfeed_samples_total[1m])
//
//   # share of batches that had to wait for I/O
//   rate(batchfeed_prefetch_wait_seconds_count[5m]) / rate(batchfeed_batches_total[5m])
//
// HTTP endpoint:
//   /metrics, default port 9090
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ChuLiYu/batchfeed/internal/generator"
)

var _ generator.Recorder = (*Collector)(nil)

// Collector is a Prometheus backed generator.Recorder.
type Collector struct {
	batches      prometheus.Counter
	samples      prometheus.Counter
	filesRead    prometheus.Counter
	readRetries  prometheus.Counter
	readFailures prometheus.Counter
	epochs       prometheus.Counter

	fileReadTime *prometheus.HistogramVec
	readAttempts prometheus.Histogram
	prefetchWait prometheus.Histogram

	buffered prometheus.Gauge
}

// NewCollector creates the collector and registers it with the default
// registerer.
func NewCollector() *Collector {
	c := &Collector{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchfeed_batches_total",
			Help: "Total number of batches delivered",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchfeed_samples_total",
			Help: "Total number of samples delivered",
		}),
		filesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchfeed_files_read_total",
			Help: "Total number of files read successfully",
		}),
		readRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchfeed_read_retries_total",
			Help: "Total number of read attempts that were retried",
		}),
		readFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchfeed_read_failures_total",
			Help: "Total number of files that could not be read within their attempt budget",
		}),
		epochs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchfeed_epochs_total",
			Help: "Total number of epochs started",
		}),
		fileReadTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batchfeed_file_read_seconds",
			Help:    "Time to read one file, retries included",
			Buckets: prometheus.DefBuckets,
		}, []string{"retried"}),
		readAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "batchfeed_file_read_attempts",
			Help:    "Attempts needed per successful file read",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		prefetchWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "batchfeed_prefetch_wait_seconds",
			Help:    "Time a batch request blocked on the background reader",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batchfeed_buffered_samples",
			Help: "Samples currently held in the active buffer",
		}),
	}

	prometheus.MustRegister(c.batches)
	prometheus.MustRegister(c.samples)
	prometheus.MustRegister(c.filesRead)
	prometheus.MustRegister(c.readRetries)
	prometheus.MustRegister(c.readFailures)
	prometheus.MustRegister(c.epochs)
	prometheus.MustRegister(c.fileReadTime)
	prometheus.MustRegister(c.readAttempts)
	prometheus.MustRegister(c.prefetchWait)
	prometheus.MustRegister(c.buffered)

	return c
}

// RecordFileRead records a successful read.
func (c *Collector) RecordFileRead(d time.Duration, attempts int) {
	c.filesRead.Inc()
	retried := "false"
	if attempts > 1 {
		retried = "true"
	}
	c.fileReadTime.WithLabelValues(retried).Observe(d.Seconds())
	c.readAttempts.Observe(float64(attempts))
}

func (c *Collector) RecordReadRetry() {
	c.readRetries.Inc()
}

func (c *Collector) RecordReadFailure() {
	c.readFailures.Inc()
}

// RecordBatch records one delivered batch of the given size.
func (c *Collector) RecordBatch(samples int) {
	c.batches.Inc()
	c.samples.Add(float64(samples))
}

func (c *Collector) RecordPrefetchWait(wait time.Duration) {
	c.prefetchWait.Observe(wait.Seconds())
}

func (c *Collector) SetBufferedSamples(n int) {
	c.buffered.Set(float64(n))
}

func (c *Collector) RecordEpoch() {
	c.epochs.Inc()
}

// Handler returns the HTTP handler serving the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer serves /metrics on port. It blocks until the server fails.
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
