package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	contractAnalysisStartedTotal   atomic.Uint64
	contractAnalysisCompletedTotal atomic.Uint64
	contractAnalysisFailedTotal    atomic.Uint64

	notificationSentTotal   atomic.Uint64
	notificationFailedTotal atomic.Uint64
	notificationSweepsTotal atomic.Uint64

	contractAnalysisDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 90000})
)

// IncContractAnalysisStarted increments the started counter.
func IncContractAnalysisStarted() {
	contractAnalysisStartedTotal.Add(1)
}

// IncContractAnalysisCompleted increments the completed counter.
func IncContractAnalysisCompleted() {
	contractAnalysisCompletedTotal.Add(1)
}

// IncContractAnalysisFailed increments the failed counter.
func IncContractAnalysisFailed() {
	contractAnalysisFailedTotal.Add(1)
}

// ObserveContractAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveContractAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	contractAnalysisDuration.Observe(value)
}

// IncNotificationSent increments the delivered notifications counter.
func IncNotificationSent() {
	notificationSentTotal.Add(1)
}

// IncNotificationFailed increments the failed deliveries counter.
func IncNotificationFailed() {
	notificationFailedTotal.Add(1)
}

// IncNotificationSweeps increments the sweep counter.
func IncNotificationSweeps() {
	notificationSweepsTotal.Add(1)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "contract_analysis_started_total", "Total contract analyses started", contractAnalysisStartedTotal.Load())
	writeCounter(&buf, "contract_analysis_completed_total", "Total contract analyses completed", contractAnalysisCompletedTotal.Load())
	writeCounter(&buf, "contract_analysis_failed_total", "Total contract analyses failed", contractAnalysisFailedTotal.Load())
	writeHistogram(&buf, "contract_analysis_duration_ms", "Contract analysis duration in milliseconds", contractAnalysisDuration.Snapshot())
	writeCounter(&buf, "notification_sent_total", "Total notifications delivered", notificationSentTotal.Load())
	writeCounter(&buf, "notification_failed_total", "Total notification delivery failures", notificationFailedTotal.Load())
	writeCounter(&buf, "notification_sweeps_total", "Total notification sweeps run", notificationSweepsTotal.Load())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket whose bound holds it; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
