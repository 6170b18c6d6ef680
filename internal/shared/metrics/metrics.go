package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	transitionsTotal  = newCounterVec("action")
	failuresTotal     = newCounterVec("reason")
	documentsIssued   = newCounterVec("kind")
	notifications     = newCounterVec("outcome")
	redirectsTotal    atomic.Uint64
	transitionLatency = newHistogram([]float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000})
)

// IncTransition counts a committed transition for action.
func IncTransition(action string) {
	transitionsTotal.Inc(action)
}

// IncTransitionFailure counts a failed transition by error reason.
func IncTransitionFailure(reason string) {
	failuresTotal.Inc(reason)
}

// IncDocumentIssued counts a committed document of kind.
func IncDocumentIssued(kind string) {
	documentsIssued.Inc(kind)
}

// IncNotification counts queue messages handled by the worker by outcome.
func IncNotification(outcome string) {
	notifications.Inc(outcome)
}

// IncGuardRedirect counts requests redirected to a job's canonical section.
func IncGuardRedirect() {
	redirectsTotal.Add(1)
}

// ObserveTransitionDurationMs records a transition duration in milliseconds.
func ObserveTransitionDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	transitionLatency.Observe(value)
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
	writeCounterVec(&buf, "job_transitions_total", "Committed job transitions", transitionsTotal)
	writeCounterVec(&buf, "job_transition_failures_total", "Failed job transitions", failuresTotal)
	writeCounterVec(&buf, "documents_issued_total", "Documents issued by committed transitions", documentsIssued)
	writeCounterVec(&buf, "notifications_handled_total", "Queue messages handled by the worker", notifications)
	writeCounter(&buf, "route_guard_redirects_total", "Requests redirected by the route guard", redirectsTotal.Load())
	writeHistogram(&buf, "job_transition_duration_ms", "Transition duration in milliseconds", transitionLatency.Snapshot())
	return buf.String()
}

type counterVec struct {
	label  string
	mu     sync.RWMutex
	values map[string]*atomic.Uint64
}

func newCounterVec(label string) *counterVec {
	return &counterVec{label: label, values: make(map[string]*atomic.Uint64)}
}

func (v *counterVec) Inc(value string) {
	v.mu.RLock()
	c, ok := v.values[value]
	v.mu.RUnlock()
	if !ok {
		v.mu.Lock()
		if c, ok = v.values[value]; !ok {
			c = &atomic.Uint64{}
			v.values[value] = c
		}
		v.mu.Unlock()
	}
	c.Add(1)
}

func (v *counterVec) snapshot() ([]string, map[string]uint64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.values))
	out := make(map[string]uint64, len(v.values))
	for k, c := range v.values {
		keys = append(keys, k)
		out[k] = c.Load()
	}
	sort.Strings(keys)
	return keys, out
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

// Observe records value in the first bucket that holds it; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeCounterVec(buf *bytes.Buffer, name, help string, v *counterVec) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys, values := v.snapshot()
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, v.label, k, values[k])
	}
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

// Since returns the milliseconds elapsed since start.
func Since(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
