package observability

import (
	"sort"
	"sync"
)

// OperationMetricsSnapshot is a read-only view of per-operation metrics.
type OperationMetricsSnapshot struct {
	Operation  string         `json:"operation"`
	Requests   int            `json:"requests"`
	Success    int            `json:"success"`
	Errors     map[string]int `json:"errors,omitempty"`
	LatencyP50 float64        `json:"latency_p50_ms"`
	LatencyP95 float64        `json:"latency_p95_ms"`
	LatencyP99 float64        `json:"latency_p99_ms"`
}

// RollingMetricsRecorder is an in-process recorder keeping a rolling
// window of latency observations per operation and simple percentiles.
// Not for high-QPS production use; adequate for a single auction
// engine instance's dashboards.
type RollingMetricsRecorder struct {
	mu sync.Mutex

	req  map[string]int
	succ map[string]int
	err  map[string]map[string]int

	lat map[string][]float64

	windowSize int
}

// NewRollingMetricsRecorder creates a recorder with a per-operation
// rolling window size. windowSize <= 0 defaults to 512.
func NewRollingMetricsRecorder(windowSize int) *RollingMetricsRecorder {
	if windowSize <= 0 {
		windowSize = 512
	}
	return &RollingMetricsRecorder{
		req:        map[string]int{},
		succ:       map[string]int{},
		err:        map[string]map[string]int{},
		lat:        map[string][]float64{},
		windowSize: windowSize,
	}
}

func (r *RollingMetricsRecorder) IncRequest(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.req[op]++
}

func (r *RollingMetricsRecorder) IncSuccess(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succ[op]++
}

func (r *RollingMetricsRecorder) IncError(op, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err[op] == nil {
		r.err[op] = map[string]int{}
	}
	r.err[op][reason]++
}

func (r *RollingMetricsRecorder) ObserveLatencyMS(op string, ms float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	window := r.lat[op]
	window = append(window, ms)
	if len(window) > r.windowSize {
		window = window[len(window)-r.windowSize:]
	}
	r.lat[op] = window
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Snapshot returns a point-in-time view of all recorded operations.
func (r *RollingMetricsRecorder) Snapshot() []OperationMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := map[string]bool{}
	for op := range r.req {
		ops[op] = true
	}
	for op := range r.succ {
		ops[op] = true
	}
	for op := range r.lat {
		ops[op] = true
	}

	out := make([]OperationMetricsSnapshot, 0, len(ops))
	for op := range ops {
		lat := append([]float64(nil), r.lat[op]...)
		sort.Float64s(lat)
		out = append(out, OperationMetricsSnapshot{
			Operation:  op,
			Requests:   r.req[op],
			Success:    r.succ[op],
			Errors:     r.err[op],
			LatencyP50: percentile(lat, 0.50),
			LatencyP95: percentile(lat, 0.95),
			LatencyP99: percentile(lat, 0.99),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

var globalRolling *RollingMetricsRecorder

// GetMetricsSnapshot returns the current snapshot if a
// RollingMetricsRecorder is installed, else nil.
func GetMetricsSnapshot() []OperationMetricsSnapshot {
	if globalRolling == nil {
		return nil
	}
	return globalRolling.Snapshot()
}

// SetRollingMetricsRecorder installs r both as the active
// MetricsRecorder and as the source for GetMetricsSnapshot.
func SetRollingMetricsRecorder(r *RollingMetricsRecorder) {
	globalRolling = r
	SetMetricsRecorder(r)
}
