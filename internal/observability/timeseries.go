package observability

import (
	"sync"
	"time"
)

// bucket accumulates counters and a latency sum and count (for an
// average) for one operation over one time window.
type bucket struct {
	start    time.Time
	requests int
	success  int
	errors   map[string]int
	latSum   float64
	latCount int
}

// TimeSeriesAggregator buckets operation counters into fixed-width
// windows (e.g. 5 minutes) for a bounded retention (e.g. 7 days), used
// to render dashboards without re-scanning raw events.
type TimeSeriesAggregator struct {
	mu         sync.Mutex
	bucketSize time.Duration
	retention  time.Duration
	buckets    map[string][]*bucket // op -> chronological buckets
	now        func() time.Time
}

// NewTimeSeriesAggregator creates an aggregator with the given bucket
// width and retention window.
func NewTimeSeriesAggregator(bucketSize, retention time.Duration) *TimeSeriesAggregator {
	return &TimeSeriesAggregator{
		bucketSize: bucketSize,
		retention:  retention,
		buckets:    map[string][]*bucket{},
		now:        time.Now,
	}
}

func (a *TimeSeriesAggregator) currentBucket(op string) *bucket {
	now := a.now()
	bs := a.buckets[op]
	if len(bs) > 0 {
		last := bs[len(bs)-1]
		if now.Sub(last.start) < a.bucketSize {
			return last
		}
	}
	b := &bucket{start: now.Truncate(a.bucketSize), errors: map[string]int{}}
	bs = append(bs, b)
	a.trim(op, bs)
	return b
}

func (a *TimeSeriesAggregator) trim(op string, bs []*bucket) {
	cutoff := a.now().Add(-a.retention)
	start := 0
	for start < len(bs) && bs[start].start.Before(cutoff) {
		start++
	}
	a.buckets[op] = bs[start:]
}

func (a *TimeSeriesAggregator) IncRequest(op string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentBucket(op).requests++
}

func (a *TimeSeriesAggregator) IncSuccess(op string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentBucket(op).success++
}

func (a *TimeSeriesAggregator) IncError(op, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentBucket(op).errors[reason]++
}

func (a *TimeSeriesAggregator) ObserveLatencyMS(op string, ms float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.currentBucket(op)
	b.latSum += ms
	b.latCount++
}

// BucketSnapshot is one time-series point for one operation.
type BucketSnapshot struct {
	Start        time.Time `json:"start"`
	Requests     int       `json:"requests"`
	Success      int       `json:"success"`
	AvgLatencyMS float64   `json:"avg_latency_ms"`
}

// Snapshot returns per-operation bucket series no older than maxAge.
func (a *TimeSeriesAggregator) Snapshot(maxAge time.Duration) map[string][]BucketSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	cutoff := a.now().Add(-maxAge)
	out := map[string][]BucketSnapshot{}
	for op, bs := range a.buckets {
		var series []BucketSnapshot
		for _, b := range bs {
			if b.start.Before(cutoff) {
				continue
			}
			avg := 0.0
			if b.latCount > 0 {
				avg = b.latSum / float64(b.latCount)
			}
			series = append(series, BucketSnapshot{Start: b.start, Requests: b.requests, Success: b.success, AvgLatencyMS: avg})
		}
		out[op] = series
	}
	return out
}

var globalTS *TimeSeriesAggregator

// SetTimeSeriesAggregator installs the global aggregator fed by
// RecordRequest/RecordSuccess/RecordError/ObserveLatency.
func SetTimeSeriesAggregator(a *TimeSeriesAggregator) { globalTS = a }

// GetTimeSeriesSnapshot returns the installed aggregator's snapshot, or
// nil if none is installed.
func GetTimeSeriesSnapshot(maxAge time.Duration) map[string][]BucketSnapshot {
	if globalTS == nil {
		return nil
	}
	return globalTS.Snapshot(maxAge)
}
