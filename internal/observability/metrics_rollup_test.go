package observability

import "testing"

func TestRollingMetricsRecorder_Snapshot(t *testing.T) {
	r := NewRollingMetricsRecorder(16)
	r.IncRequest("place_bid")
	r.IncRequest("place_bid")
	r.IncSuccess("place_bid")
	r.IncError("place_bid", "bid_too_low")
	r.ObserveLatencyMS("place_bid", 10)
	r.ObserveLatencyMS("place_bid", 20)
	r.ObserveLatencyMS("place_bid", 30)

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(snap))
	}
	s := snap[0]
	if s.Requests != 2 || s.Success != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.Errors["bid_too_low"] != 1 {
		t.Errorf("expected 1 bid_too_low error, got %+v", s.Errors)
	}
	if s.LatencyP50 == 0 {
		t.Errorf("expected non-zero p50 latency")
	}
}

func TestRollingMetricsRecorder_WindowEviction(t *testing.T) {
	r := NewRollingMetricsRecorder(2)
	r.ObserveLatencyMS("op", 1)
	r.ObserveLatencyMS("op", 2)
	r.ObserveLatencyMS("op", 3)
	if len(r.lat["op"]) != 2 {
		t.Fatalf("expected window capped at 2, got %d", len(r.lat["op"]))
	}
}
