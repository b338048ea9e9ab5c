package observability

// MetricsRecorder records per-operation metrics. The services record
// place_bid, retract_bid and create_auction; the other lifecycle
// operations and the scheduler record none. Implementations must be
// cheap and non-blocking.
type MetricsRecorder interface {
	IncRequest(op string)
	IncSuccess(op string)
	IncError(op, reason string)
	ObserveLatencyMS(op string, ms float64)
}

type noopMetrics struct{}

func (noopMetrics) IncRequest(op string)                   {}
func (noopMetrics) IncSuccess(op string)                   {}
func (noopMetrics) IncError(op, reason string)              {}
func (noopMetrics) ObserveLatencyMS(op string, ms float64) {}

var metricsRecorder MetricsRecorder = noopMetrics{}

// SetMetricsRecorder wires a custom recorder. Passing nil is a no-op.
func SetMetricsRecorder(r MetricsRecorder) {
	if r != nil {
		metricsRecorder = r
	}
}

func RecordRequest(op string) {
	metricsRecorder.IncRequest(op)
	if globalTS != nil {
		globalTS.IncRequest(op)
	}
}

func RecordSuccess(op string) {
	metricsRecorder.IncSuccess(op)
	if globalTS != nil {
		globalTS.IncSuccess(op)
	}
}

func RecordError(op, reason string) {
	metricsRecorder.IncError(op, reason)
	if globalTS != nil {
		globalTS.IncError(op, reason)
	}
}

func ObserveLatency(op string, ms float64) {
	metricsRecorder.ObserveLatencyMS(op, ms)
	if globalTS != nil {
		globalTS.ObserveLatencyMS(op, ms)
	}
}
