// Package observability provides the tracing, metrics, and debugging
// stack (Tracer/Span, MetricsRecorder, TimeSeriesAggregator, Debugger,
// SLO), keyed by operation name. Metrics are recorded for place_bid,
// retract_bid and create_auction; PlaceBid is the only operation that
// opens a span (auctionhouse.bid.place).
package observability

import "context"

// Span represents an in-flight tracing span. Implementations must be
// lightweight and safe to call from the bidding hot path.
type Span interface {
	End()
	SetAttr(key, val string)
}

// Tracer starts spans. The default is a no-op so tracing is opt-in.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, Span)
}

type noopSpan struct{}

func (noopSpan) End()                    {}
func (noopSpan) SetAttr(key, val string) {}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, Span) {
	return ctx, noopSpan{}
}

var globalTracer Tracer = noopTracer{}

// SetTracer installs a custom tracer. Passing nil is a no-op.
func SetTracer(t Tracer) {
	if t != nil {
		globalTracer = t
	}
}

// StartSpan starts a span on the globally installed tracer.
func StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, Span) {
	return globalTracer.StartSpan(ctx, name, attrs)
}
