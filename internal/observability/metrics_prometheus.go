package observability

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PrometheusMetricsHandler exposes a lightweight Prometheus text
// exposition of operation metrics using the in-memory
// TimeSeriesAggregator. The exposition format is hand-rolled text
// formatting rather than the prometheus client library: the metric
// surface is small and fixed, so pulling in the full client_golang
// registry/collector machinery would add a second metrics model to
// keep in sync with the in-memory aggregator this handler reads.
// See DESIGN.md.
//
// Supported query params:
//   - window: Go duration (e.g. 5m, 1h, 24h). Defaults to 1h.
func PrometheusMetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		winStr := r.URL.Query().Get("window")
		if winStr == "" {
			winStr = "1h"
		}
		window, err := time.ParseDuration(winStr)
		if err != nil || window <= 0 {
			window = time.Hour
		}

		series := GetTimeSeriesSnapshot(window)
		ops := make([]string, 0, len(series))
		for op := range series {
			ops = append(ops, op)
		}
		sort.Strings(ops)

		var sb strings.Builder
		sb.WriteString("# HELP auctionhouse_operation_requests_total Total operation attempts\n")
		sb.WriteString("# TYPE auctionhouse_operation_requests_total counter\n")
		for _, op := range ops {
			total := 0
			success := 0
			for _, b := range series[op] {
				total += b.Requests
				success += b.Success
			}
			fmt.Fprintf(&sb, "auctionhouse_operation_requests_total{operation=%q} %s\n", op, strconv.Itoa(total))
			fmt.Fprintf(&sb, "auctionhouse_operation_success_total{operation=%q} %s\n", op, strconv.Itoa(success))
		}

		for _, m := range GetMetricsSnapshot() {
			fmt.Fprintf(&sb, "auctionhouse_operation_latency_p95_ms{operation=%q} %s\n", m.Operation, strconv.FormatFloat(m.LatencyP95, 'f', 3, 64))
			fmt.Fprintf(&sb, "auctionhouse_operation_latency_p99_ms{operation=%q} %s\n", m.Operation, strconv.FormatFloat(m.LatencyP99, 'f', 3, 64))
		}

		w.Write([]byte(sb.String()))
	}
}
