package api

import (
	"net/http"
	"time"

	"github.com/rivalapexmediation/auctionhouse/internal/geoaudit"
	"github.com/rivalapexmediation/auctionhouse/internal/observability"
)

// GeoAuditMiddleware captures the requester's geolocation into the
// in-memory debugger for every request it wraps, recording the request
// path, country and city in the audit event's details. Optional: wired
// only when an Enricher is configured.
func GeoAuditMiddleware(enricher *geoaudit.Enricher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := enricher.Lookup(clientIP(r))
			observability.Capture(observability.AuditEvent{
				Operation: "http_request",
				Outcome:   "received",
				CreatedAt: time.Now(),
				Details: map[string]any{
					"path":    r.URL.Path,
					"country": loc.CountryCode,
					"city":    loc.City,
				},
			})
			next.ServeHTTP(w, r)
		})
	}
}
