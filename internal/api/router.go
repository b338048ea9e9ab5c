package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rivalapexmediation/auctionhouse/internal/config"
	"github.com/rivalapexmediation/auctionhouse/internal/geoaudit"
	"github.com/rivalapexmediation/auctionhouse/internal/observability"
)

// NewRouter builds the full HTTP surface. enricher may be nil when
// geo audit enrichment is disabled.
func NewRouter(h *Handlers, cfg *config.Config, enricher *geoaudit.Enricher) *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware)
	r.Use(RateLimitMiddleware(cfg.MaxRequestsPerMinute))
	if enricher != nil {
		r.Use(GeoAuditMiddleware(enricher))
	}

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	r.HandleFunc("/auctions", h.CreateAuction).Methods(http.MethodPost)
	r.HandleFunc("/auctions", h.ListAuctions).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id}", h.GetAuction).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id}", h.UpdateAuction).Methods(http.MethodPut)
	r.HandleFunc("/auctions/{id}", h.CancelAuction).Methods(http.MethodDelete)
	r.HandleFunc("/auctions/{id}/start", h.StartAuction).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/end", h.EndAuction).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/select-winner", h.SelectWinner).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/bids", h.GetAuctionBids).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id}/winning-bid", h.GetWinningBid).Methods(http.MethodGet)

	r.Handle("/bids", BidRateLimitMiddleware(cfg.MaxBidsPerMinute)(http.HandlerFunc(h.PlaceBid))).Methods(http.MethodPost)

	r.HandleFunc("/bids/{id}/retract", h.RetractBid).Methods(http.MethodPost)
	r.HandleFunc("/bids/{id}/can-retract", h.CanRetract).Methods(http.MethodGet)

	r.HandleFunc("/metrics", observability.PrometheusMetricsHandler()).Methods(http.MethodGet)

	return r
}
