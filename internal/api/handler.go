// Package api exposes the auction engine over HTTP: JSON in, JSON
// out, integer cents throughout, gorilla/mux for routing.
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/rivalapexmediation/auctionhouse/internal/apperr"
	"github.com/rivalapexmediation/auctionhouse/internal/bidding"
	"github.com/rivalapexmediation/auctionhouse/internal/ladder"
	"github.com/rivalapexmediation/auctionhouse/internal/lifecycle"
	"github.com/rivalapexmediation/auctionhouse/internal/retraction"
	"github.com/rivalapexmediation/auctionhouse/internal/store"
)

// Handlers wires the three orchestration services plus the store (for
// read-only list/detail endpoints that don't need the lock) to HTTP.
type Handlers struct {
	life  *lifecycle.Service
	bid   *bidding.Service
	retr  *retraction.Service
	store store.Store
	table *ladder.Table
}

func NewHandlers(life *lifecycle.Service, bid *bidding.Service, retr *retraction.Service, st store.Store, table *ladder.Table) *Handlers {
	if table == nil {
		table = ladder.Default
	}
	return &Handlers{life: life, bid: bid, retr: retr, store: st, table: table}
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "auctionhouse"})
}

type createAuctionRequest struct {
	Title               string `json:"title"`
	Description         string `json:"description"`
	StartingPrice       int64  `json:"startingPrice"`
	MinimumBidIncrement int64  `json:"minimumBidIncrement"`
	ReservePrice        *int64 `json:"reservePrice"`
	BuyNowPrice         *int64 `json:"buyNowPrice"`
	StartTime           *time.Time `json:"startTime"`
	EndTime             *time.Time `json:"endTime"`
	HasTimeLimit        bool   `json:"hasTimeLimit"`
	CreatedBy           string `json:"createdBy"`
}

func (h *Handlers) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, apperr.Validation("invalid_body", "malformed JSON body", nil))
		return
	}
	start := time.Now()
	if req.StartTime != nil {
		start = *req.StartTime
	}
	var end time.Time
	if req.EndTime != nil {
		end = *req.EndTime
	}

	a, err := h.life.CreateAuction(r.Context(), lifecycle.CreateParams{
		Title: req.Title, Description: req.Description,
		StartingPrice: req.StartingPrice, MinimumBidIncrement: req.MinimumBidIncrement,
		ReservePrice: req.ReservePrice, BuyNowPrice: req.BuyNowPrice,
		StartTime: start, EndTime: end, HasTimeLimit: req.HasTimeLimit,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (h *Handlers) ListAuctions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	statusFilter := store.AuctionStatus(q.Get("status"))
	createdBy := q.Get("createdBy")

	all, err := h.store.GetAllAuctions(r.Context())
	if err != nil {
		respondErr(w, apperr.Internal("store_error", "failed to list auctions"))
		return
	}
	out := make([]*store.Auction, 0, len(all))
	for _, a := range all {
		if statusFilter != "" && a.Status != statusFilter {
			continue
		}
		if createdBy != "" && a.CreatedBy != createdBy {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	respondJSON(w, http.StatusOK, out)
}

type auctionDetail struct {
	*store.Auction
	TimeRemaining float64 `json:"timeRemaining"`
	MinimumBid    int64   `json:"minimumBid"`
	ReserveMet    bool    `json:"reserveMet"`
	IsEndingSoon  bool    `json:"isEndingSoon"`
}

func (h *Handlers) GetAuction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := h.store.GetAuction(r.Context(), id)
	if err != nil {
		respondErr(w, apperr.NotFound("auction_not_found", "auction not found"))
		return
	}
	remaining := time.Until(a.EndTime).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	respondJSON(w, http.StatusOK, auctionDetail{
		Auction:       a,
		TimeRemaining: remaining,
		MinimumBid:    h.table.MinNextBid(a.CurrentPrice),
		ReserveMet:    a.ReserveMet(),
		IsEndingSoon:  a.Status == store.StatusActive && remaining > 0 && remaining <= 300,
	})
}

type updateAuctionRequest struct {
	Title               *string `json:"title"`
	Description         *string `json:"description"`
	StartingPrice       *int64  `json:"startingPrice"`
	MinimumBidIncrement *int64  `json:"minimumBidIncrement"`
	ReservePrice        **int64 `json:"reservePrice"`
	BuyNowPrice         **int64 `json:"buyNowPrice"`
	EndTime             *time.Time `json:"endTime"`
}

func (h *Handlers) UpdateAuction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req updateAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, apperr.Validation("invalid_body", "malformed JSON body", nil))
		return
	}
	a, err := h.life.UpdateAuction(r.Context(), id, lifecycle.UpdateParams{
		Title: req.Title, Description: req.Description, StartingPrice: req.StartingPrice,
		MinimumBidIncrement: req.MinimumBidIncrement, ReservePrice: req.ReservePrice,
		BuyNowPrice: req.BuyNowPrice, EndTime: req.EndTime,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handlers) CancelAuction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.life.CancelAuction(r.Context(), id); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "cancelled"})
}

func (h *Handlers) StartAuction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := h.life.StartAuction(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handlers) EndAuction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := h.life.EndAuction(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

type selectWinnerRequest struct {
	WinnerID string `json:"winnerId"`
}

func (h *Handlers) SelectWinner(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req selectWinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WinnerID == "" {
		respondErr(w, apperr.Validation("invalid_body", "winnerId is required", nil))
		return
	}
	a, err := h.life.SelectWinner(r.Context(), id, req.WinnerID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handlers) GetAuctionBids(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	bids, err := h.store.GetBids(r.Context(), id, false)
	if err != nil {
		respondErr(w, apperr.Internal("store_error", "failed to load bids"))
		return
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Timestamp.After(bids[j].Timestamp) })
	respondJSON(w, http.StatusOK, bids)
}

func (h *Handlers) GetWinningBid(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	bids, err := h.store.GetBids(r.Context(), id, false)
	if err != nil {
		respondErr(w, apperr.Internal("store_error", "failed to load bids"))
		return
	}
	for _, b := range bids {
		if b.IsWinning {
			respondJSON(w, http.StatusOK, b)
			return
		}
	}
	respondJSON(w, http.StatusOK, nil)
}

type placeBidRequest struct {
	AuctionID   string `json:"auctionId"`
	UserID      string `json:"userId"`
	Amount      int64  `json:"amount"`
	MaxBid      *int64 `json:"maxBid"`
	AutoBidStep *int64 `json:"autoBidStep"`
}

func (h *Handlers) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, apperr.Validation("invalid_body", "malformed JSON body", nil))
		return
	}
	result, err := h.bid.PlaceBid(r.Context(), bidding.PlaceBidParams{
		AuctionID: req.AuctionID, UserID: req.UserID, Amount: req.Amount,
		MaxBid: req.MaxBid, AutoBidStep: req.AutoBidStep,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"bid": result.Bid, "auction": result.Auction, "isWinning": result.IsWinning,
	})
}

type retractBidRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

func (h *Handlers) RetractBid(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req retractBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, apperr.Validation("invalid_body", "malformed JSON body", nil))
		return
	}
	bid, err := h.retr.RetractBid(r.Context(), id, req.UserID, store.RetractionReason(req.Reason))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bid)
}

func (h *Handlers) CanRetract(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	userID := r.URL.Query().Get("userId")
	can, reason, err := h.retr.CanRetract(r.Context(), id, userID)
	if err != nil {
		respondErr(w, err)
		return
	}
	resp := map[string]any{"canRetract": can}
	if reason != "" {
		resp["reason"] = reason
	}
	respondJSON(w, http.StatusOK, resp)
}
