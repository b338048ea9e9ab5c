// Package lifecycle implements the LifecycleService: auction
// creation, state transitions, and the winner-selection paths that
// run outside of bid placement.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rivalapexmediation/auctionhouse/internal/apperr"
	"github.com/rivalapexmediation/auctionhouse/internal/events"
	"github.com/rivalapexmediation/auctionhouse/internal/lock"
	"github.com/rivalapexmediation/auctionhouse/internal/observability"
	"github.com/rivalapexmediation/auctionhouse/internal/store"
)

const maxTitleLen = 200
const defaultAuctionLifetime = 365 * 24 * time.Hour

// CreateParams is the input to CreateAuction.
type CreateParams struct {
	Title               string
	Description         string
	StartingPrice       int64
	MinimumBidIncrement int64
	ReservePrice        *int64
	BuyNowPrice         *int64
	StartTime           time.Time
	EndTime             time.Time
	HasTimeLimit        bool
	CreatedBy           string
}

// Service orchestrates auction lifecycle transitions under the
// per-auction keyed lock. Creation does not need the lock: no other
// operation can reference the auction until it exists.
type Service struct {
	store store.Store
	lock  lock.KeyedLock
	bus   *events.Bus
	lopts lock.Options
}

func NewService(st store.Store, kl lock.KeyedLock, bus *events.Bus, lopts lock.Options) *Service {
	return &Service{store: st, lock: kl, bus: bus, lopts: lopts}
}

// CreateAuction validates and persists a new auction, ACTIVE if its
// start time has already arrived, PENDING otherwise.
func (s *Service) CreateAuction(ctx context.Context, p CreateParams) (*store.Auction, error) {
	observability.RecordRequest("create_auction")

	if err := validateCreate(&p); err != nil {
		observability.RecordError("create_auction", "validation_error")
		return nil, err
	}

	now := time.Now()
	status := store.StatusPending
	if !p.StartTime.After(now) {
		status = store.StatusActive
	}

	a := &store.Auction{
		ID:                  uuid.NewString(),
		Title:               p.Title,
		Description:         p.Description,
		StartingPrice:       p.StartingPrice,
		CurrentPrice:        p.StartingPrice,
		MinimumBidIncrement: p.MinimumBidIncrement,
		ReservePrice:        p.ReservePrice,
		BuyNowPrice:         p.BuyNowPrice,
		StartTime:           p.StartTime,
		EndTime:             p.EndTime,
		HasTimeLimit:        p.HasTimeLimit,
		Status:              status,
		CreatedBy:           p.CreatedBy,
		CreatedAt:           now,
	}
	if err := s.store.CreateAuction(ctx, a); err != nil {
		observability.RecordError("create_auction", "store_error")
		return nil, apperr.Internal("store_error", "failed to persist auction")
	}

	observability.RecordSuccess("create_auction")
	s.bus.Publish(events.Event{Name: events.AuctionCreated, AuctionID: a.ID, Timestamp: now,
		Payload: map[string]any{"auction": a}})
	if status == store.StatusActive {
		s.bus.Publish(events.Event{Name: events.AuctionStarted, AuctionID: a.ID, Timestamp: now,
			Payload: map[string]any{"auction": a}})
	}
	return a, nil
}

func validateCreate(p *CreateParams) error {
	if p.Title == "" || len(p.Title) > maxTitleLen {
		return apperr.Validation("invalid_title", "title must be non-empty and at most 200 characters", nil)
	}
	if p.Description == "" {
		return apperr.Validation("invalid_description", "description must be non-empty", nil)
	}
	if p.StartingPrice < 0 {
		return apperr.Validation("invalid_starting_price", "startingPrice must be >= 0", nil)
	}
	if p.MinimumBidIncrement <= 0 {
		return apperr.Validation("invalid_increment", "minimumBidIncrement must be > 0", nil)
	}
	if p.StartTime.Before(time.Now().Add(-5 * time.Second)) {
		return apperr.Validation("invalid_start_time", "startTime may not be more than 5s in the past", nil)
	}
	if !p.HasTimeLimit {
		p.EndTime = p.StartTime.Add(defaultAuctionLifetime)
	}
	if !p.EndTime.After(p.StartTime) {
		return apperr.Validation("invalid_end_time", "endTime must be after startTime", nil)
	}
	if p.ReservePrice != nil && *p.ReservePrice < p.StartingPrice {
		return apperr.Validation("invalid_reserve", "reservePrice must be >= startingPrice", nil)
	}
	if p.BuyNowPrice != nil {
		if *p.BuyNowPrice <= p.StartingPrice {
			return apperr.Validation("invalid_buy_now", "buyNowPrice must be > startingPrice", nil)
		}
		if p.ReservePrice != nil && *p.BuyNowPrice <= *p.ReservePrice {
			return apperr.Validation("invalid_buy_now", "buyNowPrice must be > reservePrice", nil)
		}
	}
	return nil
}

// StartAuction moves a PENDING auction whose startTime has arrived to ACTIVE.
func (s *Service) StartAuction(ctx context.Context, id string) (*store.Auction, error) {
	var out *store.Auction
	err := s.lock.WithLock(ctx, id, s.lopts, func(ctx context.Context) error {
		a, err := s.store.GetAuction(ctx, id)
		if err != nil {
			return apperr.NotFound("auction_not_found", "auction not found")
		}
		if a.Status != store.StatusPending || time.Now().Before(a.StartTime) {
			return apperr.State("invalid_state", "auction is not eligible to start")
		}
		a.Status = store.StatusActive
		if err := s.store.UpdateAuction(ctx, a); err != nil {
			return apperr.Internal("store_error", "failed to update auction")
		}
		out = a
		s.bus.Publish(events.Event{Name: events.AuctionStarted, AuctionID: a.ID, Timestamp: time.Now(),
			Payload: map[string]any{"auction": a}})
		return nil
	})
	return out, err
}

// EndAuction resolves an ACTIVE auction to ENDED (reserve met, winner
// selected) or UNSOLD (reserve not met). Idempotent on terminal auctions.
func (s *Service) EndAuction(ctx context.Context, id string) (*store.Auction, error) {
	var out *store.Auction
	err := s.lock.WithLock(ctx, id, s.lopts, func(ctx context.Context) error {
		a, err := s.store.GetAuction(ctx, id)
		if err != nil {
			return apperr.NotFound("auction_not_found", "auction not found")
		}
		if a.Status == store.StatusEnded || a.Status == store.StatusUnsold {
			out = a
			return nil
		}
		if a.Status != store.StatusActive {
			return apperr.State("invalid_state", "auction is not active")
		}

		winner, err := s.currentWinningBid(ctx, a.ID)
		if err != nil {
			return err
		}

		var winnerID *string
		if a.ReserveMet() && winner != nil {
			a.Status = store.StatusEnded
			id := winner.UserID
			winnerID = &id
		} else {
			a.Status = store.StatusUnsold
			winnerID = nil
		}
		a.WinnerID = winnerID
		if err := s.store.UpdateAuction(ctx, a); err != nil {
			return apperr.Internal("store_error", "failed to update auction")
		}
		out = a

		payload := map[string]any{"auction": a, "finalPrice": a.CurrentPrice}
		if winnerID != nil {
			payload["winnerId"] = *winnerID
		}
		s.bus.Publish(events.Event{Name: events.AuctionEnded, AuctionID: a.ID, Timestamp: time.Now(), Payload: payload})
		return nil
	})
	return out, err
}

// SelectWinner manually resolves an auction to a specific bidder who
// holds a non-retracted bid.
func (s *Service) SelectWinner(ctx context.Context, id, userID string) (*store.Auction, error) {
	var out *store.Auction
	err := s.lock.WithLock(ctx, id, s.lopts, func(ctx context.Context) error {
		a, err := s.store.GetAuction(ctx, id)
		if err != nil {
			return apperr.NotFound("auction_not_found", "auction not found")
		}
		bids, err := s.store.GetBids(ctx, id, false)
		if err != nil {
			return apperr.Internal("store_error", "failed to load bids")
		}
		var winningBid *store.Bid
		for _, b := range bids {
			if b.UserID == userID {
				if winningBid == nil || b.Amount > winningBid.Amount {
					winningBid = b
				}
			}
		}
		if winningBid == nil {
			return apperr.Validation("no_bid", "user has no non-retracted bid on this auction", nil)
		}

		a.Status = store.StatusEnded
		a.WinnerID = &userID
		if winningBid.Amount > a.CurrentPrice {
			a.CurrentPrice = winningBid.Amount
		}
		if err := s.store.UpdateAuction(ctx, a); err != nil {
			return apperr.Internal("store_error", "failed to update auction")
		}
		out = a
		s.bus.Publish(events.Event{Name: events.AuctionEnded, AuctionID: a.ID, Timestamp: time.Now(),
			Payload: map[string]any{"auction": a, "winnerId": userID, "finalPrice": a.CurrentPrice}})
		return nil
	})
	return out, err
}

// UpdateParams holds the mutable auction fields.
type UpdateParams struct {
	Title               *string
	Description         *string
	StartingPrice       *int64
	MinimumBidIncrement *int64
	ReservePrice        **int64
	BuyNowPrice         **int64
	EndTime             *time.Time
}

// UpdateAuction edits an auction still eligible for changes: PENDING,
// or ACTIVE with no bids yet.
func (s *Service) UpdateAuction(ctx context.Context, id string, p UpdateParams) (*store.Auction, error) {
	var out *store.Auction
	err := s.lock.WithLock(ctx, id, s.lopts, func(ctx context.Context) error {
		a, err := s.store.GetAuction(ctx, id)
		if err != nil {
			return apperr.NotFound("auction_not_found", "auction not found")
		}
		if !(a.Status == store.StatusPending || (a.Status == store.StatusActive && a.BidCount == 0)) {
			return apperr.State("invalid_state", "auction is not eligible for updates")
		}

		if p.Title != nil {
			a.Title = *p.Title
		}
		if p.Description != nil {
			a.Description = *p.Description
		}
		if p.MinimumBidIncrement != nil {
			a.MinimumBidIncrement = *p.MinimumBidIncrement
		}
		if p.ReservePrice != nil {
			a.ReservePrice = *p.ReservePrice
		}
		if p.BuyNowPrice != nil {
			a.BuyNowPrice = *p.BuyNowPrice
		}
		if p.EndTime != nil {
			a.EndTime = *p.EndTime
		}
		if p.StartingPrice != nil {
			a.StartingPrice = *p.StartingPrice
			a.CurrentPrice = *p.StartingPrice
		}

		cp := CreateParams{
			Title: a.Title, Description: a.Description, StartingPrice: a.StartingPrice,
			MinimumBidIncrement: a.MinimumBidIncrement, ReservePrice: a.ReservePrice,
			BuyNowPrice: a.BuyNowPrice, StartTime: a.StartTime, EndTime: a.EndTime,
			HasTimeLimit: a.HasTimeLimit, CreatedBy: a.CreatedBy,
		}
		if err := validateCreate(&cp); err != nil {
			return err
		}

		if err := s.store.UpdateAuction(ctx, a); err != nil {
			return apperr.Internal("store_error", "failed to update auction")
		}
		out = a
		s.bus.Publish(events.Event{Name: events.AuctionUpdated, AuctionID: a.ID, Timestamp: time.Now(),
			Payload: map[string]any{"auction": a}})
		return nil
	})
	return out, err
}

// CancelAuction deletes an auction that has received no bids and has
// not ended.
func (s *Service) CancelAuction(ctx context.Context, id string) error {
	return s.lock.WithLock(ctx, id, s.lopts, func(ctx context.Context) error {
		a, err := s.store.GetAuction(ctx, id)
		if err != nil {
			return apperr.NotFound("auction_not_found", "auction not found")
		}
		if a.BidCount != 0 || a.Status == store.StatusEnded {
			return apperr.State("invalid_state", "auction cannot be cancelled")
		}
		if err := s.store.DeleteAuction(ctx, id); err != nil {
			return apperr.Internal("store_error", "failed to delete auction")
		}
		return nil
	})
}

// CanAcceptBids reports whether a is ACTIVE and within its time window.
func CanAcceptBids(a *store.Auction) bool {
	now := time.Now()
	return a.Status == store.StatusActive && !now.Before(a.StartTime) && now.Before(a.EndTime)
}

func (s *Service) currentWinningBid(ctx context.Context, auctionID string) (*store.Bid, error) {
	bids, err := s.store.GetBids(ctx, auctionID, false)
	if err != nil {
		return nil, apperr.Internal("store_error", "failed to load bids")
	}
	var best *store.Bid
	for _, b := range bids {
		if best == nil || b.Amount > best.Amount ||
			(b.Amount == best.Amount && b.Timestamp.Before(best.Timestamp)) {
			best = b
		}
	}
	return best, nil
}
