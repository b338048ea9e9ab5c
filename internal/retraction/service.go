// Package retraction implements the RetractionService: the bounded
// window in which a bidder may withdraw their own winning bid.
package retraction

import (
	"context"
	"time"

	"github.com/rivalapexmediation/auctionhouse/internal/apperr"
	"github.com/rivalapexmediation/auctionhouse/internal/events"
	"github.com/rivalapexmediation/auctionhouse/internal/lock"
	"github.com/rivalapexmediation/auctionhouse/internal/observability"
	"github.com/rivalapexmediation/auctionhouse/internal/store"
)

const retractionWindow = time.Hour

// Service orchestrates bid retraction under the per-auction keyed lock.
type Service struct {
	store store.Store
	lock  lock.KeyedLock
	bus   *events.Bus
	lopts lock.Options
}

func NewService(st store.Store, kl lock.KeyedLock, bus *events.Bus, lopts lock.Options) *Service {
	return &Service{store: st, lock: kl, bus: bus, lopts: lopts}
}

// CanRetract reports eligibility without mutating state, for the
// can-retract read endpoint.
func (s *Service) CanRetract(ctx context.Context, bidID, userID string) (bool, string, error) {
	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return false, "", apperr.NotFound("bid_not_found", "bid not found")
	}
	auction, err := s.store.GetAuction(ctx, bid.AuctionID)
	if err != nil {
		return false, "", apperr.NotFound("auction_not_found", "auction not found")
	}
	if reason := ineligibilityReason(bid, auction, userID); reason != "" {
		return false, reason, nil
	}
	return true, "", nil
}

func ineligibilityReason(bid *store.Bid, auction *store.Auction, userID string) string {
	switch {
	case bid.UserID != userID:
		return "not_owner"
	case bid.IsRetracted:
		return "already_retracted"
	case auction.Status == store.StatusEnded || auction.Status == store.StatusUnsold:
		return "auction_ended"
	case !bid.IsWinning:
		return "not_winning"
	case time.Since(bid.Timestamp) > retractionWindow:
		return "retraction_window_expired"
	}
	return ""
}

// RetractBid retracts bidID on behalf of userID for reason, recomputing
// the new leader (or resetting the auction to its starting state if
// none remains).
func (s *Service) RetractBid(ctx context.Context, bidID, userID string, reason store.RetractionReason) (*store.Bid, error) {
	if !store.ValidRetractionReason(reason) {
		return nil, apperr.Validation("invalid_reason", "retraction reason is not recognized", nil)
	}

	var retracted *store.Bid
	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, apperr.NotFound("bid_not_found", "bid not found")
	}

	err = s.lock.WithLock(ctx, bid.AuctionID, s.lopts, func(ctx context.Context) error {
		observability.RecordRequest("retract_bid")

		bid, err := s.store.GetBid(ctx, bidID)
		if err != nil {
			return apperr.NotFound("bid_not_found", "bid not found")
		}
		auction, err := s.store.GetAuction(ctx, bid.AuctionID)
		if err != nil {
			return apperr.NotFound("auction_not_found", "auction not found")
		}
		if code := ineligibilityReason(bid, auction, userID); code != "" {
			return apperr.State(code, "bid is not eligible for retraction")
		}

		now := time.Now()
		bid.IsRetracted = true
		bid.RetractedAt = &now
		bid.IsWinning = false
		bid.RetractionReason = &reason
		if err := s.store.UpdateBid(ctx, bid); err != nil {
			return apperr.Internal("store_error", "failed to update bid")
		}

		newLeader, err := s.pickNewLeader(ctx, auction.ID, bidID)
		if err != nil {
			return err
		}

		var previousWinner any
		if newLeader != nil {
			newLeader.IsWinning = true
			if err := s.store.UpdateBid(ctx, newLeader); err != nil {
				return apperr.Internal("store_error", "failed to update new leader")
			}
			auction.CurrentPrice = newLeader.Amount
			previousWinner = newLeader.UserID
		} else {
			auction.CurrentPrice = auction.StartingPrice
			auction.BidCount = 0
		}
		if err := s.store.UpdateAuction(ctx, auction); err != nil {
			return apperr.Internal("store_error", "failed to update auction")
		}

		s.bus.Publish(events.Event{
			Name: events.BidRetracted, AuctionID: auction.ID, Timestamp: now,
			Payload: map[string]any{"bid": bid, "auction": auction, "previousWinner": previousWinner},
		})

		observability.RecordSuccess("retract_bid")
		observability.Capture(observability.AuditEvent{
			AuctionID: auction.ID, Operation: "retract_bid", Outcome: "ok",
			CreatedAt: now, Details: map[string]any{"userId": userID, "reason": string(reason)},
		})

		retracted = bid
		return nil
	})
	if err != nil {
		observability.RecordError("retract_bid", errCode(err))
		return nil, err
	}
	return retracted, nil
}

func errCode(err error) string {
	if e, ok := apperr.As(err); ok {
		return e.Code
	}
	return "internal"
}

// pickNewLeader scans all non-retracted bids other than excludeID for
// the new highest-amount, earliest-timestamp leader.
func (s *Service) pickNewLeader(ctx context.Context, auctionID, excludeID string) (*store.Bid, error) {
	bids, err := s.store.GetBids(ctx, auctionID, false)
	if err != nil {
		return nil, apperr.Internal("store_error", "failed to load bids")
	}
	var best *store.Bid
	for _, b := range bids {
		if b.ID == excludeID {
			continue
		}
		if best == nil || b.Amount > best.Amount ||
			(b.Amount == best.Amount && b.Timestamp.Before(best.Timestamp)) {
			best = b
		}
	}
	return best, nil
}
