// Package bidding implements the BiddingService: the orchestrator
// that turns one incoming bid into a locked sequence of reads,
// proxy-engine evaluation, writes, and event emission.
package bidding

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rivalapexmediation/auctionhouse/internal/apperr"
	"github.com/rivalapexmediation/auctionhouse/internal/events"
	"github.com/rivalapexmediation/auctionhouse/internal/ladder"
	"github.com/rivalapexmediation/auctionhouse/internal/lock"
	"github.com/rivalapexmediation/auctionhouse/internal/observability"
	"github.com/rivalapexmediation/auctionhouse/internal/proxy"
	"github.com/rivalapexmediation/auctionhouse/internal/store"
)

const maxSaneBidCents = 100_000_000

// PlaceBidParams is the public request shape.
type PlaceBidParams struct {
	AuctionID   string
	UserID      string
	Amount      int64
	MaxBid      *int64
	AutoBidStep *int64
}

// PlaceBidResult is the public response shape.
type PlaceBidResult struct {
	Bid       *store.Bid
	Auction   *store.Auction
	IsWinning bool
}

// Service orchestrates bid placement under the per-auction keyed lock.
type Service struct {
	store store.Store
	lock  lock.KeyedLock
	bus   *events.Bus
	lopts lock.Options
	table *ladder.Table
}

// NewService wires a BiddingService from its collaborators. table may
// be nil to use the production ladder.Default.
func NewService(st store.Store, kl lock.KeyedLock, bus *events.Bus, lopts lock.Options, table *ladder.Table) *Service {
	if table == nil {
		table = ladder.Default
	}
	return &Service{store: st, lock: kl, bus: bus, lopts: lopts, table: table}
}

// PlaceBid runs the bidding algorithm for p under KeyedLock(p.AuctionID).
func (s *Service) PlaceBid(ctx context.Context, p PlaceBidParams) (*PlaceBidResult, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "auctionhouse.bid.place", map[string]string{
		"auction_id": p.AuctionID,
		"user_id":    p.UserID,
	})
	defer span.End()
	defer func() {
		observability.ObserveLatency("place_bid", float64(time.Since(start).Microseconds())/1000)
	}()

	var result *PlaceBidResult
	err := s.lock.WithLock(ctx, p.AuctionID, s.lopts, func(ctx context.Context) error {
		r, err := s.placeBidLocked(ctx, p)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		span.SetAttr("outcome", errorCode(err))
		observability.RecordError("place_bid", errorCode(err))
		return nil, err
	}
	span.SetAttr("outcome", "success")
	observability.RecordSuccess("place_bid")
	return result, nil
}

func errorCode(err error) string {
	if e, ok := apperr.As(err); ok {
		return e.Code
	}
	return "internal"
}

func (s *Service) placeBidLocked(ctx context.Context, p PlaceBidParams) (*PlaceBidResult, error) {
	observability.RecordRequest("place_bid")

	auction, err := s.store.GetAuction(ctx, p.AuctionID)
	if err != nil {
		return nil, apperr.NotFound("auction_not_found", "auction not found")
	}
	if !canAcceptBids(auction) {
		return nil, apperr.State("invalid_state", "auction is not accepting bids")
	}

	if p.UserID == auction.CreatedBy {
		return nil, apperr.Validation("self_bid", "seller may not bid on their own auction", nil)
	}
	if _, err := s.store.GetUser(ctx, p.UserID); err != nil {
		return nil, apperr.NotFound("user_not_found", "user not found")
	}

	bidCountBefore := auction.BidCount

	competitor, err := s.currentCompetitor(ctx, auction, p.UserID)
	if err != nil {
		return nil, err
	}

	var decision proxy.Decision
	hasProxy := p.MaxBid != nil
	if hasProxy {
		decision = proxy.Evaluate(proxy.Input{
			CurrentPrice: auction.CurrentPrice,
			ReservePrice: auction.ReservePrice,
			Ladder:       s.table,
			UserID:       p.UserID,
			UserMax:      *p.MaxBid,
			CustomStep:   p.AutoBidStep,
			Competitor:   competitor,
		})
	} else {
		decision = proxy.Decision{UserBidAmount: p.Amount, NewVisiblePrice: p.Amount}
	}

	userBidAmount := decision.UserBidAmount
	minNext := s.table.MinNextBid(auction.CurrentPrice)
	if userBidAmount <= 0 || userBidAmount > maxSaneBidCents {
		return nil, apperr.Validation("bid_out_of_range", "bid amount out of allowed range", nil)
	}
	if userBidAmount < minNext && userBidAmount != auction.CurrentPrice {
		return nil, apperr.Validation("bid_too_low", "bid does not meet minimum increment", map[string]any{
			"minimum_next_bid": minNext,
		})
	}

	now := time.Now()
	previousWinnerID := ""
	for _, cab := range decision.CompetitorAutoBids {
		bid := &store.Bid{
			ID:              uuid.NewString(),
			AuctionID:       auction.ID,
			UserID:          cab.UserID,
			Amount:          cab.Amount,
			Timestamp:       now,
			IsProxyBid:      true,
			IsMaxBidReached: cab.IsMaxBidReached,
			Message:         cab.Message,
		}
		if err := s.store.AddBid(ctx, bid); err != nil {
			return nil, apperr.Internal("store_error", "failed to persist competitor auto-bid")
		}
		auction.BidCount++
		previousWinnerID = cab.UserID

		s.bus.Publish(events.Event{
			Name: events.BidPlaced, AuctionID: auction.ID, Timestamp: now,
			Payload: map[string]any{"bid": bid, "auction": auction, "isWinning": false},
		})
	}

	userBid := &store.Bid{
		ID:         uuid.NewString(),
		AuctionID:  auction.ID,
		UserID:     p.UserID,
		Amount:     userBidAmount,
		MaxBid:     p.MaxBid,
		Timestamp:  now,
		IsProxyBid: hasProxy,
		Message:    decision.Message,
	}
	if err := s.store.AddBid(ctx, userBid); err != nil {
		return nil, apperr.Internal("store_error", "failed to persist bid")
	}
	auction.BidCount++

	isWinning, err := s.computeIsWinning(ctx, auction, userBid)
	if err != nil {
		return nil, err
	}
	// A proxy bid the engine resolved as losing or tying (cases 3 and 4)
	// is recorded at the bidder's max, which can exceed the visible
	// price; the engine's verdict keeps the earlier leader in front.
	if hasProxy && !decision.WouldWin {
		isWinning = false
	}
	userBid.IsWinning = isWinning

	if isWinning {
		if err := s.clearPriorWinners(ctx, auction.ID, userBid.ID); err != nil {
			return nil, err
		}
		auction.CurrentPrice = userBidAmount
	}
	if err := s.store.UpdateBid(ctx, userBid); err != nil {
		return nil, apperr.Internal("store_error", "failed to update bid")
	}

	reserveMetNow := auction.ReserveMet()
	applyBuyNowRemoval(auction, reserveMetNow, bidCountBefore == 0)

	if err := s.store.UpdateAuction(ctx, auction); err != nil {
		return nil, apperr.Internal("store_error", "failed to update auction")
	}

	s.bus.Publish(events.Event{
		Name: events.BidPlaced, AuctionID: auction.ID, Timestamp: now,
		Payload: map[string]any{
			"bid": userBid, "auction": auction, "isWinning": isWinning,
			"previousWinnerId": nullableString(previousWinnerID),
		},
	})
	if isWinning && previousWinnerID != "" && previousWinnerID != p.UserID {
		s.bus.Publish(events.Event{
			Name: events.YouWereOutbid, AuctionID: auction.ID, Timestamp: now,
			Payload: map[string]any{
				"auctionId": auction.ID, "amounts": map[string]int64{"newPrice": auction.CurrentPrice},
				"newLeaderId": p.UserID, "targetUserId": previousWinnerID,
			},
		})
	}

	observability.Capture(observability.AuditEvent{
		AuctionID: auction.ID, Operation: "place_bid", Outcome: "ok",
		CreatedAt: now, Details: map[string]any{"userId": p.UserID, "amount": userBidAmount},
	})

	log.WithFields(log.Fields{"auction_id": auction.ID, "user_id": p.UserID, "amount": userBidAmount}).Info("bid placed")

	return &PlaceBidResult{Bid: userBid, Auction: auction, IsWinning: isWinning}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// currentCompetitor finds the highest other live max-bid, excluding
// the requesting user's own bids, to seed the proxy engine.
func (s *Service) currentCompetitor(ctx context.Context, a *store.Auction, userID string) (*proxy.Competitor, error) {
	bids, err := s.store.GetBids(ctx, a.ID, false)
	if err != nil {
		return nil, apperr.Internal("store_error", "failed to load bids")
	}
	var best *store.Bid
	for _, b := range bids {
		if b.UserID == userID || b.MaxBid == nil {
			continue
		}
		if best == nil || *b.MaxBid > *best.MaxBid ||
			(*b.MaxBid == *best.MaxBid && b.Timestamp.Before(best.Timestamp)) {
			best = b
		}
	}
	if best == nil {
		return nil, nil
	}
	return &proxy.Competitor{UserID: best.UserID, MaxBid: *best.MaxBid, FirstTimestamp: best.Timestamp}, nil
}

// computeIsWinning compares the new bid to every other non-retracted,
// non-user bid; the leader-raising-own-max path in ProxyEngine already
// guarantees amounts compare correctly, this just checks dominance.
func (s *Service) computeIsWinning(ctx context.Context, a *store.Auction, userBid *store.Bid) (bool, error) {
	bids, err := s.store.GetBids(ctx, a.ID, false)
	if err != nil {
		return false, apperr.Internal("store_error", "failed to load bids")
	}
	for _, b := range bids {
		if b.ID == userBid.ID || b.UserID == userBid.UserID {
			continue
		}
		if b.Amount > userBid.Amount {
			return false, nil
		}
		if b.Amount == userBid.Amount && b.Timestamp.Before(userBid.Timestamp) {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) clearPriorWinners(ctx context.Context, auctionID, keepBidID string) error {
	bids, err := s.store.GetBids(ctx, auctionID, true)
	if err != nil {
		return apperr.Internal("store_error", "failed to load bids")
	}
	for _, b := range bids {
		if b.IsWinning && b.ID != keepBidID {
			b.IsWinning = false
			if err := s.store.UpdateBid(ctx, b); err != nil {
				return apperr.Internal("store_error", "failed to clear prior winner")
			}
		}
	}
	return nil
}

// applyBuyNowRemoval implements the buy-now removal rule: cleared on
// the first bid when there is no reserve, or when the reserve has just
// been met when there is one.
func applyBuyNowRemoval(a *store.Auction, reserveMetNow bool, isFirstBid bool) {
	if a.BuyNowPrice == nil {
		return
	}
	if a.ReservePrice == nil && isFirstBid {
		a.BuyNowPrice = nil
		return
	}
	if a.ReservePrice != nil && reserveMetNow {
		a.BuyNowPrice = nil
	}
}

func canAcceptBids(a *store.Auction) bool {
	now := time.Now()
	return a.Status == store.StatusActive && !now.Before(a.StartTime) && now.Before(a.EndTime)
}
