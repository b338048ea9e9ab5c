package bidding

import (
	"context"
	"testing"
	"time"

	"github.com/rivalapexmediation/auctionhouse/internal/events"
	"github.com/rivalapexmediation/auctionhouse/internal/ladder"
	"github.com/rivalapexmediation/auctionhouse/internal/lock"
	"github.com/rivalapexmediation/auctionhouse/internal/store"
)

func newTestService(t *testing.T) (*Service, store.Store, *store.Auction) {
	t.Helper()
	st := store.NewMemoryStore()
	kl := lock.NewMemoryKeyedLock(time.Second)
	t.Cleanup(kl.Close)
	bus := events.NewBus(16)
	svc := NewService(st, kl, bus, lock.DefaultOptions(), ladder.Default)

	ctx := context.Background()
	seller := &store.User{ID: "seller", Name: "Seller", Email: "seller@example.com", CreatedAt: time.Now()}
	buyerA := &store.User{ID: "buyerA", Name: "Buyer A", Email: "a@example.com", CreatedAt: time.Now()}
	buyerB := &store.User{ID: "buyerB", Name: "Buyer B", Email: "b@example.com", CreatedAt: time.Now()}
	for _, u := range []*store.User{seller, buyerA, buyerB} {
		if err := st.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	a := &store.Auction{
		ID: "auc1", Title: "Widget", Description: "A widget",
		StartingPrice: 1000, CurrentPrice: 1000, MinimumBidIncrement: 50,
		StartTime: time.Now().Add(-time.Minute), EndTime: time.Now().Add(time.Hour),
		HasTimeLimit: true, Status: store.StatusActive, CreatedBy: seller.ID,
		CreatedAt: time.Now(),
	}
	if err := st.CreateAuction(ctx, a); err != nil {
		t.Fatal(err)
	}
	return svc, st, a
}

func TestPlaceBid_DirectBidBecomesWinner(t *testing.T) {
	svc, _, a := newTestService(t)
	res, err := svc.PlaceBid(context.Background(), PlaceBidParams{AuctionID: a.ID, UserID: "buyerA", Amount: 1100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsWinning {
		t.Fatal("expected bid to be winning")
	}
	if res.Auction.CurrentPrice != 1100 {
		t.Fatalf("expected current price 1100, got %d", res.Auction.CurrentPrice)
	}
}

func TestPlaceBid_BelowMinimumRejected(t *testing.T) {
	svc, _, a := newTestService(t)
	_, err := svc.PlaceBid(context.Background(), PlaceBidParams{AuctionID: a.ID, UserID: "buyerA", Amount: 1010})
	if err == nil {
		t.Fatal("expected bid_too_low error")
	}
}

func TestPlaceBid_SellerCannotBid(t *testing.T) {
	svc, _, a := newTestService(t)
	_, err := svc.PlaceBid(context.Background(), PlaceBidParams{AuctionID: a.ID, UserID: "seller", Amount: 1050})
	if err == nil {
		t.Fatal("expected self-bid rejection")
	}
}

func TestPlaceBid_ProxyDisplacesAndRecordsCompetitorAutoBid(t *testing.T) {
	svc, st, a := newTestService(t)
	ctx := context.Background()

	max := int64(2000)
	if _, err := svc.PlaceBid(ctx, PlaceBidParams{AuctionID: a.ID, UserID: "buyerA", MaxBid: &max}); err != nil {
		t.Fatalf("buyerA bid failed: %v", err)
	}

	max2 := int64(3000)
	res, err := svc.PlaceBid(ctx, PlaceBidParams{AuctionID: a.ID, UserID: "buyerB", MaxBid: &max2})
	if err != nil {
		t.Fatalf("buyerB bid failed: %v", err)
	}
	if !res.IsWinning {
		t.Fatal("expected buyerB to win")
	}
	if res.Auction.CurrentPrice != 2100 {
		t.Fatalf("expected second-price formula result 2100, got %d", res.Auction.CurrentPrice)
	}

	bids, err := st.GetBids(ctx, a.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	foundCompetitorAutoBid := false
	for _, b := range bids {
		if b.UserID == "buyerA" && b.IsProxyBid && b.IsMaxBidReached {
			foundCompetitorAutoBid = true
		}
	}
	if !foundCompetitorAutoBid {
		t.Fatal("expected a persisted competitor auto-bid for buyerA")
	}
}

// TestPlaceBid_OutbidAttemptThenLeaderRaisesPastCompetitor covers a losing
// bid against an existing max (price unchanged) followed by the leader
// raising their own max past the competitor (price recomputed from the
// competitor's max, not the new ceiling).
func TestPlaceBid_OutbidAttemptThenLeaderRaisesPastCompetitor(t *testing.T) {
	svc, _, a := newTestService(t)
	ctx := context.Background()

	// Auction starts at 1000, increment 100 at that band.
	aMax := int64(6_000)
	res1, err := svc.PlaceBid(ctx, PlaceBidParams{AuctionID: a.ID, UserID: "buyerA", MaxBid: &aMax})
	if err != nil {
		t.Fatalf("A's first bid failed: %v", err)
	}
	if res1.Auction.CurrentPrice != 1_100 {
		t.Fatalf("expected price 1100 after A's solo bid, got %d", res1.Auction.CurrentPrice)
	}

	bMax := int64(5_500)
	res2, err := svc.PlaceBid(ctx, PlaceBidParams{AuctionID: a.ID, UserID: "buyerB", MaxBid: &bMax})
	if err != nil {
		t.Fatalf("B's bid failed: %v", err)
	}
	if res2.IsWinning {
		t.Fatal("expected A to remain the winner after B's lower max")
	}
	if res2.Auction.CurrentPrice != 1_100 {
		t.Fatalf("expected price unchanged at 1100 after B's losing bid, got %d", res2.Auction.CurrentPrice)
	}

	// A raises past B's max: the engine recomputes a new price from
	// B's max plus the increment at the price in effect at that time,
	// it does not jump straight to A's new ceiling.
	higherMax := int64(8_000)
	res3, err := svc.PlaceBid(ctx, PlaceBidParams{AuctionID: a.ID, UserID: "buyerA", MaxBid: &higherMax})
	if err != nil {
		t.Fatalf("A's second bid failed: %v", err)
	}
	if !res3.IsWinning {
		t.Fatal("expected A to still be winning")
	}
	if res3.Auction.CurrentPrice != 5_600 {
		t.Fatalf("expected price 5600 after A outraises B, got %d", res3.Auction.CurrentPrice)
	}
}

func TestPlaceBid_BuyNowClearedOnFirstBidWithoutReserve(t *testing.T) {
	svc, st, a := newTestService(t)
	ctx := context.Background()
	buyNow := int64(50000)
	a.BuyNowPrice = &buyNow
	if err := st.UpdateAuction(ctx, a); err != nil {
		t.Fatal(err)
	}

	res, err := svc.PlaceBid(ctx, PlaceBidParams{AuctionID: a.ID, UserID: "buyerA", Amount: 1100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Auction.BuyNowPrice != nil {
		t.Fatal("expected buyNowPrice cleared after first bid")
	}
}
