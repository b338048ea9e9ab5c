package retraction

import (
	"context"
	"testing"
	"time"

	"github.com/rivalapexmediation/auctionhouse/internal/events"
	"github.com/rivalapexmediation/auctionhouse/internal/lock"
	"github.com/rivalapexmediation/auctionhouse/internal/store"
)

func newTestService(t *testing.T) (*Service, store.Store, *store.Auction) {
	t.Helper()
	st := store.NewMemoryStore()
	kl := lock.NewMemoryKeyedLock(time.Second)
	t.Cleanup(kl.Close)
	bus := events.NewBus(16)
	svc := NewService(st, kl, bus, lock.DefaultOptions())

	ctx := context.Background()
	a := &store.Auction{
		ID: "auc1", Title: "Widget", Description: "A widget",
		StartingPrice: 1000, CurrentPrice: 1000, MinimumBidIncrement: 100,
		StartTime: time.Now().Add(-time.Hour), EndTime: time.Now().Add(time.Hour),
		HasTimeLimit: true, Status: store.StatusActive, CreatedBy: "seller",
		CreatedAt: time.Now(),
	}
	if err := st.CreateAuction(ctx, a); err != nil {
		t.Fatal(err)
	}
	return svc, st, a
}

func TestRetractBid_RestoresPriorLeader(t *testing.T) {
	svc, st, a := newTestService(t)
	ctx := context.Background()

	bidA := &store.Bid{ID: "bidA", AuctionID: a.ID, UserID: "buyerA", Amount: 1100, Timestamp: time.Now().Add(-time.Minute), IsWinning: false}
	bidB := &store.Bid{ID: "bidB", AuctionID: a.ID, UserID: "buyerB", Amount: 2100, Timestamp: time.Now(), IsWinning: true}
	if err := st.AddBid(ctx, bidA); err != nil {
		t.Fatal(err)
	}
	if err := st.AddBid(ctx, bidB); err != nil {
		t.Fatal(err)
	}
	a.CurrentPrice = 2100
	a.BidCount = 2
	if err := st.UpdateAuction(ctx, a); err != nil {
		t.Fatal(err)
	}

	retracted, err := svc.RetractBid(ctx, "bidB", "buyerB", store.ReasonTypo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !retracted.IsRetracted {
		t.Fatal("expected bid marked retracted")
	}

	gotA, err := st.GetBid(ctx, "bidA")
	if err != nil {
		t.Fatal(err)
	}
	if !gotA.IsWinning {
		t.Fatal("expected buyerA's bid to become the new leader")
	}

	gotAuction, err := st.GetAuction(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotAuction.CurrentPrice != 1100 {
		t.Fatalf("expected price restored to 1100, got %d", gotAuction.CurrentPrice)
	}
}

func TestRetractBid_ResetsToStartingPriceWhenNoOtherBids(t *testing.T) {
	svc, st, a := newTestService(t)
	ctx := context.Background()

	bid := &store.Bid{ID: "bid1", AuctionID: a.ID, UserID: "buyerA", Amount: 1500, Timestamp: time.Now(), IsWinning: true}
	if err := st.AddBid(ctx, bid); err != nil {
		t.Fatal(err)
	}
	a.CurrentPrice = 1500
	a.BidCount = 1
	if err := st.UpdateAuction(ctx, a); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.RetractBid(ctx, "bid1", "buyerA", store.ReasonOther); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotAuction, err := st.GetAuction(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotAuction.CurrentPrice != a.StartingPrice {
		t.Fatalf("expected price reset to starting price %d, got %d", a.StartingPrice, gotAuction.CurrentPrice)
	}
	if gotAuction.BidCount != 0 {
		t.Fatalf("expected bid count reset to 0, got %d", gotAuction.BidCount)
	}
}

func TestRetractBid_RejectsNonOwner(t *testing.T) {
	svc, st, a := newTestService(t)
	ctx := context.Background()
	bid := &store.Bid{ID: "bid1", AuctionID: a.ID, UserID: "buyerA", Amount: 1500, Timestamp: time.Now(), IsWinning: true}
	if err := st.AddBid(ctx, bid); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RetractBid(ctx, "bid1", "buyerB", store.ReasonOther); err == nil {
		t.Fatal("expected rejection: not the bid owner")
	}
}

func TestRetractBid_RejectsNonWinningBid(t *testing.T) {
	svc, st, a := newTestService(t)
	ctx := context.Background()
	bid := &store.Bid{ID: "bid1", AuctionID: a.ID, UserID: "buyerA", Amount: 1100, Timestamp: time.Now(), IsWinning: false}
	if err := st.AddBid(ctx, bid); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RetractBid(ctx, "bid1", "buyerA", store.ReasonOther); err == nil {
		t.Fatal("expected rejection: bid is not currently winning")
	}
}

func TestRetractBid_RejectsAfterWindowExpires(t *testing.T) {
	svc, st, a := newTestService(t)
	ctx := context.Background()
	bid := &store.Bid{ID: "bid1", AuctionID: a.ID, UserID: "buyerA", Amount: 1500, Timestamp: time.Now().Add(-2 * time.Hour), IsWinning: true}
	if err := st.AddBid(ctx, bid); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RetractBid(ctx, "bid1", "buyerA", store.ReasonOther); err == nil {
		t.Fatal("expected rejection: retraction window expired")
	}
}

func TestRetractBid_RejectsOnEndedAuction(t *testing.T) {
	svc, st, a := newTestService(t)
	ctx := context.Background()
	bid := &store.Bid{ID: "bid1", AuctionID: a.ID, UserID: "buyerA", Amount: 1500, Timestamp: time.Now(), IsWinning: true}
	if err := st.AddBid(ctx, bid); err != nil {
		t.Fatal(err)
	}
	a.Status = store.StatusEnded
	if err := st.UpdateAuction(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RetractBid(ctx, "bid1", "buyerA", store.ReasonOther); err == nil {
		t.Fatal("expected rejection: auction already ended")
	}
}

func TestRetractBid_RejectsAlreadyRetracted(t *testing.T) {
	svc, st, a := newTestService(t)
	ctx := context.Background()
	now := time.Now()
	reason := store.ReasonOther
	bid := &store.Bid{
		ID: "bid1", AuctionID: a.ID, UserID: "buyerA", Amount: 1500, Timestamp: now,
		IsWinning: false, IsRetracted: true, RetractedAt: &now, RetractionReason: &reason,
	}
	if err := st.AddBid(ctx, bid); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RetractBid(ctx, "bid1", "buyerA", store.ReasonOther); err == nil {
		t.Fatal("expected rejection: bid already retracted")
	}
}

func TestRetractBid_RejectsUnknownReason(t *testing.T) {
	svc, st, a := newTestService(t)
	ctx := context.Background()
	bid := &store.Bid{ID: "bid1", AuctionID: a.ID, UserID: "buyerA", Amount: 1500, Timestamp: time.Now(), IsWinning: true}
	if err := st.AddBid(ctx, bid); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RetractBid(ctx, "bid1", "buyerA", store.RetractionReason("NOT_A_REAL_REASON")); err == nil {
		t.Fatal("expected rejection: unrecognized retraction reason")
	}
}

func TestCanRetract_ReportsEligibility(t *testing.T) {
	svc, st, a := newTestService(t)
	ctx := context.Background()
	bid := &store.Bid{ID: "bid1", AuctionID: a.ID, UserID: "buyerA", Amount: 1500, Timestamp: time.Now(), IsWinning: true}
	if err := st.AddBid(ctx, bid); err != nil {
		t.Fatal(err)
	}

	ok, reason, err := svc.CanRetract(ctx, "bid1", "buyerA")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || reason != "" {
		t.Fatalf("expected eligible, got ok=%v reason=%q", ok, reason)
	}

	ok, reason, err = svc.CanRetract(ctx, "bid1", "buyerB")
	if err != nil {
		t.Fatal(err)
	}
	if ok || reason != "not_owner" {
		t.Fatalf("expected not_owner, got ok=%v reason=%q", ok, reason)
	}
}
