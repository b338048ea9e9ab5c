package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rivalapexmediation/auctionhouse/internal/events"
	"github.com/rivalapexmediation/auctionhouse/internal/lifecycle"
	"github.com/rivalapexmediation/auctionhouse/internal/lock"
	"github.com/rivalapexmediation/auctionhouse/internal/store"
)

func newTestScheduler(t *testing.T) (*Scheduler, store.Store, *events.Bus) {
	t.Helper()
	st := store.NewMemoryStore()
	kl := lock.NewMemoryKeyedLock(time.Second)
	t.Cleanup(kl.Close)
	bus := events.NewBus(16)
	life := lifecycle.NewService(st, kl, bus, lock.DefaultOptions())
	sch := New(st, life, bus, time.Hour, time.Minute)
	return sch, st, bus
}

func pendingAuction(id string, startTime time.Time) *store.Auction {
	return &store.Auction{
		ID: id, Title: "Item", StartingPrice: 1000, CurrentPrice: 1000,
		MinimumBidIncrement: 100, StartTime: startTime, EndTime: startTime.Add(time.Hour),
		HasTimeLimit: true, Status: store.StatusPending, CreatedBy: "seller",
		CreatedAt: time.Now(),
	}
}

func TestTick_AutoStartsPendingAuctionPastStartTime(t *testing.T) {
	sch, st, _ := newTestScheduler(t)
	ctx := context.Background()

	a := pendingAuction("auc1", time.Now().Add(-time.Minute))
	if err := st.CreateAuction(ctx, a); err != nil {
		t.Fatal(err)
	}

	sch.tick(ctx)

	got, err := st.GetAuction(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", got.Status)
	}
	if sch.GetStats().Started != 1 {
		t.Fatalf("expected Started counter 1, got %d", sch.GetStats().Started)
	}
}

func TestTick_LeavesPendingAuctionBeforeStartTime(t *testing.T) {
	sch, st, _ := newTestScheduler(t)
	ctx := context.Background()

	a := pendingAuction("auc1", time.Now().Add(time.Hour))
	if err := st.CreateAuction(ctx, a); err != nil {
		t.Fatal(err)
	}

	sch.tick(ctx)

	got, err := st.GetAuction(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusPending {
		t.Fatalf("expected still PENDING, got %s", got.Status)
	}
	if sch.GetStats().Started != 0 {
		t.Fatalf("expected Started counter 0, got %d", sch.GetStats().Started)
	}
}

func TestTick_AutoEndsActiveAuctionPastEndTime(t *testing.T) {
	sch, st, _ := newTestScheduler(t)
	ctx := context.Background()

	a := &store.Auction{
		ID: "auc1", Title: "Item", StartingPrice: 1000, CurrentPrice: 1000,
		MinimumBidIncrement: 100, StartTime: time.Now().Add(-time.Hour),
		EndTime: time.Now().Add(-time.Minute), HasTimeLimit: true,
		Status: store.StatusActive, CreatedBy: "seller", CreatedAt: time.Now(),
	}
	if err := st.CreateAuction(ctx, a); err != nil {
		t.Fatal(err)
	}

	sch.tick(ctx)

	got, err := st.GetAuction(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusUnsold {
		t.Fatalf("expected UNSOLD (no bids, no reserve problem but also no winner), got %s", got.Status)
	}
	if sch.GetStats().Ended != 1 {
		t.Fatalf("expected Ended counter 1, got %d", sch.GetStats().Ended)
	}
}

func TestTick_PublishesThrottledEndingSoonWarning(t *testing.T) {
	sch, st, bus := newTestScheduler(t)
	ctx := context.Background()

	ch, handle := bus.Subscribe("auc1")
	defer bus.Unsubscribe(handle)

	a := &store.Auction{
		ID: "auc1", Title: "Item", StartingPrice: 1000, CurrentPrice: 1000,
		MinimumBidIncrement: 100, StartTime: time.Now().Add(-time.Hour),
		EndTime: time.Now().Add(100 * time.Second), HasTimeLimit: true,
		Status: store.StatusActive, CreatedBy: "seller", CreatedAt: time.Now(),
	}
	if err := st.CreateAuction(ctx, a); err != nil {
		t.Fatal(err)
	}

	sch.tick(ctx)

	select {
	case ev := <-ch:
		if ev.Name != events.AuctionEndingSoon {
			t.Fatalf("expected AUCTION_ENDING_SOON, got %s", ev.Name)
		}
	default:
		t.Fatal("expected an ending-soon event to be published")
	}
	if sch.GetStats().EndingSoon != 1 {
		t.Fatalf("expected EndingSoon counter 1, got %d", sch.GetStats().EndingSoon)
	}

	// A second tick within the throttle window must not warn again.
	sch.tick(ctx)
	select {
	case ev := <-ch:
		t.Fatalf("expected no second warning within the throttle window, got %v", ev)
	default:
	}
	if sch.GetStats().EndingSoon != 1 {
		t.Fatalf("expected EndingSoon counter to stay 1, got %d", sch.GetStats().EndingSoon)
	}
}

func TestRunFailSafe_ForcesEndPastGracePeriod(t *testing.T) {
	sch, st, _ := newTestScheduler(t)
	ctx := context.Background()

	a := &store.Auction{
		ID: "auc1", Title: "Item", StartingPrice: 1000, CurrentPrice: 1000,
		MinimumBidIncrement: 100, StartTime: time.Now().Add(-2 * time.Hour),
		EndTime: time.Now().Add(-2 * time.Minute), HasTimeLimit: true,
		Status: store.StatusActive, CreatedBy: "seller", CreatedAt: time.Now(),
	}
	if err := st.CreateAuction(ctx, a); err != nil {
		t.Fatal(err)
	}

	sch.runFailSafe(ctx)

	got, err := st.GetAuction(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusUnsold {
		t.Fatalf("expected UNSOLD, got %s", got.Status)
	}
	if sch.GetStats().FailSafeTriggers != 1 {
		t.Fatalf("expected FailSafeTriggers counter 1, got %d", sch.GetStats().FailSafeTriggers)
	}
}

func TestRunFailSafe_LeavesAuctionWithinGracePeriod(t *testing.T) {
	sch, st, _ := newTestScheduler(t)
	ctx := context.Background()

	a := &store.Auction{
		ID: "auc1", Title: "Item", StartingPrice: 1000, CurrentPrice: 1000,
		MinimumBidIncrement: 100, StartTime: time.Now().Add(-2 * time.Hour),
		EndTime: time.Now().Add(-10 * time.Second), HasTimeLimit: true,
		Status: store.StatusActive, CreatedBy: "seller", CreatedAt: time.Now(),
	}
	if err := st.CreateAuction(ctx, a); err != nil {
		t.Fatal(err)
	}

	sch.runFailSafe(ctx)

	got, err := st.GetAuction(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusActive {
		t.Fatalf("expected still ACTIVE within grace period, got %s", got.Status)
	}
	if sch.GetStats().FailSafeTriggers != 0 {
		t.Fatalf("expected FailSafeTriggers counter 0, got %d", sch.GetStats().FailSafeTriggers)
	}
}
