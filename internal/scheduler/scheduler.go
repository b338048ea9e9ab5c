// Package scheduler implements the cooperative timer driving auction
// auto-start, auto-end, ending-soon notifications, and the
// independent fail-safe sweep.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rivalapexmediation/auctionhouse/internal/apperr"
	"github.com/rivalapexmediation/auctionhouse/internal/events"
	"github.com/rivalapexmediation/auctionhouse/internal/lifecycle"
	"github.com/rivalapexmediation/auctionhouse/internal/observability"
	"github.com/rivalapexmediation/auctionhouse/internal/store"
)

const endingSoonWindow = 300 * time.Second
const endingSoonThrottle = 30 * time.Second

// Stats is a snapshot of scheduler activity.
type Stats struct {
	Ticks             int64
	Started           int64
	Ended             int64
	EndingSoon        int64
	FailSafeTriggers  int64
	StartedAt         time.Time
}

// Scheduler runs the periodic lifecycle tick and the independent
// fail-safe sweep. Only one tick runs at a time; a tick still running
// when the next interval fires is skipped.
type Scheduler struct {
	store    store.Store
	life     *lifecycle.Service
	bus      *events.Bus
	interval time.Duration
	grace    time.Duration

	running int32

	mu          sync.Mutex
	lastWarned  map[string]time.Time

	ticks, started, ended, endingSoon, failsafe int64
	startedAt                                   time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Scheduler. interval is the tick period, grace is the
// fail-safe grace period past endTime before a forced end.
func New(st store.Store, life *lifecycle.Service, bus *events.Bus, interval, grace time.Duration) *Scheduler {
	return &Scheduler{
		store: st, life: life, bus: bus,
		interval: interval, grace: grace,
		lastWarned: map[string]time.Time{},
		stop:       make(chan struct{}),
	}
}

// Start launches the tick and fail-safe loops. Call Stop to halt them.
func (s *Scheduler) Start(ctx context.Context) {
	s.startedAt = time.Now()
	s.wg.Add(2)
	go s.tickLoop(ctx)
	go s.failSafeLoop(ctx)
}

// Stop halts both loops and waits for the current iteration to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) failSafeLoop(ctx context.Context) {
	defer s.wg.Done()
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			s.runFailSafe(ctx)
		}
	}
}

// tick runs one scheduling pass. Overlap with a still-running tick is
// prevented by a compare-and-swap flag: a tick that is already in
// flight is skipped entirely, and the next interval covers the
// accumulated work.
func (s *Scheduler) tick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&s.running, 0)

	atomic.AddInt64(&s.ticks, 1)
	now := time.Now()

	pending, err := s.store.GetAuctionsByStatus(ctx, store.StatusPending)
	if err != nil {
		log.WithError(err).Warn("scheduler: failed to load pending auctions")
	}
	for _, a := range pending {
		if now.Before(a.StartTime) {
			continue
		}
		if _, err := s.life.StartAuction(ctx, a.ID); err != nil {
			if e, ok := apperr.As(err); !ok || e.Kind != apperr.KindState {
				log.WithError(err).WithField("auction_id", a.ID).Warn("scheduler: failed to auto-start auction")
			}
			continue
		}
		atomic.AddInt64(&s.started, 1)
	}

	active, err := s.store.GetAuctionsByStatus(ctx, store.StatusActive)
	if err != nil {
		log.WithError(err).Warn("scheduler: failed to load active auctions")
	}
	for _, a := range active {
		remaining := a.EndTime.Sub(now)
		switch {
		case a.HasTimeLimit && remaining <= 0:
			if _, err := s.life.EndAuction(ctx, a.ID); err != nil {
				log.WithError(err).WithField("auction_id", a.ID).Warn("scheduler: failed to auto-end auction")
				continue
			}
			atomic.AddInt64(&s.ended, 1)
		case remaining > 0 && remaining <= endingSoonWindow:
			s.maybeWarnEndingSoon(a, remaining, now)
		}
	}
}

func (s *Scheduler) maybeWarnEndingSoon(a *store.Auction, remaining time.Duration, now time.Time) {
	s.mu.Lock()
	last, ok := s.lastWarned[a.ID]
	if ok && now.Sub(last) < endingSoonThrottle {
		s.mu.Unlock()
		return
	}
	s.lastWarned[a.ID] = now
	s.mu.Unlock()

	atomic.AddInt64(&s.endingSoon, 1)
	s.bus.Publish(events.Event{
		Name: events.AuctionEndingSoon, AuctionID: a.ID, Timestamp: now,
		Payload: map[string]any{"auction": a, "timeRemaining": remaining.Seconds()},
	})
}

// runFailSafe forces auctions that have overshot their endTime by
// more than the grace period to end, covering missed scheduler ticks.
func (s *Scheduler) runFailSafe(ctx context.Context) {
	now := time.Now()
	active, err := s.store.GetAuctionsByStatus(ctx, store.StatusActive)
	if err != nil {
		log.WithError(err).Warn("failsafe: failed to load active auctions")
		return
	}
	for _, a := range active {
		if !a.HasTimeLimit {
			continue
		}
		if now.Sub(a.EndTime) <= s.grace {
			continue
		}
		if _, err := s.life.EndAuction(ctx, a.ID); err != nil {
			log.WithError(err).WithField("auction_id", a.ID).Error("failsafe: failed to force-end auction")
			continue
		}
		atomic.AddInt64(&s.failsafe, 1)
		observability.Capture(observability.AuditEvent{
			AuctionID: a.ID, Operation: "failsafe_end", Outcome: "forced", CreatedAt: now,
		})
		log.WithField("auction_id", a.ID).Warn("failsafe: forced auction end past grace period")
	}
}

// GetStats returns a snapshot of scheduler activity counters.
func (s *Scheduler) GetStats() Stats {
	return Stats{
		Ticks:            atomic.LoadInt64(&s.ticks),
		Started:          atomic.LoadInt64(&s.started),
		Ended:            atomic.LoadInt64(&s.ended),
		EndingSoon:       atomic.LoadInt64(&s.endingSoon),
		FailSafeTriggers: atomic.LoadInt64(&s.failsafe),
		StartedAt:        s.startedAt,
	}
}
