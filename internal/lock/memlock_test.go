package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rivalapexmediation/auctionhouse/internal/apperr"
)

func TestMemoryKeyedLock_MutualExclusion(t *testing.T) {
	l := NewMemoryKeyedLock(50 * time.Millisecond)
	defer l.Close()

	var counter int
	var wg sync.WaitGroup
	opts := Options{Timeout: 200 * time.Millisecond, MaxRetries: 20, RetryDelay: 5 * time.Millisecond}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.WithLock(context.Background(), "auction-1", opts, func(ctx context.Context) error {
				cur := counter
				time.Sleep(time.Millisecond)
				counter = cur + 1
				return nil
			})
		}()
	}
	wg.Wait()
	if counter != 20 {
		t.Fatalf("counter = %d, want 20 (lock failed to serialize)", counter)
	}
}

func TestMemoryKeyedLock_BusyAfterRetries(t *testing.T) {
	l := NewMemoryKeyedLock(time.Second)
	defer l.Close()

	holdRelease := make(chan struct{})
	started := make(chan struct{})
	go l.WithLock(context.Background(), "k", Options{Timeout: time.Second, MaxRetries: 0, RetryDelay: time.Millisecond}, func(ctx context.Context) error {
		close(started)
		<-holdRelease
		return nil
	})
	<-started

	err := l.WithLock(context.Background(), "k", Options{Timeout: time.Second, MaxRetries: 2, RetryDelay: 5 * time.Millisecond}, func(ctx context.Context) error {
		return nil
	})
	close(holdRelease)

	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindContention {
		t.Fatalf("expected contention error, got %v", err)
	}
}

func TestMemoryKeyedLock_IndependentKeysDoNotBlock(t *testing.T) {
	l := NewMemoryKeyedLock(time.Second)
	defer l.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go l.WithLock(context.Background(), "a", Options{Timeout: time.Second, MaxRetries: 0}, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	done := make(chan struct{})
	go func() {
		l.WithLock(context.Background(), "b", Options{Timeout: time.Second, MaxRetries: 0}, func(ctx context.Context) error {
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on key b blocked by unrelated key a")
	}
	close(release)
}

func TestMemoryKeyedLock_SweeperReclaimsExpiredLease(t *testing.T) {
	l := NewMemoryKeyedLock(10 * time.Millisecond)
	defer l.Close()

	// Simulate a crashed holder: acquire with a very short timeout and
	// never release (no call to fn returns naturally releases it, so
	// force it via a blocking fn that outlives the lease).
	go l.WithLock(context.Background(), "crash", Options{Timeout: 20 * time.Millisecond, MaxRetries: 0}, func(ctx context.Context) error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})
	time.Sleep(50 * time.Millisecond) // lease expired, sweeper should reclaim

	acquired := make(chan struct{})
	go l.WithLock(context.Background(), "crash", Options{Timeout: time.Second, MaxRetries: 5, RetryDelay: 10 * time.Millisecond}, func(ctx context.Context) error {
		close(acquired)
		return nil
	})
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("expired lease was never reclaimed")
	}
}
