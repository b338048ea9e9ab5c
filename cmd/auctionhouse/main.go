package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/rivalapexmediation/auctionhouse/internal/analytics"
	"github.com/rivalapexmediation/auctionhouse/internal/api"
	"github.com/rivalapexmediation/auctionhouse/internal/bidding"
	"github.com/rivalapexmediation/auctionhouse/internal/config"
	"github.com/rivalapexmediation/auctionhouse/internal/events"
	"github.com/rivalapexmediation/auctionhouse/internal/geoaudit"
	"github.com/rivalapexmediation/auctionhouse/internal/ladder"
	"github.com/rivalapexmediation/auctionhouse/internal/lifecycle"
	"github.com/rivalapexmediation/auctionhouse/internal/lock"
	"github.com/rivalapexmediation/auctionhouse/internal/observability"
	"github.com/rivalapexmediation/auctionhouse/internal/push"
	"github.com/rivalapexmediation/auctionhouse/internal/retraction"
	"github.com/rivalapexmediation/auctionhouse/internal/scheduler"
	"github.com/rivalapexmediation/auctionhouse/internal/store"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)

	cfg := config.Load()

	observability.SetRollingMetricsRecorder(observability.NewRollingMetricsRecorder(512))
	observability.SetTimeSeriesAggregator(observability.NewTimeSeriesAggregator(5*time.Minute, 7*24*time.Hour))
	observability.SetDebugger(observability.NewInMemoryDebugger(200))
	_ = observability.InstallOTelTracer()

	st, closeStore := buildStore(cfg)
	defer closeStore()

	kl, closeLock := buildLock(cfg)
	defer closeLock()

	bus := events.NewBus(128)

	lopts := lock.Options{Timeout: cfg.LockTimeout, MaxRetries: cfg.LockMaxRetries, RetryDelay: cfg.LockRetryDelay}

	lifeSvc := lifecycle.NewService(st, kl, bus, lopts)
	bidSvc := bidding.NewService(st, kl, bus, lopts, ladder.Default)
	retrSvc := retraction.NewService(st, kl, bus, lopts)

	sched := scheduler.New(st, lifeSvc, bus, cfg.SchedulerInterval, cfg.GracePeriod)
	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	defer sched.Stop()

	if cfg.EnableAnalyticsSink && cfg.ClickHouseDSN != "" {
		if sink, err := analytics.NewSink(cfg.ClickHouseDSN); err != nil {
			log.WithError(err).Warn("analytics sink disabled: failed to connect")
		} else {
			sink.Subscribe(ctx, bus)
			defer sink.Close()
		}
	}

	var enricher *geoaudit.Enricher
	if cfg.EnableGeoAudit && cfg.GeoIPDBPath != "" {
		enricher = geoaudit.NewEnricher(cfg.GeoIPDBPath)
		defer enricher.Close()
	}

	handlers := api.NewHandlers(lifeSvc, bidSvc, retrSvc, st, ladder.Default)
	router := api.NewRouter(handlers, cfg, enricher)

	hub := push.NewHub(bus)
	router.Handle("/ws", hub)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("starting auctionhouse on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Info("server exited")
}

func buildStore(cfg *config.Config) (store.Store, func()) {
	if cfg.StoreBackend == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Fatal("failed to connect to redis store backend")
		}
		return store.NewRedisStore(rdb), func() { _ = rdb.Close() }
	}
	return store.NewMemoryStore(), func() {}
}

func buildLock(cfg *config.Config) (lock.KeyedLock, func()) {
	if cfg.LockBackend == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Fatal("failed to connect to redis lock backend")
		}
		return lock.NewRedisKeyedLock(rdb), func() { _ = rdb.Close() }
	}
	kl := lock.NewMemoryKeyedLock(30 * time.Second)
	return kl, func() { kl.Close() }
}
