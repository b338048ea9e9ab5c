// Package config loads runtime configuration from the environment,
// the same pattern the platform's services use for twelve-factor
// deploys.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the auction engine. All fields have
// production defaults; every one is overridable via environment
// variable.
type Config struct {
	HTTPAddr string

	LockTimeout    time.Duration
	LockMaxRetries int
	LockRetryDelay time.Duration

	SchedulerInterval time.Duration
	GracePeriod       time.Duration
	BidGracePeriod    time.Duration

	MinAuctionDuration  time.Duration
	EndingSoonThreshold time.Duration

	MaxBidsPerMinute     int
	MaxRequestsPerMinute int

	StoreBackend string // "memory" or "redis"
	LockBackend  string // "memory" or "redis"
	RedisAddr    string

	EnableAnalyticsSink bool
	ClickHouseDSN       string

	EnableGeoAudit bool
	GeoIPDBPath    string
}

// Load reads configuration from the environment, falling back to
// production defaults for anything unset.
func Load() *Config {
	return &Config{
		HTTPAddr: envString("AUCTIONHOUSE_HTTP_ADDR", ":8080"),

		LockTimeout:    envDuration("AUCTIONHOUSE_LOCK_TIMEOUT", 500*time.Millisecond),
		LockMaxRetries: envInt("AUCTIONHOUSE_LOCK_MAX_RETRIES", 3),
		LockRetryDelay: envDuration("AUCTIONHOUSE_LOCK_RETRY_DELAY", 100*time.Millisecond),

		SchedulerInterval: envDuration("AUCTIONHOUSE_SCHEDULER_INTERVAL", 5000*time.Millisecond),
		GracePeriod:       envDuration("AUCTIONHOUSE_GRACE_PERIOD", 60000*time.Millisecond),
		BidGracePeriod:    envDuration("AUCTIONHOUSE_BID_GRACE_PERIOD", 2000*time.Millisecond),

		MinAuctionDuration:  envDuration("AUCTIONHOUSE_MIN_AUCTION_DURATION", 5*time.Minute),
		EndingSoonThreshold: envDuration("AUCTIONHOUSE_ENDING_SOON_THRESHOLD", 60*time.Second),

		MaxBidsPerMinute:     envInt("AUCTIONHOUSE_MAX_BIDS_PER_MINUTE", 10),
		MaxRequestsPerMinute: envInt("AUCTIONHOUSE_MAX_REQUESTS_PER_MINUTE", 100),

		StoreBackend: envString("AUCTIONHOUSE_STORE_BACKEND", "memory"),
		LockBackend:  envString("AUCTIONHOUSE_LOCK_BACKEND", "memory"),
		RedisAddr:    envString("AUCTIONHOUSE_REDIS_ADDR", "localhost:6379"),

		EnableAnalyticsSink: envBool("AUCTIONHOUSE_ENABLE_ANALYTICS_SINK", false),
		ClickHouseDSN:       envString("AUCTIONHOUSE_CLICKHOUSE_DSN", ""),

		EnableGeoAudit: envBool("AUCTIONHOUSE_ENABLE_GEO_AUDIT", false),
		GeoIPDBPath:    envString("AUCTIONHOUSE_GEOIP_DB_PATH", ""),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
