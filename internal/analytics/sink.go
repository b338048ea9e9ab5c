// Package analytics is an optional ClickHouse-backed sink for bid and
// auction lifecycle events, subscribed to the global EventBus topic
// for dashboards and historical reporting outside the hot path.
package analytics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"

	"github.com/rivalapexmediation/auctionhouse/internal/events"
	"github.com/rivalapexmediation/auctionhouse/internal/store"
)

// BidRecord is one row of the bids table.
type BidRecord struct {
	EventID   string
	AuctionID string
	UserID    string
	Amount    int64
	IsWinning bool
	IsProxy   bool
	Timestamp time.Time
}

// AuctionRecord is one row of the auction_lifecycle table.
type AuctionRecord struct {
	EventID   string
	AuctionID string
	Status    string
	Timestamp time.Time
}

// Sink writes analytics rows to ClickHouse.
type Sink struct {
	conn driver.Conn
}

// NewSink connects to ClickHouse at addr and initializes the schema.
func NewSink(addr string) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "auctionhouse",
			Username: "default",
			Password: "",
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	s := &Sink{conn: conn}
	if err := s.initSchema(context.Background()); err != nil {
		log.WithError(err).Warn("analytics: schema initialization skipped")
	}
	log.Info("analytics: connected to ClickHouse")
	return s, nil
}

func (s *Sink) Close() error { return s.conn.Close() }

func (s *Sink) initSchema(ctx context.Context) error {
	bidsSQL := `
	CREATE TABLE IF NOT EXISTS bids (
		event_id String,
		auction_id String,
		user_id String,
		amount Int64,
		is_winning UInt8,
		is_proxy UInt8,
		timestamp DateTime,
		date Date MATERIALIZED toDate(timestamp)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(date)
	ORDER BY (auction_id, date, timestamp)
	TTL date + INTERVAL 365 DAY
	`
	if err := s.conn.Exec(ctx, bidsSQL); err != nil {
		return err
	}

	lifecycleSQL := `
	CREATE TABLE IF NOT EXISTS auction_lifecycle (
		event_id String,
		auction_id String,
		status String,
		timestamp DateTime,
		date Date MATERIALIZED toDate(timestamp)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(date)
	ORDER BY (auction_id, date, timestamp)
	TTL date + INTERVAL 365 DAY
	`
	return s.conn.Exec(ctx, lifecycleSQL)
}

func (s *Sink) insertBid(ctx context.Context, r BidRecord) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO bids")
	if err != nil {
		return err
	}
	winning := uint8(0)
	if r.IsWinning {
		winning = 1
	}
	proxy := uint8(0)
	if r.IsProxy {
		proxy = 1
	}
	if err := batch.Append(r.EventID, r.AuctionID, r.UserID, r.Amount, winning, proxy, r.Timestamp); err != nil {
		return err
	}
	return batch.Send()
}

func (s *Sink) insertLifecycle(ctx context.Context, r AuctionRecord) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO auction_lifecycle")
	if err != nil {
		return err
	}
	if err := batch.Append(r.EventID, r.AuctionID, r.Status, r.Timestamp); err != nil {
		return err
	}
	return batch.Send()
}

// Subscribe joins the EventBus global topic and writes every bid and
// lifecycle event to ClickHouse until ctx is cancelled. Runs on its
// own goroutine; failures are logged, never propagated to the bus.
func (s *Sink) Subscribe(ctx context.Context, bus *events.Bus) {
	ch, handle := bus.Subscribe("")
	go func() {
		defer bus.Unsubscribe(handle)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				s.handle(ctx, ev)
			}
		}
	}()
}

func (s *Sink) handle(ctx context.Context, ev events.Event) {
	payload, _ := ev.Payload.(map[string]any)
	switch ev.Name {
	case events.BidPlaced, events.BidRetracted:
		bid, _ := payload["bid"].(*store.Bid)
		rec := bidRecordFromBid(ev, bid)
		if err := s.insertBid(ctx, rec); err != nil {
			log.WithError(err).Warn("analytics: failed to insert bid record")
		}
	case events.AuctionCreated, events.AuctionStarted, events.AuctionEnded, events.AuctionUpdated:
		rec := AuctionRecord{EventID: eventID(), AuctionID: ev.AuctionID, Status: string(ev.Name), Timestamp: ev.Timestamp}
		if err := s.insertLifecycle(ctx, rec); err != nil {
			log.WithError(err).Warn("analytics: failed to insert lifecycle record")
		}
	}
}

func bidRecordFromBid(ev events.Event, b *store.Bid) BidRecord {
	rec := BidRecord{EventID: eventID(), AuctionID: ev.AuctionID, Timestamp: ev.Timestamp}
	if b != nil {
		rec.UserID = b.UserID
		rec.Amount = b.Amount
		rec.IsWinning = b.IsWinning
		rec.IsProxy = b.IsProxyBid
	}
	return rec
}

var seq uint64

func eventID() string {
	seq++
	return time.Now().UTC().Format("20060102150405.000000000")
}
