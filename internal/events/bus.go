// Package events implements the EventBus: per-auction topics plus
// a global broadcast topic, fanning out lifecycle and bid events to
// subscribers. Delivery is best-effort, at-most-once, fire-and-forget;
// a slow subscriber has its frame dropped rather than stall the bus.
package events

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Name enumerates the event types published over the bus.
type Name string

const (
	BidPlaced        Name = "BID_PLACED"
	BidRetracted     Name = "BID_RETRACTED"
	AuctionCreated   Name = "AUCTION_CREATED"
	AuctionStarted   Name = "AUCTION_STARTED"
	AuctionEnded     Name = "AUCTION_ENDED"
	AuctionEndingSoon Name = "AUCTION_ENDING_SOON"
	YouWereOutbid    Name = "YOU_WERE_OUTBID"
	AuctionUpdated   Name = "AUCTION_UPDATED"
)

// Event is one message on the bus: a name, the auction it concerns
// (empty for pure-global events, of which there currently are none), a
// timestamp, and an arbitrary JSON-able payload.
type Event struct {
	Name      Name      `json:"event"`
	AuctionID string    `json:"auction_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

const globalTopic = "*"

// subscriber is one listener's buffered mailbox.
type subscriber struct {
	ch chan Event
}

// Bus is the concrete EventBus: topic (auctionID) subscriptions plus a
// global topic, each subscriber backed by a bounded buffered channel
// so a slow consumer cannot block publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
	bufferSize  int
}

// NewBus creates an EventBus. bufferSize <= 0 defaults to 64 frames
// per subscriber mailbox before frames start dropping.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		subscribers: map[string]map[*subscriber]struct{}{},
		bufferSize:  bufferSize,
	}
}

// Handle is an opaque subscription handle for Unsubscribe.
type Handle struct {
	topic string
	sub   *subscriber
}

// Subscribe joins topic (an auctionID, or "" for the global topic) and
// returns a receive channel plus a handle to unsubscribe later.
func (b *Bus) Subscribe(topic string) (<-chan Event, Handle) {
	if topic == "" {
		topic = globalTopic
	}
	sub := &subscriber{ch: make(chan Event, b.bufferSize)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = map[*subscriber]struct{}{}
	}
	b.subscribers[topic][sub] = struct{}{}
	return sub.ch, Handle{topic: topic, sub: sub}
}

// Unsubscribe leaves a topic and closes the subscriber's channel.
func (b *Bus) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subscribers[h.topic]; ok {
		if _, present := subs[h.sub]; present {
			delete(subs, h.sub)
			close(h.sub.ch)
		}
	}
}

// Publish fans ev out to the auction topic (if ev.AuctionID is set)
// and the global topic. Non-blocking: a full subscriber mailbox drops
// the frame and logs at WARN rather than stalling the publisher.
// The bidding, lifecycle and retraction services call Publish from
// inside the keyed-lock callback that produced the state change, so
// fan-out to subscriber mailboxes happens while that lock is held.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topics := []string{globalTopic}
	if ev.AuctionID != "" {
		topics = append(topics, ev.AuctionID)
	}
	for _, topic := range topics {
		for sub := range b.subscribers[topic] {
			select {
			case sub.ch <- ev:
			default:
				log.WithFields(log.Fields{
					"event": ev.Name,
					"topic": topic,
				}).Warn("event bus subscriber mailbox full, dropping frame")
			}
		}
	}
}
