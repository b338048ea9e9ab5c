// Package push exposes the EventBus over WebSocket: clients subscribe
// to an auction (or the global feed) and receive tagged event frames
// as they are published.
package push

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/rivalapexmediation/auctionhouse/internal/events"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
	sendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// controlFrame is a client-sent subscribe/unsubscribe instruction.
// Topic is an auctionID, or empty for the global feed.
type controlFrame struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	Topic  string `json:"topic"`
}

// eventFrame is a server-sent tagged event.
type eventFrame struct {
	Topic string       `json:"topic"`
	Event events.Event `json:"event"`
}

// Hub upgrades HTTP connections to WebSocket and relays EventBus
// traffic to each connection's active subscriptions.
type Hub struct {
	bus *events.Bus
}

func NewHub(bus *events.Bus) *Hub {
	return &Hub{bus: bus}
}

// ServeHTTP upgrades the connection and runs its read/write pumps
// until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("push: websocket upgrade failed")
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan eventFrame, sendBuffer), subs: map[string]events.Handle{}}
	go c.writePump()
	c.readPump()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan eventFrame

	mu   sync.Mutex
	subs map[string]events.Handle
}

func (c *client) readPump() {
	defer c.close()
	c.conn.SetReadLimit(1 << 16)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame controlFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		switch frame.Action {
		case "subscribe":
			c.subscribe(frame.Topic)
		case "unsubscribe":
			c.unsubscribe(frame.Topic)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[topic]; ok {
		return
	}
	ch, handle := c.hub.bus.Subscribe(topic)
	c.subs[topic] = handle
	go c.relay(topic, ch)
}

func (c *client) unsubscribe(topic string) {
	c.mu.Lock()
	handle, ok := c.subs[topic]
	if ok {
		delete(c.subs, topic)
	}
	c.mu.Unlock()
	if ok {
		c.hub.bus.Unsubscribe(handle)
	}
}

func (c *client) relay(topic string, ch <-chan events.Event) {
	for ev := range ch {
		select {
		case c.send <- eventFrame{Topic: topic, Event: ev}:
		default:
			log.WithField("topic", topic).Warn("push: client send buffer full, dropping frame")
		}
	}
}

func (c *client) close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = map[string]events.Handle{}
	c.mu.Unlock()
	for _, handle := range subs {
		c.hub.bus.Unsubscribe(handle)
	}
}
