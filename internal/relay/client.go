package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Upload payloads travel
	// embedded in events, so this is sized for blobs, not chat lines.
	maxMessageSize = 32 << 20

	// Outbound queue per client; a full queue drops events instead of
	// stalling the room.
	sendQueueSize = 256
)

// Client pumps one websocket connection: inbound frames become session
// events, the session's outbound events become frames. The write side
// is fed exclusively through the buffered send channel. The channel is
// never closed: detached upload goroutines may still Send after the
// connection died, so shutdown is signalled through done instead.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	closed  sync.Once
	session *Session
}

// NewClient wraps an upgraded connection and binds a fresh session to
// it. Run starts the pumps.
func NewClient(ctrl *Controller, hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	c.session = NewSession(ctrl, hub, c)
	return c
}

// Send queues an event for delivery. Returns false when the client is
// gone or its queue is full and the event was dropped.
func (c *Client) Send(e Event) bool {
	data, err := json.Marshal(e)
	if err != nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Run drives both pumps; it returns when the connection dies.
func (c *Client) Run() {
	GetMetrics().RecordConnect()
	go c.writePump()
	c.readPump()
}

// readPump relays inbound frames into the session until the peer goes
// away, then tears the session down. Session teardown is what clears
// room membership, so it must run on every exit path.
func (c *Client) readPump() {
	defer func() {
		c.session.Close()
		c.closed.Do(func() { close(c.done) })
		c.conn.Close()
		GetMetrics().RecordDisconnect()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				Warn("websocket read error", map[string]any{"session": c.session.ID(), "err": err.Error()})
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var e Event
		if err := json.Unmarshal(message, &e); err != nil {
			c.Send(newEvent(EvtError, errorEvt{Reason: "malformed event"}))
			continue
		}
		c.session.HandleEvent(e)
	}
}

// writePump drains the send queue onto the wire and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
