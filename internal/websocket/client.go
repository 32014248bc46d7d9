package websocket

import (
	"encoding/json"
	"strings"
	"time"

	"slingshot-be/internal/pkg/logger"
	"slingshot-be/pkg/research/broadcast"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Conn is the part of the websocket connection the pumps use.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a middleman between the websocket connection and one session's
// event subscription.
type Client struct {
	Hub *Hub

	Conn Conn

	SessionID string

	// Events of the session, replay first.
	events *broadcast.Subscription

	// Buffered channel of direct replies such as "pong".
	Send chan []byte

	// Grace is how long the connection stays open after a terminal event.
	Grace time.Duration

	// Touch records activity on the session.
	Touch func()

	logger logger.ILogger
	done   chan struct{}
}

func NewClient(hub *Hub, conn Conn, sessionID string, sub *broadcast.Subscription, grace time.Duration, touch func(), log logger.ILogger) *Client {
	if touch == nil {
		touch = func() {}
	}
	return &Client{
		Hub:       hub,
		Conn:      conn,
		SessionID: sessionID,
		events:    sub,
		Send:      make(chan []byte, 8),
		Grace:     grace,
		Touch:     touch,
		logger:    log,
		done:      make(chan struct{}),
	}
}

// readPump answers text "ping" with "pong" and notices the peer leaving.
func (c *Client) readPump() {
	defer close(c.done)
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("StreamClient", "Unexpected close", map[string]interface{}{"session_id": c.SessionID, "error": err.Error()})
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.Touch()
		if strings.TrimSpace(string(msg)) == "ping" {
			select {
			case c.Send <- []byte("pong"):
			default:
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

func (c *Client) closeWith(code int, text string) {
	c.write(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

// writePump forwards session events to the connection. It owns every write.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.events.Close()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.events.C:
			if !ok {
				if c.events.Dropped() {
					c.closeWith(websocket.ClosePolicyViolation, "subscriber too slow")
				} else {
					c.closeWith(websocket.CloseNormalClosure, "")
				}
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				c.logger.Error("StreamClient", "Failed to encode event", map[string]interface{}{"session_id": c.SessionID, "error": err})
				continue
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
			if ev.Terminal() {
				if !(ev.Kind == broadcast.KindError && ev.Cancelled) {
					c.linger()
				}
				c.closeWith(websocket.CloseNormalClosure, string(ev.Kind))
				return
			}

		case msg := <-c.Send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// linger keeps answering pings for the grace period after a terminal event.
func (c *Client) linger() {
	timer := time.NewTimer(c.Grace)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return
		case <-c.done:
			return
		case msg := <-c.Send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
