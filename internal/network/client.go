// Package network provides the websocket transport: one Client per
// connection with read/write pumps, and a Hub that serializes inbound
// messages into the game service and fans events back out.
package network

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parlorgames/undercover/internal/gameserver"
)

const (
	// writeWait is the per-write deadline.
	writeWait = 10 * time.Second
	// pongWait is how long to wait for a pong before the connection is
	// considered dead.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// sendBuffer is the per-client outbound event buffer. When it fills,
	// further events for that client are dropped.
	sendBuffer = 64
)

// Client is one connected websocket peer. Its ID is the transport identity
// the game core keys players by; a reconnecting player gets a new Client
// and reclaims its seat by session token.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	send chan gameserver.Event
}

// ID returns the client's transport identity.
func (c *Client) ID() string { return c.id }

// readLoop pumps inbound envelopes into the hub until the connection
// drops, then unregisters the client.
func (c *Client) readLoop() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env gameserver.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("unexpected close",
					zap.String("client", c.id),
					zap.Error(err),
				)
			}
			return
		}
		c.hub.incoming <- inbound{client: c, env: env}
	}
}

// writeLoop pumps outbound events to the connection and keeps it alive
// with periodic pings.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is the outer layer's concern.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a websocket connection and registers
// a new Client with the hub.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		hub:  hub,
		send: make(chan gameserver.Event, sendBuffer),
	}
	hub.register <- client
	go client.writeLoop()
	go client.readLoop()
}
