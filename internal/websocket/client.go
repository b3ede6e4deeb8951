package websocket

import (
	"time"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// sendBuffer bounds the envelopes queued for one dashboard before the hub
// drops it as too slow.
const sendBuffer = 16

// Client is one dashboard subscribed to the snapshot feed
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	// Snapshot envelopes waiting to be written. Only the newest one matters.
	send chan []byte

	pongWait   time.Duration
	pingPeriod time.Duration
	writeWait  time.Duration
	readLimit  int64

	connectedAt time.Time
	delivered   int
	logger      zerolog.Logger
}

// NewClient creates a feed subscriber for an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, cfg *config.Config, logger zerolog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:          id,
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		pongWait:    cfg.PongWait,
		pingPeriod:  cfg.PingPeriod,
		writeWait:   cfg.WriteWait,
		readLimit:   cfg.MaxMessageSize,
		connectedAt: time.Now(),
		logger:      logger.With().Str("client_id", id).Logger(),
	}
}

// readPump keeps the read deadline moving with pongs and notices when the
// dashboard goes away. Dashboards never send data; anything received is
// discarded.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.readLimit)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("dashboard connection lost")
			}
			return
		}
	}
}

// writePump delivers snapshots and pings. A dashboard that fell behind gets
// the latest snapshot only, one websocket message per snapshot.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.Debug().
			Int("delivered", c.delivered).
			Dur("connected_for", time.Since(c.connectedAt)).
			Msg("snapshot feed closed")
	}()

	for {
		select {
		case envelope, ok := <-c.send:
			if !ok {
				// Hub dropped this client or stopped
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, c.newest(envelope)); err != nil {
				return
			}
			c.delivered++

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// newest skips queued envelopes superseded by a later snapshot.
func (c *Client) newest(envelope []byte) []byte {
	for {
		select {
		case next, ok := <-c.send:
			if !ok {
				return envelope
			}
			envelope = next
		default:
			return envelope
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Start starts the client's read and write pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
