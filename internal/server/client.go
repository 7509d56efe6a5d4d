package server

import (
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	sendBufferSize = 256
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
)

var (
	errSendBufferFull = errors.New("send buffer full")
	errClientClosed   = errors.New("client closed")
)

// Client is one websocket connection. It implements relay.Conn so the relay
// can address it directly.
type Client struct {
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	maxMessageSize int64
	limiter        *rate.Limiter
	rateLimit      RateLimitConfig

	// closed is owned by the hub goroutine, as are all calls to Send.
	closed bool
}

// NewClient wraps an upgraded connection. The limiter admits rl.Burst frames
// per rl.RefillInterval, refilling continuously.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, maxMessageSize int64, rl RateLimitConfig) *Client {
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
	}
	perSecond := rate.Limit(float64(rl.Burst) / rl.RefillInterval.Seconds())

	return &Client{
		conn:           conn,
		send:           make(chan []byte, sendBufferSize),
		hub:            hub,
		addr:           addr,
		maxMessageSize: maxMessageSize,
		limiter:        rate.NewLimiter(perSecond, rl.Burst),
		rateLimit:      rl,
	}
}

// Send queues one frame without blocking. A client that cannot keep up is
// closed; its read pump then reports the disconnect to the hub.
func (c *Client) Send(payload []byte) error {
	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		log.Warn().Str("remote_addr", c.addr).Int("buffer", cap(c.send)).Msg("send buffer full; closing client")
		c.closeSend()
		return errSendBufferFull
	}
}

// closeSend closes the outbound queue once, which makes the write pump send a
// close frame and drop the connection.
func (c *Client) closeSend() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Debug().Err(err).Str("remote_addr", c.addr).Msg("error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Debug().Err(err).Str("remote_addr", c.addr).Msg("error setting read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError logs the read failure at a level matching its cause.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Warn().Str("remote_addr", c.addr).Int64("limit", c.maxMessageSize).Msg("message exceeded maximum size")

	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Info().Err(err).Str("remote_addr", c.addr).Msg("client disconnected")

	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		log.Info().Err(err).Str("remote_addr", c.addr).Msg("client connection closed")

	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		log.Warn().Err(err).Str("remote_addr", c.addr).Msg("unexpected websocket close")

	default:
		log.Warn().Err(err).Str("remote_addr", c.addr).Msg("websocket read error")
	}
}

// allowFrame reports whether the client is within its rate limit.
func (c *Client) allowFrame() bool {
	if c.limiter.Allow() {
		return true
	}
	log.Warn().
		Str("remote_addr", c.addr).
		Int("burst", c.rateLimit.Burst).
		Dur("interval", c.rateLimit.RefillInterval).
		Msg("rate limit exceeded; discarding message")
	return false
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Debug().Err(err).Str("remote_addr", c.addr).Msg("error closing connection in readPump")
		}
	}()

	c.setupReadConnection()

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if !c.allowFrame() {
			continue
		}
		if !c.hub.submit(inboundFrame{client: c, payload: payload}) {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Debug().Err(err).Str("remote_addr", c.addr).Msg("error closing connection in writePump")
	}
}

// handleMessage writes one queued message as its own frame and returns false
// if the connection should be closed.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Debug().Err(err).Str("remote_addr", c.addr).Msg("error setting write deadline")
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			log.Warn().Err(err).Str("remote_addr", c.addr).Msg("error writing message")
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		log.Debug().Err(err).Str("remote_addr", c.addr).Msg("error writing close message")
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Debug().Err(err).Str("remote_addr", c.addr).Msg("error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Debug().Err(err).Str("remote_addr", c.addr).Msg("error writing ping message")
		return false
	}
	return true
}
