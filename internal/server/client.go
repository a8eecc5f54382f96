// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/channelchat/internal/chat"
	"github.com/Tyrowin/channelchat/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one WebSocket connection. It reads requests one at a time,
// answers them in order, and carries pushed events on the same send queue.
type Client struct {
	id             chat.ConnID
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	dispatcher     *dispatcher
	log            *slog.Logger
	addr           string
	closed         bool // guarded by hub.mutex
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig

	usersMu sync.Mutex
	users   map[string]struct{}
}

// newClient creates a Client for conn. The send channel is buffered to
// absorb bursts of broadcasts.
func newClient(id chat.ConnID, conn *websocket.Conn, hub *Hub, d *dispatcher, cfg Config, addr string) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		hub:            hub,
		dispatcher:     d,
		log:            hub.log.With("conn_id", id, "addr", addr),
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit()),
		rateLimit:      cfg.RateLimit(),
		users:          make(map[string]struct{}),
	}
}

// ID returns the connection id used as the user's live connection handle.
func (c *Client) ID() chat.ConnID {
	return c.id
}

// authenticated remembers that name logged in over this connection so the
// handle can be detached when the socket closes.
func (c *Client) authenticated(name string) {
	c.usersMu.Lock()
	defer c.usersMu.Unlock()
	c.users[name] = struct{}{}
}

func (c *Client) detachUsers() {
	c.usersMu.Lock()
	names := make([]string, 0, len(c.users))
	for name := range c.users {
		names = append(names, name)
	}
	c.usersMu.Unlock()

	for _, name := range names {
		c.dispatcher.disconnect(name, c.id)
	}
}

func (c *Client) extendReadDeadline() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Debug("error setting read deadline", "error", err)
	}
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})
}

// handleReadError logs the read failure at a level that matches its cause.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("request exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("client disconnected", "error", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("client connection closed", "error", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("unexpected websocket close", "error", err)
	default:
		c.log.Warn("websocket read error", "error", err)
	}
}

// processMessage decodes one request frame, runs it and queues the response.
func (c *Client) processMessage(raw []byte) {
	// Every inbound frame costs a token, decodable or not.
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.rejectRateLimited(raw)
		return
	}

	frame, err := protocol.Decode(raw)
	if err != nil {
		c.log.Debug("invalid frame", "error", err)
		c.reply(protocol.NewError(0, protocol.KindBadRequest, err.Error()))
		return
	}
	req, err := frame.Request()
	if err != nil {
		c.log.Debug("invalid request", "error", err)
		c.reply(protocol.NewError(0, protocol.KindBadRequest, err.Error()))
		return
	}

	c.reply(c.dispatcher.dispatch(c.hub.ctx, c, req))
}

// rejectRateLimited answers a throttled frame. The reply carries the request
// id when the frame is a well-formed request and 0 otherwise.
func (c *Client) rejectRateLimited(raw []byte) {
	var (
		id uint64
		op string
	)
	if frame, err := protocol.Decode(raw); err == nil {
		if req, err := frame.Request(); err == nil {
			id, op = req.ID, req.Op
		}
	}

	c.log.Warn("rate limit exceeded; discarding request",
		"op", op,
		"burst", c.rateLimit.Burst,
		"interval", c.rateLimit.RefillInterval)
	c.reply(protocol.NewError(id, protocol.KindRateLimited, "rate limit exceeded"))
}

func (c *Client) reply(resp protocol.Response) {
	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		c.log.Error("error encoding response", "id", resp.ID, "error", err)
		return
	}
	err = c.hub.Push(c.id, data)
	switch {
	case err == nil:
	case errors.Is(err, ErrSendBufferFull):
		// A response is never dropped silently; the peer sees the close.
		c.log.Warn("send buffer full; closing connection", "id", resp.ID)
		c.closeConnection()
	default:
		c.log.Warn("response dropped", "id", resp.ID, "error", err)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.detachUsers()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("error closing connection in readPump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.extendReadDeadline()
		c.processMessage(raw)
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
	case <-c.hub.ctx.Done():
		return false
	}
}

// closeConnection closes the WebSocket connection, ignoring expected errors.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("error closing connection", "error", err)
	}
}

// handleMessage writes one frame and returns false if the connection should be closed.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug("error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing frame", "error", err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("error writing close message", "error", err)
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug("error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug("error writing ping", "error", err)
		return false
	}
	return true
}
