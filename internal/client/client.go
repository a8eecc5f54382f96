// Package client provides a WebSocket client for the channel chat server.
// Requests are correlated with their responses by id, and pushed events are
// delivered to handlers registered with OnEvent.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/Tyrowin/channelchat/internal/chat"
	"github.com/Tyrowin/channelchat/internal/protocol"
)

var (
	// ErrNotConnected is returned by calls made before Connect succeeded.
	ErrNotConnected = errors.New("not connected to server")
	// ErrClosed is returned for calls still waiting when the connection ends.
	ErrClosed = errors.New("connection closed")
)

const writeWait = 10 * time.Second

// RemoteError is an error response from the server. It matches the chat
// sentinel errors with errors.Is, so callers can test for chat.ErrPermission
// without inspecting the kind.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Kind + ": " + e.Message
}

// Is reports whether target is the chat sentinel for this error's kind.
func (e *RemoteError) Is(target error) bool {
	sentinel := chat.ErrorForKind(e.Kind)
	return sentinel != nil && sentinel == target
}

// EventHandler receives the arguments of a pushed event.
type EventHandler func(args []json.RawMessage)

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the default WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithHeader sets headers sent with the upgrade request, such as Origin.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h.Clone() }
}

// WithPath sets the WebSocket endpoint path. The default is /ws.
func WithPath(path string) Option {
	return func(c *Client) { c.path = path }
}

// Client is a chat connection for one user. A Client connects once; create
// a new one to reconnect.
type Client struct {
	log    *slog.Logger
	dialer *websocket.Dialer
	header http.Header
	path   string

	mu      sync.Mutex
	conn    *websocket.Conn
	session *protocol.Session
	pending map[uint64]chan protocol.Response
	done    chan struct{}

	writeMu sync.Mutex
	nextID  atomic.Uint64

	handlersMu sync.RWMutex
	handlers   map[string][]EventHandler

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates an unconnected Client.
func New(log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		log:      log,
		dialer:   &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		path:     "/ws",
		pending:  make(map[uint64]chan protocol.Response),
		handlers: make(map[string][]EventHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the socket and authenticates as name. The account is created
// on first use. On failure the socket is closed again.
func (c *Client) Connect(ctx context.Context, host string, port int, name, password string) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return errors.New("already connected")
	}
	c.mu.Unlock()

	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(port)), Path: c.path}
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop(conn, done)

	var session protocol.Session
	if err := c.call(ctx, protocol.OpAuth, &session, name, password); err != nil {
		_ = c.Close()
		return fmt.Errorf("auth: %w", err)
	}

	c.mu.Lock()
	c.session = &session
	c.mu.Unlock()

	c.log.Info("connected", "addr", u.Host, "user", session.Name)
	return nil
}

// Session returns the session issued by the last successful Connect.
func (c *Client) Session() (protocol.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return protocol.Session{}, false
	}
	return *c.session, true
}

// OnEvent registers handler for pushed events called name. Handlers run on
// the read goroutine in registration order and must not block.
func (c *Client) OnEvent(name string, handler EventHandler) {
	if handler == nil {
		return
	}
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[name] = append(c.handlers[name], handler)
}

// OnMessage registers handler for messages posted by other channel members.
func (c *Client) OnMessage(handler func(protocol.MessageRecord)) {
	c.OnEvent(protocol.EventMessage, func(args []json.RawMessage) {
		if len(args) != 1 {
			c.log.Warn("message event with unexpected arguments", "count", len(args))
			return
		}
		var record protocol.MessageRecord
		if err := json.Unmarshal(args[0], &record); err != nil {
			c.log.Warn("undecodable message event", "error", err)
			return
		}
		handler(record)
	})
}

// Channels lists every channel on the server.
func (c *Client) Channels(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.call(ctx, protocol.OpChannels, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Join adds the user to channel, creating it if needed.
func (c *Client) Join(ctx context.Context, channel string) error {
	return c.call(ctx, protocol.OpJoin, nil, channel)
}

// GetMessages returns channel's history, oldest first.
func (c *Client) GetMessages(ctx context.Context, channel string) ([]protocol.MessageRecord, error) {
	var records []protocol.MessageRecord
	if err := c.call(ctx, protocol.OpMessages, &records, channel); err != nil {
		return nil, err
	}
	return records, nil
}

// Send posts content to channel and returns the stored message. The sender
// does not receive its own message as an event.
func (c *Client) Send(ctx context.Context, channel, content string) (protocol.MessageRecord, error) {
	var record protocol.MessageRecord
	if err := c.call(ctx, protocol.OpMessage, &record, channel, content); err != nil {
		return protocol.MessageRecord{}, err
	}
	return record, nil
}

// Close closes the socket and fails every call still waiting for a response.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = conn.Close()
		c.wg.Wait()
	})
	return err
}

// call sends op and decodes the result into out, which may be nil.
func (c *Client) call(ctx context.Context, op string, out any, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	conn, done, session := c.conn, c.done, c.session
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	id := c.nextID.Add(1)
	req, err := protocol.NewRequest(id, op, session, args...)
	if err != nil {
		return err
	}
	data, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}

	ch := make(chan protocol.Response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(conn, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", op, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return &RemoteError{Kind: resp.Error.Kind, Message: resp.Error.Message}
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", op, err)
		}
		return nil
	case <-done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) write(conn *websocket.Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read loop stopped", "error", err)
			}
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn("dropping undecodable frame", "error", err)
			continue
		}

		switch frame.Tag {
		case protocol.TagResponse:
			c.deliverResponse(frame)
		case protocol.TagEvent:
			c.deliverEvent(frame)
		default:
			c.log.Warn("dropping unexpected frame", "tag", frame.Tag)
		}
	}
}

func (c *Client) deliverResponse(frame protocol.Frame) {
	resp, err := frame.Response()
	if err != nil {
		c.log.Warn("dropping undecodable response", "error", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	c.mu.Unlock()
	if !ok {
		if resp.Error != nil {
			c.log.Warn("server error without pending call", "id", resp.ID, "kind", resp.Error.Kind, "message", resp.Error.Message)
		}
		return
	}
	select {
	case ch <- resp:
	default:
		c.log.Warn("dropping duplicate response", "id", resp.ID)
	}
}

func (c *Client) deliverEvent(frame protocol.Frame) {
	name, args, err := frame.Event()
	if err != nil {
		c.log.Warn("dropping undecodable event", "error", err)
		return
	}

	c.handlersMu.RLock()
	handlers := append([]EventHandler(nil), c.handlers[name]...)
	c.handlersMu.RUnlock()

	lo.ForEach(handlers, func(h EventHandler, _ int) {
		h(args)
	})
}
