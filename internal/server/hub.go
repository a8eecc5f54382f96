// Package server coordinates connection registration, targeted pushes, and
// connection cleanup for the chat WebSocket system via the Hub type.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/channelchat/internal/chat"
	"github.com/Tyrowin/channelchat/internal/protocol"
)

var (
	// ErrConnectionGone is returned when pushing to a connection that is no
	// longer registered.
	ErrConnectionGone = errors.New("connection gone")
	// ErrSendBufferFull is returned when a connection's outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Hub tracks every live WebSocket connection by id and pushes frames to
// them. Registration and removal go through its Run loop; pushes take the
// read lock and never block.
type Hub struct {
	log        *slog.Logger
	clients    map[chat.ConnID]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates and initializes a new Hub instance. Call Run before
// registering clients.
func NewHub(log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		log:        log,
		clients:    make(map[chat.ConnID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands c to the Run loop, which starts its pumps. It reports false
// when the hub is shutting down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// Push queues payload on the connection's send buffer.
func (h *Hub) Push(id chat.ConnID, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("recovered from panic in push", "conn_id", id, "panic", r)
			err = ErrConnectionGone
		}
	}()

	// Hold the read lock for the whole send so the channel cannot be closed underneath us.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	client, exists := h.clients[id]
	if !exists || client.closed {
		return ErrConnectionGone
	}

	select {
	case client.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Notify implements chat.Notifier by pushing a message event frame.
func (h *Hub) Notify(_ context.Context, conn chat.ConnID, msg chat.Message) error {
	frame, err := protocol.EncodeMessageEvent(msg)
	if err != nil {
		return err
	}
	return h.Push(conn, frame)
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()
			h.log.Info("client registered", "conn_id", client.id, "addr", client.addr, "clients", clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if registered, ok := h.clients[client.id]; ok && registered == client {
				delete(h.clients, client.id)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				h.log.Info("client unregistered", "conn_id", client.id, "addr", client.addr, "clients", clientCount)
			} else {
				h.mutex.Unlock()
			}
		}
	}
}

// shutdownClients closes every active connection; the pumps notice and exit.
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn("error closing client connection", "conn_id", client.id, "error", err)
		}
	}

	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown stops Run and waits for every pump goroutine, up to timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
