// Package hub fans dashboard updates out to websocket clients. A single
// goroutine owns the client set; each client has its own writer.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Message is one websocket frame.
type Message struct {
	Binary bool // JPEG frames; everything else is JSON text
	Data   []byte
}

// JSON wraps encoded JSON.
func JSON(data []byte) Message { return Message{Data: data} }

// Binary wraps raw bytes.
func Binary(data []byte) Message { return Message{Binary: true, Data: data} }

// Option configures a Hub.
type Option func(*Hub)

// SkipSlow makes the hub skip messages for clients whose queue is full
// instead of disconnecting them. Use it for video, where only the newest
// frame matters.
func SkipSlow() Option {
	return func(h *Hub) { h.skipSlow = true }
}

// Hub broadcasts to a set of clients.
type Hub struct {
	name     string
	logger   *slog.Logger
	skipSlow bool

	in    chan Message
	join  chan *Client
	leave chan *Client
	done  chan struct{}

	mu      sync.RWMutex
	clients map[*Client]struct{}

	running atomic.Bool
	dropped atomic.Int64 // Broadcasts lost because the hub was backed up
	skipped atomic.Int64 // Per-client messages skipped under SkipSlow
}

// New creates a hub. Nothing is delivered until Run is called.
func New(name string, logger *slog.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		name:    name,
		logger:  logger.With("component", "hub", "hub", name),
		in:      make(chan Message, 64),
		join:    make(chan *Client),
		leave:   make(chan *Client),
		done:    make(chan struct{}),
		clients: make(map[*Client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run delivers broadcasts until ctx is cancelled, then disconnects every
// client. A hub runs once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		h.mu.Lock()
		for c := range h.clients {
			h.drop(c)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.join:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", "clients", n)
		case c := <-h.leave:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "clients", n)
		case msg := <-h.in:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
			continue
		default:
		}
		if h.skipSlow {
			h.skipped.Add(1)
			continue
		}
		h.drop(c)
		h.logger.Warn("disconnected slow client")
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
}

// Broadcast queues msg for every client without blocking. When the hub is
// backed up the message is lost.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.in <- msg:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(JSON(data))
	return nil
}

// BroadcastBinary broadcasts raw bytes.
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(Binary(data))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many broadcasts were lost.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Skipped returns how many per-client deliveries SkipSlow skipped.
func (h *Hub) Skipped() int64 { return h.skipped.Load() }

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool { return h.running.Load() }

// Name returns the hub name.
func (h *Hub) Name() string { return h.name }
