package main

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Hub tracks live websocket clients by connection id and delivers engine
// frames to them. It implements dispatch.Transport.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	draining atomic.Bool
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("Client registered", "conn_id", c.ID, "clients", n)
}

// unregister reports whether c was still registered.
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.ID]; !ok || cur != c {
		return false
	}
	delete(h.clients, c.ID)
	return true
}

func (h *Hub) client(connID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[connID]
}

// Send queues data without blocking. A client whose buffer is full is
// disconnected.
func (h *Hub) Send(connID string, data []byte) bool {
	c := h.client(connID)
	if c == nil {
		return false
	}
	if c.enqueue(data) {
		return true
	}
	h.logger.Warn("Send buffer full, dropping client", "conn_id", connID)
	c.close()
	return false
}

func (h *Hub) Close(connID string) {
	if c := h.client(connID); c != nil {
		c.close()
	}
}

// Drain closes every client. Disconnects that follow are reported as a
// server shutdown.
func (h *Hub) Drain() {
	h.draining.Store(true)
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
	h.logger.Info("Hub drained", "clients", len(clients))
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
