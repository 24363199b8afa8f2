package http

import (
	"sync"

	"github.com/samirrijal/lplace/internal/pkg/metrics"
)

// Hub is the set of Sync Channel connections attached to this instance.
// It implements ports.LocalFanout.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*hubClient
	queue   int
}

type hubClient struct {
	user string
	send chan []byte
}

// NewHub creates a hub whose per-connection queues hold queue frames.
func NewHub(queue int) *Hub {
	if queue <= 0 {
		queue = 256
	}
	return &Hub{clients: make(map[string]*hubClient), queue: queue}
}

// Join registers connection id and returns the channel its writer drains.
// The channel is closed by Leave.
func (h *Hub) Join(id, user string) <-chan []byte {
	c := &hubClient{user: user, send: make(chan []byte, h.queue)}
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	metrics.ActiveWebSockets.Inc()
	return c.send
}

// Leave unregisters connection id.
func (h *Hub) Leave(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		metrics.ActiveWebSockets.Dec()
	}
}

// Broadcast queues frame on every connection except the one named except
// and returns how many accepted it. A connection whose queue is full misses
// the frame; the Sync Channel is best-effort.
func (h *Hub) Broadcast(except string, frame []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for id, c := range h.clients {
		if id == except {
			continue
		}
		select {
		case c.send <- frame:
			n++
		default:
			metrics.SyncEventsDropped.WithLabelValues("slow_consumer").Inc()
		}
	}
	return n
}

// Count returns the number of attached connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
