package comms

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/cablebotics/gocablebot/robot"
)

// Client is one delivery target. Implementations must be safe for concurrent
// Send calls.
type Client interface {
	Send(msg []byte) error
	Close() error
}

// Hub tracks the live client set and fans messages out to it. One client's
// delivery failure never reaches the others: the offender is logged, dropped
// from the set and closed, and the fan-out carries on.
type Hub struct {
	state *robot.State

	mu      sync.RWMutex
	clients map[Client]bool
}

func NewHub(state *robot.State) *Hub {
	return &Hub{
		state:   state,
		clients: make(map[Client]bool),
	}
}

// Register adds a client and immediately delivers one status snapshot to it
// alone, so a fresh connection sees the current state without waiting for a
// broadcast.
func (h *Hub) Register(c Client) {
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("client connected (%d active)", count)

	msg, err := json.Marshal(NewPush(PushStatus, h.state.Status()))
	if err != nil {
		log.Printf("marshal status snapshot: %v", err)
		return
	}
	if err := h.Unicast(c, msg); err != nil {
		log.Printf("initial status delivery failed: %v", err)
	}
}

// Unregister removes a client. Safe to call repeatedly or for a client that
// was never registered.
func (h *Hub) Unregister(c Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		log.Printf("client disconnected (%d active)", len(h.clients))
	}
	h.mu.Unlock()
}

// Len reports the current client count.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers msg to every registered client concurrently and returns
// once every delivery has settled.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	targets := make([]Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func(c Client) {
			defer wg.Done()
			if err := c.Send(msg); err != nil {
				log.Printf("dropping client after failed delivery: %v", err)
				h.Unregister(c)
				c.Close()
			}
		}(c)
	}
	wg.Wait()
}

// BroadcastPush marshals a push message and broadcasts it.
func (h *Hub) BroadcastPush(kind string, data interface{}) {
	msg, err := json.Marshal(NewPush(kind, data))
	if err != nil {
		log.Printf("marshal %s push: %v", kind, err)
		return
	}
	h.Broadcast(msg)
}

// Unicast delivers to exactly one client. A failure is the caller's to
// handle; the connection's own error path owns disconnection here.
func (h *Hub) Unicast(c Client, msg []byte) error {
	return c.Send(msg)
}
