package preview

import (
	"sync"
	"time"

	"github.com/smazurov/tinycam/internal/camera"
)

// Picture is a copied frame held by the hub.
type Picture struct {
	Number    uint64
	Format    camera.Format
	Timestamp time.Time
	Data      []byte
}

// Hub keeps the latest frame and fans it out to subscribers. Slow
// subscribers skip frames rather than block the capture loop.
type Hub struct {
	mu     sync.RWMutex
	latest *Picture
	subs   map[chan *Picture]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan *Picture]struct{})}
}

// Publish stores p as the latest frame and offers it to every subscriber.
// The hub takes ownership of p.Data.
func (h *Hub) Publish(p *Picture) {
	h.mu.Lock()
	h.latest = p
	for ch := range h.subs {
		// Replace any frame the subscriber has not picked up yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
	h.mu.Unlock()
}

// Latest returns the most recent frame, if any.
func (h *Hub) Latest() (*Picture, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.latest != nil
}

// Subscribe returns a channel that receives new frames and a function that
// ends the subscription.
func (h *Hub) Subscribe() (<-chan *Picture, func()) {
	ch := make(chan *Picture, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
