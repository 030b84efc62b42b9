// Package hub implements the central event hub for workbench.
package hub

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workbench/internal/domain/events"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// broadcastBuffer bounds how many undelivered events Publish will queue
// before dropping.
const broadcastBuffer = 256

// Hub is the central event dispatcher that fans out events to all subscribers.
type Hub struct {
	subscribers map[string]ports.Subscriber
	broadcast   chan events.Event
	done        chan struct{}
	mu          sync.RWMutex
	running     bool
}

// New creates a new Hub.
func New() *Hub {
	return &Hub{
		subscribers: make(map[string]ports.Subscriber),
		broadcast:   make(chan events.Event, broadcastBuffer),
		done:        make(chan struct{}),
	}
}

// Start begins the hub's fan-out loop.
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	log.Debug().Msg("event hub started")

	go h.run()
	return nil
}

// Stop gracefully stops the hub and closes all subscribers.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	h.mu.Unlock()

	close(h.done)

	h.mu.Lock()
	for _, sub := range h.subscribers {
		_ = sub.Close()
	}
	h.subscribers = make(map[string]ports.Subscriber)
	h.mu.Unlock()

	log.Debug().Msg("event hub stopped")
	return nil
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case event := <-h.broadcast:
			h.fanOut(event)
		}
	}
}

// fanOut delivers one event to every subscriber. Subscribers whose Send
// fails are dropped; a slow or closed consumer must not wedge the loop.
func (h *Hub) fanOut(event events.Event) {
	var failed []string

	h.mu.RLock()
	for id, sub := range h.subscribers {
		if err := sub.Send(event); err != nil {
			log.Warn().
				Str("subscriber_id", id).
				Err(err).
				Msg("failed to send event to subscriber")
			failed = append(failed, id)
		}
	}
	h.mu.RUnlock()

	if len(failed) == 0 {
		return
	}

	h.mu.Lock()
	for _, id := range failed {
		if sub, ok := h.subscribers[id]; ok {
			_ = sub.Close()
			delete(h.subscribers, id)
		}
	}
	h.mu.Unlock()
}

// Publish sends an event to all subscribers. Never blocks; events are
// dropped when the broadcast buffer is full.
func (h *Hub) Publish(event events.Event) {
	select {
	case h.broadcast <- event:
		log.Trace().
			Str("event_type", string(event.Type())).
			Msg("event published")
	default:
		log.Warn().
			Str("event_type", string(event.Type())).
			Msg("event dropped: broadcast channel full")
	}
}

// Subscribe adds a new subscriber.
func (h *Hub) Subscribe(sub ports.Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub.ID()] = sub
	log.Debug().Str("subscriber_id", sub.ID()).Msg("subscriber registered")
}

// Unsubscribe removes a subscriber by ID and closes it.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		_ = sub.Close()
		delete(h.subscribers, id)
		log.Debug().Str("subscriber_id", id).Msg("subscriber unregistered")
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// IsRunning returns true if the hub is running.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
