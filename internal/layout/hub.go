// Package layout keeps the pane geometry of the browser consistent with the
// terminal size and with user drag gestures.
package layout

import "sync"

// Viewport is the measured terminal size in cells.
type Viewport struct {
	Width  int
	Height int
}

// Callback receives the new viewport on every resize.
type Callback func(Viewport)

type entry struct {
	key string
	id  uint64
	fn  Callback
}

// Hub fans viewport changes out to its subscribers. Each App owns one hub.
type Hub struct {
	mu      sync.Mutex
	entries []entry
	nextID  uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers fn under key. Subscribing again under the same key
// replaces the callback (last writer wins) but keeps its place in the
// firing order.
func (h *Hub) Subscribe(key string, fn Callback) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	e := entry{key: key, id: h.nextID, fn: fn}

	replaced := false
	for i := range h.entries {
		if h.entries[i].key == key {
			h.entries[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		h.entries = append(h.entries, e)
	}

	return &Subscription{hub: h, key: key, id: e.id}
}

// Notify calls every callback, in registration order, on the caller's
// goroutine.
func (h *Hub) Notify(v Viewport) {
	h.mu.Lock()
	fns := make([]Callback, len(h.entries))
	for i, e := range h.entries {
		fns[i] = e.fn
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *Hub) remove(key string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, e := range h.entries {
		if e.key == key && e.id == id {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			return
		}
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	hub  *Hub
	key  string
	id   uint64
	once sync.Once
}

// Key returns the key the subscription was registered under.
func (s *Subscription) Key() string { return s.key }

// Unsubscribe removes the callback. It is idempotent, and a handle whose key
// was since overwritten by another Subscribe removes nothing.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.hub.remove(s.key, s.id)
	})
}
