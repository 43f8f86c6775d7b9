package hotkey

import (
	"log"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Hub owns the global input hook and fans its events out to subscribers.
// The hook delivers to a single channel, so the hotkey listener and the
// selection driver share one Hub.
type Hub struct {
	mu      sync.Mutex
	subs    []chan gohook.Event
	started bool
}

// Subscribe returns a channel receiving every hook event. Events are dropped
// for subscribers that fall behind.
func (h *Hub) Subscribe(buffer int) <-chan gohook.Event {
	ch := make(chan gohook.Event, buffer)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

// Start installs the native hook. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	evChan := gohook.Start()
	if evChan == nil {
		log.Printf("ERROR: gohook.Start() returned nil channel")
		return
	}
	go func() {
		for ev := range evChan {
			h.dispatch(ev)
		}
		log.Printf("Hook event channel closed")
		h.closeSubs()
	}()
}

// Stop removes the native hook; subscriber channels close once it drains.
func (h *Hub) Stop() {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if started {
		gohook.End()
	}
}

func (h *Hub) dispatch(ev gohook.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) closeSubs() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}
