package session

import (
	"sync"

	"minepilot.ai/internal/world"
)

const subscriberBuffer = 16

type subscriber struct {
	kinds map[world.EventKind]bool
	ch    chan world.Event
	once  sync.Once
}

// Subscribe delivers events of the given kinds until cancel is called.
// Terminal events (ended, kicked) are delivered to every subscriber so
// waiters wake up when the session goes away. Subscriptions outlive
// reconnects. Slow subscribers drop events rather than stall the pump.
func (h *Handle) Subscribe(kinds ...world.EventKind) (<-chan world.Event, func()) {
	s := &subscriber{kinds: map[world.EventKind]bool{}, ch: make(chan world.Event, subscriberBuffer)}
	for _, k := range kinds {
		s.kinds[k] = true
	}
	h.subMu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = s
	h.subMu.Unlock()

	cancel := func() {
		h.subMu.Lock()
		delete(h.subs, id)
		h.subMu.Unlock()
		s.once.Do(func() { close(s.ch) })
	}
	return s.ch, cancel
}

func (h *Handle) publish(ev world.Event) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for _, s := range h.subs {
		if !ev.Terminal() && !s.kinds[ev.Kind] {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}
