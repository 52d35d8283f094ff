// Package hub maintains one live channel per authenticated actor and fans
// dispatch events out to them. Delivery is best-effort: a message addressed
// to a disconnected actor is dropped, never queued, and the stores remain
// the single source of truth.
package hub

import (
	"encoding/json"
	"sync"

	"driverlink/internal/domain"
	"driverlink/internal/logx"
)

type counter interface {
	Inc()
}

// Hub is the process-wide registry of live actor channels. It is created at
// process start and owns connection add/remove under its own lock.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*session

	logger  logx.Logger
	dropped counter
}

// New creates an empty Hub.
func New(logger logx.Logger, dropped counter) *Hub {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Hub{
		conns:   make(map[string]*session),
		logger:  logger,
		dropped: dropped,
	}
}

// session wraps one live connection with a write lock. All writes to the
// underlying connection go through send, both hub pushes and the ws error
// frames written from the reader goroutine.
type session struct {
	mu    sync.Mutex
	enc   *json.Encoder
	close func() error
}

func (s *session) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(v)
}

// Connect registers a channel for an actor, displacing any previous channel
// for the same actor. The returned session identifies this registration so
// teardown can be scoped to it. Connecting is safe at any time.
func (h *Hub) Connect(actor domain.Actor, enc *json.Encoder, close func() error) *session {
	s := &session{enc: enc, close: close}

	h.mu.Lock()
	prev := h.conns[actor.Key()]
	h.conns[actor.Key()] = s
	h.mu.Unlock()

	if prev != nil && prev.close != nil {
		_ = prev.close()
	}
	h.logger.Debug("actor connected", logx.String("actor", actor.Key()))
	return s
}

// Disconnect removes the actor's channel, but only while it still belongs
// to s. A displaced connection's late teardown therefore cannot unregister
// the replacement that took its slot.
func (h *Hub) Disconnect(actor domain.Actor, s *session) {
	h.mu.Lock()
	current := h.conns[actor.Key()]
	if current != s {
		h.mu.Unlock()
		return
	}
	delete(h.conns, actor.Key())
	h.mu.Unlock()
	h.logger.Debug("actor disconnected", logx.String("actor", actor.Key()))
}

// Connected reports whether the actor currently holds a live channel.
func (h *Hub) Connected(actor domain.Actor) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[actor.Key()]
	return ok
}

// Send pushes one event to a single actor. Returns false when the actor is
// not connected or the write fails; the caller must not treat delivery as
// guaranteed either way.
func (h *Hub) Send(actor domain.Actor, ev Event) bool {
	h.mu.RLock()
	s := h.conns[actor.Key()]
	h.mu.RUnlock()

	if s == nil {
		if h.dropped != nil {
			h.dropped.Inc()
		}
		return false
	}
	if err := s.send(ev); err != nil {
		h.logger.Debug("hub send failed",
			logx.String("actor", actor.Key()),
			logx.Err(err),
		)
		h.Disconnect(actor, s)
		if h.dropped != nil {
			h.dropped.Inc()
		}
		return false
	}
	return true
}

// Broadcast pushes one event to every listed actor, returning the subset
// that was reachable.
func (h *Hub) Broadcast(actors []domain.Actor, ev Event) []domain.Actor {
	var delivered []domain.Actor
	for _, a := range actors {
		if h.Send(a, ev) {
			delivered = append(delivered, a)
		}
	}
	return delivered
}
