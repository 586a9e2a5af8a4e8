// Package memory is an in-process transport for single binary setups and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/OCAP2/trackplay/internal/transport"
	"github.com/google/uuid"
)

var errOffline = errors.New("memory hub offline")

// Hub delivers published payloads synchronously to the channel's subscribers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[uuid.UUID]transport.Handler
	offline bool
	closed  bool
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[string]map[uuid.UUID]transport.Handler)}
}

// SetOffline makes later subscriptions fail as if the broker was unreachable.
func (h *Hub) SetOffline(offline bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offline = offline
}

// Subscribe registers handler on channel.
func (h *Hub) Subscribe(ctx context.Context, channel string, handler transport.Handler) (transport.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, transport.NewChannelError(channel, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.offline || h.closed {
		return nil, transport.NewChannelError(channel, errOffline)
	}

	id := uuid.New()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[uuid.UUID]transport.Handler)
	}
	h.subs[channel][id] = handler

	return &subscription{hub: h, channel: channel, id: id}, nil
}

// Publish delivers payload to every subscriber of channel and returns how
// many received it.
func (h *Hub) Publish(channel string, payload []byte) int {
	h.mu.RLock()
	handlers := make([]transport.Handler, 0, len(h.subs[channel]))
	for _, hd := range h.subs[channel] {
		handlers = append(handlers, hd)
	}
	h.mu.RUnlock()

	for _, hd := range handlers {
		hd(payload)
	}
	return len(handlers)
}

// Subscribers returns the number of handlers on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Close drops every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.subs = make(map[string]map[uuid.UUID]transport.Handler)
	return nil
}

type subscription struct {
	hub     *Hub
	channel string
	id      uuid.UUID
	once    sync.Once
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		delete(s.hub.subs[s.channel], s.id)
		if len(s.hub.subs[s.channel]) == 0 {
			delete(s.hub.subs, s.channel)
		}
	})
	return nil
}
