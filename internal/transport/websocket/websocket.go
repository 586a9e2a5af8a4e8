// Package websocket subscribes live channels over a websocket gateway.
//
// Frames are streaming.Envelope values. The client sends subscribe and
// unsubscribe frames per channel; the server acks subscriptions and pushes
// message frames carrying the raw event as payload.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/trackplay/internal/transport"
	"github.com/OCAP2/trackplay/pkg/streaming"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultAckTimeout = 10 * time.Second

// Config holds websocket gateway settings.
type Config struct {
	URL        string
	Secret     string
	AckTimeout time.Duration
}

// Transport is a websocket backed transport.Transport.
type Transport struct {
	cfg    Config
	conn   *connection
	logger zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]map[uuid.UUID]transport.Handler
}

// Dial connects to the gateway. Failures wrap transport.ErrUnavailable.
func Dial(cfg Config, logger zerolog.Logger) (*Transport, error) {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	logger = logger.With().Str("module", "transport.websocket").Logger()

	t := &Transport{
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]map[uuid.UUID]transport.Handler),
	}
	t.conn = newConnection(logger)
	t.conn.onMessage = t.route
	t.conn.resubscribe = t.subscribeFrames

	if err := t.conn.dial(cfg.URL, cfg.Secret); err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrUnavailable, err)
	}
	logger.Info().Str("url", cfg.URL).Msg("WebSocket connected")
	return t, nil
}

// Subscribe registers h on channel. The first handler of a channel sends a
// subscribe frame and waits for the server's ack.
func (t *Transport) Subscribe(ctx context.Context, channel string, h transport.Handler) (transport.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, transport.NewChannelError(channel, err)
	}
	if !t.conn.connected() {
		return nil, transport.NewChannelError(channel, fmt.Errorf("not connected"))
	}

	id := uuid.New()
	t.mu.Lock()
	first := len(t.handlers[channel]) == 0
	if first {
		t.handlers[channel] = make(map[uuid.UUID]transport.Handler)
	}
	t.handlers[channel][id] = h
	t.mu.Unlock()

	if first {
		frame, err := marshalEnvelope(streaming.TypeSubscribe, channel)
		if err == nil {
			err = t.conn.sendAndWait(frame, ackKey{typ: streaming.TypeSubscribe, channel: channel}, t.cfg.AckTimeout)
		}
		if err != nil {
			t.remove(channel, id)
			return nil, transport.NewChannelError(channel, err)
		}
		t.logger.Debug().Str("channel", channel).Msg("subscribed")
	}

	return &subscription{t: t, channel: channel, id: id}, nil
}

// Close shuts the connection down.
func (t *Transport) Close() error {
	return t.conn.close()
}

func (t *Transport) route(channel string, payload []byte) {
	t.mu.RLock()
	handlers := make([]transport.Handler, 0, len(t.handlers[channel]))
	for _, h := range t.handlers[channel] {
		handlers = append(handlers, h)
	}
	t.mu.RUnlock()

	if len(handlers) == 0 {
		t.logger.Debug().Str("channel", channel).Msg("message for channel without subscribers")
		return
	}
	for _, h := range handlers {
		h(payload)
	}
}

func (t *Transport) subscribeFrames() [][]byte {
	t.mu.RLock()
	defer t.mu.RUnlock()

	frames := make([][]byte, 0, len(t.handlers))
	for channel := range t.handlers {
		frame, err := marshalEnvelope(streaming.TypeSubscribe, channel)
		if err != nil {
			continue
		}
		frames = append(frames, frame)
	}
	return frames
}

// remove drops one handler and reports whether it was the channel's last.
func (t *Transport) remove(channel string, id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers[channel], id)
	if len(t.handlers[channel]) == 0 {
		delete(t.handlers, channel)
		return true
	}
	return false
}

type subscription struct {
	t       *Transport
	channel string
	id      uuid.UUID
	once    sync.Once
}

func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		if !s.t.remove(s.channel, s.id) {
			return
		}
		var frame []byte
		frame, err = marshalEnvelope(streaming.TypeUnsubscribe, s.channel)
		if err == nil && s.t.conn.connected() {
			s.t.conn.send(frame)
		}
	})
	return err
}

func marshalEnvelope(typ, channel string) ([]byte, error) {
	data, err := json.Marshal(streaming.Envelope{Type: typ, Channel: channel})
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", typ, err)
	}
	return data, nil
}
