// Package nats subscribes live channels on a NATS server. Channel names map
// one to one onto subjects ("driver.42").
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/trackplay/internal/transport"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout       = 5 * time.Second
	defaultMaxReconnects = 10
	defaultReconnectWait = 2 * time.Second
)

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	Timeout       time.Duration
	MaxReconnects int
}

// Transport is a NATS backed transport.Transport.
type Transport struct {
	conn   *natsgo.Conn
	logger zerolog.Logger
}

// Connect dials the NATS server. Failures wrap transport.ErrUnavailable.
func Connect(cfg Config, logger zerolog.Logger) (*Transport, error) {
	if cfg.URL == "" {
		cfg.URL = natsgo.DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = defaultMaxReconnects
	}

	logger = logger.With().Str("module", "transport.nats").Logger()

	conn, err := natsgo.Connect(cfg.URL,
		natsgo.Name(cfg.Name),
		natsgo.Timeout(cfg.Timeout),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(defaultReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		natsgo.ReconnectHandler(func(c *natsgo.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: nats connect %s: %v", transport.ErrUnavailable, cfg.URL, err)
	}

	logger.Info().Str("url", conn.ConnectedUrl()).Msg("NATS connected")
	return &Transport{conn: conn, logger: logger}, nil
}

// Subscribe subscribes h to the subject named channel.
func (t *Transport) Subscribe(ctx context.Context, channel string, h transport.Handler) (transport.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, transport.NewChannelError(channel, err)
	}
	if !t.conn.IsConnected() {
		return nil, transport.NewChannelError(channel, errors.New("not connected"))
	}

	sub, err := t.conn.Subscribe(channel, func(m *natsgo.Msg) {
		h(m.Data)
	})
	if err != nil {
		return nil, transport.NewChannelError(channel, err)
	}

	t.logger.Debug().Str("channel", channel).Msg("subscribed")
	return sub, nil
}

// Publish sends payload on channel. Used by simulators and tests.
func (t *Transport) Publish(channel string, payload []byte) error {
	return t.conn.Publish(channel, payload)
}

// Close drains pending messages and closes the connection.
func (t *Transport) Close() error {
	if err := t.conn.Drain(); err != nil && !errors.Is(err, natsgo.ErrConnectionClosed) {
		t.conn.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
