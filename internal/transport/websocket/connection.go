package websocket

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/OCAP2/trackplay/pkg/streaming"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendChSize   = 1024
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

type ackKey struct {
	typ     string
	channel string
}

// connection manages a WebSocket connection with a single write goroutine.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL  string
	secret string

	waiters map[ackKey]chan streaming.AckMessage

	// onMessage receives message frames; resubscribe returns the frames to
	// replay after a reconnect.
	onMessage   func(channel string, payload []byte)
	resubscribe func() [][]byte

	logger zerolog.Logger
}

func newConnection(logger zerolog.Logger) *connection {
	return &connection{
		sendCh:  make(chan []byte, sendChSize),
		done:    make(chan struct{}),
		waiters: make(map[ackKey]chan streaming.AckMessage),
		logger:  logger,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh and writes frames to conn.
// One writeLoop runs per live conn; it returns on error or shutdown.
func (c *connection) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn().Err(err).Msg("WebSocket SetWriteDeadline error")
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn().Err(err).Msg("WebSocket write error")
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop routes acks to their waiters and message frames to onMessage.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn().Err(err).Msg("WebSocket read error")
			go c.reconnect(conn)
			return
		}

		var env struct {
			streaming.Envelope
			For   string `json:"for"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Debug().Str("raw", string(raw)).Msg("Malformed frame received")
			continue
		}

		switch env.Type {
		case streaming.TypeAck:
			c.deliverAck(streaming.AckMessage{Type: env.Type, For: env.For, Channel: env.Channel, Error: env.Error})
		case streaming.TypeMessage:
			if c.onMessage != nil {
				c.onMessage(env.Channel, env.Payload)
			}
		default:
			c.logger.Debug().Str("type", env.Type).Msg("Unknown frame type")
		}
	}
}

func (c *connection) deliverAck(ack streaming.AckMessage) {
	c.mu.Lock()
	ch, ok := c.waiters[ackKey{typ: ack.For, channel: ack.Channel}]
	c.mu.Unlock()

	if !ok {
		c.logger.Debug().Str("for", ack.For).Str("channel", ack.Channel).Msg("Unexpected ack")
		return
	}
	select {
	case ch <- ack:
	default:
	}
}

// reconnect re-establishes the WebSocket connection with exponential
// backoff after broken fails. On success it replays the active
// subscriptions and restarts the read/write loops.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		// shut down, or another loop already handled this conn
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info().Int("attempt", attempt).Dur("backoff", backoff).Msg("Reconnecting to WebSocket")

		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Reconnect dial failed")
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		replayed := true
		if c.resubscribe != nil {
			for _, frame := range c.resubscribe() {
				if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					replayed = false
					break
				}
				if err := conn.WriteMessage(ws.TextMessage, frame); err != nil {
					replayed = false
					break
				}
			}
		}
		if !replayed {
			c.logger.Warn().Int("attempt", attempt).Msg("Failed to replay subscriptions after reconnect")
			_ = conn.Close()
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info().Int("attempt", attempt).Msg("WebSocket reconnected")
		go c.writeLoop(conn)
		go c.readLoop(conn)
		return
	}

	c.logger.Error().Int("maxAttempts", maxReconnect).Msg("WebSocket reconnect failed after max attempts")
}

// connected reports whether a live conn is attached.
func (c *connection) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closed
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		c.logger.Warn().Msg("WebSocket send channel full, dropping frame")
		return false
	}
}

// sendAndWait sends a frame and blocks until the server acknowledges it
// for the same channel, or the timeout expires.
func (c *connection) sendAndWait(data []byte, key ackKey, timeout time.Duration) error {
	ch := make(chan streaming.AckMessage, 1)
	c.mu.Lock()
	c.waiters[key] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, key)
		c.mu.Unlock()
	}()

	if !c.send(data) {
		return fmt.Errorf("send queue full for %s %q", key.typ, key.channel)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-ch:
		if ack.Error != "" {
			return fmt.Errorf("server rejected %s %q: %s", key.typ, key.channel, ack.Error)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("timeout waiting for ack of %s %q", key.typ, key.channel)
	case <-c.done:
		return fmt.Errorf("connection closed while waiting for ack of %s %q", key.typ, key.channel)
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
