package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/trackplay/internal/transport"
	"github.com/OCAP2/trackplay/pkg/streaming"
)

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

// gateway is a test server that acks subscriptions (rejecting channels in
// reject) and lets the test push message frames to the connected client.
type gateway struct {
	mu      sync.Mutex
	frames  []streaming.Envelope
	conn    *ws.Conn
	reject  map[string]bool
	secrets []string
}

func testServer(t *testing.T, reject ...string) (*httptest.Server, *gateway) {
	t.Helper()
	g := &gateway{reject: map[string]bool{}}
	for _, r := range reject {
		g.reject[r] = true
	}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		g.mu.Lock()
		g.conn = c
		g.secrets = append(g.secrets, r.URL.Query().Get("secret"))
		g.mu.Unlock()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			g.mu.Lock()
			g.frames = append(g.frames, env)
			g.mu.Unlock()

			if env.Type == streaming.TypeSubscribe {
				ack := streaming.AckMessage{Type: streaming.TypeAck, For: env.Type, Channel: env.Channel}
				if g.reject[env.Channel] {
					ack.Error = "forbidden"
				}
				data, _ := json.Marshal(ack)
				g.mu.Lock()
				err := c.WriteMessage(ws.TextMessage, data)
				g.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv, g
}

func (g *gateway) push(t *testing.T, channel string, payload string) {
	t.Helper()
	data, err := json.Marshal(streaming.Envelope{
		Type:    streaming.TypeMessage,
		Channel: channel,
		Payload: json.RawMessage(payload),
	})
	require.NoError(t, err)

	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotNil(t, g.conn)
	require.NoError(t, g.conn.WriteMessage(ws.TextMessage, data))
}

func (g *gateway) all() []streaming.Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := make([]streaming.Envelope, len(g.frames))
	copy(cp, g.frames)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDial_Unreachable(t *testing.T) {
	_, err := Dial(Config{URL: "ws://127.0.0.1:1/ws"}, zerolog.Nop())
	assert.ErrorIs(t, err, transport.ErrUnavailable)
}

func TestDial_SendsSecret(t *testing.T) {
	srv, g := testServer(t)

	tr, err := Dial(Config{URL: wsURL(srv), Secret: "s3cret"}, zerolog.Nop())
	require.NoError(t, err)
	defer tr.Close()

	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return len(g.secrets) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "s3cret", g.secrets[0])
}

func TestSubscribe_ReceivesMessages(t *testing.T) {
	srv, g := testServer(t)
	tr, err := Dial(Config{URL: wsURL(srv), AckTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)
	defer tr.Close()

	got := make(chan string, 4)
	sub, err := tr.Subscribe(context.Background(), "driver.7", func(p []byte) { got <- string(p) })
	require.NoError(t, err)

	g.push(t, "driver.7", `{"event":"driver.location_changed"}`)
	g.push(t, "driver.8", `{"event":"ignored"}`)

	select {
	case p := <-got:
		assert.JSONEq(t, `{"event":"driver.location_changed"}`, p)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	require.NoError(t, sub.Unsubscribe())
	require.Eventually(t, func() bool {
		frames := g.all()
		return len(frames) == 2 && frames[1].Type == streaming.TypeUnsubscribe
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, got, 0)
}

func TestSubscribe_SecondHandlerSharesFrame(t *testing.T) {
	srv, g := testServer(t)
	tr, err := Dial(Config{URL: wsURL(srv), AckTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Subscribe(context.Background(), "driver.1", func([]byte) {})
	require.NoError(t, err)
	_, err = tr.Subscribe(context.Background(), "driver.1", func([]byte) {})
	require.NoError(t, err)

	subscribes := 0
	for _, f := range g.all() {
		if f.Type == streaming.TypeSubscribe {
			subscribes++
		}
	}
	assert.Equal(t, 1, subscribes)
}

func TestSubscribe_Rejected(t *testing.T) {
	srv, _ := testServer(t, "driver.9")
	tr, err := Dial(Config{URL: wsURL(srv), AckTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Subscribe(context.Background(), "driver.9", func([]byte) {})

	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrUnavailable)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestSubscribe_AfterClose(t *testing.T) {
	srv, _ := testServer(t)
	tr, err := Dial(Config{URL: wsURL(srv)}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err = tr.Subscribe(context.Background(), "driver.1", func([]byte) {})
	assert.ErrorIs(t, err, transport.ErrUnavailable)
}
