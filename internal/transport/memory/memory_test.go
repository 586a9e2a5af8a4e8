package memory

import (
	"context"
	"testing"

	"github.com/OCAP2/trackplay/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ transport.Transport = (*Hub)(nil)

func TestHub_PublishSubscribe(t *testing.T) {
	h := New()

	var got []string
	sub, err := h.Subscribe(context.Background(), "driver.1", func(p []byte) { got = append(got, string(p)) })
	require.NoError(t, err)

	assert.Equal(t, 1, h.Publish("driver.1", []byte("a")))
	assert.Equal(t, 0, h.Publish("driver.2", []byte("b")))
	assert.Equal(t, []string{"a"}, got)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	assert.Equal(t, 0, h.Subscribers("driver.1"))
	assert.Equal(t, 0, h.Publish("driver.1", []byte("c")))
}

func TestHub_Offline(t *testing.T) {
	h := New()
	h.SetOffline(true)

	_, err := h.Subscribe(context.Background(), "driver.1", func([]byte) {})

	assert.ErrorIs(t, err, transport.ErrUnavailable)
}

func TestHub_CancelledContext(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Subscribe(ctx, "driver.1", func([]byte) {})

	assert.ErrorIs(t, err, transport.ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHub_Close(t *testing.T) {
	h := New()
	_, err := h.Subscribe(context.Background(), "driver.1", func([]byte) {})
	require.NoError(t, err)

	require.NoError(t, h.Close())
	assert.Equal(t, 0, h.Subscribers("driver.1"))

	_, err = h.Subscribe(context.Background(), "driver.1", func([]byte) {})
	assert.ErrorIs(t, err, transport.ErrUnavailable)
}
