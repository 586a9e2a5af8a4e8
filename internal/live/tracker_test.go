package live

import (
	"context"
	"testing"

	"github.com/OCAP2/trackplay/internal/marker"
	"github.com/OCAP2/trackplay/internal/marker/markertest"
	"github.com/OCAP2/trackplay/internal/timeutil"
	"github.com/OCAP2/trackplay/internal/transport"
	"github.com/OCAP2/trackplay/internal/transport/memory"
	"github.com/OCAP2/trackplay/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, hub *memory.Hub) *Tracker {
	t.Helper()
	tr := NewTracker(TrackerConfig{
		EntityType: "vehicle",
		Transport:  hub,
		Clock:      timeutil.NewMockClock(base),
		Logger:     zerolog.Nop(),
	})
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestTracker_TrackIsIdempotent(t *testing.T) {
	hub := memory.New()
	tr := newTestTracker(t, hub)
	first, second := &markertest.Recorder{}, &markertest.Recorder{}

	c1, err := tr.Track(context.Background(), "7", first)
	require.NoError(t, err)
	c2, err := tr.Track(context.Background(), "7", second)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, hub.Subscribers("vehicle.7"))

	e := locationEvent(core.SuffixLocationChanged, 1, 1, 1)
	e.Event = "vehicle.location_changed"
	c1.OnEvent(e)
	c1.Flush()

	assert.Empty(t, first.Calls())
	assert.Len(t, second.Moves(), 1)
}

func TestTracker_Sync(t *testing.T) {
	hub := memory.New()
	tr := newTestTracker(t, hub)

	require.NoError(t, tr.Sync(context.Background(), map[string]marker.Marker{
		"1": &markertest.Recorder{},
		"2": &markertest.Recorder{},
	}))
	assert.Equal(t, []string{"1", "2"}, tr.IDs())

	old, ok := tr.Channel("1")
	require.True(t, ok)

	require.NoError(t, tr.Sync(context.Background(), map[string]marker.Marker{
		"2": &markertest.Recorder{},
		"3": &markertest.Recorder{},
	}))

	assert.Equal(t, []string{"2", "3"}, tr.IDs())
	assert.Equal(t, 0, hub.Subscribers("vehicle.1"))
	assert.Equal(t, 1, hub.Subscribers("vehicle.2"))
	assert.Equal(t, 1, hub.Subscribers("vehicle.3"))
	assert.ErrorIs(t, old.Subscribe(context.Background()), ErrClosed)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "vehicle.2", snap[0].Channel)
	assert.Equal(t, "3", snap[1].EntityID)
	assert.True(t, snap[1].Subscribed)
}

func TestTracker_SubscribeFailureKeepsChannel(t *testing.T) {
	hub := memory.New()
	hub.SetOffline(true)
	tr := newTestTracker(t, hub)

	c, err := tr.Track(context.Background(), "9", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrUnavailable)
	require.NotNil(t, c)

	hub.SetOffline(false)
	_, err = tr.Track(context.Background(), "9", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers("vehicle.9"))
}

func TestTracker_UntrackAndClose(t *testing.T) {
	hub := memory.New()
	tr := newTestTracker(t, hub)

	_, err := tr.Track(context.Background(), "1", nil)
	require.NoError(t, err)
	_, err = tr.Track(context.Background(), "2", nil)
	require.NoError(t, err)

	require.NoError(t, tr.Untrack("1"))
	require.NoError(t, tr.Untrack("unknown"))
	assert.Equal(t, []string{"2"}, tr.IDs())

	require.NoError(t, tr.Close())
	assert.Empty(t, tr.IDs())
	assert.Equal(t, 0, hub.Subscribers("vehicle.2"))
}
