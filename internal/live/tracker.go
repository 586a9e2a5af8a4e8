package live

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/trackplay/internal/marker"
	"github.com/OCAP2/trackplay/internal/timeutil"
	"github.com/OCAP2/trackplay/internal/transport"
	"github.com/rs/zerolog"
)

// TrackerConfig holds the settings shared by every channel of a tracker.
type TrackerConfig struct {
	EntityType         string
	Transport          transport.Transport
	FlushInterval      time.Duration
	TransitionDuration time.Duration
	Clock              timeutil.Clock
	Logger             zerolog.Logger
	OnFlush            func(FlushStats)
}

// Tracker keeps one Channel per visible entity of a type.
type Tracker struct {
	cfg      TrackerConfig
	logger   zerolog.Logger
	mu       sync.Mutex
	channels map[string]*Channel
}

// NewTracker creates an empty tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		cfg:      cfg,
		logger:   cfg.Logger.With().Str("module", "live.tracker").Str("entityType", cfg.EntityType).Logger(),
		channels: make(map[string]*Channel),
	}
}

// Track makes sure entity id has a subscribed channel drawing on m.
//
// Tracking an entity twice re-attaches the marker and retries a failed
// subscription. The channel is returned even when subscribing fails.
func (t *Tracker) Track(ctx context.Context, id string, m marker.Marker) (*Channel, error) {
	t.mu.Lock()
	c, ok := t.channels[id]
	if !ok {
		var err error
		c, err = New(Config{
			EntityType:         t.cfg.EntityType,
			EntityID:           id,
			Transport:          t.cfg.Transport,
			Marker:             m,
			FlushInterval:      t.cfg.FlushInterval,
			TransitionDuration: t.cfg.TransitionDuration,
			Clock:              t.cfg.Clock,
			Logger:             t.cfg.Logger,
			OnFlush:            t.cfg.OnFlush,
		})
		if err != nil {
			t.mu.Unlock()
			return nil, err
		}
		t.channels[id] = c
		t.logger.Debug().Str("id", id).Msg("tracking entity")
	} else {
		c.SetMarker(m)
	}
	t.mu.Unlock()

	return c, c.Subscribe(ctx)
}

// Untrack tears down the channel of id. Unknown ids are a no-op.
func (t *Tracker) Untrack(id string) error {
	t.mu.Lock()
	c, ok := t.channels[id]
	delete(t.channels, id)
	t.mu.Unlock()

	if !ok {
		return nil
	}
	t.logger.Debug().Str("id", id).Msg("untracking entity")
	return c.Teardown()
}

// Sync reconciles the tracked set with the visible entities: channels of
// ids no longer visible are torn down, new ids are tracked.
func (t *Tracker) Sync(ctx context.Context, visible map[string]marker.Marker) error {
	t.mu.Lock()
	var gone []string
	for id := range t.channels {
		if _, ok := visible[id]; !ok {
			gone = append(gone, id)
		}
	}
	t.mu.Unlock()

	var errs []error
	for _, id := range gone {
		if err := t.Untrack(id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range sortedKeys(visible) {
		if _, err := t.Track(ctx, id, visible[id]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Channel returns the channel of id.
func (t *Tracker) Channel(id string) (*Channel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.channels[id]
	return c, ok
}

// IDs returns the tracked entity ids, sorted.
func (t *Tracker) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.channels)
}

// Snapshot returns the status of every channel, sorted by channel name.
func (t *Tracker) Snapshot() []Status {
	t.mu.Lock()
	channels := make([]*Channel, 0, len(t.channels))
	for _, c := range t.channels {
		channels = append(channels, c)
	}
	t.mu.Unlock()

	out := make([]Status, 0, len(channels))
	for _, c := range channels {
		out = append(out, c.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// Close tears down every channel.
func (t *Tracker) Close() error {
	t.mu.Lock()
	channels := t.channels
	t.channels = make(map[string]*Channel)
	t.mu.Unlock()

	var errs []error
	for _, c := range channels {
		if err := c.Teardown(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
