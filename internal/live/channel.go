// Package live subscribes to per-entity position channels, buffers the
// events and replays each window in timestamp order on the entity's marker.
package live

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/trackplay/internal/dispatcher"
	"github.com/OCAP2/trackplay/internal/geo"
	"github.com/OCAP2/trackplay/internal/logging"
	"github.com/OCAP2/trackplay/internal/marker"
	"github.com/OCAP2/trackplay/internal/queue"
	"github.com/OCAP2/trackplay/internal/timeutil"
	"github.com/OCAP2/trackplay/internal/transport"
	"github.com/OCAP2/trackplay/pkg/core"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DefaultFlushInterval is how long events are collected before a window is applied.
	DefaultFlushInterval = 10 * time.Second
	// DefaultTransitionDuration is the marker slide length of every applied sample.
	DefaultTransitionDuration = 2 * time.Second
)

var (
	// ErrClosed is returned when subscribing a torn down channel.
	ErrClosed = errors.New("channel torn down")

	errNoTransport      = errors.New("no transport configured")
	errMissingTimestamp = errors.New("event has no parsable timestamp")
)

// Config configures one entity channel.
type Config struct {
	EntityType string
	EntityID   string
	Transport  transport.Transport
	// Marker may be nil; samples are then consumed without drawing.
	Marker             marker.Marker
	FlushInterval      time.Duration
	TransitionDuration time.Duration
	Clock              timeutil.Clock
	Logger             zerolog.Logger
	// OnFlush is called after every non-empty flush.
	OnFlush func(FlushStats)
}

// FlushStats summarises one applied window.
type FlushStats struct {
	Channel string
	Samples int
	Applied int
	Skipped int
	// First and Last are the epoch millisecond bounds of the window.
	First int64
	Last  int64
	At    time.Time
}

// Status is a point in time view of a channel.
type Status struct {
	Channel    string    `json:"channel"`
	EntityID   string    `json:"entityId"`
	Subscribed bool      `json:"subscribed"`
	Pending    int       `json:"pending"`
	Applied    int64     `json:"applied"`
	LastFlush  time.Time `json:"lastFlush,omitzero"`
}

type pending struct {
	sample core.Sample
	ts     int64
	index  int
	hasIdx bool
}

func comparePending(a, b pending) int {
	if c := cmp.Compare(a.ts, b.ts); c != 0 {
		return c
	}
	if a.hasIdx && b.hasIdx {
		return cmp.Compare(a.index, b.index)
	}
	return 0
}

// Channel is the live subscription of one tracked entity.
type Channel struct {
	cfg        Config
	name       string
	logger     zerolog.Logger
	buffer     *queue.Queue[pending]
	dispatcher *dispatcher.Dispatcher
	metrics    *metrics
	attrs      metric.MeasurementOption
	closed     atomic.Bool
	subscribed atomic.Bool
	applied    atomic.Int64

	// subMu serialises Subscribe and Teardown.
	subMu    sync.Mutex
	sub      transport.Subscription
	stop     chan struct{}
	loopDone chan struct{}

	// mu guards marker and lastFlush.
	mu        sync.Mutex
	marker    marker.Marker
	lastFlush time.Time

	flushMu sync.Mutex
}

// New creates a channel. Nothing is subscribed until Subscribe.
func New(cfg Config) (*Channel, error) {
	if cfg.EntityType == "" || cfg.EntityID == "" {
		return nil, fmt.Errorf("entity type and id are required")
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.TransitionDuration <= 0 {
		cfg.TransitionDuration = DefaultTransitionDuration
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}

	name := core.ChannelName(cfg.EntityType, cfg.EntityID)
	logger := cfg.Logger.With().Str("module", "live").Str("channel", name).Logger()

	d, err := dispatcher.New(logging.NewEventLogger(logger), attribute.String("channel", name))
	if err != nil {
		return nil, err
	}
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	c := &Channel{
		cfg:        cfg,
		name:       name,
		logger:     logger,
		buffer:     queue.New[pending](),
		dispatcher: d,
		metrics:    m,
		attrs:      metric.WithAttributes(attribute.String("channel", name)),
		marker:     cfg.Marker,
	}

	for _, suffix := range []string{core.SuffixLocationChanged, core.SuffixSimulatedLocationChanged} {
		d.Register(core.EventName(cfg.EntityType, suffix), c.bufferEvent)
	}

	return c, nil
}

// Name returns the channel name, "<entityType>.<entityID>".
func (c *Channel) Name() string {
	return c.name
}

// SetMarker replaces the marker samples are drawn on. nil detaches.
func (c *Channel) SetMarker(m marker.Marker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marker = m
}

// Subscribe starts the flush loop and subscribes on the transport.
//
// The loop keeps running when the transport call fails, so events already
// received (or fed through OnEvent) are still applied. Calling Subscribe
// again retries the transport. Failures are *transport.ChannelError.
func (c *Channel) Subscribe(ctx context.Context) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.closed.Load() {
		return ErrClosed
	}

	if c.stop == nil {
		c.stop = make(chan struct{})
		c.loopDone = make(chan struct{})
		go c.flushLoop(c.stop, c.loopDone)
	}

	if c.sub != nil {
		return nil
	}
	if c.cfg.Transport == nil {
		return transport.NewChannelError(c.name, errNoTransport)
	}

	sub, err := c.cfg.Transport.Subscribe(ctx, c.name, c.handlePayload)
	if err != nil {
		c.logger.Warn().Err(err).Msg("subscription failed")
		var ce *transport.ChannelError
		if errors.As(err, &ce) {
			return err
		}
		return transport.NewChannelError(c.name, err)
	}

	c.sub = sub
	c.subscribed.Store(true)
	c.logger.Info().Msg("subscribed")
	return nil
}

// OnEvent buffers a location event. Events with another discriminator are
// ignored; accepted events without a timestamp are skipped.
func (c *Channel) OnEvent(e core.LocationEvent) {
	if c.closed.Load() {
		return
	}

	err := c.dispatcher.Dispatch(dispatcher.NewEvent(e, c.cfg.Clock.Now()))
	switch {
	case err == nil:
	case errors.Is(err, dispatcher.ErrUnhandled):
		c.logger.Trace().Str("event", e.Event).Msg("ignoring event")
	default:
		c.metrics.skipped.Add(context.Background(), 1, c.attrs)
		c.logger.Warn().Err(err).Str("event", e.Event).Msg("skipping event")
	}
}

func (c *Channel) handlePayload(payload []byte) {
	var e core.LocationEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		c.metrics.skipped.Add(context.Background(), 1, c.attrs)
		c.logger.Warn().Err(err).Msg("skipping malformed payload")
		return
	}
	c.OnEvent(e)
}

func (c *Channel) bufferEvent(e dispatcher.Event) error {
	s := e.Location.Sample()
	ts, ok := geo.ResolveTimestamp(s)
	if !ok {
		return errMissingTimestamp
	}

	p := pending{sample: s, ts: ts}
	p.index, p.hasIdx = e.Location.SequenceIndex()
	c.buffer.Push(p)
	return nil
}

// Pending returns the number of buffered samples.
func (c *Channel) Pending() int {
	return c.buffer.Len()
}

// Flush applies the buffered window in ascending timestamp order and empties
// the buffer. Each sample rotates the marker when its heading is known and
// slides it over the transition duration. Samples without coordinates are
// skipped. Only one flush runs at a time.
func (c *Channel) Flush() FlushStats {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	stats := FlushStats{Channel: c.name, At: c.cfg.Clock.Now()}

	items := c.buffer.DrainSorted(comparePending)
	if len(items) == 0 {
		return stats
	}

	c.mu.Lock()
	m := c.marker
	c.mu.Unlock()

	stats.Samples = len(items)
	stats.First = items[0].ts
	stats.Last = items[len(items)-1].ts

	for _, p := range items {
		ll, ok := geo.ResolveLatLng(p.sample)
		if !ok {
			stats.Skipped++
			c.logger.Warn().Int64("ts", p.ts).Msg("skipping sample without coordinates")
			continue
		}
		heading, _ := geo.ResolveHeading(p.sample)
		if marker.Apply(m, ll, heading, c.cfg.TransitionDuration) {
			stats.Applied++
		}
	}

	ctx := context.Background()
	c.metrics.flushSize.Record(ctx, int64(stats.Samples), c.attrs)
	c.metrics.applied.Add(ctx, int64(stats.Applied), c.attrs)
	c.metrics.skipped.Add(ctx, int64(stats.Skipped), c.attrs)
	c.applied.Add(int64(stats.Applied))

	c.mu.Lock()
	c.lastFlush = stats.At
	c.mu.Unlock()

	c.logger.Debug().
		Int("samples", stats.Samples).
		Int("applied", stats.Applied).
		Int("skipped", stats.Skipped).
		Msg("flushed window")

	if c.cfg.OnFlush != nil {
		c.cfg.OnFlush(stats)
	}
	return stats
}

func (c *Channel) flushLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := c.cfg.Clock.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			c.Flush()
		}
	}
}

// Teardown unsubscribes, stops the flush loop and drops buffered samples.
// It is safe to call more than once.
func (c *Channel) Teardown() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	var err error
	if c.sub != nil {
		if uerr := c.sub.Unsubscribe(); uerr != nil {
			err = fmt.Errorf("unsubscribe %s: %w", c.name, uerr)
		}
		c.sub = nil
		c.subscribed.Store(false)
	}

	if c.stop != nil {
		close(c.stop)
		<-c.loopDone
		c.stop = nil
	}

	dropped := c.buffer.Clear()
	c.SetMarker(nil)
	c.logger.Info().Int("dropped", dropped).Msg("torn down")
	return err
}

// Status returns a snapshot of the channel.
func (c *Channel) Status() Status {
	c.mu.Lock()
	last := c.lastFlush
	c.mu.Unlock()

	return Status{
		Channel:    c.name,
		EntityID:   c.cfg.EntityID,
		Subscribed: c.subscribed.Load(),
		Pending:    c.buffer.Len(),
		Applied:    c.applied.Load(),
		LastFlush:  last,
	}
}
