// Package dispatcher routes live channel events to handlers by event name.
package dispatcher

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/trackplay/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrUnhandled is returned for events nobody registered for.
var ErrUnhandled = errors.New("unhandled event")

// Event is a decoded location event together with its arrival time.
type Event struct {
	Name     string
	Location core.LocationEvent
	Received time.Time
}

// NewEvent wraps a location event, taking the name from its discriminator.
func NewEvent(e core.LocationEvent, received time.Time) Event {
	return Event{Name: e.Event, Location: e, Received: received}
}

// HandlerFunc processes an event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers. Handlers run on the
// goroutine calling Dispatch.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   Logger
	counters *counters
	attrs    metric.MeasurementOption
}

// New creates a new Dispatcher with the given logger. attrs are attached to
// every measurement, typically the channel name.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger, attrs ...attribute.KeyValue) (*Dispatcher, error) {
	c, err := newCounters()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
		counters: c,
		attrs:    metric.WithAttributes(attrs...),
	}, nil
}

// Register adds a handler for the given event name with optional configuration.
func (d *Dispatcher) Register(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h
	if cfg.logged {
		handler = d.withLogging(name, handler)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = handler
}

// Dispatch routes an event to its registered handler. Unknown names return
// an error wrapping ErrUnhandled.
func (d *Dispatcher) Dispatch(e Event) error {
	d.mu.RLock()
	h, ok := d.handlers[e.Name]
	d.mu.RUnlock()

	if !ok {
		d.counters.record(outcomeIgnored, d.attrs)
		return fmt.Errorf("%w: %q", ErrUnhandled, e.Name)
	}

	if err := h(e); err != nil {
		d.counters.record(outcomeFailed, d.attrs)
		return err
	}
	d.counters.record(outcomeAccepted, d.attrs)
	return nil
}

// HasHandler returns true if a handler is registered for the event name.
func (d *Dispatcher) HasHandler(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[name]
	return ok
}

// Names returns the registered event names, sorted.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for n := range d.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "event", name, "received", e.Received)

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "event", name, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "event", name, "duration", time.Since(start))
		}

		return err
	}
}
