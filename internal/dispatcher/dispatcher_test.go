package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/trackplay/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.messages))
	copy(out, l.messages)
	return out
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}

	d, err := New(logger, attribute.String("channel", "driver.1"))
	require.NoError(t, err)

	return d, logger
}

func locationEvent(name string) Event {
	return NewEvent(core.LocationEvent{Event: name}, time.Now())
}

func TestDispatcher_RoutesByName(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got []string
	d.Register("driver.location_changed", func(e Event) error {
		got = append(got, e.Name)
		return nil
	})

	require.NoError(t, d.Dispatch(locationEvent("driver.location_changed")))
	assert.Equal(t, []string{"driver.location_changed"}, got)
}

func TestDispatcher_UnknownEvent(t *testing.T) {
	d, _ := newTestDispatcher(t)

	err := d.Dispatch(locationEvent("driver.status_changed"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnhandled))
}

func TestDispatcher_HandlerError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	boom := errors.New("boom")
	d.Register("x", func(Event) error { return boom })

	assert.ErrorIs(t, d.Dispatch(locationEvent("x")), boom)
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("ok", func(Event) error { return nil }, Logged())
	d.Register("bad", func(Event) error { return errors.New("test error") }, Logged())

	_ = d.Dispatch(locationEvent("ok"))
	_ = d.Dispatch(locationEvent("bad"))

	msgs := logger.all()
	require.Len(t, msgs, 4)

	hasError := false
	for _, msg := range msgs {
		if strings.HasPrefix(msg, "ERROR") {
			hasError = true
		}
	}
	assert.True(t, hasError, "expected error log message")
}

func TestDispatcher_HasHandlerAndNames(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("b", func(Event) error { return nil })
	d.Register("a", func(Event) error { return nil })

	assert.True(t, d.HasHandler("a"))
	assert.False(t, d.HasHandler("c"))
	assert.Equal(t, []string{"a", "b"}, d.Names())
}

func TestDispatcher_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	d, _ := newTestDispatcher(t)
	d.Register("driver.location_changed", func(Event) error { return nil })

	_ = d.Dispatch(locationEvent("driver.location_changed"))
	_ = d.Dispatch(locationEvent("driver.location_changed"))
	_ = d.Dispatch(locationEvent("driver.deleted"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(2), counterValue(rm, "live.events.accepted"))
	assert.Equal(t, int64(1), counterValue(rm, "live.events.ignored"))
}

func counterValue(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
