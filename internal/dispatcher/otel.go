package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/trackplay/internal/dispatcher"

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeIgnored
	outcomeFailed
)

// counters are created on the global meter, a no-op until a provider is
// installed.
type counters struct {
	byOutcome [3]metric.Int64Counter
}

func newCounters() (*counters, error) {
	m := otel.Meter(instrumentationName)
	specs := [...]struct {
		name, desc string
	}{
		outcomeAccepted: {"live.events.accepted", "Events routed to a handler"},
		outcomeIgnored:  {"live.events.ignored", "Events without a registered handler"},
		outcomeFailed:   {"live.events.failed", "Events whose handler returned an error"},
	}

	c := &counters{}
	for i, s := range specs {
		counter, err := m.Int64Counter(s.name, metric.WithDescription(s.desc))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", s.name, err)
		}
		c.byOutcome[i] = counter
	}
	return c, nil
}

func (c *counters) record(o outcome, attrs metric.MeasurementOption) {
	c.byOutcome[o].Add(context.Background(), 1, attrs)
}
