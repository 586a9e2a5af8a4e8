package live

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/trackplay/internal/live"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	applied   metric.Int64Counter
	skipped   metric.Int64Counter
	flushSize metric.Int64Histogram
}

func newMetrics() (*metrics, error) {
	m := meter()
	var (
		out metrics
		err error
	)

	out.applied, err = m.Int64Counter(
		"live.samples.applied",
		metric.WithDescription("Buffered samples drawn on a marker"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating applied counter: %w", err)
	}

	out.skipped, err = m.Int64Counter(
		"live.samples.skipped",
		metric.WithDescription("Samples dropped for missing coordinates or timestamps"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	out.flushSize, err = m.Int64Histogram(
		"live.flush.size",
		metric.WithDescription("Samples per non-empty flush"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating flush size histogram: %w", err)
	}

	return &out, nil
}
