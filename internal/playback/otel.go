package playback

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/trackplay/internal/playback"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	played    metric.Int64Counter
	skipped   metric.Int64Counter
	completed metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := meter()
	var (
		out metrics
		err error
	)

	out.played, err = m.Int64Counter(
		"playback.samples.played",
		metric.WithDescription("Samples applied by playback"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating played counter: %w", err)
	}

	out.skipped, err = m.Int64Counter(
		"playback.samples.skipped",
		metric.WithDescription("Samples skipped for missing coordinates"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	out.completed, err = m.Int64Counter(
		"playback.sessions.completed",
		metric.WithDescription("Sessions that played to the last sample"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating completed counter: %w", err)
	}

	return &out, nil
}
