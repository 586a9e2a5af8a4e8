package influx

import (
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/OCAP2/trackplay/internal/live"
	"github.com/OCAP2/trackplay/internal/observer"
	"github.com/OCAP2/trackplay/internal/timeutil"
	"github.com/rs/zerolog"
)

// Measurement names.
const (
	MeasurementFlush    = "live_flush"
	MeasurementPosition = "playback_position"
	MeasurementComplete = "playback_complete"
)

// PointWriter is satisfied by Manager.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Reporter turns engine callbacks into points. It is a playback observer and
// its Flush method fits live.Config.OnFlush.
type Reporter struct {
	w      PointWriter
	entity string
	clock  timeutil.Clock
	logger zerolog.Logger
}

// NewReporter creates a reporter tagging playback points with entity. A nil
// clock means the real clock.
func NewReporter(w PointWriter, entity string, clock timeutil.Clock, logger zerolog.Logger) *Reporter {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Reporter{
		w:      w,
		entity: entity,
		clock:  clock,
		logger: logger.With().Str("module", "influx").Logger(),
	}
}

// FlushPoint builds the point of one live flush.
func FlushPoint(s live.FlushStats) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementFlush).
		AddTag("channel", s.Channel).
		AddField("samples", s.Samples).
		AddField("applied", s.Applied).
		AddField("skipped", s.Skipped).
		SetTime(s.At)
	if s.Last > 0 {
		p.AddField("window_ms", s.Last-s.First)
	}
	return p
}

// PositionPoint builds the point of one applied playback sample.
func PositionPoint(entity string, u observer.PositionUpdate, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementPosition).
		AddTag("entity", entity).
		AddTag("animated", boolTag(u.Animated)).
		AddField("lat", u.Position.Lat).
		AddField("lng", u.Position.Lng).
		AddField("index", u.Index).
		AddField("total", u.Total).
		AddField("progress", u.Progress).
		AddField("duration_ms", u.Duration.Milliseconds()).
		SetTime(at)
}

// Flush reports a live flush.
func (r *Reporter) Flush(s live.FlushStats) {
	r.write(FlushPoint(s))
}

// OnPosition reports an applied playback sample.
func (r *Reporter) OnPosition(u observer.PositionUpdate) {
	r.write(PositionPoint(r.entity, u, r.clock.Now()))
}

// OnComplete reports the end of a replay.
func (r *Reporter) OnComplete(c observer.Completion) {
	r.write(influxdb2_write.NewPointWithMeasurement(MeasurementComplete).
		AddTag("entity", r.entity).
		AddField("total", c.Total).
		SetTime(r.clock.Now()))
}

func (r *Reporter) write(p *influxdb2_write.Point) {
	if err := r.w.WritePoint(p); err != nil {
		r.logger.Error().Err(err).Str("measurement", p.Name()).Msg("Failed to write point")
	}
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
