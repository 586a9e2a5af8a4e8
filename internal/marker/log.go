package marker

import (
	"sync"
	"time"

	"github.com/OCAP2/trackplay/pkg/core"
	"github.com/rs/zerolog"
)

// LogMarker is a headless marker that records its state and logs every
// change. It is used when no map is attached.
type LogMarker struct {
	mu      sync.Mutex
	name    string
	pos     core.LatLng
	heading float64
	logger  zerolog.Logger
}

// NewLogMarker creates a headless marker named after the entity it shows.
func NewLogMarker(name string, logger zerolog.Logger) *LogMarker {
	return &LogMarker{
		name:    name,
		heading: core.HeadingUnknown,
		logger:  logger.With().Str("marker", name).Logger(),
	}
}

// SetLatLng moves the marker immediately.
func (m *LogMarker) SetLatLng(ll core.LatLng) {
	m.mu.Lock()
	m.pos = ll
	m.mu.Unlock()
	m.logger.Debug().Float64("lat", ll.Lat).Float64("lng", ll.Lng).Msg("marker moved")
}

// SlideTo moves the marker and logs the animation length.
func (m *LogMarker) SlideTo(ll core.LatLng, d time.Duration) {
	m.mu.Lock()
	m.pos = ll
	m.mu.Unlock()
	m.logger.Debug().Float64("lat", ll.Lat).Float64("lng", ll.Lng).Dur("duration", d).Msg("marker sliding")
}

// SetRotationAngle records the heading.
func (m *LogMarker) SetRotationAngle(deg float64) {
	m.mu.Lock()
	m.heading = deg
	m.mu.Unlock()
	m.logger.Trace().Float64("heading", deg).Msg("marker rotated")
}

// LatLng returns the last position.
func (m *LogMarker) LatLng() core.LatLng {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// Heading returns the last heading.
func (m *LogMarker) Heading() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heading
}
