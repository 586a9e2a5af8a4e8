// Package observer defines how playback reports progress to its caller.
package observer

import (
	"time"

	"github.com/OCAP2/trackplay/pkg/core"
)

// PositionUpdate is sent every time playback applies a sample.
type PositionUpdate struct {
	Sample   core.Sample
	Position core.LatLng
	Index    int
	Total    int
	Progress float64
	// Duration is the marker animation length. Zero for immediate moves.
	Duration time.Duration
	Animated bool
}

// Completion is sent once when playback runs past the last sample.
type Completion struct {
	Total int
}

// Observer receives playback notifications. Calls are made from the
// playback goroutine and must not block for long.
type Observer interface {
	OnPosition(PositionUpdate)
	OnComplete(Completion)
}

// Funcs adapts plain functions to an Observer. Nil fields are skipped.
type Funcs struct {
	Position func(PositionUpdate)
	Complete func(Completion)
}

// OnPosition calls f.Position.
func (f Funcs) OnPosition(u PositionUpdate) {
	if f.Position != nil {
		f.Position(u)
	}
}

// OnComplete calls f.Complete.
func (f Funcs) OnComplete(c Completion) {
	if f.Complete != nil {
		f.Complete(c)
	}
}

// Multi fans notifications out to several observers in order.
type Multi []Observer

// OnPosition forwards to every observer.
func (m Multi) OnPosition(u PositionUpdate) {
	for _, o := range m {
		if o != nil {
			o.OnPosition(u)
		}
	}
}

// OnComplete forwards to every observer.
func (m Multi) OnComplete(c Completion) {
	for _, o := range m {
		if o != nil {
			o.OnComplete(c)
		}
	}
}
