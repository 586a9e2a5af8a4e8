// Package marker adapts map marker handles owned by the caller.
//
// A marker only has to support SetLatLng. Rotation, smooth sliding,
// position read-back and liveness are optional capabilities discovered with
// type assertions, so any map library can be plugged in.
package marker

import (
	"time"

	"github.com/OCAP2/trackplay/pkg/core"
)

// Marker is the minimum a map marker must support.
type Marker interface {
	SetLatLng(ll core.LatLng)
}

// Rotator is implemented by markers that can show a heading.
type Rotator interface {
	SetRotationAngle(deg float64)
}

// Slider is implemented by markers that animate between positions.
type Slider interface {
	SlideTo(ll core.LatLng, d time.Duration)
}

// Locator is implemented by markers that report where they are drawn.
type Locator interface {
	LatLng() core.LatLng
}

// Availability is implemented by markers that can be detached from their
// map while the engine still holds a reference.
type Availability interface {
	Available() bool
}

// Panner is implemented by map views that can be re-centred.
type Panner interface {
	PanTo(ll core.LatLng)
}

// Available reports whether m can be drawn on. A nil marker is unavailable.
func Available(m Marker) bool {
	if m == nil {
		return false
	}
	if a, ok := m.(Availability); ok {
		return a.Available()
	}
	return true
}

// Position returns the drawn position of m when it can report one.
func Position(m Marker) (core.LatLng, bool) {
	if l, ok := m.(Locator); ok && Available(m) {
		return l.LatLng(), true
	}
	return core.LatLng{}, false
}

// Apply rotates m to heading (negative means unknown and is skipped) and
// moves it to ll, sliding over d when supported. It returns false if the
// marker is missing or unavailable.
func Apply(m Marker, ll core.LatLng, heading float64, d time.Duration) bool {
	if !Available(m) {
		return false
	}
	if heading >= 0 {
		if r, ok := m.(Rotator); ok {
			r.SetRotationAngle(heading)
		}
	}
	if s, ok := m.(Slider); ok && d > 0 {
		s.SlideTo(ll, d)
		return true
	}
	m.SetLatLng(ll)
	return true
}

// Pan re-centres the map view if one is set.
func Pan(p Panner, ll core.LatLng) {
	if p != nil {
		p.PanTo(ll)
	}
}
