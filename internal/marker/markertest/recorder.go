// Package markertest provides recording markers for tests.
package markertest

import (
	"sync"
	"time"

	"github.com/OCAP2/trackplay/pkg/core"
)

// Operations recorded by Recorder.
const (
	OpSet    = "set"
	OpSlide  = "slide"
	OpRotate = "rotate"
	OpPan    = "pan"
)

// Call is one recorded marker or map operation.
type Call struct {
	Op       string
	LatLng   core.LatLng
	Heading  float64
	Duration time.Duration
}

// Recorder is a marker with every optional capability that records calls.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	pos      core.LatLng
	detached bool
}

// SetLatLng records an immediate move.
func (r *Recorder) SetLatLng(ll core.LatLng) {
	r.record(Call{Op: OpSet, LatLng: ll})
}

// SlideTo records an animated move.
func (r *Recorder) SlideTo(ll core.LatLng, d time.Duration) {
	r.record(Call{Op: OpSlide, LatLng: ll, Duration: d})
}

// SetRotationAngle records a rotation.
func (r *Recorder) SetRotationAngle(deg float64) {
	r.record(Call{Op: OpRotate, Heading: deg})
}

// LatLng returns the last position moved to.
func (r *Recorder) LatLng() core.LatLng {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// Available is false after Detach.
func (r *Recorder) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.detached
}

// Detach simulates the marker being removed from its map.
func (r *Recorder) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detached = true
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Moves returns the positions of set and slide calls in order.
func (r *Recorder) Moves() []core.LatLng {
	var out []core.LatLng
	for _, c := range r.Calls() {
		if c.Op == OpSet || c.Op == OpSlide {
			out = append(out, c.LatLng)
		}
	}
	return out
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Op == OpSet || c.Op == OpSlide {
		r.pos = c.LatLng
	}
	r.calls = append(r.calls, c)
}

// Map records PanTo calls.
type Map struct {
	mu   sync.Mutex
	pans []core.LatLng
}

// PanTo records a re-centre.
func (m *Map) PanTo(ll core.LatLng) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pans = append(m.pans, ll)
}

// Pans returns the recorded re-centres.
func (m *Map) Pans() []core.LatLng {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.LatLng, len(m.pans))
	copy(out, m.pans)
	return out
}
