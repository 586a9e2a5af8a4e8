// Package playback replays a recorded sequence of positions on a marker,
// reproducing the real time gaps between samples.
package playback

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/OCAP2/trackplay/internal/marker"
	"github.com/OCAP2/trackplay/internal/observer"
	"github.com/OCAP2/trackplay/internal/timeutil"
	"github.com/OCAP2/trackplay/pkg/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config is passed to Initialize.
type Config struct {
	Positions []core.Sample
	// Marker takes precedence over Subject. Subject is resolved with
	// marker.Resolve.
	Marker   marker.Marker
	Subject  any
	Map      marker.Panner
	Observer observer.Observer
	// Speed is the playback multiplier; values <= 0 mean 1.
	Speed float64
}

// Status is a point in time view of a session.
type Status struct {
	ID       string  `json:"id"`
	State    string  `json:"state"`
	Index    int     `json:"index"`
	Total    int     `json:"total"`
	Progress float64 `json:"progress"`
	Speed    float64 `json:"speed"`
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the real clock.
func WithClock(c timeutil.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// Session is a replay controller. All methods are safe for concurrent use.
//
// Play runs the replay on its own goroutine. Every iteration applies one
// sample, waits for the marker animation plus AnimationGrace, then waits the
// recorded gap to the next sample divided by the speed. Stop, Reset, steps
// and jumps start a new generation; a loop of an older generation is
// cancelled at its current wait and never touches the session again.
type Session struct {
	id      string
	clock   timeutil.Clock
	logger  zerolog.Logger
	metrics *metrics
	attrs   metric.MeasurementOption

	mu        sync.Mutex
	positions []core.Sample
	index     int
	state     State
	speed     float64
	marker    marker.Marker
	view      marker.Panner
	obs       observer.Observer
	last      core.LatLng
	hasLast   bool

	gen       uint64
	loopGen   uint64
	loopAlive bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates an idle session.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		id:    uuid.NewString(),
		clock: timeutil.RealClock{},
		state: Idle,
		speed: 1,
		done:  closedChan(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("module", "playback").Str("session", s.id).Logger()
	s.attrs = metric.WithAttributes(attribute.String("session", s.id))

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}
	s.metrics = m
	return s, nil
}

// ID returns the session id used in logs.
func (s *Session) ID() string {
	return s.id
}

// Initialize loads a new replay and leaves the session Stopped at index 0.
// A running replay is abandoned. A missing marker or empty position list is
// logged; the session still works headless.
func (s *Session) Initialize(cfg Config) {
	positions := make([]core.Sample, len(cfg.Positions))
	copy(positions, cfg.Positions)

	m := cfg.Marker
	if m == nil && cfg.Subject != nil {
		if resolved, ok := marker.Resolve(cfg.Subject); ok {
			m = resolved
		}
	}
	speed := cfg.Speed
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		speed = 1
	}

	s.mu.Lock()
	s.supersede()
	s.positions = positions
	s.index = 0
	s.state = Stopped
	s.speed = speed
	s.marker = m
	s.view = cfg.Map
	s.obs = cfg.Observer
	s.hasLast = false
	s.mu.Unlock()

	if m == nil {
		s.logger.Warn().Msg("no marker resolved, playing headless")
	}
	if len(positions) == 0 {
		s.logger.Warn().Msg("initialized without positions")
	}
	s.logger.Info().Int("positions", len(positions)).Float64("speed", speed).Msg("session initialized")
}

// Play starts or resumes playback on a new goroutine and returns at once.
// It is a no-op when already playing or when there is nothing to play.
// A session at the end restarts from the first sample. Cancelling ctx
// pauses playback.
func (s *Session) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Playing {
		return nil
	}
	if len(s.positions) == 0 {
		s.logger.Warn().Msg("play requested without positions")
		return nil
	}
	if s.index >= len(s.positions) {
		s.index = 0
	}
	s.state = Playing

	if s.loopAlive && s.loopGen == s.gen {
		// a paused iteration is still in flight and carries on
		s.logger.Debug().Int("index", s.index).Msg("playback resumed")
		return nil
	}

	// a dying loop of the same generation must not carry on next to the new one
	s.supersede()
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loopGen = s.gen
	s.loopAlive = true
	s.done = make(chan struct{})

	go s.run(loopCtx, s.gen, s.done)
	s.logger.Debug().Int("index", s.index).Msg("playback started")
	return nil
}

// Pause stops playback after the in-flight sample finishes. The index is
// kept so that Play continues with the next sample.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Playing {
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidState, s.state)
	}
	s.state = Paused
	s.logger.Debug().Int("index", s.index).Msg("playback paused")
	return nil
}

// Stop abandons playback and rewinds to the first sample. An Idle session has
// nothing loaded and stays Idle.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.supersede()
	s.index = 0
	if s.state != Idle {
		s.state = Stopped
	}
	s.logger.Debug().Msg("playback stopped")
}

// SetSpeed changes the multiplier for waits computed from now on.
func (s *Session) SetSpeed(m float64) error {
	if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, m)
	}
	s.mu.Lock()
	s.speed = m
	s.mu.Unlock()
	s.logger.Debug().Float64("speed", m).Msg("speed changed")
	return nil
}

// StepForward moves n samples ahead (at least one) and applies the sample
// immediately. Not allowed while playing.
func (s *Session) StepForward(n int) error {
	if n < 1 {
		n = 1
	}
	return s.step(n)
}

// StepBackward moves n samples back (at least one) and applies the sample
// immediately. Not allowed while playing.
func (s *Session) StepBackward(n int) error {
	if n < 1 {
		n = 1
	}
	return s.step(-n)
}

func (s *Session) step(delta int) error {
	s.mu.Lock()
	if s.state == Playing {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot step while playing", ErrInvalidState)
	}
	total := len(s.positions)
	if total == 0 {
		s.mu.Unlock()
		return nil
	}
	target := min(max(s.index+delta, 0), total-1)
	s.seekLocked(target)
	it := s.snapshotLocked(target)
	s.mu.Unlock()

	s.applyImmediate(it)
	return nil
}

// JumpToPosition moves to sample i and applies it immediately. An index
// outside the positions is rejected without any change.
func (s *Session) JumpToPosition(i int) error {
	s.mu.Lock()
	if s.state == Playing {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot jump while playing", ErrInvalidState)
	}
	if i < 0 || i >= len(s.positions) {
		total := len(s.positions)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, total)
	}
	s.seekLocked(i)
	it := s.snapshotLocked(i)
	s.mu.Unlock()

	s.applyImmediate(it)
	return nil
}

// Reset stops playback and releases positions, marker, map and observer.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.supersede()
	s.positions = nil
	s.index = 0
	s.state = Idle
	s.speed = 1
	s.marker = nil
	s.view = nil
	s.obs = nil
	s.hasLast = false
	s.logger.Debug().Msg("session reset")
}

// Progress returns index/total as a percentage.
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return progress(s.index, len(s.positions))
}

// CurrentPosition returns the sample at the current index, nil at the end
// or when empty.
func (s *Session) CurrentPosition() *core.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.positions) {
		return nil
	}
	p := s.positions[s.index]
	return &p
}

// Index returns the current index.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Total returns the number of loaded positions.
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Speed returns the multiplier.
func (s *Session) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ID:       s.id,
		State:    s.state.String(),
		Index:    s.index,
		Total:    len(s.positions),
		Progress: progress(s.index, len(s.positions)),
		Speed:    s.speed,
	}
}

// Done returns a channel closed when the current playback goroutine exits.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// supersede starts a new generation and cancels the running loop's wait.
// Callers hold s.mu.
func (s *Session) supersede() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// seekLocked moves the cursor for a step or jump. Callers hold s.mu.
func (s *Session) seekLocked(i int) {
	s.supersede()
	s.index = i
	if s.state == Stopped || s.state == Completed {
		s.state = Paused
	}
}

func progress(index, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(index) / float64(total) * 100
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
