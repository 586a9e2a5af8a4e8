package playback

import (
	"context"
	"time"

	"github.com/OCAP2/trackplay/internal/geo"
	"github.com/OCAP2/trackplay/internal/marker"
	"github.com/OCAP2/trackplay/internal/observer"
	"github.com/OCAP2/trackplay/internal/timing"
	"github.com/OCAP2/trackplay/pkg/core"
)

// iteration is the state one loop step works on, copied under the lock.
type iteration struct {
	gen     uint64
	index   int
	total   int
	cur     core.Sample
	next    core.Sample
	hasNext bool
	marker  marker.Marker
	view    marker.Panner
	obs     observer.Observer
	last    core.LatLng
	hasLast bool
}

// snapshotLocked copies the iteration state for index i. Callers hold s.mu.
func (s *Session) snapshotLocked(i int) iteration {
	it := iteration{
		gen:     s.gen,
		index:   i,
		total:   len(s.positions),
		cur:     s.positions[i],
		marker:  s.marker,
		view:    s.view,
		obs:     s.obs,
		last:    s.last,
		hasLast: s.hasLast,
	}
	if i+1 < len(s.positions) {
		it.next = s.positions[i+1]
		it.hasNext = true
	}
	return it
}

func (s *Session) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	for {
		it, ok := s.nextIteration(gen)
		if !ok {
			return
		}
		s.playIteration(ctx, it)
	}
}

// nextIteration re-checks the session at an iteration boundary. It returns
// false when the loop has to exit, marking the session Completed if the
// positions ran out.
func (s *Session) nextIteration(gen uint64) (iteration, bool) {
	s.mu.Lock()

	if s.gen != gen || s.state != Playing {
		s.releaseLocked(gen)
		s.mu.Unlock()
		return iteration{}, false
	}

	if s.index >= len(s.positions) {
		obs, total := s.completeLocked(gen)
		s.mu.Unlock()
		s.reportComplete(obs, total)
		return iteration{}, false
	}

	it := s.snapshotLocked(s.index)
	s.mu.Unlock()
	return it, true
}

// completeLocked ends the replay of gen at the last sample. Callers hold s.mu
// and pass the result to reportComplete once unlocked.
func (s *Session) completeLocked(gen uint64) (observer.Observer, int) {
	s.state = Completed
	s.releaseLocked(gen)
	return s.obs, len(s.positions)
}

func (s *Session) reportComplete(obs observer.Observer, total int) {
	s.metrics.completed.Add(context.Background(), 1, s.attrs)
	s.logger.Info().Int("positions", total).Msg("playback completed")
	if obs != nil {
		obs.OnComplete(observer.Completion{Total: total})
	}
}

// releaseLocked marks the loop of gen as gone. Callers hold s.mu.
func (s *Session) releaseLocked(gen uint64) {
	if s.loopGen == gen {
		s.loopAlive = false
	}
}

func (s *Session) playIteration(ctx context.Context, it iteration) {
	ll, ok := geo.ResolveLatLng(it.cur)
	if !ok {
		s.metrics.skipped.Add(context.Background(), 1, s.attrs)
		s.logger.Warn().Int("index", it.index).Msg("skipping sample without coordinates")
		s.advance(it.gen, it.index)
		return
	}

	from := ll
	if p, ok := marker.Position(it.marker); ok {
		from = p
	} else if it.hasLast {
		from = it.last
	}
	anim := timing.AnimationDuration(from, ll, it.cur)
	heading, _ := geo.ResolveHeading(it.cur)

	marker.Apply(it.marker, ll, heading, anim)
	s.metrics.played.Add(context.Background(), 1, s.attrs)
	s.notify(it, ll, anim, true)

	if err := s.clock.Sleep(ctx, anim+AnimationGrace); err != nil {
		s.interrupted(it.gen, err)
		return
	}

	if it.hasNext {
		s.mu.Lock()
		stale := s.gen != it.gen
		speed := s.speed
		s.mu.Unlock()
		if stale {
			return
		}

		if err := s.clock.Sleep(ctx, timing.DelayToNext(it.cur, it.next, speed)); err != nil {
			s.interrupted(it.gen, err)
			return
		}
	}

	s.advance(it.gen, it.index)
}

// applyImmediate draws a stepped or jumped-to sample with a short move,
// re-centres the map and notifies the observer.
func (s *Session) applyImmediate(it iteration) {
	ll, ok := geo.ResolveLatLng(it.cur)
	if !ok {
		s.metrics.skipped.Add(context.Background(), 1, s.attrs)
		s.logger.Warn().Int("index", it.index).Msg("skipping sample without coordinates")
		return
	}
	heading, _ := geo.ResolveHeading(it.cur)

	marker.Apply(it.marker, ll, heading, StepDuration)
	marker.Pan(it.view, ll)
	s.notify(it, ll, 0, false)
}

// notify records the drawn position and reports it, unless the iteration
// was superseded meanwhile.
func (s *Session) notify(it iteration, ll core.LatLng, d time.Duration, animated bool) {
	s.mu.Lock()
	if s.gen != it.gen {
		s.mu.Unlock()
		return
	}
	s.last = ll
	s.hasLast = true
	s.mu.Unlock()

	if it.obs == nil {
		return
	}
	it.obs.OnPosition(observer.PositionUpdate{
		Sample:   it.cur,
		Position: ll,
		Index:    it.index,
		Total:    it.total,
		Progress: progress(it.index, it.total),
		Duration: d,
		Animated: animated,
	})
}

// advance moves past index unless the session moved on meanwhile. Moving
// past the last sample completes the session, also when it was paused
// during that sample.
func (s *Session) advance(gen uint64, index int) {
	s.mu.Lock()
	if s.gen != gen || s.index != index {
		s.mu.Unlock()
		return
	}
	s.index = index + 1
	if s.index < len(s.positions) {
		s.mu.Unlock()
		return
	}
	obs, total := s.completeLocked(gen)
	s.mu.Unlock()
	s.reportComplete(obs, total)
}

// interrupted handles a wait cut short. A superseded loop just exits; a loop
// whose caller context ended pauses the session. Either way the loop is done,
// so a later Play starts a fresh one on its own context.
func (s *Session) interrupted(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(gen)
	if s.gen == gen && s.state == Playing {
		s.state = Paused
		s.logger.Info().Err(err).Int("index", s.index).Msg("playback context ended, pausing")
	}
}
