// Package timing computes the waits of the replay loop: the real-time gap
// between consecutive samples and the marker animation length of a single
// move.
package timing

import (
	"time"

	"github.com/OCAP2/trackplay/internal/geo"
	"github.com/OCAP2/trackplay/pkg/core"
)

const (
	// MinDelay and MaxDelay bound the wait between two samples.
	MinDelay = 50 * time.Millisecond
	MaxDelay = 60 * time.Second

	// DefaultDelay is used, before speed scaling, when either sample has no timestamp.
	DefaultDelay = time.Second
	// NonPositiveDelay is used, before speed scaling, for duplicate or reversed timestamps.
	NonPositiveDelay = 100 * time.Millisecond

	// MinAnimation and MaxAnimation bound a single marker move.
	MinAnimation = 100 * time.Millisecond
	MaxAnimation = time.Second
	// DefaultAnimation is used when the sample carries no usable speed.
	DefaultAnimation = 500 * time.Millisecond
)

// DelayToNext returns how long playback waits after cur before applying next.
// The recorded gap is divided by the speed multiplier; a non-positive speed
// counts as 1.
func DelayToNext(cur, next core.Sample, speed float64) time.Duration {
	if speed <= 0 {
		speed = 1
	}

	curTs, okCur := geo.ResolveTimestamp(cur)
	nextTs, okNext := geo.ResolveTimestamp(next)

	var raw time.Duration
	switch {
	case !okCur || !okNext:
		raw = DefaultDelay
	case nextTs-curTs <= 0:
		raw = NonPositiveDelay
	default:
		raw = time.Duration(nextTs-curTs) * time.Millisecond
	}

	return clamp(time.Duration(float64(raw)/speed), MinDelay, MaxDelay)
}

// AnimationDuration returns how long a marker takes to move from one point to
// another at the speed recorded on the target sample. It is independent of
// the playback speed multiplier.
func AnimationDuration(from, to core.LatLng, sample core.Sample) time.Duration {
	mps, ok := geo.ResolveSpeed(sample)
	if !ok || mps <= 0 {
		return DefaultAnimation
	}

	seconds := geo.Distance(from, to) / mps
	return clamp(time.Duration(seconds*float64(time.Second)), MinAnimation, MaxAnimation)
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
