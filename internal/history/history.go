// Package history loads recorded position sequences for replay.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/OCAP2/trackplay/internal/geo"
	"github.com/OCAP2/trackplay/pkg/core"
)

// ErrNoPositions is returned when a query matches nothing.
var ErrNoPositions = errors.New("no positions found")

// Query selects the samples of one entity. Zero From/To leave that side of
// the time range open.
type Query struct {
	EntityID string
	From     time.Time
	To       time.Time
}

// Source loads samples in replay order.
type Source interface {
	Load(ctx context.Context, q Query) ([]core.Sample, error)
}

// inRange reports whether a sample falls inside the query time range.
// Samples without a timestamp only match an open range.
func (q Query) inRange(s core.Sample) bool {
	if q.From.IsZero() && q.To.IsZero() {
		return true
	}
	ms, ok := geo.ResolveTimestamp(s)
	if !ok {
		return false
	}
	if !q.From.IsZero() && ms < q.From.UnixMilli() {
		return false
	}
	if !q.To.IsZero() && ms > q.To.UnixMilli() {
		return false
	}
	return true
}
