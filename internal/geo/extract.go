package geo

import (
	"math"
	"strings"
	"time"

	"github.com/OCAP2/trackplay/pkg/core"
	"github.com/spf13/cast"
)

// ResolveLatLng extracts the coordinate pair of a sample.
//
// Resolution order:
//  1. direct fields latitude/longitude, then lat/lng
//  2. location.coordinates, GeoJSON order [lng, lat]
//  3. bare coordinates, ordered [lat, lng]
//
// The second return value is false when no shape yields two finite numbers.
func ResolveLatLng(s core.Sample) (core.LatLng, bool) {
	if ll, ok := pair(s.Latitude, s.Longitude); ok {
		return ll, true
	}
	if ll, ok := pair(s.Lat, s.Lng); ok {
		return ll, true
	}
	if s.Location != nil && len(s.Location.Coordinates) >= 2 {
		if ll, ok := pair(s.Location.Coordinates[1], s.Location.Coordinates[0]); ok {
			return ll, true
		}
	}
	if len(s.Coordinates) >= 2 {
		if ll, ok := pair(s.Coordinates[0], s.Coordinates[1]); ok {
			return ll, true
		}
	}
	return core.LatLng{}, false
}

func pair(lat, lng any) (core.LatLng, bool) {
	la, ok := Float(lat)
	if !ok {
		return core.LatLng{}, false
	}
	lo, ok := Float(lng)
	if !ok {
		return core.LatLng{}, false
	}
	return core.LatLng{Lat: la, Lng: lo}, true
}

// ResolveTimestamp returns the sample time in epoch milliseconds.
//
// Fields are tried in order created_at, timestamp, recorded_at, time,
// datetime; the first that parses wins. Numbers are epoch milliseconds,
// strings are ISO-8601 style dates.
func ResolveTimestamp(s core.Sample) (int64, bool) {
	for _, v := range []any{s.CreatedAt, s.Timestamp, s.RecordedAt, s.Time, s.Datetime} {
		if ms, ok := EpochMillis(v); ok {
			return ms, true
		}
	}
	return 0, false
}

// EpochMillis converts a loosely typed time value to epoch milliseconds.
func EpochMillis(v any) (int64, bool) {
	switch t := v.(type) {
	case nil, bool:
		return 0, false
	case time.Time:
		if t.IsZero() {
			return 0, false
		}
		return t.UnixMilli(), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return 0, false
		}
		return t.UnixMilli(), true
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return 0, false
		}
		if f, ok := Float(t); ok {
			return millisFromFloat(f)
		}
		parsed, err := cast.ToTimeE(t)
		if err != nil {
			return 0, false
		}
		return parsed.UnixMilli(), true
	}

	f, ok := Float(v)
	if !ok {
		return 0, false
	}
	return millisFromFloat(f)
}

// millisFromFloat truncates f to whole milliseconds. Values outside int64
// are unresolvable.
func millisFromFloat(f float64) (int64, bool) {
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// ResolveHeading returns the heading in degrees normalised to [0, 360).
// Negative values are the unknown sentinel.
func ResolveHeading(s core.Sample) (float64, bool) {
	h, ok := Float(s.Heading)
	if !ok || h < 0 {
		return core.HeadingUnknown, false
	}
	return math.Mod(h, 360), true
}

// ResolveSpeed returns the sample speed in metres per second.
// Speeds tagged km/h are converted.
func ResolveSpeed(s core.Sample) (float64, bool) {
	v, ok := Float(s.Speed)
	if !ok || v < 0 {
		return 0, false
	}
	if IsKilometresPerHour(s.SpeedUnit) {
		v /= 3.6
	}
	return v, true
}

// IsKilometresPerHour reports whether a speed_unit tag means km/h.
func IsKilometresPerHour(unit string) bool {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "km/h", "kmh", "kph":
		return true
	}
	return false
}

// Float converts a loosely typed number. Booleans, empty strings and
// non-finite values are rejected.
func Float(v any) (float64, bool) {
	switch t := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, false
		}
		v = strings.TrimSpace(t)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
