// Package core holds the domain types shared by the live tracker and the
// replay engine.
package core

// HeadingUnknown marks a sample whose direction of travel is not known.
// Any negative heading is treated the same way.
const HeadingUnknown = -1.0

// LatLng is a WGS84 coordinate pair in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is a GeoJSON point. Coordinates are ordered [lng, lat].
type Location struct {
	Type        string `json:"type,omitempty"`
	Coordinates []any  `json:"coordinates,omitempty"`
}

// Sample is a single recorded position of a tracked entity.
//
// Producers disagree about field names and value types, so the fields are
// decoded loosely and interpreted by the geo package. Numbers may arrive as
// JSON numbers or numeric strings.
type Sample struct {
	Latitude  any `json:"latitude,omitempty"`
	Longitude any `json:"longitude,omitempty"`
	Lat       any `json:"lat,omitempty"`
	Lng       any `json:"lng,omitempty"`

	Location    *Location `json:"location,omitempty"`
	Coordinates []any     `json:"coordinates,omitempty"`

	Heading   any    `json:"heading,omitempty"`
	Speed     any    `json:"speed,omitempty"`
	SpeedUnit string `json:"speed_unit,omitempty"`

	CreatedAt  any `json:"created_at,omitempty"`
	Timestamp  any `json:"timestamp,omitempty"`
	RecordedAt any `json:"recorded_at,omitempty"`
	Time       any `json:"time,omitempty"`
	Datetime   any `json:"datetime,omitempty"`
}

// SampleAt is a convenience constructor for a sample with direct lat/lng
// fields and a created_at timestamp.
func SampleAt(lat, lng float64, createdAt any) Sample {
	return Sample{Lat: lat, Lng: lng, CreatedAt: createdAt}
}
