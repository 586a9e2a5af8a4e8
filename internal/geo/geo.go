package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/trackplay/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// EarthRadius is the mean earth radius in metres used for great-circle
// distances.
const EarthRadius = 6371000.0

// ErrInvalidCoordinates is returned when a track cannot be built from the samples
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Distance returns the haversine great-circle distance between two points in metres.
func Distance(a, b core.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// WebMercator projects a WGS84 coordinate (EPSG:4326) to EPSG:3857 metres.
func WebMercator(ll core.LatLng) (geom.Point, error) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(ll.Lng, ll.Lat, 0)
	pt, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Type: geom.DimXY,
	})
	if err != nil {
		return geom.Point{}, fmt.Errorf("projecting %v: %w", ll, err)
	}
	return pt, nil
}

// Track builds the route line of a sample sequence in lng/lat order.
// Samples without resolvable coordinates are left out; fewer than two
// usable samples, or samples that never move, is an error.
func Track(samples []core.Sample) (geom.LineString, error) {
	flat := make([]float64, 0, len(samples)*2)
	for _, s := range samples {
		ll, ok := ResolveLatLng(s)
		if !ok {
			continue
		}
		flat = append(flat, ll.Lng, ll.Lat)
	}
	if len(flat) < 4 {
		return geom.LineString{}, ErrInvalidCoordinates
	}

	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("%w: %w", ErrInvalidCoordinates, err)
	}
	return ls, nil
}

// TrackLength sums the great-circle distance along a track in metres.
func TrackLength(ls geom.LineString) float64 {
	seq := ls.Coordinates()
	var total float64
	for i := 1; i < seq.Length(); i++ {
		p, q := seq.GetXY(i-1), seq.GetXY(i)
		total += Distance(core.LatLng{Lat: p.Y, Lng: p.X}, core.LatLng{Lat: q.Y, Lng: q.X})
	}
	return total
}
