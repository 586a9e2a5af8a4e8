package geo

import (
	"math"
	"testing"

	"github.com/OCAP2/trackplay/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance_SamePoint(t *testing.T) {
	p := core.LatLng{Lat: 1.3521, Lng: 103.8198}
	if d := Distance(p, p); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestDistance_OneDegreeLongitudeAtEquator(t *testing.T) {
	d := Distance(core.LatLng{Lat: 0, Lng: 0}, core.LatLng{Lat: 0, Lng: 1})

	// 2*pi*R/360
	expected := 2 * math.Pi * EarthRadius / 360
	assert.InDelta(t, expected, d, 0.5)
}

func TestDistance_Symmetric(t *testing.T) {
	a := core.LatLng{Lat: 52.52, Lng: 13.405}
	b := core.LatLng{Lat: 48.8566, Lng: 2.3522}

	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-6)
	// Berlin to Paris is roughly 878 km
	assert.InDelta(t, 878000, Distance(a, b), 5000)
}

func TestWebMercator_Origin(t *testing.T) {
	point, err := WebMercator(core.LatLng{Lat: 0, Lng: 0})
	require.NoError(t, err)

	coords, ok := point.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 0, coords.X, 1e-6)
	assert.InDelta(t, 0, coords.Y, 1e-6)
}

func TestWebMercator_KnownPoint(t *testing.T) {
	point, err := WebMercator(core.LatLng{Lat: 0, Lng: 180})
	require.NoError(t, err)

	coords, ok := point.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 20037508.34, coords.X, 1)
}

func TestTrack_SkipsUnresolvableSamples(t *testing.T) {
	samples := []core.Sample{
		{Lat: 1.0, Lng: 2.0},
		{Lat: "garbage", Lng: 3.0},
		{Location: &core.Location{Coordinates: []any{4.0, 3.0}}},
	}

	ls, err := Track(samples)
	require.NoError(t, err)

	seq := ls.Coordinates()
	require.Equal(t, 2, seq.Length())
	assert.Equal(t, 2.0, seq.GetXY(0).X)
	assert.Equal(t, 1.0, seq.GetXY(0).Y)
	assert.Equal(t, 4.0, seq.GetXY(1).X)
	assert.Equal(t, 3.0, seq.GetXY(1).Y)
}

func TestTrack_TooFewPoints(t *testing.T) {
	_, err := Track([]core.Sample{{Lat: 1.0, Lng: 2.0}})
	assert.ErrorIs(t, err, ErrInvalidCoordinates)

	_, err = Track(nil)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestTrack_StationarySamples(t *testing.T) {
	_, err := Track([]core.Sample{{Lat: 1.0, Lng: 2.0}, {Lat: 1.0, Lng: 2.0}})
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestTrackLength(t *testing.T) {
	samples := []core.Sample{
		{Lat: 0.0, Lng: 0.0},
		{Lat: 0.0, Lng: 1.0},
		{Lat: 0.0, Lng: 2.0},
	}
	ls, err := Track(samples)
	require.NoError(t, err)

	expected := 2 * (2 * math.Pi * EarthRadius / 360)
	assert.InDelta(t, expected, TrackLength(ls), 1)
}
