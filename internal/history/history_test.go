package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/trackplay/internal/database"
	"github.com/OCAP2/trackplay/internal/geo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "positions.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestFileSource_Array(t *testing.T) {
	path := writeFile(t, `[
		{"lat": 50.1, "lng": 8.1, "created_at": "2024-03-01T12:00:00Z"},
		{"latitude": "50.2", "longitude": "8.2", "timestamp": 1709294405000}
	]`)

	samples, err := FileSource{Path: path}.Load(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, samples, 2)

	ll, ok := geo.ResolveLatLng(samples[1])
	require.True(t, ok)
	assert.Equal(t, 50.2, ll.Lat)
}

func TestFileSource_PositionsDocument(t *testing.T) {
	path := writeFile(t, `{"positions": [
		{"location": {"type": "Point", "coordinates": [8.1, 50.1]}, "created_at": "2024-03-01T12:00:00Z"}
	]}`)

	samples, err := FileSource{Path: path}.Load(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, samples, 1)

	ll, ok := geo.ResolveLatLng(samples[0])
	require.True(t, ok)
	assert.Equal(t, 50.1, ll.Lat)
	assert.Equal(t, 8.1, ll.Lng)
}

func TestFileSource_TimeRange(t *testing.T) {
	path := writeFile(t, `[
		{"lat": 1, "lng": 1, "created_at": "2024-03-01T12:00:00Z"},
		{"lat": 2, "lng": 2, "created_at": "2024-03-01T12:00:10Z"},
		{"lat": 3, "lng": 3, "created_at": "2024-03-01T12:00:20Z"},
		{"lat": 4, "lng": 4}
	]`)

	samples, err := FileSource{Path: path}.Load(context.Background(), Query{
		From: base.Add(5 * time.Second),
		To:   base.Add(20 * time.Second),
	})
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, float64(2), samples[0].Lat)
}

func TestFileSource_Errors(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}.Load(context.Background(), Query{})
	assert.Error(t, err)

	_, err = FileSource{Path: writeFile(t, `{"positions": }`)}.Load(context.Background(), Query{})
	assert.Error(t, err)

	_, err = FileSource{Path: writeFile(t, `[]`)}.Load(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrNoPositions)

	_, err = FileSource{Path: writeFile(t, `  `)}.Load(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrNoPositions)
}

func TestFileSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FileSource{Path: writeFile(t, `[]`)}.Load(ctx, Query{})
	assert.ErrorIs(t, err, context.Canceled)
}

func ptr(v float64) *float64 { return &v }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite("")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&PositionRecord{}))
	return db
}

func TestGormSource_Load(t *testing.T) {
	db := newTestDB(t)
	rows := []PositionRecord{
		{EntityID: "42", RecordedAt: base.Add(10 * time.Second), Latitude: ptr(50.2), Longitude: ptr(8.2), Heading: ptr(90)},
		{EntityID: "42", RecordedAt: base, Latitude: ptr(50.1), Longitude: ptr(8.1), Speed: ptr(36), SpeedUnit: "km/h"},
		{EntityID: "7", RecordedAt: base, Latitude: ptr(1), Longitude: ptr(1)},
		{EntityID: "42", RecordedAt: base.Add(20 * time.Second), Payload: datatypes.JSON(`{"location": {"coordinates": [8.3, 50.3]}}`)},
	}
	require.NoError(t, db.Create(&rows).Error)

	src := NewGormSource(db, zerolog.Nop())
	samples, err := src.Load(context.Background(), Query{EntityID: "42"})
	require.NoError(t, err)
	require.Len(t, samples, 3)

	var lats []float64
	for _, s := range samples {
		ll, ok := geo.ResolveLatLng(s)
		require.True(t, ok)
		lats = append(lats, ll.Lat)
	}
	assert.Equal(t, []float64{50.1, 50.2, 50.3}, lats)

	mps, ok := geo.ResolveSpeed(samples[0])
	require.True(t, ok)
	assert.InDelta(t, 10, mps, 1e-9)

	heading, ok := geo.ResolveHeading(samples[1])
	require.True(t, ok)
	assert.Equal(t, 90.0, heading)

	ms, ok := geo.ResolveTimestamp(samples[2])
	require.True(t, ok)
	assert.Equal(t, base.Add(20*time.Second).UnixMilli(), ms)
}

func TestGormSource_TimeRange(t *testing.T) {
	db := newTestDB(t)
	for i := range 5 {
		require.NoError(t, db.Create(&PositionRecord{
			EntityID:   "42",
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
			Latitude:   ptr(float64(i)),
			Longitude:  ptr(0),
		}).Error)
	}

	samples, err := NewGormSource(db, zerolog.Nop()).Load(context.Background(), Query{
		EntityID: "42",
		From:     base.Add(time.Minute),
		To:       base.Add(3 * time.Minute),
	})
	require.NoError(t, err)
	assert.Len(t, samples, 3)
}

func TestGormSource_NoRows(t *testing.T) {
	db := newTestDB(t)
	_, err := NewGormSource(db, zerolog.Nop()).Load(context.Background(), Query{EntityID: "nobody"})
	assert.ErrorIs(t, err, ErrNoPositions)
}

func TestGormSource_SkipsUnreadablePayload(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&PositionRecord{EntityID: "42", RecordedAt: base, Payload: datatypes.JSON(`[1,2]`)}).Error)
	require.NoError(t, db.Create(&PositionRecord{EntityID: "42", RecordedAt: base.Add(time.Second), Latitude: ptr(1), Longitude: ptr(2)}).Error)

	samples, err := NewGormSource(db, zerolog.Nop()).Load(context.Background(), Query{EntityID: "42"})
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}
