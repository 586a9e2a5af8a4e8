package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/OCAP2/trackplay/internal/database"
	"github.com/OCAP2/trackplay/internal/geo"
	"github.com/OCAP2/trackplay/internal/history"
	"github.com/OCAP2/trackplay/internal/marker"
	"github.com/OCAP2/trackplay/internal/monitor"
	"github.com/OCAP2/trackplay/internal/observer"
	"github.com/OCAP2/trackplay/internal/playback"
	"github.com/OCAP2/trackplay/pkg/core"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
)

func replayCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	commonFlags(fs)
	file := fs.String("file", "", "JSON file of positions (array or {\"positions\": [...]})")
	entity := fs.String("entity", "", "entity id to load from the history database")
	from := fs.String("from", "", "start of the time range (RFC3339 or epoch ms)")
	to := fs.String("to", "", "end of the time range (RFC3339 or epoch ms)")
	fs.Float64("speed", 1, "playback speed multiplier")
	fs.String("driver", "", "history driver (file, sqlite, postgres)")
	fs.String("dsn", "", "history database DSN")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	settings, err := loadSettings(fs, map[string]string{
		"speed":  "playback.speed",
		"driver": "history.driver",
		"dsn":    "history.dsn",
	})
	if err != nil {
		return err
	}

	q := history.Query{EntityID: *entity}
	if q.From, err = parseTime(*from); err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	if q.To, err = parseTime(*to); err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	a, err := newApp(settings, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	src, err := openSource(a, *file)
	if err != nil {
		return err
	}
	samples, err := src.Load(ctx, q)
	if err != nil {
		return fmt.Errorf("loading positions: %w", err)
	}
	logTrack(a, samples)

	name := *entity
	if name == "" {
		name = "replay"
	}

	lines := observer.NewJSONLines(stdout)
	obs := observer.Multi{lines}
	if r := a.reporter(name); r != nil {
		obs = append(obs, r)
	}

	session, err := playback.New(playback.WithLogger(a.logger))
	if err != nil {
		return err
	}
	session.Initialize(playback.Config{
		Positions: samples,
		Marker:    marker.NewLogMarker(name, a.logger),
		Observer:  obs,
		Speed:     settings.Playback.Speed,
	})
	a.startMonitor(monitor.Dependencies{
		Sessions: func() []playback.Status { return []playback.Status{session.Status()} },
	})

	if err := session.Play(ctx); err != nil {
		return err
	}
	select {
	case <-session.Done():
	case <-ctx.Done():
		session.Stop()
		<-session.Done()
	}

	st := session.Status()
	a.logger.Info().Str("state", st.State).Int("index", st.Index).Int("total", st.Total).
		Msg("Replay finished")
	return lines.Err()
}

func openSource(a *app, file string) (history.Source, error) {
	if file != "" {
		return history.FileSource{Path: file}, nil
	}

	h := a.settings.History
	switch h.Driver {
	case "file":
		if h.DSN == "" {
			return nil, fmt.Errorf("%w: --file or history.dsn required", errUsage)
		}
		return history.FileSource{Path: h.DSN}, nil
	default:
		db, err := database.Open(h.Driver, h.DSN, a.logger)
		if err != nil {
			return nil, err
		}
		return history.NewGormSource(db, a.logger), nil
	}
}

// logTrack logs the route summary of a replay.
func logTrack(a *app, samples []core.Sample) {
	track, err := geo.Track(samples)
	if err != nil {
		a.logger.Warn().Err(err).Int("positions", len(samples)).Msg("No drawable route")
		return
	}
	start := track.StartPoint()
	ev := a.logger.Info().Int("positions", len(samples)).
		Float64("lengthMeters", geo.TrackLength(track))
	if xy, ok := start.XY(); ok {
		origin, err := geo.WebMercator(core.LatLng{Lat: xy.Y, Lng: xy.X})
		if mxy, ok := origin.XY(); err == nil && ok {
			ev = ev.Float64("originX", mxy.X).Float64("originY", mxy.Y)
		}
	}
	ev.Msg("Loaded route")
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if ms, ok := geo.Float(v); ok {
		return time.UnixMilli(int64(ms)).UTC(), nil
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
