package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/OCAP2/trackplay/internal/live"
	"github.com/OCAP2/trackplay/internal/marker"
	"github.com/OCAP2/trackplay/internal/monitor"
	"github.com/OCAP2/trackplay/internal/transport"
	"github.com/OCAP2/trackplay/internal/transport/memory"
	"github.com/OCAP2/trackplay/internal/transport/nats"
	"github.com/OCAP2/trackplay/internal/transport/websocket"
	"github.com/spf13/pflag"
)

func liveCommand(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("live", pflag.ContinueOnError)
	commonFlags(fs)
	ids := fs.StringSlice("ids", nil, "entity ids to track")
	fs.String("entity-type", "", "entity type of the tracked ids")
	fs.String("transport", "", "transport (memory, nats, websocket)")
	fs.Duration("flush-interval", 0, "how long events are collected before they are applied")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}
	if len(*ids) == 0 {
		fmt.Fprintln(stderr, "live: --ids is required")
		return errUsage
	}

	settings, err := loadSettings(fs, map[string]string{
		"entity-type":    "live.entityType",
		"transport":      "transport.type",
		"flush-interval": "live.flushInterval",
	})
	if err != nil {
		return err
	}

	a, err := newApp(settings, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	tr, hub, err := openTransport(a)
	if err != nil {
		return err
	}
	defer tr.Close()

	cfg := live.TrackerConfig{
		EntityType:         settings.Live.EntityType,
		Transport:          tr,
		FlushInterval:      settings.Live.FlushInterval,
		TransitionDuration: settings.Live.TransitionDuration,
		Logger:             a.logger,
	}
	if r := a.reporter(settings.Live.EntityType); r != nil {
		cfg.OnFlush = r.Flush
	}
	tracker := live.NewTracker(cfg)
	defer tracker.Close()

	for _, id := range *ids {
		name := settings.Live.EntityType + "." + id
		if _, err := tracker.Track(ctx, id, marker.NewLogMarker(name, a.logger)); err != nil {
			// the channel keeps buffering and can be re-subscribed
			a.logger.Warn().Err(err).Str("entity", id).Msg("Subscribe failed")
		}
	}
	a.startMonitor(monitor.Dependencies{Channels: tracker.Snapshot})

	if hub != nil {
		// the memory hub is fed from stdin, one "<channel> <event json>" per line
		if err := pump(ctx, stdin, hub, a); err != nil {
			return err
		}
	} else {
		<-ctx.Done()
	}

	for _, id := range tracker.IDs() {
		if c, ok := tracker.Channel(id); ok {
			c.Flush()
		}
	}
	if err := a.stopMonitor(); err != nil {
		a.logger.Warn().Err(err).Msg("Writing final status failed")
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tracker.Snapshot())
}

// openTransport connects the configured transport. The hub is returned as
// well for the memory transport.
func openTransport(a *app) (transport.Transport, *memory.Hub, error) {
	t := a.settings.Transport
	switch t.Type {
	case "nats":
		tr, err := nats.Connect(nats.Config{URL: t.NATS.URL, Name: appName}, a.logger)
		return tr, nil, err
	case "websocket":
		tr, err := websocket.Dial(websocket.Config{URL: t.Websocket.URL, Secret: t.Websocket.Secret}, a.logger)
		return tr, nil, err
	default:
		hub := memory.New()
		return hub, hub, nil
	}
}

func pump(ctx context.Context, r io.Reader, hub *memory.Hub, a *app) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		channel, payload, ok := strings.Cut(line, " ")
		if !ok {
			a.logger.Warn().Str("line", line).Msg("Ignoring line without payload")
			continue
		}
		if n := hub.Publish(channel, []byte(strings.TrimSpace(payload))); n == 0 {
			a.logger.Debug().Str("channel", channel).Msg("No subscriber for channel")
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading events: %w", err)
	}
	return nil
}
