package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/OCAP2/trackplay/internal/config"
	"github.com/OCAP2/trackplay/internal/influx"
	"github.com/OCAP2/trackplay/internal/logging"
	"github.com/OCAP2/trackplay/internal/monitor"
	"github.com/OCAP2/trackplay/internal/otel"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app holds the ambient services every command shares.
type app struct {
	settings config.Settings
	logger   zerolog.Logger
	otel     *otel.Provider
	influx   *influx.Manager
	monitor  *monitor.Service
	closers  []func() error
}

// commonFlags registers the flags shared by all commands.
func commonFlags(fs *pflag.FlagSet) {
	fs.String("config", ".", "directory containing "+config.FileName)
	fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	fs.String("logs-dir", "", "directory for log files")
}

// loadSettings reads the config and applies the command line overrides.
// binds maps flag names onto config keys.
func loadSettings(fs *pflag.FlagSet, binds map[string]string) (config.Settings, error) {
	dir, _ := fs.GetString("config")
	if err := config.Load(dir); err != nil {
		return config.Settings{}, err
	}

	binds["log-level"] = "logLevel"
	binds["logs-dir"] = "logsDir"
	for flagName, key := range binds {
		f := fs.Lookup(flagName)
		if f == nil || !f.Changed {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return config.Settings{}, fmt.Errorf("binding flag %s: %w", flagName, err)
		}
	}
	return config.Get()
}

func newApp(s config.Settings, stderr io.Writer) (*app, error) {
	a := &app{settings: s}
	start := time.Now()

	opts := logging.Options{Level: s.LogLevel, Console: stderr}
	if s.LogsDir != "" {
		f, err := logging.OpenLogFile(logging.LogFilePath(s.LogsDir, appName, start))
		if err != nil {
			return nil, err
		}
		opts.File = f
		a.closers = append(a.closers, f.Close)
	}
	var graylogErr error
	if s.Graylog.Enabled {
		w, err := logging.NewGraylogWriter(s.Graylog.Address, appName)
		if err != nil {
			graylogErr = err
		} else {
			opts.Graylog = w
			a.closers = append(a.closers, w.Close)
		}
	}
	a.logger = logging.Setup(opts)
	if graylogErr != nil {
		a.logger.Warn().Err(graylogErr).Msg("Graylog disabled")
	}

	var metricsOut io.Writer
	if s.OTel.Enabled {
		path := logging.LogFilePath(s.LogsDir, appName+".metrics", start)
		f, err := logging.OpenLogFile(path)
		if err != nil {
			a.close()
			return nil, err
		}
		metricsOut = f
		a.closers = append(a.closers, f.Close)
	}
	provider, err := otel.New(otel.Config{
		Enabled:     s.OTel.Enabled,
		ServiceName: s.OTel.ServiceName,
		Interval:    s.OTel.Interval,
		Writer:      metricsOut,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.otel = provider

	if s.Influx.Enabled {
		m := influx.NewManager(influx.Config{
			URL:        s.Influx.URL,
			Token:      s.Influx.Token,
			Org:        s.Influx.Org,
			Bucket:     s.Influx.Bucket,
			BackupPath: s.Influx.BackupPath,
		}, a.logger)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := m.Connect(ctx)
		cancel()
		if err != nil {
			a.logger.Warn().Err(err).Msg("InfluxDB reporting disabled")
		} else {
			a.influx = m
		}
	}

	a.logger.Info().Str("version", Version).Msg("trackplay starting")
	return a, nil
}

// reporter returns an influx reporter for entity, nil when reporting is off.
func (a *app) reporter(entity string) *influx.Reporter {
	if a.influx == nil {
		return nil
	}
	return influx.NewReporter(a.influx, entity, nil, a.logger)
}

// startMonitor starts the status file writer when enabled.
func (a *app) startMonitor(deps monitor.Dependencies) {
	if !a.settings.Monitor.Enabled {
		return
	}
	deps.StatusFile = a.settings.Monitor.StatusFile
	deps.Interval = a.settings.Monitor.Interval
	deps.Logger = a.logger
	a.monitor = monitor.NewService(deps)
	if err := a.monitor.Start(); err != nil {
		a.logger.Warn().Err(err).Msg("Status monitor disabled")
		a.monitor = nil
	}
}

// stopMonitor stops the status writer after a last write.
func (a *app) stopMonitor() error {
	if a.monitor == nil {
		return nil
	}
	a.monitor.Stop()
	err := a.monitor.WriteStatus()
	a.monitor = nil
	return err
}

func (a *app) close() error {
	errs := []error{a.stopMonitor()}
	if a.influx != nil {
		errs = append(errs, a.influx.Close())
	}
	if a.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.otel.Shutdown(ctx))
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func parseFlags(fs *pflag.FlagSet, args []string, stderr io.Writer) error {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errUsage
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}
