// Package config loads trackplay settings with viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "trackplay.cfg.json"

// LiveConfig holds live tracking settings
type LiveConfig struct {
	EntityType         string        `json:"entityType" mapstructure:"entityType" validate:"required"`
	FlushInterval      time.Duration `json:"flushInterval" mapstructure:"flushInterval" validate:"gt=0"`
	TransitionDuration time.Duration `json:"transitionDuration" mapstructure:"transitionDuration" validate:"gte=0"`
}

// PlaybackConfig holds replay settings
type PlaybackConfig struct {
	Speed float64 `json:"speed" mapstructure:"speed" validate:"gt=0"`
}

// NATSConfig holds NATS transport settings
type NATSConfig struct {
	URL string `json:"url" mapstructure:"url"`
}

// WebsocketConfig holds websocket gateway settings
type WebsocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// TransportConfig selects the live event transport
type TransportConfig struct {
	Type      string          `json:"type" mapstructure:"type" validate:"oneof=memory nats websocket"`
	NATS      NATSConfig      `json:"nats" mapstructure:"nats"`
	Websocket WebsocketConfig `json:"websocket" mapstructure:"websocket"`
}

// HistoryConfig selects where replays are loaded from
type HistoryConfig struct {
	Driver string `json:"driver" mapstructure:"driver" validate:"oneof=file sqlite postgres"`
	DSN    string `json:"dsn" mapstructure:"dsn"`
}

// InfluxConfig holds InfluxDB reporting settings
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	URL        string `json:"url" mapstructure:"url" validate:"required_if=Enabled true"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket" validate:"required_if=Enabled true"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// OTelConfig holds OpenTelemetry metrics settings
type OTelConfig struct {
	Enabled     bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName string        `json:"serviceName" mapstructure:"serviceName"`
	Interval    time.Duration `json:"interval" mapstructure:"interval" validate:"gt=0"`
}

// MonitorConfig holds status file settings
type MonitorConfig struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile" validate:"required_if=Enabled true"`
	Interval   time.Duration `json:"interval" mapstructure:"interval" validate:"gt=0"`
}

// GraylogConfig holds GELF output settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address" validate:"required_if=Enabled true"`
}

// Settings is the typed view of the whole configuration.
type Settings struct {
	LogLevel  string          `json:"logLevel" mapstructure:"logLevel" validate:"oneof=trace debug info warn error TRACE DEBUG INFO WARN ERROR"`
	LogsDir   string          `json:"logsDir" mapstructure:"logsDir"`
	Graylog   GraylogConfig   `json:"graylog" mapstructure:"graylog"`
	Live      LiveConfig      `json:"live" mapstructure:"live"`
	Playback  PlaybackConfig  `json:"playback" mapstructure:"playback"`
	Transport TransportConfig `json:"transport" mapstructure:"transport"`
	History   HistoryConfig   `json:"history" mapstructure:"history"`
	Influx    InfluxConfig    `json:"influx" mapstructure:"influx"`
	OTel      OTelConfig      `json:"otel" mapstructure:"otel"`
	Monitor   MonitorConfig   `json:"monitor" mapstructure:"monitor"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("live.entityType", "driver")
	viper.SetDefault("live.flushInterval", "10s")
	viper.SetDefault("live.transitionDuration", "2s")

	viper.SetDefault("playback.speed", 1.0)

	viper.SetDefault("transport.type", "memory")
	viper.SetDefault("transport.nats.url", "nats://localhost:4222")
	viper.SetDefault("transport.websocket.url", "ws://localhost:6001/app")
	viper.SetDefault("transport.websocket.secret", "")

	viper.SetDefault("history.driver", "file")
	viper.SetDefault("history.dsn", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "trackplay")
	viper.SetDefault("influx.bucket", "positions")
	viper.SetDefault("influx.backupPath", "./logs/influx_backup.log.gz")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "trackplay")
	viper.SetDefault("otel.interval", "30s")

	viper.SetDefault("monitor.enabled", false)
	viper.SetDefault("monitor.statusFile", "./logs/status.json")
	viper.SetDefault("monitor.interval", "5s")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file is
// not an error; defaults and TRACKPLAY_ environment variables still apply.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix("TRACKPLAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// Get unmarshals the current configuration and validates it.
func Get() (Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return Settings{}, fmt.Errorf("invalid config: %w", err)
	}
	return s, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
