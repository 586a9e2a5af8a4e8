package logging

import "github.com/rs/zerolog"

// EventLogger adapts a zerolog.Logger to dispatcher.Logger. Key/value pairs
// become zerolog fields; non-string keys and a trailing key without a value
// are dropped.
type EventLogger struct {
	logger zerolog.Logger
}

// NewEventLogger wraps logger, tagging every entry with component=dispatcher.
func NewEventLogger(logger zerolog.Logger) EventLogger {
	return EventLogger{logger: logger.With().Str("component", "dispatcher").Logger()}
}

func (l EventLogger) Debug(msg string, keysAndValues ...any) {
	l.write(l.logger.Debug(), msg, keysAndValues)
}

func (l EventLogger) Info(msg string, keysAndValues ...any) {
	l.write(l.logger.Info(), msg, keysAndValues)
}

func (l EventLogger) Error(msg string, keysAndValues ...any) {
	l.write(l.logger.Error(), msg, keysAndValues)
}

func (l EventLogger) write(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	if len(kv)%2 == 1 {
		kv = kv[:len(kv)-1]
	}
	e.Fields(kv).Msg(msg)
}
