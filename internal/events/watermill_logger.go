package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// watermillLogger routes watermill's internal logs into zerolog.
type watermillLogger struct {
	log zerolog.Logger
}

func NewWatermillLogger(log zerolog.Logger) watermill.LoggerAdapter {
	return watermillLogger{log: log.With().Str("component", "watermill").Logger()}
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.log.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.log.Info().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.log.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{log: l.log.With().Fields(map[string]interface{}(fields)).Logger()}
}
