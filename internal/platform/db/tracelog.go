package db

import (
	"context"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

// traceLogger forwards pgx trace events to zerolog. Query arguments are
// dropped because they carry patient data.
type traceLogger struct {
	logger zerolog.Logger
}

// NewTraceLogger returns a tracelog.Logger backed by zerolog.
func NewTraceLogger(logger zerolog.Logger) tracelog.Logger {
	return &traceLogger{logger: logger}
}

func (l *traceLogger) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	var evt *zerolog.Event
	switch level {
	case tracelog.LogLevelError:
		evt = l.logger.Error()
	case tracelog.LogLevelWarn:
		evt = l.logger.Warn()
	case tracelog.LogLevelInfo:
		evt = l.logger.Info()
	default:
		evt = l.logger.Debug()
	}

	fields := make(map[string]any, len(data))
	for k, v := range data {
		if k == "args" {
			continue
		}
		fields[k] = v
	}
	evt.Fields(fields).Msg(msg)
}
