package events

import (
	"github.com/rs/zerolog"
)

// Sink is a write-only event stream. Implementations must be safe for
// concurrent use and must not block the caller for long.
type Sink interface {
	Emit(data EventData)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(data EventData)

// Emit calls f.
func (f SinkFunc) Emit(data EventData) { f(data) }

// Nop discards every event.
var Nop Sink = SinkFunc(func(EventData) {})

type multiSink []Sink

func (m multiSink) Emit(data EventData) {
	for _, s := range m {
		s.Emit(data)
	}
}

// Multi fans an event out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// LogSink writes events as structured log lines.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink logging through log.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "resolution_events").Logger()}
}

// Emit logs the event at debug level. Failures are already reported at
// warn or error by the resolver itself.
func (s *LogSink) Emit(data EventData) {
	switch d := data.(type) {
	case *ResolutionCompletedData:
		s.log.Debug().
			Str("id", d.ID).
			Str("category", d.Category.String()).
			Str("key", d.Key).
			Str("layer", string(d.Layer)).
			Str("state", string(d.State)).
			Dur("elapsed", d.Elapsed).
			Bool("shared", d.Shared).
			Str("error", d.Error).
			Msg("Resolution completed")
	case *DegradedModeData:
		s.log.Debug().
			Str("category", d.Category.String()).
			Str("key", d.Key).
			Str("layer", string(d.Layer)).
			Str("error", d.Error).
			Msg("Layer unavailable, continuing in degraded mode")
	case *WriteBackFailedData:
		s.log.Debug().
			Str("category", d.Category.String()).
			Str("key", d.Key).
			Str("layer", string(d.Layer)).
			Str("error", d.Error).
			Msg("Write-back failed")
	default:
		s.log.Debug().Str("type", string(data.EventType())).Msg("Event")
	}
}
