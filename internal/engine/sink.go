package engine

import "github.com/rs/zerolog"

// LogSink reports batch events through a zerolog logger. It is the progress
// implementation for non-interactive runs and backs the terminal UI, which
// consumes the outcome stream separately.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) LogSink {
	return LogSink{log: log}
}

func (s LogSink) OnTaskOutcome(handle string, path string, outcome TaskOutcome) {
	evt := s.log.Debug().
		Str("batch", handle).
		Str("path", path).
		Stringer("status", outcome.Status)
	switch outcome.Status {
	case StatusSucceeded:
		evt = evt.Str("strategy", outcome.Strategy).Int64("saved", outcome.BytesSaved())
	case StatusSkipped:
		evt = evt.Str("reason", outcome.Reason)
	default:
		evt = evt.Stringer("kind", outcome.Kind).Str("error", outcome.Message)
	}
	evt.Msg("task done")
}

func (s LogSink) OnBatchTerminal(handle string, state BatchState, counts Counts) {
	s.log.Info().
		Str("batch", handle).
		Stringer("state", state).
		Int("succeeded", counts.Succeeded).
		Int("skipped", counts.Skipped).
		Int("failed", counts.Failed).
		Msg("batch done")
}
