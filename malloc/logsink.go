package malloc

import (
	"context"
	"log/slog"
)

// LogSink writes events as structured log records.
//
// The logger allocates on the Go heap, never from a memkit Allocator, so
// logging from inside the allocation path cannot recurse.
type LogSink struct {
	L     *slog.Logger
	Level slog.Level
}

// NewLogSink logs events from l at debug level.
func NewLogSink(l *slog.Logger) LogSink {
	return LogSink{L: l, Level: slog.LevelDebug}
}

// Record implements Sink.
func (s LogSink) Record(ev Event) {
	ctx := context.Background()
	if s.L == nil || !s.L.Enabled(ctx, s.Level) {
		return
	}
	s.L.LogAttrs(ctx, s.Level, ev.Kind.String(),
		slog.String("source", ev.Source.String()),
		slog.Uint64("addr", uint64(ev.Addr)),
		slog.Uint64("size", uint64(ev.Size)),
	)
}
