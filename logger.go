package gqlws

import (
	"context"
	"io"
	"log/slog"
)

// NopLogger returns a logger that discards all output.
// Use this when you want silent operation with no logging overhead.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LogEvents returns an EventHandler that logs every data frame at info level.
func LogEvents(log *slog.Logger) EventHandler {
	if log == nil {
		log = NopLogger()
	}

	return func(ctx context.Context, id string, f *Frame) {
		log.InfoContext(ctx, "Subscription event", "id", id, "type", f.Type, "payload", string(f.Payload))
	}
}
