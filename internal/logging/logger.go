package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates the host process logger. It writes to stderr (stdout is left
// to the CLI's own output) and standardizes the "error" key to "err".
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// NewNop returns a no-op logger. Engine components default to this so a nil
// logger never reaches slog.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
