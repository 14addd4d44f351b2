// Package logging builds the structured logger used across deflake.
package logging

import (
	"io"
	"log/slog"

	slogmulti "github.com/samber/slog-multi"
)

// Options selects the log destinations.
type Options struct {
	// Terminal receives human-readable text logs. Nil disables them.
	Terminal io.Writer
	// Level is the minimum level for Terminal.
	Level slog.Leveler
	// File receives JSON logs at debug level. Nil disables them.
	File io.Writer
}

// New returns a logger that fans records out to every configured destination.
func New(opts Options) *slog.Logger {
	var handlers []slog.Handler

	if opts.Terminal != nil {
		level := opts.Level
		if level == nil {
			level = slog.LevelInfo
		}
		handlers = append(handlers, slog.NewTextHandler(opts.Terminal, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				// The terminal already timestamps interactive sessions.
				if len(groups) == 0 && a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return a
			},
		}))
	}

	if opts.File != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.File, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	if len(handlers) == 0 {
		return Discard()
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// LevelFor maps the CLI verbosity flags to a terminal log level.
func LevelFor(verbose, quiet bool) slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
