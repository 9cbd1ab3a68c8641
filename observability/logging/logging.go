// Package logging configures structured JSON logging for the vault daemon.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls the log destination and verbosity. The zero value logs
// INFO and above to stdout.
type Options struct {
	// Level is one of debug, info, warn or error. Unknown values fall back
	// to info.
	Level string
	// File, when set, mirrors log output to a rotated file alongside stdout.
	File string
	// MaxSizeMB caps an individual log file before rotation.
	MaxSizeMB int
	// MaxBackups caps the number of rotated files kept on disk.
	MaxBackups int
	// MaxAgeDays prunes rotated files older than this many days.
	MaxAgeDays int
}

// Setup configures the standard library logger to emit structured JSON and
// returns the underlying slog.Logger for richer logging within the service.
// All log lines include the service name and environment when provided.
func Setup(service, env string, opts Options) *slog.Logger {
	var out io.Writer = os.Stdout
	if file := strings.TrimSpace(opts.File); file != "" {
		rotated := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotated)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		AddSource: false,
		Level:     parseLevel(opts.Level),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			}
			if attr.Key == slog.LevelKey {
				level := strings.ToUpper(attr.Value.String())
				return slog.String("severity", level)
			}
			if attr.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{
		slog.String("service", strings.TrimSpace(service)),
	}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	// Bridge the standard library logger so existing packages continue to work.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
