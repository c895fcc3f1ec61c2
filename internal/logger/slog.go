package logger

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const redacted = "[REDACTED]"

// Attribute keys whose values never reach the output
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"access":        {},
	"refresh":       {},
	"secret_key":    {},
	"bot_token":     {},
	"authorization": {},
}

type slogLogger struct {
	logger *slog.Logger
}

// Skip wrapper frames so source points to the caller
func (l *slogLogger) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(args...)
	_ = l.logger.Handler().Handle(ctx, record)
}

func (l *slogLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}

func (l *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{logger: l.logger.WithGroup(name)}
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelInfo:
		return slog.LevelInfo, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// replace trims source file to base name and hides credentials
// See https://pkg.go.dev/log/slog#example-package-Wrapping
func replace(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		if source, ok := a.Value.Any().(*slog.Source); ok {
			source.File = filepath.Base(source.File)
		}
		return a
	}

	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}

	return a
}
