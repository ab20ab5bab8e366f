package observability

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger обёртка над slog: пишет в stderr и в файл с ротацией
type Logger struct {
	internal *slog.Logger
	level    *slog.LevelVar
	closer   io.Closer
}

// NewLogger создаёт логгер. Пустой logPath означает вывод только в stderr.
func NewLogger(logPath, logLevel string) *Logger {
	var out io.Writer = os.Stderr
	var closer io.Closer

	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err == nil {
			rotator := &lumberjack.Logger{
				Filename:   logPath,
				MaxSize:    50, // MB
				MaxBackups: 5,
				MaxAge:     14, // дней
				Compress:   true,
			}
			out = io.MultiWriter(os.Stderr, rotator)
			closer = rotator
		}
	}

	l := NewLoggerWithWriter(out, logLevel)
	l.closer = closer
	return l
}

// NewLoggerWithWriter создаёт логгер поверх произвольного writer (тесты, CLI)
func NewLoggerWithWriter(w io.Writer, logLevel string) *Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(ParseLevel(logLevel))

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return &Logger{
		internal: slog.New(handler),
		level:    lvl,
	}
}

// NewNopLogger возвращает логгер, который ничего не пишет
func NewNopLogger() *Logger {
	return NewLoggerWithWriter(io.Discard, "error")
}

func ParseLevel(level string) slog.Level {
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

func (l *Logger) Debug(msg string, fields ...any) {
	l.internal.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...any) {
	l.internal.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...any) {
	l.internal.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...any) {
	l.internal.Error(msg, fields...)
}

// With возвращает дочерний логгер с постоянными полями
func (l *Logger) With(fields ...any) *Logger {
	return &Logger{
		internal: l.internal.With(fields...),
		level:    l.level,
	}
}

// SetLevel меняет уровень на лету (флаг --verbose)
func (l *Logger) SetLevel(level string) {
	l.level.Set(ParseLevel(level))
}

// Close закрывает файл ротации, если он открыт
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
