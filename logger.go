package solentbase

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with engine-specific helpers so the facade logs
// with consistent field names. The embedded logger is handed down to the
// index, bulk and archive layers, which log their own segment-level detail
// at debug level.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithFile adds a file field to the logger.
func (l *Logger) WithFile(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("file", name),
	}
}

// WithRecord adds a record-number field to the logger.
func (l *Logger) WithRecord(record int) *Logger {
	return &Logger{
		Logger: l.Logger.With("record", record),
	}
}

// LogPut logs a record store operation.
func (l *Logger) LogPut(file string, record int, err error) {
	if err != nil {
		l.Error("record store failed",
			"file", file,
			"record", record,
			"error", err,
		)
	} else {
		l.Debug("record stored",
			"file", file,
			"record", record,
		)
	}
}

// LogUpdate logs a record update operation.
func (l *Logger) LogUpdate(file string, record int, err error) {
	if err != nil {
		l.Error("record update failed",
			"file", file,
			"record", record,
			"error", err,
		)
	} else {
		l.Debug("record updated",
			"file", file,
			"record", record,
		)
	}
}

// LogDelete logs a record delete operation.
func (l *Logger) LogDelete(file string, record int, err error) {
	if err != nil {
		l.Error("record delete failed",
			"file", file,
			"record", record,
			"error", err,
		)
	} else {
		l.Debug("record deleted",
			"file", file,
			"record", record,
		)
	}
}

// LogFind logs an index scan.
func (l *Logger) LogFind(file, field, value string, count int, err error) {
	if err != nil {
		l.Error("index scan failed",
			"file", file,
			"field", field,
			"value", value,
			"error", err,
		)
	} else {
		l.Debug("index scan completed",
			"file", file,
			"field", field,
			"value", value,
			"records", count,
		)
	}
}

// LogLoad logs the completion of a deferred load.
func (l *Logger) LogLoad(file string, added, flushes, splices int64, err error) {
	if err != nil {
		l.Error("deferred load failed",
			"file", file,
			"added", added,
			"flushes", flushes,
			"error", err,
		)
	} else {
		l.Info("deferred load finished",
			"file", file,
			"added", added,
			"flushes", flushes,
			"splices", splices,
		)
	}
}
