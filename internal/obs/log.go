package obs

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	loggerMu sync.RWMutex
	logger   = newLogger(os.Stdout, slog.LevelInfo)
)

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Logger returns the shared structured logger used across the service.
func Logger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// ConfigureLogger replaces the shared logger. Level follows slog numbering (-4 debug, 0 info, 4 warn, 8 error).
func ConfigureLogger(w io.Writer, level int) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = newLogger(w, slog.Level(level))
}

// RedirectForTests points the shared logger at w and returns a restore func.
func RedirectForTests(w io.Writer) func() {
	loggerMu.Lock()
	prev := logger
	logger = newLogger(w, slog.LevelDebug)
	loggerMu.Unlock()
	return func() {
		loggerMu.Lock()
		logger = prev
		loggerMu.Unlock()
	}
}

// LogRequest emits a structured log line with common HTTP fields.
func LogRequest(entry map[string]any) {
	attrs := make([]any, 0, len(entry)*2)
	for k, v := range entry {
		attrs = append(attrs, k, v)
	}
	Logger().Info("request_complete", attrs...)
}
