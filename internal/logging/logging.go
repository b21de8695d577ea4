package logging

import (
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// New creates a console slog.Logger with the provided level string. When
// file is non-empty, records are additionally written there as JSON.
func New(level, file string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromString(level)}

	handlers := []slog.Handler{slog.NewTextHandler(os.Stdout, opts)}

	if file != "" {
		if handler := fileHandler(file, opts); handler != nil {
			handlers = append(handlers, handler)
		}
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

func fileHandler(path string, opts *slog.HandlerOptions) slog.Handler {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("logging: cannot create log dir for %s: %v", path, err)
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logging: cannot open %s: %v", path, err)
		return nil
	}

	return slog.NewJSONHandler(f, opts)
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
