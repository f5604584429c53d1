package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/pion/logging"
)

// Level resolves LOG_LEVEL, falling back to def when unset or unknown.
func Level(def slog.Level) slog.Level {
	l, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		return def
	}

	switch strings.ToLower(l) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return def
}

// Init installs the default slog logger. The relay passes slog.LevelInfo,
// the participant client slog.LevelError so the terminal view stays clean.
func Init(def slog.Level) {
	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: Level(def),
		}),
	)
	slog.SetDefault(logger)
}

// PionFactory returns a logger factory for pion with a level matching LOG_LEVEL.
func PionFactory() logging.LoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	f.Writer = os.Stderr

	switch level := Level(slog.LevelError); {
	case level <= slog.LevelDebug:
		f.DefaultLogLevel = logging.LogLevelDebug
	case level <= slog.LevelInfo:
		f.DefaultLogLevel = logging.LogLevelInfo
	case level <= slog.LevelWarn:
		f.DefaultLogLevel = logging.LogLevelWarn
	default:
		f.DefaultLogLevel = logging.LogLevelError
	}
	return f
}
