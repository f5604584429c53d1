package logging

import (
	"log/slog"
	"testing"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		env  string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEV", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"prod", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.env)
			assert.Equal(t, tt.want, Level(slog.LevelInfo))
		})
	}
}

func TestPionFactoryFollowsLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	f, ok := PionFactory().(*logging.DefaultLoggerFactory)
	assert.True(t, ok)
	assert.Equal(t, logging.LogLevelDebug, f.DefaultLogLevel)

	t.Setenv("LOG_LEVEL", "warn")
	f = PionFactory().(*logging.DefaultLoggerFactory)
	assert.Equal(t, logging.LogLevelWarn, f.DefaultLogLevel)
}
