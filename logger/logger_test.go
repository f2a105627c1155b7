package logger

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevels(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"Error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := Setup(tt.level)
			require.NotNil(t, l)
			assert.True(t, l.Enabled(context.Background(), tt.enabled))
		})
	}
}

func TestSetupInvalidLevelFallsBackToInfo(t *testing.T) {
	l := Setup("chatty")
	require.NotNil(t, l)
	assert.True(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))
}

func TestFromContextRoundTrip(t *testing.T) {
	base := slog.New(slog.NewTextHandler(os.Stdout, nil)).With("test", "value")

	ctx := WithLogger(context.Background(), base)
	assert.Same(t, base, FromContext(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l, "FromContext must never return nil")
}
