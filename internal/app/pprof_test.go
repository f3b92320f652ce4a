package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"metricq/internal/config"
)

// TestStartPprofServer_DisabledIsNoop verifies a disabled endpoint starts
// nothing and returns a callable stop.
// Params: t test context.
// Returns: none.
func TestStartPprofServer_DisabledIsNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stop, err := startPprofServer(context.Background(), config.PprofConfig{}, logger)
	if err != nil {
		t.Fatalf("startPprofServer: %v", err)
	}
	stop()
	stop()
}

// TestStartPprofServer_BindsAndStops verifies the endpoint binds an
// ephemeral port and shuts down cleanly.
// Params: t test context.
// Returns: none.
func TestStartPprofServer_BindsAndStops(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop, err := startPprofServer(ctx, config.PprofConfig{Enabled: true, Listen: "127.0.0.1:0"}, logger)
	if err != nil {
		t.Fatalf("startPprofServer: %v", err)
	}
	stop()
	stop()
}
