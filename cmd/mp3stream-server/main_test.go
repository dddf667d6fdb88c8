// ABOUTME: Tests for the server command line
// ABOUTME: Covers argument validation and flag-over-config merging
package main

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func parse(t *testing.T, args ...string) (*options, *cobra.Command) {
	t.Helper()
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(args))

	flags := cmd.Flags()
	opts := &options{}
	opts.port, _ = flags.GetInt("port")
	opts.bindAddress, _ = flags.GetString("bind")
	opts.mediaDir, _ = flags.GetString("media-dir")
	opts.name, _ = flags.GetString("name")
	opts.noMDNS, _ = flags.GetBool("no-mdns")
	opts.websocketPort, _ = flags.GetInt("websocket-port")
	opts.tui, _ = flags.GetBool("tui")
	opts.logFile, _ = flags.GetString("log-file")
	opts.logLevel, _ = flags.GetString("log-level")
	return opts, cmd
}

func TestServerRejectsArguments(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.Error(t, cmd.Execute())
}

func TestLoadConfigDefaults(t *testing.T) {
	opts, cmd := parse(t)

	cfg, err := loadConfig(cmd, opts)
	require.NoError(t, err)
	require.Equal(t, 11105, cfg.Server.Port)
	require.Equal(t, "../file/", cfg.Server.MediaDir)
	require.True(t, cfg.Server.MDNS)
	require.Equal(t, []string{"mp3stream-server.log", "stdout"}, cfg.Log.Outputs)
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	opts, cmd := parse(t, "--port", "12000", "--media-dir", "/srv/music", "--no-mdns", "--websocket-port", "12001", "--tui")

	cfg, err := loadConfig(cmd, opts)
	require.NoError(t, err)
	require.Equal(t, 12000, cfg.Server.Port)
	require.Equal(t, "/srv/music", cfg.Server.MediaDir)
	require.False(t, cfg.Server.MDNS)
	require.Equal(t, 12001, cfg.Server.WebSocketPort)
	require.True(t, cfg.Server.TUI)
	require.Equal(t, []string{"mp3stream-server.log"}, cfg.Log.Outputs)
}

func TestLoadConfigValidates(t *testing.T) {
	opts, cmd := parse(t, "--port", "12000", "--websocket-port", "12000")

	_, err := loadConfig(cmd, opts)
	require.ErrorContains(t, err, "websocket_port")
}

type countingStopper struct {
	stops atomic.Int32
}

func (s *countingStopper) Stop() {
	s.stops.Add(1)
}

func TestStopOnSignalStopsServer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	srv := &countingStopper{}
	ctx, cancel := context.WithCancel(context.Background())

	release := stopOnSignal(ctx, srv, zap.New(core))
	cancel()

	require.Eventually(t, func() bool { return srv.stops.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	release()
	require.Equal(t, 1, logs.FilterMessage("received shutdown signal").Len())
}

func TestStopOnSignalQuietAfterRelease(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	srv := &countingStopper{}
	ctx, cancel := context.WithCancel(context.Background())

	release := stopOnSignal(ctx, srv, zap.New(core))
	release()
	// What the deferred NotifyContext stop does after the server exits
	cancel()
	release()

	require.Zero(t, srv.stops.Load())
	require.Zero(t, logs.FilterMessage("received shutdown signal").Len())
}
