// ABOUTME: Entry point for the mp3stream server
// ABOUTME: Parses CLI flags and config, then serves the media directory
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Resonate-Protocol/mp3stream/internal/config"
	"github.com/Resonate-Protocol/mp3stream/internal/library"
	"github.com/Resonate-Protocol/mp3stream/internal/logging"
	"github.com/Resonate-Protocol/mp3stream/internal/server"
	"github.com/Resonate-Protocol/mp3stream/internal/version"
	"github.com/Resonate-Protocol/mp3stream/pkg/audio/decode"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	configPath    string
	port          int
	bindAddress   string
	mediaDir      string
	name          string
	noMDNS        bool
	websocketPort int
	tui           bool
	logFile       string
	logLevel      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:     "mp3stream-server",
		Short:   "Streams decoded MP3 files from a directory to mp3stream players",
		Args:    cobra.NoArgs,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.IntVar(&opts.port, "port", 11105, "TCP port to listen on")
	flags.StringVar(&opts.bindAddress, "bind", "", "Address to bind (default: all interfaces)")
	flags.StringVar(&opts.mediaDir, "media-dir", "../file/", "Directory of .mp3 files to serve")
	flags.StringVar(&opts.name, "name", "", "Server friendly name (default: hostname-mp3stream)")
	flags.BoolVar(&opts.noMDNS, "no-mdns", false, "Disable mDNS advertisement")
	flags.IntVar(&opts.websocketPort, "websocket-port", 0, "Also serve sessions over WebSocket on this port (0 disables)")
	flags.BoolVar(&opts.tui, "tui", false, "Show live sessions in a terminal UI")
	flags.StringVar(&opts.logFile, "log-file", "mp3stream-server.log", "Log file path")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	return cmd
}

// loadConfig reads the config file and applies flags the user set explicitly
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if flags.Changed("bind") {
		cfg.Server.BindAddress = opts.bindAddress
	}
	if flags.Changed("media-dir") {
		cfg.Server.MediaDir = opts.mediaDir
	}
	if flags.Changed("name") {
		cfg.Server.Name = opts.name
	}
	if opts.noMDNS {
		cfg.Server.MDNS = false
	}
	if flags.Changed("websocket-port") {
		cfg.Server.WebSocketPort = opts.websocketPort
	}
	if flags.Changed("tui") {
		cfg.Server.TUI = opts.tui
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}

	if len(cfg.Log.Outputs) == 0 || flags.Changed("log-file") {
		// Keep the terminal for the TUI when it is enabled
		cfg.Log.Outputs = []string{opts.logFile}
		if !cfg.Server.TUI {
			cfg.Log.Outputs = append(cfg.Log.Outputs, "stdout")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	for _, line := range version.Banner("server") {
		logger.Info(line)
	}

	lib, err := library.Open(cfg.Server.MediaDir, logger)
	if err != nil {
		logger.Error("failed to open media library", zap.Error(err))
		return err
	}
	defer lib.Close()

	srv := server.New(server.Config{
		Port:          cfg.Server.Port,
		BindAddress:   cfg.Server.BindAddress,
		WebSocketPort: cfg.Server.WebSocketPort,
		Name:          cfg.Server.Name,
		EnableMDNS:    cfg.Server.MDNS,
		UseTUI:        cfg.Server.TUI,
		Logger:        logger,
	}, lib, decode.OpenMP3)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	release := stopOnSignal(ctx, srv, logger)

	err = srv.Start()
	release()
	if err != nil {
		logger.Error("server error", zap.Error(err))
		return err
	}
	return nil
}

type stopper interface {
	Stop()
}

// stopOnSignal stops srv when ctx is cancelled. Calling the returned
// release func first detaches it, so a server that stopped on its own
// is not reported as signalled.
func stopOnSignal(ctx context.Context, srv stopper, logger *zap.Logger) (release func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			logger.Info("received shutdown signal")
			srv.Stop()
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}
