// ABOUTME: Entry point for the mp3stream player
// ABOUTME: Connects to a server and plays the files the user asks for
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/mp3stream/internal/client"
	"github.com/Resonate-Protocol/mp3stream/internal/config"
	"github.com/Resonate-Protocol/mp3stream/internal/logging"
	"github.com/Resonate-Protocol/mp3stream/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	configPath string
	port       int
	volume     int
	logFile    string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:     "mp3stream <host>",
		Short:   "Plays MP3 files streamed by an mp3stream server",
		Long:    "Connects to an mp3stream server by host name, host:port or ws:// URL and plays the files you name.",
		Args:    cobra.ExactArgs(1),
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.IntVar(&opts.port, "port", 11105, "Server port when the host has none")
	flags.IntVar(&opts.volume, "volume", 100, "Playback volume (0-100)")
	flags.StringVar(&opts.logFile, "log-file", "mp3stream.log", "Log file path")
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
		cfg.Client.Port = opts.port
	}
	if flags.Changed("volume") {
		cfg.Client.Volume = opts.volume
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	// The terminal belongs to the prompt, so logs only go to a file
	if len(cfg.Log.Outputs) == 0 || flags.Changed("log-file") {
		cfg.Log.Outputs = []string{opts.logFile}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, host string) error {
	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	for _, line := range version.Banner("client") {
		fmt.Println(line)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	volume := cfg.Client.Volume
	c, err := client.Dial(ctx, client.Config{
		Host:   host,
		Port:   cfg.Client.Port,
		Volume: &volume,
		Logger: logger,
	})
	if err != nil {
		logger.Error("connection failed", zap.String("host", host), zap.Error(err))
		return err
	}
	defer c.Close()

	err = c.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		logger.Error("session ended", zap.Error(err))
	}
	return err
}
