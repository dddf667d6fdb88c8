// ABOUTME: Client bootstrap for mp3stream
// ABOUTME: Connects over TCP or WebSocket and runs the interactive session
package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/mp3stream/internal/transport"
	"github.com/Resonate-Protocol/mp3stream/pkg/audio/output"
	"github.com/Resonate-Protocol/mp3stream/pkg/protocol"
	"go.uber.org/zap"
)

// Config holds client configuration
type Config struct {
	// Host is a host name, host:port, or a ws:// URL
	Host   string
	Port   int
	// Volume (0-100, 0 mutes) is applied when the sink supports software
	// volume. Nil leaves the sink at its default of full volume.
	Volume *int
	Logger *zap.Logger

	// Input and Output default to stdin and stdout
	Input  io.Reader
	Output io.Writer

	// Sink defaults to an oto device
	Sink output.Output
}

// volumeSetter is implemented by sinks with software volume
type volumeSetter interface {
	SetVolume(volume int)
}

// Client is a connected player
type Client struct {
	config  Config
	logger  *zap.Logger
	conn    io.ReadWriteCloser
	sink    output.Output
	session *Session
}

// Address returns the TCP address for host, adding port when host has none
func Address(host string, port int) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	if port == 0 {
		port = protocol.DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// isWebSocketURL reports whether host selects the WebSocket transport
func isWebSocketURL(host string) bool {
	return strings.HasPrefix(host, "ws://") || strings.HasPrefix(host, "wss://")
}

// Dial connects to the server described by config
func Dial(ctx context.Context, config Config) (*Client, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("no server host given")
	}
	if config.Logger == nil {
		config.Logger = zap.L()
	}
	if config.Input == nil {
		config.Input = os.Stdin
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	logger := config.Logger.Named("client")

	var conn io.ReadWriteCloser
	if isWebSocketURL(config.Host) {
		wsConn, err := transport.Dial(ctx, config.Host)
		if err != nil {
			return nil, err
		}
		conn = wsConn
		logger.Info("connected", zap.String("url", config.Host))
	} else {
		addr := Address(config.Host, config.Port)
		var d net.Dialer
		tcpConn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		conn = tcpConn
		logger.Info("connected", zap.String("addr", addr))
	}

	sink := config.Sink
	if sink == nil {
		sink = output.NewOto(config.Logger)
	}
	if vs, ok := sink.(volumeSetter); ok && config.Volume != nil {
		vs.SetVolume(*config.Volume)
	}

	return &Client{
		config:  config,
		logger:  logger,
		conn:    conn,
		sink:    sink,
		session: NewSession(conn, config.Input, config.Output, sink, config.Logger),
	}, nil
}

// Run runs the interactive session until the user quits
func (c *Client) Run(ctx context.Context) error {
	return c.session.Run(ctx)
}

// Close releases the connection and the audio output
func (c *Client) Close() error {
	c.conn.Close()
	if err := c.sink.Close(); err != nil {
		return fmt.Errorf("failed to close audio output: %w", err)
	}
	return nil
}
