// ABOUTME: Listener for the mp3stream server
// ABOUTME: Accepts TCP and optional WebSocket connections and runs one session per connection
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Resonate-Protocol/mp3stream/internal/discovery"
	"github.com/Resonate-Protocol/mp3stream/internal/transport"
	"github.com/Resonate-Protocol/mp3stream/pkg/audio/decode"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	tuiRefreshInterval = time.Second

	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Config holds server configuration
type Config struct {
	Port          int // 0 picks a free port
	BindAddress   string
	WebSocketPort int // 0 disables the WebSocket listener
	Name          string
	EnableMDNS    bool
	UseTUI        bool
	Logger        *zap.Logger
}

// Server accepts connections and starts an independent session for each.
// There is no admission control: every accepted connection gets a session.
type Server struct {
	config Config
	logger *zap.Logger
	repo   Repository
	open   decode.OpenFunc

	listener   net.Listener
	wsListener net.Listener
	httpServer *http.Server
	mux        *http.ServeMux
	upgrader   websocket.Upgrader

	// Live sessions, read only by the TUI
	sessions   map[string]*Session
	sessionsMu sync.RWMutex

	mdnsManager *discovery.Manager
	tui         *ServerTUI
	startTime   time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new server instance
func New(config Config, repo Repository, open decode.OpenFunc) *Server {
	if config.Logger == nil {
		config.Logger = zap.L()
	}

	s := &Server{
		config:    config,
		logger:    config.Logger.Named("server"),
		repo:      repo,
		open:      open,
		upgrader:  transport.Upgrader(),
		sessions:  make(map[string]*Session),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc(transport.Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving WebSocket sessions
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Listen binds the configured sockets. Start calls it when it has not
// been called yet; calling it first lets callers learn the bound address.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}

	addr := net.JoinHostPort(s.config.BindAddress, fmt.Sprintf("%d", s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.config.WebSocketPort != 0 {
		wsAddr := net.JoinHostPort(s.config.BindAddress, fmt.Sprintf("%d", s.config.WebSocketPort))
		wsLn, err := net.Listen("tcp", wsAddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("failed to listen on %s: %w", wsAddr, err)
		}
		s.wsListener = wsLn
		s.httpServer = &http.Server{Handler: s.mux}
	}

	s.listener = ln
	return nil
}

// Addr returns the bound TCP address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WebSocketAddr returns the bound WebSocket address, or nil when disabled
func (s *Server) WebSocketAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

// Start runs the server until Stop is called, the TUI quits or a listener fails
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.logger.Info("server listening",
		zap.String("name", s.config.Name),
		zap.String("addr", s.listener.Addr().String()))

	if s.config.UseTUI {
		s.tui = NewServerTUI()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.config.Name, s.listener.Addr().String()); err != nil {
				s.logger.Warn("TUI exited with error", zap.Error(err))
			}
		}()
	}

	if s.config.EnableMDNS {
		port := s.config.Port
		if tcpAddr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			port = tcpAddr.Port
		}
		wsPort := 0
		if tcpAddr, ok := s.WebSocketAddr().(*net.TCPAddr); ok {
			wsPort = tcpAddr.Port
		}
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName:   s.config.Name,
			Port:          port,
			WebSocketPort: wsPort,
			Logger:        s.logger,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.logger.Warn("failed to start mDNS advertisement", zap.Error(err))
		}
	}

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		defer s.Stop()
		return s.acceptLoop()
	})

	if s.httpServer != nil {
		s.logger.Info("websocket listening", zap.String("addr", s.wsListener.Addr().String()+transport.Path))
		g.Go(func() error {
			if err := s.httpServer.Serve(s.wsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("websocket server failed: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		var tuiQuitChan <-chan struct{}
		var ticker <-chan time.Time
		if s.tui != nil {
			tuiQuitChan = s.tui.QuitChan()
			t := time.NewTicker(tuiRefreshInterval)
			defer t.Stop()
			ticker = t.C
		}

		for {
			select {
			case <-s.stopChan:
				s.logger.Info("server shutting down")
			case <-tuiQuitChan:
				s.logger.Info("TUI quit requested, shutting down")
				s.Stop()
			case <-ctx.Done():
			case <-ticker:
				s.updateTUI()
				continue
			}
			break
		}
		s.shutdown()
		return nil
	})

	err := g.Wait()
	s.wg.Wait()
	s.logger.Info("server stopped")
	return err
}

// Stop stops the server. Sessions already running continue until their
// clients disconnect or the process exits.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) stopping() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

// shutdown closes the listeners and the advertising side channels
func (s *Server) shutdown() {
	if s.tui != nil {
		s.tui.Stop()
	}
	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	s.Stop()
	s.listener.Close()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("websocket server shutdown error", zap.Error(err))
		}
	}
}

// acceptLoop accepts until the server stops or the listener is closed.
// Other accept errors (EMFILE and friends) are retried with backoff.
func (s *Server) acceptLoop() error {
	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopping() || errors.Is(err, net.ErrClosed) {
				return nil
			}

			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			delay = min(delay, maxAcceptDelay)
			s.logger.Warn("accept failed, retrying",
				zap.Error(err),
				zap.Duration("delay", delay))

			select {
			case <-time.After(delay):
			case <-s.stopChan:
				return nil
			}
			continue
		}
		delay = 0
		go s.handleConn(conn)
	}
}

// handleWebSocket upgrades the request and serves it like a TCP connection
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.handleConn(transport.NewWSConn(ws))
}

// handleConn runs one session to completion
func (s *Server) handleConn(conn Conn) {
	session := NewSession(conn, s.repo, s.open, s.logger)

	s.sessionsMu.Lock()
	s.sessions[session.ID()] = session
	s.sessionsMu.Unlock()
	s.updateTUI()

	defer func() {
		s.sessionsMu.Lock()
		delete(s.sessions, session.ID())
		s.sessionsMu.Unlock()
		s.updateTUI()
	}()

	if err := session.Run(); err != nil {
		s.logger.Warn("session ended with error", zap.String("session", session.ID()), zap.Error(err))
	}
}

// Sessions returns a snapshot of live sessions, oldest first
func (s *Server) Sessions() []SessionInfo {
	s.sessionsMu.RLock()
	infos := make([]SessionInfo, 0, len(s.sessions))
	for _, session := range s.sessions {
		infos = append(infos, session.Snapshot())
	}
	s.sessionsMu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Started.Before(infos[j].Started) })
	return infos
}
