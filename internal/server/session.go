// ABOUTME: Server-side session state machine for one connection
// ABOUTME: Answers file requests with a reply tag, metadata and PCM chunks
package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Resonate-Protocol/mp3stream/pkg/audio/decode"
	"github.com/Resonate-Protocol/mp3stream/pkg/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conn is a reliable ordered byte stream to one client
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
}

// Repository answers presence queries and opens assets by exact name
type Repository interface {
	Contains(name string) bool
	Open(name string) (io.ReadCloser, error)
}

// State is a server session phase
type State int

const (
	StateAwaitRequest State = iota
	StateLookup
	StateNotFound
	StateFound
	StateSendMetadata
	StateStreamData
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateAwaitRequest:
		return "awaiting request"
	case StateLookup:
		return "lookup"
	case StateNotFound:
		return "not found"
	case StateFound:
		return "found"
	case StateSendMetadata:
		return "sending metadata"
	case StateStreamData:
		return "streaming"
	case StateShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SessionInfo is a point-in-time view of a session for display
type SessionInfo struct {
	ID        string
	Remote    string
	State     State
	Request   string
	BytesSent int64
	Requests  int
	Started   time.Time
}

// Session serves a single connection for its whole lifetime
type Session struct {
	id     string
	conn   Conn
	reader *bufio.Reader
	writer *bufio.Writer
	repo   Repository
	open   decode.OpenFunc
	logger *zap.Logger

	mu        sync.RWMutex
	state     State
	request   string
	bytesSent int64
	requests  int
	started   time.Time
}

// NewSession creates a session that owns conn
func NewSession(conn Conn, repo Repository, open decode.OpenFunc, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.L()
	}
	id := uuid.New().String()
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	return &Session{
		id:      id,
		conn:    conn,
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
		repo:    repo,
		open:    open,
		logger:  logger.With(zap.String("session", id), zap.String("remote", remote)),
		state:   StateAwaitRequest,
		started: time.Now(),
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current session state
func (s *Session) Snapshot() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	remote := ""
	if addr := s.conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	return SessionInfo{
		ID:        s.id,
		Remote:    remote,
		State:     s.state,
		Request:   s.request,
		BytesSent: s.bytesSent,
		Requests:  s.requests,
		Started:   s.started,
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) beginRequest(request string) {
	s.mu.Lock()
	s.state = StateLookup
	s.request = request
	s.bytesSent = 0
	s.requests++
	s.mu.Unlock()
}

func (s *Session) addBytes(n int) {
	s.mu.Lock()
	s.bytesSent += int64(n)
	s.mu.Unlock()
}

// Run serves requests until the client quits or the connection fails.
// The connection is closed on every exit path.
func (s *Session) Run() error {
	defer s.conn.Close()

	s.logger.Info("session started")

	for {
		s.setState(StateAwaitRequest)

		request, err := protocol.ReadLine(s.reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("client disconnected")
				return nil
			}
			return fmt.Errorf("failed to read request: %w", err)
		}

		if request == protocol.QuitToken {
			s.setState(StateShutdown)
			s.logger.Info("client quit")
			return nil
		}

		s.beginRequest(request)
		stream := s.lookup(request)
		if stream == nil {
			s.setState(StateNotFound)
			s.logger.Info("asset not found", zap.String("request", request))
			if err := s.reply(protocol.TagNotFound); err != nil {
				return err
			}
			continue
		}

		if err := s.serve(request, stream); err != nil {
			return err
		}
	}
}

// lookup returns an open decoded stream, or nil when the request cannot be served
func (s *Session) lookup(request string) decode.Stream {
	if !protocol.IsAssetName(request) {
		return nil
	}
	if !s.repo.Contains(request) {
		return nil
	}

	rc, err := s.repo.Open(request)
	if err != nil {
		s.logger.Warn("failed to open asset", zap.String("request", request), zap.Error(err))
		return nil
	}

	stream, err := s.open(rc)
	if err != nil {
		s.logger.Warn("failed to decode asset", zap.String("request", request), zap.Error(err))
		return nil
	}
	return stream
}

func (s *Session) reply(tag string) error {
	if err := protocol.WriteLine(s.writer, tag); err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush reply: %w", err)
	}
	return nil
}

// serve sends the found tag, metadata and chunks for stream, then closes it
func (s *Session) serve(request string, stream decode.Stream) error {
	defer stream.Close()

	s.setState(StateFound)
	if err := protocol.WriteLine(s.writer, protocol.TagFound); err != nil {
		return err
	}

	s.setState(StateSendMetadata)
	format := stream.Format()
	md := protocol.NewMetadata(format.SampleRate, format.Channels)
	if err := protocol.WriteMetadata(s.writer, md); err != nil {
		return err
	}

	s.setState(StateStreamData)
	start := time.Now()
	n, err := protocol.CopyChunks(&countingWriter{w: s.writer, add: s.addBytes}, stream, int(md.ChunkSize))
	if err == nil {
		err = s.writer.Flush()
	}
	if err != nil {
		s.logger.Error("stream aborted",
			zap.String("request", request),
			zap.Int64("bytes", n),
			zap.Error(err))
		return fmt.Errorf("failed to stream %s: %w", request, err)
	}

	s.logger.Info("stream complete",
		zap.String("request", request),
		zap.Int("sample_rate", format.SampleRate),
		zap.Int("channels", format.Channels),
		zap.Int32("chunk_size", md.ChunkSize),
		zap.Int64("bytes", n),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// countingWriter reports every successful write
type countingWriter struct {
	w   io.Writer
	add func(int)
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.add(n)
	return n, err
}
