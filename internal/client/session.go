// ABOUTME: Client-side session state machine
// ABOUTME: Prompts for file names, requests them and plays the returned PCM stream
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Resonate-Protocol/mp3stream/pkg/audio"
	"github.com/Resonate-Protocol/mp3stream/pkg/audio/output"
	"github.com/Resonate-Protocol/mp3stream/pkg/protocol"
	"go.uber.org/zap"
)

// ErrServerClosed is returned when the server closes the connection
// while a reply is expected
var ErrServerClosed = errors.New("server closed the connection")

const (
	promptHint = `<enter "quit" to shutdown>`
	promptText = "File name: "
)

// State is a client session phase
type State int

const (
	StatePrompt State = iota
	StateSendRequest
	StateAwaitTag
	StateNotFoundReport
	StateReceiveMetadata
	StateConfigurePlayback
	StateStreamPlayback
	StateShutdownAck
)

func (s State) String() string {
	switch s {
	case StatePrompt:
		return "prompt"
	case StateSendRequest:
		return "send request"
	case StateAwaitTag:
		return "await tag"
	case StateNotFoundReport:
		return "not found"
	case StateReceiveMetadata:
		return "receive metadata"
	case StateConfigurePlayback:
		return "configure playback"
	case StateStreamPlayback:
		return "playback"
	case StateShutdownAck:
		return "shutdown"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session runs requests over one connection, one at a time
type Session struct {
	conn   io.ReadWriteCloser
	reader *bufio.Reader
	writer *bufio.Writer
	input  *bufio.Reader
	out    io.Writer
	sink   output.Output
	logger *zap.Logger
	state  State
}

// NewSession creates a session that owns conn. Prompts go to out and
// file names are read from input.
func NewSession(conn io.ReadWriteCloser, input io.Reader, out io.Writer, sink output.Output, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.L()
	}
	return &Session{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		input:  bufio.NewReader(input),
		out:    out,
		sink:   sink,
		logger: logger.Named("session"),
	}
}

func (s *Session) setState(state State) {
	s.state = state
	s.logger.Debug("state", zap.Stringer("state", state))
}

// Run prompts until the user quits, input ends, ctx is cancelled or the
// connection fails. The connection is closed on return.
func (s *Session) Run(ctx context.Context) error {
	defer s.conn.Close()
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	err := s.loop(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (s *Session) loop(ctx context.Context) error {
	for {
		s.setState(StatePrompt)
		name, err := s.prompt(ctx)
		if errors.Is(err, io.EOF) {
			s.logger.Info("input closed, quitting")
			name = protocol.QuitToken
		} else if err != nil {
			return err
		}
		if strings.TrimSpace(name) == "" {
			continue
		}

		s.setState(StateSendRequest)
		if err := protocol.WriteLine(s.writer, name); err != nil {
			return err
		}
		if err := s.writer.Flush(); err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}

		if name == protocol.QuitToken {
			s.setState(StateShutdownAck)
			return nil
		}

		s.setState(StateAwaitTag)
		tag, err := protocol.ReadLine(s.reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrServerClosed
			}
			return fmt.Errorf("failed to read reply: %w", err)
		}

		switch tag {
		case protocol.TagNotFound:
			s.setState(StateNotFoundReport)
			fmt.Fprintf(s.out, "Sorry, %s file not found.\n", name)
		case protocol.TagFound:
			if err := s.play(name); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected reply tag %q", tag)
		}
	}
}

// prompt shows the prompt and reads one line of input
func (s *Session) prompt(ctx context.Context) (string, error) {
	fmt.Fprintln(s.out, promptHint)
	fmt.Fprint(s.out, promptText)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := protocol.ReadLine(s.input)
		ch <- result{line, err}
	}()

	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// play receives one stream and forwards it to the sink. Sink failures
// abandon playback but the stream is still read to its sentinel so the
// connection stays usable.
func (s *Session) play(name string) error {
	s.setState(StateReceiveMetadata)
	md, err := protocol.ReadMetadata(s.reader)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %w", ErrServerClosed, err)
		}
		return err
	}

	s.setState(StateConfigurePlayback)
	format := audio.PCM16(int(md.SampleRateHz), int(md.ChannelCount))
	playing := true
	if err := s.sink.Open(format, int(md.ChunkSize)); err != nil {
		s.logger.Error("failed to open audio output", zap.String("file", name), zap.Error(err))
		fmt.Fprintf(s.out, "Unable to play %s: %v\n", name, err)
		playing = false
	} else {
		fmt.Fprintf(s.out, "Playing %s (%d Hz, %d channels)\n", name, format.SampleRate, format.Channels)
	}

	s.setState(StateStreamPlayback)
	chunks := protocol.NewChunkReader(s.reader, int(md.ChunkSize))
	var received int64
	for {
		payload, last, err := chunks.Next()
		if err != nil {
			if playing {
				s.sink.Stop()
			}
			return fmt.Errorf("failed to receive %s: %w", name, err)
		}
		received += int64(len(payload))

		if playing && len(payload) > 0 {
			if _, err := s.sink.Write(payload); err != nil {
				s.logger.Error("audio output failed", zap.String("file", name), zap.Error(err))
				fmt.Fprintf(s.out, "Playback of %s stopped: %v\n", name, err)
				s.sink.Stop()
				playing = false
			}
		}
		if last {
			break
		}
	}

	if playing {
		if err := s.sink.Drain(); err != nil {
			s.logger.Warn("failed to drain audio output", zap.Error(err))
		}
	}

	s.logger.Info("stream received",
		zap.String("file", name),
		zap.Int32("chunk_size", md.ChunkSize),
		zap.Int64("bytes", received),
		zap.Duration("duration", format.Duration(int(received))),
		zap.Bool("played", playing))
	return nil
}
