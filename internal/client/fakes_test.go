// ABOUTME: Test doubles for client tests
// ABOUTME: Recording audio sink, in-memory repository and passthrough decoder
package client

import (
	"bytes"
	"errors"
	"io"

	"github.com/Resonate-Protocol/mp3stream/pkg/audio"
	"github.com/Resonate-Protocol/mp3stream/pkg/audio/decode"
)

// fakeSink records everything written per stream
type fakeSink struct {
	openErrs    []error // consumed one per Open
	failWriteAt int     // fail once a stream would exceed this many bytes, 0 never

	formats     []audio.Format
	bufferBytes []int
	streams     [][]byte
	current     []byte
	writeFailed bool

	drains, stops, closes int
}

func (s *fakeSink) Open(format audio.Format, bufferBytes int) error {
	if len(s.openErrs) > 0 {
		err := s.openErrs[0]
		s.openErrs = s.openErrs[1:]
		if err != nil {
			return err
		}
	}
	s.formats = append(s.formats, format)
	s.bufferBytes = append(s.bufferBytes, bufferBytes)
	s.current = nil
	return nil
}

func (s *fakeSink) Write(p []byte) (int, error) {
	if s.failWriteAt > 0 && !s.writeFailed && len(s.current)+len(p) > s.failWriteAt {
		s.writeFailed = true
		return 0, errors.New("device lost")
	}
	s.current = append(s.current, p...)
	return len(p), nil
}

func (s *fakeSink) Drain() error {
	s.streams = append(s.streams, s.current)
	s.drains++
	return nil
}

func (s *fakeSink) Stop() error {
	s.stops++
	return nil
}

func (s *fakeSink) Close() error {
	s.closes++
	return nil
}

// volumeSink is a fakeSink that records software volume changes
type volumeSink struct {
	fakeSink
	volumes []int
}

func (s *volumeSink) SetVolume(volume int) {
	s.volumes = append(s.volumes, volume)
}

// memRepo serves assets from memory
type memRepo map[string][]byte

func (r memRepo) Contains(name string) bool {
	_, ok := r[name]
	return ok
}

func (r memRepo) Open(name string) (io.ReadCloser, error) {
	data, ok := r[name]
	if !ok {
		return nil, errors.New("missing")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// pcmStream treats asset bytes as decoded PCM
type pcmStream struct {
	io.Reader
	format audio.Format
}

func (s *pcmStream) Format() audio.Format { return s.format }
func (s *pcmStream) Close() error         { return nil }

func openAt(sampleRate int) decode.OpenFunc {
	return func(rc io.ReadCloser) (decode.Stream, error) {
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		return &pcmStream{Reader: bytes.NewReader(data), format: audio.PCM16(sampleRate, 2)}, nil
	}
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 253)
	}
	return b
}
