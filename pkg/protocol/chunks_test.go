// ABOUTME: Tests for chunked transfer and sentinel detection
// ABOUTME: Covers split sentinels, short reads and round trips
package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

// scriptedReader returns one scripted slice per Read call
type scriptedReader struct {
	reads [][]byte
	err   error
}

func (s *scriptedReader) Read(p []byte) (int, error) {
	if len(s.reads) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	n := copy(p, s.reads[0])
	if n < len(s.reads[0]) {
		s.reads[0] = s.reads[0][n:]
	} else {
		s.reads = s.reads[1:]
	}
	return n, nil
}

func readAll(t *testing.T, cr *ChunkReader) []byte {
	t.Helper()
	var got []byte
	for {
		payload, last, err := cr.Next()
		require.NoError(t, err)
		got = append(got, payload...)
		if last {
			return got
		}
	}
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestHasSentinelSuffix(t *testing.T) {
	tests := []struct {
		name     string
		chunk    []byte
		expected bool
	}{
		{"empty", nil, false},
		{"one byte", []byte{0x55}, false},
		{"three sentinel bytes", []byte{0x55, 0x55, 0x55}, false},
		{"exact sentinel", []byte{0x55, 0x55, 0x55, 0x55}, true},
		{"data then sentinel", []byte{1, 2, 0x55, 0x55, 0x55, 0x55}, true},
		{"sentinel not at end", []byte{0x55, 0x55, 0x55, 0x55, 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, HasSentinelSuffix(tt.chunk))
		})
	}
}

func TestCopyChunksRoundTrip(t *testing.T) {
	data := pattern(10000)

	var wire bytes.Buffer
	sent, err := CopyChunks(&wire, bytes.NewReader(data), 4096)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), sent)
	require.True(t, HasSentinelSuffix(wire.Bytes()))
	require.Equal(t, len(data)+SentinelSize, wire.Len())

	got := readAll(t, NewChunkReader(&wire, 4096))
	require.Equal(t, data, got)
}

func TestCopyChunksEmptySource(t *testing.T) {
	var wire bytes.Buffer
	sent, err := CopyChunks(&wire, bytes.NewReader(nil), 4096)
	require.NoError(t, err)
	require.Zero(t, sent)
	require.Equal(t, Sentinel[:], wire.Bytes())

	payload, last, err := NewChunkReader(&wire, 4096).Next()
	require.NoError(t, err)
	require.True(t, last)
	require.Empty(t, payload)
}

func TestCopyChunksSourceError(t *testing.T) {
	boom := errors.New("decoder failed")
	var wire bytes.Buffer
	_, err := CopyChunks(&wire, iotest.ErrReader(boom), 4096)
	require.ErrorIs(t, err, boom)
	require.False(t, HasSentinelSuffix(wire.Bytes()))
}

func TestChunkReaderTwoFullChunksAndTail(t *testing.T) {
	first := pattern(4096)
	second := pattern(4096)
	tail := []byte{9, 8, 7, 6, 5}
	final := append(append([]byte{}, tail...), Sentinel[:]...)

	cr := NewChunkReader(&scriptedReader{reads: [][]byte{first, second, final}}, 4096)
	got := readAll(t, cr)

	expected := append(append(append([]byte{}, first...), second...), tail...)
	require.Equal(t, expected, got)
	require.True(t, cr.Done())

	_, last, err := cr.Next()
	require.True(t, last)
	require.ErrorIs(t, err, io.EOF)
}

func TestChunkReaderSentinelSplitAcrossReads(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6}
	reads := [][]byte{
		append(append([]byte{}, data...), 0x55, 0x55),
		{0x55},
		{0x55},
	}

	got := readAll(t, NewChunkReader(&scriptedReader{reads: reads}, 4096))
	require.Equal(t, data, got)
}

func TestChunkReaderOneByteReads(t *testing.T) {
	data := pattern(300)
	wire := append(append([]byte{}, data...), Sentinel[:]...)

	got := readAll(t, NewChunkReader(iotest.OneByteReader(bytes.NewReader(wire)), 64))
	require.Equal(t, data, got)
}

func TestChunkReaderShortChunkIsNotTerminal(t *testing.T) {
	// A 2-byte read is held back, never indexed before its start
	reads := [][]byte{{0x55, 0x55}, {1, 2, 3, 4, 5}, Sentinel[:]}
	got := readAll(t, NewChunkReader(&scriptedReader{reads: reads}, 16))
	require.Equal(t, []byte{0x55, 0x55, 1, 2, 3, 4, 5}, got)
}

func TestChunkReaderShortChunkThenEOF(t *testing.T) {
	cr := NewChunkReader(&scriptedReader{reads: [][]byte{{1, 2}}}, 16)

	payload, last, err := cr.Next()
	require.False(t, last)
	require.ErrorIs(t, err, ErrMissingSentinel)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, []byte{1, 2}, payload)
}

func TestChunkReaderPropagatesReadError(t *testing.T) {
	reset := errors.New("connection reset")
	cr := NewChunkReader(&scriptedReader{reads: [][]byte{pattern(10)}, err: reset}, 16)

	payload, last, err := cr.Next()
	require.NoError(t, err)
	require.False(t, last)
	require.Len(t, payload, 7)

	payload, last, err = cr.Next()
	require.ErrorIs(t, err, reset)
	require.False(t, last)
	require.Len(t, payload, 3)
}

func TestChunkReaderRespectsChunkSize(t *testing.T) {
	data := pattern(1000)
	wire := append(append([]byte{}, data...), Sentinel[:]...)
	cr := NewChunkReader(bytes.NewReader(wire), 100)

	for {
		payload, last, err := cr.Next()
		require.NoError(t, err)
		require.LessOrEqual(t, len(payload), 100+SentinelSize-1)
		if last {
			break
		}
	}
}
