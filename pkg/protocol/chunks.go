// ABOUTME: Chunked data transfer with an in-band end-of-stream sentinel
// ABOUTME: Server-side chunk writer and client-side sentinel-aware chunk reader
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// SentinelSize is the length of the end-of-stream marker
const SentinelSize = 4

// Sentinel marks the end of a stream. It travels in-band, so PCM data that
// happens to end a read with these four bytes is indistinguishable from the
// marker. Kept as-is for wire compatibility.
var Sentinel = [SentinelSize]byte{0x55, 0x55, 0x55, 0x55}

// ErrMissingSentinel is returned when the peer closes before the sentinel
var ErrMissingSentinel = fmt.Errorf("stream ended without sentinel: %w", io.ErrUnexpectedEOF)

// HasSentinelSuffix reports whether chunk ends with the sentinel.
// Chunks shorter than the sentinel never do.
func HasSentinelSuffix(chunk []byte) bool {
	if len(chunk) < SentinelSize {
		return false
	}
	return bytes.Equal(chunk[len(chunk)-SentinelSize:], Sentinel[:])
}

// CopyChunks forwards src to w in reads of at most chunkSize bytes and
// appends the sentinel once src reports io.EOF. It returns the number of
// payload bytes sent, not counting the sentinel.
func CopyChunks(w io.Writer, src io.Reader, chunkSize int) (int64, error) {
	if chunkSize < 1 {
		return 0, fmt.Errorf("invalid chunk size %d", chunkSize)
	}

	buf := make([]byte, chunkSize)
	var sent int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return sent, fmt.Errorf("failed to write chunk: %w", werr)
			}
			sent += int64(n)
		}
		if errors.Is(err, io.EOF) {
			if _, werr := w.Write(Sentinel[:]); werr != nil {
				return sent, fmt.Errorf("failed to write sentinel: %w", werr)
			}
			return sent, nil
		}
		if err != nil {
			return sent, fmt.Errorf("failed to read source: %w", err)
		}
	}
}

// ChunkReader reads a chunked stream and strips the trailing sentinel.
//
// Up to three trailing bytes of every read are held back until more data
// arrives, so the sentinel is recognised when it is split across reads or
// merged with the final data bytes. A read shorter than the sentinel is
// never terminal on its own.
type ChunkReader struct {
	r         io.Reader
	chunkSize int
	buf       []byte
	out       []byte
	held      int
	done      bool
}

// NewChunkReader creates a reader that pulls at most chunkSize bytes per read
func NewChunkReader(r io.Reader, chunkSize int) *ChunkReader {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &ChunkReader{
		r:         r,
		chunkSize: chunkSize,
		buf:       make([]byte, chunkSize+SentinelSize-1),
		out:       make([]byte, 0, chunkSize+SentinelSize-1),
	}
}

// Next returns the next payload. last is true when the sentinel has been
// consumed; payload then holds the data bytes that preceded it. The slice is
// only valid until the following call. After the last chunk Next returns
// io.EOF.
func (c *ChunkReader) Next() (payload []byte, last bool, err error) {
	if c.done {
		return nil, true, io.EOF
	}

	for {
		n, rerr := c.r.Read(c.buf[c.held : c.held+c.chunkSize])
		total := c.held + n

		if HasSentinelSuffix(c.buf[:total]) {
			c.done = true
			c.out = append(c.out[:0], c.buf[:total-SentinelSize]...)
			c.held = 0
			return c.out, true, nil
		}

		keep := 0
		if rerr == nil {
			keep = min(total, SentinelSize-1)
		}
		emit := total - keep
		c.out = append(c.out[:0], c.buf[:emit]...)
		copy(c.buf, c.buf[emit:total])
		c.held = keep

		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return c.out, false, ErrMissingSentinel
			}
			return c.out, false, rerr
		}
		if emit > 0 {
			return c.out, false, nil
		}
	}
}

// Done reports whether the sentinel has been consumed
func (c *ChunkReader) Done() bool {
	return c.done
}
