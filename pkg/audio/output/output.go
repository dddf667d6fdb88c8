// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for PCM playback sinks
package output

import (
	"errors"

	"github.com/Resonate-Protocol/mp3stream/pkg/audio"
)

// ErrNotOpen is returned when writing to a sink that has no open stream
var ErrNotOpen = errors.New("output not open")

// Output is an audio sink that plays raw 16-bit little-endian PCM bytes
type Output interface {
	// Open prepares the sink for a stream in the given format, buffering
	// bufferBytes of lead-in
	Open(format audio.Format, bufferBytes int) error

	// Write queues PCM bytes for playback (blocks until accepted)
	Write(p []byte) (int, error)

	// Drain waits for queued audio to finish playing and ends the stream
	Drain() error

	// Stop abandons the current stream without waiting
	Stop() error

	// Close releases output resources
	Close() error
}
