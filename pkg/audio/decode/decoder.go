// ABOUTME: Decoder and Stream interface definitions
// ABOUTME: Common interfaces for sample decoders and decoded asset streams
package decode

import (
	"io"

	"github.com/Resonate-Protocol/mp3stream/pkg/audio"
)

// Decoder decodes audio bytes to PCM int32 samples
type Decoder interface {
	// Decode converts encoded audio data to PCM samples
	Decode(data []byte) ([]int32, error)

	// Close releases decoder resources
	Close() error
}

// Stream is a decoded asset producing raw s16le interleaved PCM bytes.
// Read returns io.EOF once the asset is exhausted.
type Stream interface {
	io.Reader

	// Format returns the native format of the decoded audio
	Format() audio.Format

	// Close releases the stream and the underlying asset
	Close() error
}

// OpenFunc turns an opened asset into a decoded stream. It takes ownership
// of rc and closes it when it returns an error.
type OpenFunc func(rc io.ReadCloser) (Stream, error)
