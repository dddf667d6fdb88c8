// ABOUTME: MP3 asset decoder
// ABOUTME: Decodes MP3 files to a stream of 16-bit stereo PCM bytes
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/mp3stream/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Stream decodes an MP3 asset on the fly
type MP3Stream struct {
	source  io.ReadCloser
	decoder *mp3.Decoder
	format  audio.Format
}

// OpenMP3 creates a decoded stream from an MP3 asset. It closes rc on error.
func OpenMP3(rc io.ReadCloser) (Stream, error) {
	decoder, err := mp3.NewDecoder(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	// go-mp3 always outputs 16-bit little-endian stereo
	return &MP3Stream{
		source:  rc,
		decoder: decoder,
		format:  audio.PCM16(decoder.SampleRate(), 2),
	}, nil
}

// Read reads decoded PCM bytes
func (s *MP3Stream) Read(p []byte) (int, error) {
	return s.decoder.Read(p)
}

// Format returns the decoded format
func (s *MP3Stream) Format() audio.Format {
	return s.format
}

// Length returns the decoded size in bytes, or -1 if unknown
func (s *MP3Stream) Length() int64 {
	return s.decoder.Length()
}

// Close closes the underlying asset
func (s *MP3Stream) Close() error {
	return s.source.Close()
}
