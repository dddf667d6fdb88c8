// ABOUTME: mp3stream message definitions
// ABOUTME: Request and reply tokens plus the binary stream metadata record
package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

const (
	// DefaultPort is the well-known TCP port of the server
	DefaultPort = 11105

	// QuitToken ends a session when sent as a request line
	QuitToken = "quit"

	// Reply tags
	TagFound    = "found"
	TagNotFound = "!found"

	// AssetExtension is the only asset type the server will look up
	AssetExtension = ".mp3"

	// MetadataSize is the encoded size of Metadata on the wire
	MetadataSize = 12

	// Limits applied when reading metadata from a peer
	MaxChunkSize = 16 << 20
	MaxChannels  = 8
)

// ErrInvalidMetadata is returned when a metadata record is out of range
var ErrInvalidMetadata = errors.New("invalid stream metadata")

// Metadata describes a stream that follows a found reply
type Metadata struct {
	ChunkSize    int32
	ChannelCount int32
	SampleRateHz float32
}

// ChunkSizeFor derives the chunk size used for an asset with the given
// native sample rate. 22050 Hz is sized as 22100 bytes.
func ChunkSizeFor(sampleRate int) int {
	if sampleRate == 22050 {
		return 22100
	}
	return sampleRate
}

// NewMetadata builds the metadata record for a decoded asset
func NewMetadata(sampleRate, channels int) Metadata {
	return Metadata{
		ChunkSize:    int32(ChunkSizeFor(sampleRate)),
		ChannelCount: int32(channels),
		SampleRateHz: float32(sampleRate),
	}
}

// Validate checks the record against the protocol limits
func (m Metadata) Validate() error {
	if m.ChunkSize < 1 || m.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: chunk size %d", ErrInvalidMetadata, m.ChunkSize)
	}
	if m.ChannelCount < 1 || m.ChannelCount > MaxChannels {
		return fmt.Errorf("%w: channel count %d", ErrInvalidMetadata, m.ChannelCount)
	}
	if !(m.SampleRateHz > 0) || math.IsInf(float64(m.SampleRateHz), 0) {
		return fmt.Errorf("%w: sample rate %v", ErrInvalidMetadata, m.SampleRateHz)
	}
	return nil
}

// MarshalBinary encodes the record as two int32 and one float32, big-endian
func (m Metadata) MarshalBinary() ([]byte, error) {
	b := make([]byte, MetadataSize)
	binary.BigEndian.PutUint32(b[0:4], uint32(m.ChunkSize))
	binary.BigEndian.PutUint32(b[4:8], uint32(m.ChannelCount))
	binary.BigEndian.PutUint32(b[8:12], math.Float32bits(m.SampleRateHz))
	return b, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary
func (m *Metadata) UnmarshalBinary(b []byte) error {
	if len(b) != MetadataSize {
		return fmt.Errorf("%w: record is %d bytes, want %d", ErrInvalidMetadata, len(b), MetadataSize)
	}
	m.ChunkSize = int32(binary.BigEndian.Uint32(b[0:4]))
	m.ChannelCount = int32(binary.BigEndian.Uint32(b[4:8]))
	m.SampleRateHz = math.Float32frombits(binary.BigEndian.Uint32(b[8:12]))
	return nil
}

// WriteMetadata writes the encoded record to w
func WriteMetadata(w io.Writer, m Metadata) error {
	b, _ := m.MarshalBinary()
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// ReadMetadata reads exactly one record from r and validates it
func ReadMetadata(r io.Reader) (Metadata, error) {
	var m Metadata
	b := make([]byte, MetadataSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return m, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := m.UnmarshalBinary(b); err != nil {
		return m, err
	}
	return m, m.Validate()
}

// WriteLine writes s terminated by a newline
func WriteLine(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s+"\n"); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}
	return nil
}

// ReadLine reads one newline-terminated line without its terminator.
// A final line without a newline is returned as-is; io.EOF is only
// returned when nothing was read.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// IsAssetName reports whether name carries the supported asset extension
// (case-insensitive). A bare ".mp3" has no base name and is rejected
// without consulting the listing.
func IsAssetName(name string) bool {
	if len(name) <= len(AssetExtension) {
		return false
	}
	return strings.EqualFold(name[len(name)-len(AssetExtension):], AssetExtension)
}
