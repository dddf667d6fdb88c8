// ABOUTME: PCM audio encoder
// ABOUTME: Encodes int32 samples to 16-bit little-endian PCM bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/mp3stream/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct{}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != audio.CodecPCM {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	return &PCMEncoder{}, nil
}

// Encode converts int32 samples to PCM bytes, clamping to the 24-bit range
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	output := make([]byte, len(samples)*2)
	for i, sample := range samples {
		if sample > audio.Max24Bit {
			sample = audio.Max24Bit
		} else if sample < audio.Min24Bit {
			sample = audio.Min24Bit
		}
		binary.LittleEndian.PutUint16(output[i*2:], uint16(audio.SampleToInt16(sample)))
	}
	return output, nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
