// ABOUTME: Sample pipeline between the wire and the device
// ABOUTME: Frames raw bytes, resamples to the device rate and applies software volume
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/mp3stream/pkg/audio"
	"github.com/Resonate-Protocol/mp3stream/pkg/audio/decode"
	"github.com/Resonate-Protocol/mp3stream/pkg/audio/encode"
	"github.com/Resonate-Protocol/mp3stream/pkg/audio/resample"
)

type pipeline struct {
	frameSize int
	decoder   decode.Decoder
	encoder   encode.Encoder
	resampler *resample.Resampler
	pending   []byte
}

// newPipeline converts a stream in format to outputRate at the same channel count
func newPipeline(format audio.Format, outputRate int) (*pipeline, error) {
	decoder, err := decode.NewPCM(format)
	if err != nil {
		return nil, fmt.Errorf("failed to create PCM decoder: %w", err)
	}

	encoder, err := encode.NewPCM(audio.PCM16(outputRate, format.Channels))
	if err != nil {
		return nil, fmt.Errorf("failed to create PCM encoder: %w", err)
	}

	p := &pipeline{
		frameSize: format.FrameSize(),
		decoder:   decoder,
		encoder:   encoder,
	}
	if format.SampleRate != outputRate {
		p.resampler = resample.New(format.SampleRate, outputRate, format.Channels)
	}
	return p, nil
}

// process returns the device bytes for data. Bytes that do not complete a
// frame are kept until the next call.
func (p *pipeline) process(data []byte, volume int, muted bool) ([]byte, error) {
	p.pending = append(p.pending, data...)
	whole := len(p.pending) / p.frameSize * p.frameSize
	if whole == 0 {
		return nil, nil
	}

	framed := make([]byte, whole)
	copy(framed, p.pending[:whole])
	p.pending = append(p.pending[:0], p.pending[whole:]...)

	if p.resampler == nil && volume == 100 && !muted {
		return framed, nil
	}

	samples, err := p.decoder.Decode(framed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode samples: %w", err)
	}
	if p.resampler != nil {
		samples = p.resampler.Process(samples)
	}
	return p.encoder.Encode(applyVolume(samples, volume, muted))
}

// buffered returns the number of bytes held back waiting for a full frame
func (p *pipeline) buffered() int {
	return len(p.pending)
}

// applyVolume applies volume and mute to samples with clipping protection
func applyVolume(samples []int32, volume int, muted bool) []int32 {
	multiplier := getVolumeMultiplier(volume, muted)

	result := make([]int32, len(samples))
	for i, sample := range samples {
		scaled := int64(float64(sample) * multiplier)

		// Clamp to 24-bit range to prevent overflow
		if scaled > audio.Max24Bit {
			scaled = audio.Max24Bit
		} else if scaled < audio.Min24Bit {
			scaled = audio.Min24Bit
		}

		result[i] = int32(scaled)
	}

	return result
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
