// ABOUTME: Audio type definitions
// ABOUTME: Defines the stream format and sample conversion helpers
package audio

import "time"

const (
	// 24-bit audio range constants (working range for sample processing)
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// CodecPCM is the only codec carried on the wire
	CodecPCM = "pcm"
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// PCM16 returns the signed 16-bit little-endian format used on the wire
func PCM16(sampleRate, channels int) Format {
	return Format{
		Codec:      CodecPCM,
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   16,
	}
}

// FrameSize returns the number of bytes in one interleaved frame
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

// BytesPerSecond returns the byte rate of the format
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// Duration returns how long n bytes of audio last in this format
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit working range to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}
