// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and sample conversion functions
// Package audio provides the audio types shared by the decoder and output
// packages.
//
// Streams on the wire are always signed 16-bit little-endian interleaved
// PCM. Samples are processed in a 24-bit working range held in int32 so
// volume scaling and resampling keep some headroom.
//
// Example:
//
//	format := audio.PCM16(44100, 2)
//	lead := format.Duration(44100) // 250ms of stereo audio
//
//	sample24 := audio.SampleFromInt16(sample16)
package audio
