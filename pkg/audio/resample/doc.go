// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between different sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates.
// State carries across calls, so a stream can be fed chunk by chunk.
//
// Example:
//
//	r := resample.New(22050, 44100, 2)
//	out := r.Process(samples)
package resample
