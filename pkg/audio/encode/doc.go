// ABOUTME: Audio encoder package
// ABOUTME: Converts processed int32 samples back to 16-bit PCM bytes
// Package encode provides the inverse of decode.PCMDecoder.
//
// Example:
//
//	encoder, err := encode.NewPCM(audio.PCM16(44100, 2))
//	data, err := encoder.Encode(samples)
package encode
