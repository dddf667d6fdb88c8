// ABOUTME: Audio decoder package
// ABOUTME: Provides asset streams (MP3) and PCM sample decoding
// Package decode provides audio decoders.
//
// OpenMP3 turns an MP3 asset into a Stream of raw s16le PCM bytes, which is
// what the server forwards on the wire. PCMDecoder converts such bytes to
// int32 samples in 24-bit range for processing on the playback side.
//
// Example:
//
//	stream, err := decode.OpenMP3(file)
//	defer stream.Close()
//	format := stream.Format()
//
//	decoder, err := decode.NewPCM(audio.PCM16(44100, 2))
//	samples, err := decoder.Decode(chunk)
package decode
