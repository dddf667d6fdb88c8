// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface and the oto implementation
// Package output provides audio playback sinks.
//
// Example:
//
//	out := output.NewOto(logger)
//	err := out.Open(audio.PCM16(44100, 2), 44100)
//	_, err = out.Write(pcm)
//	err = out.Drain()
package output
