// ABOUTME: mp3stream wire protocol package
// ABOUTME: Defines request/reply lines, the metadata record and chunk framing
// Package protocol implements the mp3stream wire protocol.
//
// A connection carries strictly sequential request/reply cycles:
//
//	client: <filename>\n                 (or "quit\n")
//	server: found\n | !found\n
//	server: chunkSize int32, channels int32, sampleRate float32 (big-endian)
//	server: raw s16le PCM chunks ... 0x55 0x55 0x55 0x55
//
// Example:
//
//	if err := protocol.WriteLine(conn, "track.mp3"); err != nil { ... }
//	tag, err := protocol.ReadLine(r)
//	meta, err := protocol.ReadMetadata(r)
//	chunks := protocol.NewChunkReader(r, int(meta.ChunkSize))
package protocol
