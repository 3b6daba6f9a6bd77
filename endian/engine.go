// Package endian provides the byte order engine for the container format.
//
// Every multi-byte integer in a container (block lengths, header dimensions,
// checksums) is stored in network byte order. Code that reads or writes
// container bytes goes through the engine returned by GetBigEndianEngine
// rather than naming binary.BigEndian directly, so that read and append paths
// share one interface.
//
// # Basic Usage
//
//	engine := endian.GetBigEndianEngine()
//	buf = engine.AppendUint32(buf, uint32(len(data)))
//	width := engine.Uint32(header[0:4])
//
// # Thread Safety
//
// The returned EndianEngine is immutable and stateless.
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetBigEndianEngine returns the network byte order engine used by the container format.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// ReadUint32At reads a big-endian uint32 at offset off.
//
// Returns false if fewer than four bytes are available at off.
func ReadUint32At(data []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(data) {
		return 0, false
	}

	return binary.BigEndian.Uint32(data[off : off+4]), true
}
