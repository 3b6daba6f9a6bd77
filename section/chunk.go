package section

import (
	"fmt"
	"hash/crc32"

	"github.com/arloliu/paster/endian"
	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
)

// Chunk is one container block: a big-endian length, a 4-byte type tag,
// the data and a CRC-32 over type tag ++ data.
type Chunk struct {
	Type format.ChunkType
	Data []byte
}

// Checksum computes the block checksum over the type tag followed by data.
func Checksum(typ format.ChunkType, data []byte) uint32 {
	crc := crc32.Update(0, crc32.IEEETable, typ[:])
	return crc32.Update(crc, crc32.IEEETable, data)
}

// Size returns the encoded size of the block including overhead.
func (c Chunk) Size() int {
	return ChunkOverhead + len(c.Data)
}

// Checksum returns the checksum the block carries when encoded.
func (c Chunk) Checksum() uint32 {
	return Checksum(c.Type, c.Data)
}

// AppendTo appends the encoded block to buf and returns the extended slice.
func (c Chunk) AppendTo(buf []byte) []byte {
	engine := endian.GetBigEndianEngine()

	buf = engine.AppendUint32(buf, uint32(len(c.Data))) //nolint:gosec // length bounded by MaxChunkLength
	buf = append(buf, c.Type[:]...)
	buf = append(buf, c.Data...)

	return engine.AppendUint32(buf, c.Checksum())
}

// Bytes serializes the block into a new slice.
func (c Chunk) Bytes() []byte {
	return c.AppendTo(make([]byte, 0, c.Size()))
}

// ParseChunk parses the block at the start of data.
//
// The returned Chunk.Data aliases data. The checksum is verified.
//
// Returns:
//   - Chunk: Parsed block
//   - int: Number of bytes consumed
//   - error: ErrInvalidChunk if data is truncated, ErrChecksumMismatch on a bad checksum
func ParseChunk(data []byte) (Chunk, int, error) {
	if len(data) < ChunkOverhead {
		return Chunk{}, 0, fmt.Errorf("%w: %d bytes left, need at least %d", errs.ErrInvalidChunk, len(data), ChunkOverhead)
	}

	engine := endian.GetBigEndianEngine()

	length := engine.Uint32(data[0:LengthSize])
	if length > MaxChunkLength || int(length) > len(data)-ChunkOverhead {
		return Chunk{}, 0, fmt.Errorf("%w: declared length %d exceeds %d available bytes",
			errs.ErrInvalidChunk, length, len(data)-ChunkOverhead)
	}

	var c Chunk
	copy(c.Type[:], data[LengthSize:LengthSize+TypeSize])

	end := LengthSize + TypeSize + int(length)
	c.Data = data[LengthSize+TypeSize : end]

	want := engine.Uint32(data[end : end+ChecksumSize])
	if got := c.Checksum(); got != want {
		return Chunk{}, 0, fmt.Errorf("%w: %s block has %08x, computed %08x", errs.ErrChecksumMismatch, c.Type, want, got)
	}

	return c, end + ChecksumSize, nil
}
