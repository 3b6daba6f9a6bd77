package section

import (
	"github.com/arloliu/paster/endian"
	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
)

// ImageHeader is the 13-byte data of the header block.
type ImageHeader struct {
	Width       uint32           // byte offset 0-3
	Height      uint32           // byte offset 4-7
	BitDepth    uint8            // byte offset 8
	ColorType   format.ColorType // byte offset 9
	Compression uint8            // byte offset 10, always 0 (deflate)
	Filter      uint8            // byte offset 11, always 0 (adaptive)
	Interlace   uint8            // byte offset 12, 0 (none)
}

// Parse parses the header from a byte slice.
//
// Parameters:
//   - data: Byte slice containing header data (must be exactly 13 bytes)
//
// Returns:
//   - error: ErrInvalidHeaderSize if data is not 13 bytes
func (h *ImageHeader) Parse(data []byte) error {
	if len(data) != ImageHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetBigEndianEngine()

	h.Width = engine.Uint32(data[0:4])
	h.Height = engine.Uint32(data[4:8])
	h.BitDepth = data[8]
	h.ColorType = format.ColorType(data[9])
	h.Compression = data[10]
	h.Filter = data[11]
	h.Interlace = data[12]

	return nil
}

// Bytes serializes the ImageHeader into a byte slice.
func (h *ImageHeader) Bytes() []byte {
	b := make([]byte, ImageHeaderSize)

	engine := endian.GetBigEndianEngine()

	engine.PutUint32(b[0:4], h.Width)
	engine.PutUint32(b[4:8], h.Height)
	b[8] = h.BitDepth
	b[9] = uint8(h.ColorType)
	b[10] = h.Compression
	b[11] = h.Filter
	b[12] = h.Interlace

	return b
}

// Chunk wraps the header in its container block.
func (h *ImageHeader) Chunk() Chunk {
	return Chunk{Type: format.ChunkIHDR, Data: h.Bytes()}
}

// ParseImageHeader parses an ImageHeader from a byte slice.
//
// Parameters:
//   - data: Byte slice containing header data (must be at least 13 bytes)
//
// Returns:
//   - ImageHeader: Parsed header struct
//   - error: ErrInvalidHeaderSize if data is too short
func ParseImageHeader(data []byte) (ImageHeader, error) {
	if len(data) < ImageHeaderSize {
		return ImageHeader{}, errs.ErrInvalidHeaderSize
	}

	h := ImageHeader{}
	if err := h.Parse(data[:ImageHeaderSize]); err != nil {
		return ImageHeader{}, err
	}

	return h, nil
}
