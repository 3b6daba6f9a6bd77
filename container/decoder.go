package container

import (
	"bytes"
	"fmt"

	"github.com/arloliu/paster/compress"
	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
	"github.com/arloliu/paster/section"
)

// Container is a parsed container.
type Container struct {
	Header section.ImageHeader
	// Data is the concatenated contents of all data blocks.
	Data []byte
	// Blocks lists every block type in file order, including the terminator.
	Blocks []format.ChunkType
}

// Parse parses and verifies a complete container.
//
// Returns:
//   - *Container: Parsed container; Data aliases data when there is a single data block
//   - error: ErrInvalidSignature, ErrMissingHeaderBlock, ErrMissingEndBlock or a block error
func Parse(data []byte) (*Container, error) {
	if len(data) < section.SignatureSize || !bytes.Equal(data[:section.SignatureSize], section.Signature[:]) {
		return nil, errs.ErrInvalidSignature
	}

	c := &Container{}
	dataBlocks := 0
	off := section.SignatureSize

	for off < len(data) {
		chunk, n, err := section.ParseChunk(data[off:])
		if err != nil {
			return nil, fmt.Errorf("block at offset %d: %w", off, err)
		}
		off += n

		if len(c.Blocks) == 0 && chunk.Type != format.ChunkIHDR {
			return nil, fmt.Errorf("%w: first block is %s", errs.ErrMissingHeaderBlock, chunk.Type)
		}
		c.Blocks = append(c.Blocks, chunk.Type)

		switch chunk.Type {
		case format.ChunkIHDR:
			if err := c.Header.Parse(chunk.Data); err != nil {
				return nil, err
			}
		case format.ChunkIDAT:
			switch dataBlocks {
			case 0:
				c.Data = chunk.Data
			case 1:
				c.Data = append(bytes.Clone(c.Data), chunk.Data...)
			default:
				c.Data = append(c.Data, chunk.Data...)
			}
			dataBlocks++
		case format.ChunkIEND:
			return c, nil
		}
	}

	if len(c.Blocks) == 0 {
		return nil, errs.ErrMissingHeaderBlock
	}

	return nil, errs.ErrMissingEndBlock
}

// Descriptor returns the image parameters declared by the header block.
func (c *Container) Descriptor() Descriptor {
	return DescriptorFromHeader(c.Header)
}

// Raster inflates the data blocks into a scanline raster of exactly
// Descriptor().RasterSize() bytes.
func (c *Container) Raster() ([]byte, error) {
	desc := c.Descriptor()
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	// The level only matters for compression.
	inflater, err := compress.NewZlibCompressor(compress.DefaultLevel)
	if err != nil {
		return nil, err
	}

	raster := make([]byte, desc.RasterSize())
	if _, err := inflater.InflateInto(raster, c.Data); err != nil {
		return nil, err
	}

	return raster, nil
}
