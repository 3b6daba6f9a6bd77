package container

import (
	"fmt"

	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
	"github.com/arloliu/paster/section"
)

// MaxDimension is the largest width or height a header block can carry.
const MaxDimension = 1<<31 - 1

// Descriptor holds the fixed image parameters of a container.
//
// Compression, filter and interlace methods are always 0 and are not part of
// the descriptor.
type Descriptor struct {
	Width     int
	Height    int
	BitDepth  uint8
	ColorType format.ColorType
}

// Validate checks that the descriptor describes a supported raster.
// Only 8-bit samples are supported.
func (d Descriptor) Validate() error {
	if d.Width <= 0 || d.Width > MaxDimension || d.Height <= 0 || d.Height > MaxDimension {
		return fmt.Errorf("%w: dimensions %dx%d", errs.ErrInvalidDescriptor, d.Width, d.Height)
	}

	if d.BitDepth != 8 {
		return fmt.Errorf("%w: bit depth %d", errs.ErrInvalidDescriptor, d.BitDepth)
	}

	if d.ColorType.Channels() == 0 {
		return fmt.Errorf("%w: color type %d", errs.ErrInvalidDescriptor, d.ColorType)
	}

	return nil
}

// Channels returns the number of samples per pixel.
func (d Descriptor) Channels() int {
	return d.ColorType.Channels()
}

// RowStride returns the bytes per scanline including the leading filter tag.
func (d Descriptor) RowStride() int {
	return d.Width*d.Channels()*int(d.BitDepth)/8 + 1
}

// RasterSize returns the size of the full scanline raster.
func (d Descriptor) RasterSize() int {
	return d.Height * d.RowStride()
}

// WithHeight returns a copy of d with a different height.
// Fragments share the image's width and pixel format but cover fewer rows.
func (d Descriptor) WithHeight(height int) Descriptor {
	d.Height = height
	return d
}

// Header returns the header block contents for d.
func (d Descriptor) Header() section.ImageHeader {
	return section.ImageHeader{
		Width:     uint32(d.Width),  //nolint:gosec // bounded by Validate
		Height:    uint32(d.Height), //nolint:gosec // bounded by Validate
		BitDepth:  d.BitDepth,
		ColorType: d.ColorType,
	}
}

// DescriptorFromHeader converts a parsed header block into a Descriptor.
func DescriptorFromHeader(h section.ImageHeader) Descriptor {
	return Descriptor{
		Width:     int(h.Width),
		Height:    int(h.Height),
		BitDepth:  h.BitDepth,
		ColorType: h.ColorType,
	}
}
