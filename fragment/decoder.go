package fragment

import (
	"bytes"
	"fmt"

	"github.com/arloliu/paster/compress"
	"github.com/arloliu/paster/container"
	"github.com/arloliu/paster/endian"
	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
	"github.com/arloliu/paster/section"
)

// Decoder validates fragment containers and inflates their data block.
//
// A Decoder is safe for concurrent use; callers supply their own output buffer.
type Decoder struct {
	geometry      container.Descriptor
	maxDataLength int
	stride        int
	inflater      *compress.ZlibCompressor
}

// NewDecoder creates a decoder for fragments of the given geometry.
//
// Parameters:
//   - geometry: Descriptor of one fragment (image width, rows per fragment)
//   - maxDataLength: Upper bound for a fragment's declared data length
//
// Returns:
//   - *Decoder: Decoder ready for use
//   - error: ErrInvalidDescriptor for an unsupported geometry, ErrInvalidProtocol for a non-positive bound
func NewDecoder(geometry container.Descriptor, maxDataLength int) (*Decoder, error) {
	if err := geometry.Validate(); err != nil {
		return nil, err
	}

	if maxDataLength <= 0 {
		return nil, fmt.Errorf("%w: max data length %d", errs.ErrInvalidProtocol, maxDataLength)
	}

	inflater, err := compress.NewZlibCompressor(compress.DefaultLevel)
	if err != nil {
		return nil, err
	}

	return &Decoder{
		geometry:      geometry,
		maxDataLength: maxDataLength,
		stride:        geometry.RasterSize(),
		inflater:      inflater,
	}, nil
}

// BlockStride returns the inflated size of one fragment.
func (d *Decoder) BlockStride() int {
	return d.stride
}

// Geometry returns the fragment descriptor the decoder expects.
func (d *Decoder) Geometry() container.Descriptor {
	return d.geometry
}

// Decode validates f and inflates its data block into dst.
//
// The header and data blocks are read at fixed offsets. Their checksums,
// the declared geometry and the declared data length are checked before any
// inflation takes place, and the inflated output must be exactly
// BlockStride() bytes.
//
// Returns:
//   - int: Declared compressed data length
//   - error: ErrMalformedFragment (possibly also matching ErrFragmentTooLarge,
//     ErrChecksumMismatch or ErrInflateSize), ErrRasterSize if dst has the wrong length
func (d *Decoder) Decode(f Fragment, dst []byte) (int, error) {
	if len(dst) != d.stride {
		return 0, fmt.Errorf("%w: output buffer %d bytes, block stride %d", errs.ErrRasterSize, len(dst), d.stride)
	}

	data, err := d.locate(f.Payload)
	if err != nil {
		return 0, fmt.Errorf("%w: sequence %d: %w", errs.ErrMalformedFragment, f.Sequence, err)
	}

	if _, err := d.inflater.InflateInto(dst, data); err != nil {
		return 0, fmt.Errorf("%w: sequence %d: %w", errs.ErrMalformedFragment, f.Sequence, err)
	}

	return len(data), nil
}

// locate checks the fixed layout of payload and returns the compressed data.
func (d *Decoder) locate(payload []byte) ([]byte, error) {
	if len(payload) < section.MinFragmentSize {
		return nil, fmt.Errorf("%d bytes, need at least %d", len(payload), section.MinFragmentSize)
	}

	if !bytes.Equal(payload[:section.SignatureSize], section.Signature[:]) {
		return nil, errs.ErrInvalidSignature
	}

	if err := d.checkHeader(payload); err != nil {
		return nil, err
	}

	engine := endian.GetBigEndianEngine()

	if !bytes.Equal(payload[section.DataTypeOffset:section.DataOffset], format.ChunkIDAT[:]) {
		return nil, fmt.Errorf("%w: expected %s at offset %d", errs.ErrInvalidChunk, format.ChunkIDAT, section.DataTypeOffset)
	}

	length, _ := endian.ReadUint32At(payload, section.DataLengthOffset)
	if uint64(length) > uint64(d.maxDataLength) {
		return nil, fmt.Errorf("%w: %d > %d", errs.ErrFragmentTooLarge, length, d.maxDataLength)
	}

	dataEnd := section.DataOffset + int(length)
	if dataEnd+section.ChecksumSize+section.ChunkOverhead > len(payload) {
		return nil, fmt.Errorf("%w: declared data length %d exceeds payload", errs.ErrInvalidChunk, length)
	}

	data := payload[section.DataOffset:dataEnd]
	want := engine.Uint32(payload[dataEnd : dataEnd+section.ChecksumSize])
	if got := section.Checksum(format.ChunkIDAT, data); got != want {
		return nil, fmt.Errorf("%w: data block has %08x, computed %08x", errs.ErrChecksumMismatch, want, got)
	}

	if err := checkTerminator(payload[dataEnd+section.ChecksumSize:]); err != nil {
		return nil, err
	}

	return data, nil
}

// checkTerminator verifies the empty end block at the start of tail.
func checkTerminator(tail []byte) error {
	if !bytes.Equal(tail[section.LengthSize:section.LengthSize+section.TypeSize], format.ChunkIEND[:]) {
		return fmt.Errorf("%w: data block not followed by %s", errs.ErrMissingEndBlock, format.ChunkIEND)
	}

	if length, _ := endian.ReadUint32At(tail, 0); length != 0 {
		return fmt.Errorf("%w: %s declares %d data bytes", errs.ErrInvalidChunk, format.ChunkIEND, length)
	}

	want, _ := endian.ReadUint32At(tail, section.LengthSize+section.TypeSize)
	if got := section.Checksum(format.ChunkIEND, nil); got != want {
		return fmt.Errorf("%w: end block has %08x, computed %08x", errs.ErrChecksumMismatch, want, got)
	}

	return nil
}

func (d *Decoder) checkHeader(payload []byte) error {
	length, _ := endian.ReadUint32At(payload, section.HeaderLengthOffset)
	if length != section.ImageHeaderSize {
		return fmt.Errorf("%w: header length %d", errs.ErrInvalidHeaderSize, length)
	}

	if !bytes.Equal(payload[section.HeaderTypeOffset:section.HeaderWidthOffset], format.ChunkIHDR[:]) {
		return fmt.Errorf("%w: first block is not %s", errs.ErrMissingHeaderBlock, format.ChunkIHDR)
	}

	want, _ := endian.ReadUint32At(payload, section.HeaderEndOffset)
	if got := crcOver(payload[section.HeaderTypeOffset:section.HeaderEndOffset]); got != want {
		return fmt.Errorf("%w: header block has %08x, computed %08x", errs.ErrChecksumMismatch, want, got)
	}

	header, err := section.ParseImageHeader(payload[section.HeaderWidthOffset:section.HeaderEndOffset])
	if err != nil {
		return err
	}

	if header.Compression != 0 || header.Filter != 0 || header.Interlace != 0 {
		return fmt.Errorf("%w: compression %d filter %d interlace %d",
			errs.ErrInvalidDescriptor, header.Compression, header.Filter, header.Interlace)
	}

	if got := container.DescriptorFromHeader(header); got != d.geometry {
		return fmt.Errorf("%w: fragment is %dx%d depth %d color %s, expected %dx%d depth %d color %s",
			errs.ErrInvalidDescriptor,
			got.Width, got.Height, got.BitDepth, got.ColorType,
			d.geometry.Width, d.geometry.Height, d.geometry.BitDepth, d.geometry.ColorType)
	}

	return nil
}

// crcOver computes the block checksum over a type tag immediately followed by its data.
func crcOver(tagAndData []byte) uint32 {
	var typ format.ChunkType
	copy(typ[:], tagAndData[:section.TypeSize])

	return section.Checksum(typ, tagAndData[section.TypeSize:])
}

// Encode builds a fragment container for one scanline block.
//
// The block must be exactly geometry.RasterSize() bytes and the resulting
// container at most maxSize bytes, the limit fetchers enforce on a body.
// It is used by the test fragment server and by tools that re-split an image.
//
// Returns:
//   - []byte: Fragment container
//   - error: ErrRasterSize for a wrong block size, ErrFragmentTooLarge if the
//     container exceeds maxSize
func Encode(enc *container.Encoder, geometry container.Descriptor, block []byte, maxSize int) ([]byte, error) {
	if len(block) != geometry.RasterSize() {
		return nil, fmt.Errorf("%w: block of %d bytes, fragment holds %d", errs.ErrRasterSize, len(block), geometry.RasterSize())
	}

	payload, err := enc.Encode(geometry, block)
	if err != nil {
		return nil, err
	}

	if len(payload) > maxSize {
		return nil, fmt.Errorf("%w: fragment container is %d bytes, limit %d", errs.ErrFragmentTooLarge, len(payload), maxSize)
	}

	return payload, nil
}
