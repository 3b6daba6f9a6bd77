package container

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/paster/compress"
	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
	"github.com/arloliu/paster/internal/options"
	"github.com/arloliu/paster/internal/pool"
	"github.com/arloliu/paster/section"
)

// Encoder serializes a raster into a container.
//
// Note: The Encoder is NOT thread-safe; Stats reports the most recent call.
// It is reusable across calls.
type Encoder struct {
	level int
	zlib  *compress.ZlibCompressor
	stats compress.CompressionStats
}

// EncoderOption configures an Encoder.
type EncoderOption = options.Option[*Encoder]

// WithLevel sets the deflate level for the data block (-1 for the default).
func WithLevel(level int) EncoderOption {
	return options.NoError(func(e *Encoder) {
		e.level = level
	})
}

// NewEncoder creates an Encoder. The default deflate level is compress.DefaultLevel.
func NewEncoder(opts ...EncoderOption) (*Encoder, error) {
	e := &Encoder{level: compress.DefaultLevel}
	if err := options.Apply(e, opts...); err != nil {
		return nil, err
	}

	zc, err := compress.NewZlibCompressor(e.level)
	if err != nil {
		return nil, err
	}
	e.zlib = zc

	return e, nil
}

// Encode returns the container bytes for raster.
//
// Returns:
//   - []byte: Complete container, newly allocated
//   - error: ErrInvalidDescriptor, ErrRasterSize or a compression error
func (e *Encoder) Encode(desc Descriptor, raster []byte) ([]byte, error) {
	bb := pool.GetContainerBuffer()
	defer pool.PutContainerBuffer(bb)

	if err := e.encode(bb, desc, raster); err != nil {
		return nil, err
	}

	return bytes.Clone(bb.Bytes()), nil
}

// EncodeTo writes the container for raster to w.
func (e *Encoder) EncodeTo(w io.Writer, desc Descriptor, raster []byte) (int64, error) {
	bb := pool.GetContainerBuffer()
	defer pool.PutContainerBuffer(bb)

	if err := e.encode(bb, desc, raster); err != nil {
		return 0, err
	}

	return bb.WriteTo(w)
}

// Stats returns the compression statistics of the last successful encode.
func (e *Encoder) Stats() compress.CompressionStats {
	return e.stats
}

func (e *Encoder) encode(bb *pool.ByteBuffer, desc Descriptor, raster []byte) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	if len(raster) != desc.RasterSize() {
		return fmt.Errorf("%w: got %d bytes, want %d", errs.ErrRasterSize, len(raster), desc.RasterSize())
	}

	start := time.Now()

	zbuf := pool.GetContainerBuffer()
	defer pool.PutContainerBuffer(zbuf)

	if err := e.zlib.CompressTo(zbuf, raster); err != nil {
		return err
	}

	if zbuf.Len() > section.MaxChunkLength {
		return fmt.Errorf("%w: compressed data of %d bytes exceeds block limit", errs.ErrInvalidChunk, zbuf.Len())
	}

	header := desc.Header()

	bb.Grow(section.SignatureSize + 3*section.ChunkOverhead + section.ImageHeaderSize + zbuf.Len())
	_, _ = bb.Write(section.Signature[:])
	bb.B = header.Chunk().AppendTo(bb.B)
	bb.B = section.Chunk{Type: format.ChunkIDAT, Data: zbuf.Bytes()}.AppendTo(bb.B)
	bb.B = section.Chunk{Type: format.ChunkIEND}.AppendTo(bb.B)

	e.stats = compress.CompressionStats{
		OriginalSize:      int64(len(raster)),
		CompressedSize:    int64(zbuf.Len()),
		CompressionTimeNs: time.Since(start).Nanoseconds(),
	}

	return nil
}
