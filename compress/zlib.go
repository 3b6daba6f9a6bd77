package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/arloliu/paster/errs"
)

// Deflate levels accepted by NewZlibCompressor.
const (
	DefaultLevel    = zlib.DefaultCompression
	BestSpeed       = zlib.BestSpeed
	BestCompression = zlib.BestCompression
)

// ZlibCompressor produces and consumes the zlib streams carried in container
// data blocks.
//
// Output is deterministic for a given level and input, which makes the
// assembled container byte-for-byte reproducible. Writers and readers are
// pooled, and the compressor is safe for concurrent use.
type ZlibCompressor struct {
	level   int
	writers sync.Pool
	readers sync.Pool
}

var _ Codec = (*ZlibCompressor)(nil)

// NewZlibCompressor creates a compressor using the given deflate level
// (-1 for the library default, 0-9 otherwise).
func NewZlibCompressor(level int) (*ZlibCompressor, error) {
	if _, err := zlib.NewWriterLevel(io.Discard, level); err != nil {
		return nil, fmt.Errorf("invalid deflate level %d: %w", level, err)
	}

	return &ZlibCompressor{level: level}, nil
}

// Level returns the configured deflate level.
func (c *ZlibCompressor) Level() int {
	return c.level
}

// CompressTo writes the zlib stream for data to w.
func (c *ZlibCompressor) CompressTo(w io.Writer, data []byte) error {
	zw, _ := c.writers.Get().(*zlib.Writer)
	if zw == nil {
		var err error
		if zw, err = zlib.NewWriterLevel(w, c.level); err != nil {
			return err
		}
	} else {
		zw.Reset(w)
	}
	defer c.writers.Put(zw)

	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("deflate failed: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("deflate failed: %w", err)
	}

	return nil
}

// Compress returns the zlib stream for data.
func (c *ZlibCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.CompressTo(&buf, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress inflates a complete zlib stream of unknown output size.
func (c *ZlibCompressor) Decompress(data []byte) ([]byte, error) {
	zr, err := c.reader(data)
	if err != nil {
		return nil, err
	}
	defer c.readers.Put(zr)

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrCorruptStream, err)
	}

	return out, nil
}

// DecompressLimit inflates data, stopping once the output passes limit bytes.
func (c *ZlibCompressor) DecompressLimit(data []byte, limit int) ([]byte, error) {
	zr, err := c.reader(data)
	if err != nil {
		return nil, err
	}
	defer c.readers.Put(zr)

	out, err := readLimit(zr, limit)
	if err != nil && !errors.Is(err, errs.ErrOutputLimit) {
		return nil, fmt.Errorf("%w: %w", errs.ErrCorruptStream, err)
	}

	return out, err
}

// InflateInto inflates src into the caller-owned dst.
//
// The stream must inflate to exactly len(dst) bytes and its trailing checksum
// must verify; a stream that is shorter or longer is rejected rather than
// partially copied.
//
// Returns:
//   - int: Number of bytes written to dst
//   - error: ErrCorruptStream on malformed input, ErrInflateSize on a size mismatch
func (c *ZlibCompressor) InflateInto(dst, src []byte) (int, error) {
	zr, err := c.reader(src)
	if err != nil {
		return 0, err
	}
	defer c.readers.Put(zr)

	n, err := io.ReadFull(zr, dst)
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return n, fmt.Errorf("%w: got %d bytes, want %d", errs.ErrInflateSize, n, len(dst))
	case err != nil:
		return n, fmt.Errorf("%w: %w", errs.ErrCorruptStream, err)
	}

	// Reading past the end verifies the stream checksum and catches overflow.
	var next [1]byte
	extra, err := zr.Read(next[:])
	if extra > 0 {
		return n, fmt.Errorf("%w: stream exceeds %d bytes", errs.ErrInflateSize, len(dst))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: %w", errs.ErrCorruptStream, err)
	}

	return n, nil
}

func (c *ZlibCompressor) reader(src []byte) (io.ReadCloser, error) {
	br := bytes.NewReader(src)

	if zr, ok := c.readers.Get().(io.ReadCloser); ok {
		if err := zr.(zlib.Resetter).Reset(br, nil); err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrCorruptStream, err)
		}

		return zr, nil
	}

	zr, err := zlib.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrCorruptStream, err)
	}

	return zr, nil
}
