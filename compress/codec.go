package compress

import (
	"fmt"
	"io"

	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
)

// Compressor compresses a complete payload in one call.
//
// Memory management:
//   - Returned slice is newly allocated and owned by the caller
//   - Input slice is not modified
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor.
//
// Implementations must be safe for concurrent use; fragment bodies are
// decoded by many fetch goroutines at once.
type Decompressor interface {
	// Decompress returns an error if the input is corrupted or was produced
	// by a different algorithm.
	Decompress(data []byte) ([]byte, error)

	// DecompressLimit is Decompress for untrusted input. It fails with
	// ErrOutputLimit as soon as the output would exceed limit bytes, without
	// allocating the oversized output first.
	DecompressLimit(data []byte, limit int) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

// CompressionStats describes one compression run.
type CompressionStats struct {
	// OriginalSize is the size of input data before compression
	OriginalSize int64

	// CompressedSize is the size of data after compression
	CompressedSize int64

	// CompressionTimeNs is the time taken to compress the data
	CompressionTimeNs int64
}

// CompressionRatio returns the compression ratio (compressed size / original size).
//
// Returns:
//   - float64: Compression ratio (0.0 if original size is zero)
func (s CompressionStats) CompressionRatio() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// SpaceSavings returns the space savings as a percentage (0-100%).
func (s CompressionStats) SpaceSavings() float64 {
	return (1.0 - s.CompressionRatio()) * 100.0
}

// CreateCodec returns the Codec that decodes a fragment body sent with the given
// transfer encoding.
//
// Parameters:
//   - encoding: Body encoding (identity, zstd, s2 or lz4)
//
// Returns:
//   - Codec: Codec instance for the encoding
//   - error: Unsupported encoding error
func CreateCodec(encoding format.ContentEncoding) (Codec, error) {
	if codec, ok := builtinCodecs[encoding]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported content encoding: %s", encoding)
}

var builtinCodecs = map[format.ContentEncoding]Codec{
	format.EncodingIdentity: NewNoOpCompressor(),
	format.EncodingZstd:     NewZstdCompressor(),
	format.EncodingS2:       NewS2Compressor(),
	format.EncodingLZ4:      NewLZ4Compressor(),
}

func outputLimitError(limit int) error {
	return fmt.Errorf("%w: more than %d bytes", errs.ErrOutputLimit, limit)
}

// readLimit reads r to EOF, holding at most limit+1 bytes at any point.
func readLimit(r io.Reader, limit int) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}

	if len(out) > limit {
		return nil, outputLimitError(limit)
	}

	return out, nil
}
