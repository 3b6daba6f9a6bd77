package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/arloliu/paster/errs"
)

// zstdDecoderPool pools zstd decoders for reuse.
// klauspost/compress/zstd decoders operate without allocations after warmup.
var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(64<<20),
		)
		if err != nil {
			// This should never happen with valid options
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}
		return decoder
	},
}

// zstdStreamPool pools decoders used in streaming mode by DecompressLimit.
// They are kept apart from zstdDecoderPool because a single-concurrency
// decoder in streaming mode holds its block decoder until the next Reset.
var zstdStreamPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(true),
			zstd.WithDecoderMaxWindow(zstdMaxStreamWindow),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd stream decoder for pool: %v", err))
		}
		return decoder
	},
}

// zstdMaxStreamWindow caps the history window a bounded decode may allocate.
const zstdMaxStreamWindow = 8 << 20

// zstdEncoderPool pools zstd encoders for reuse.
var zstdEncoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderCRC(false),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder for pool: %v", err))
		}
		return encoder
	},
}

// ZstdCompressor handles fragment bodies sent with Content-Encoding: zstd.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}

// Compress compresses the input data using Zstandard compression.
func (c ZstdCompressor) Compress(data []byte) ([]byte, error) {
	encoder, _ := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(encoder)

	return encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses Zstd-compressed data.
func (c ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	decoder, _ := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(decoder)

	// Even if this call fails, the decoder can be reused for next call
	decompressed, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	return decompressed, nil
}

// DecompressLimit decodes data in streaming mode and stops once the output
// passes limit bytes. A frame that declares a larger content size is refused
// before any decoding.
func (c ZstdCompressor) DecompressLimit(data []byte, limit int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var header zstd.Header
	if err := header.Decode(data); err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	if header.HasFCS && header.FrameContentSize > uint64(limit) {
		return nil, outputLimitError(limit)
	}

	decoder, _ := zstdStreamPool.Get().(*zstd.Decoder)
	defer zstdStreamPool.Put(decoder)
	defer decoder.Reset(nil) //nolint:errcheck // releases the input reference

	// Reset decodes a small *bytes.Reader in one shot, unbounded; hiding the
	// concrete type keeps the decode incremental.
	if err := decoder.Reset(struct{ io.Reader }{bytes.NewReader(data)}); err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	out, err := readLimit(decoder, limit)
	if err != nil {
		if errors.Is(err, errs.ErrOutputLimit) {
			return nil, err
		}

		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	return out, nil
}
