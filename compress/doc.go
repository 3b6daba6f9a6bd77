// Package compress provides the compression codecs used by paster.
//
// Two concerns live here:
//
//  1. **Container data**: the zlib stream inside every container's data
//     block. ZlibCompressor deflates the assembled raster and inflates
//     fragment data into caller-owned buffers.
//  2. **Transfer encodings**: fragment bodies a server may send with a
//     Content-Encoding header. CreateCodec returns the codec for each one.
//
// # Architecture
//
// The package defines three core interfaces:
//
//	type Compressor interface {
//	    Compress(data []byte) ([]byte, error)
//	}
//
//	type Decompressor interface {
//	    Decompress(data []byte) ([]byte, error)
//	    DecompressLimit(data []byte, limit int) ([]byte, error)
//	}
//
//	type Codec interface {
//	    Compressor
//	    Decompressor
//	}
//
// # Container Data (zlib)
//
//	zc, _ := compress.NewZlibCompressor(compress.DefaultLevel)
//	stream, _ := zc.Compress(raster)
//
//	block := make([]byte, blockStride)
//	n, err := zc.InflateInto(block, stream)
//
// InflateInto fails unless the stream inflates to exactly len(dst) bytes and
// its checksum verifies. Compression is deterministic for a given level, so
// the same raster always yields the same container bytes.
//
// # Transfer Encodings
//
//	identity  NoOpCompressor, body passed through
//	zstd      ZstdCompressor, pooled encoders and decoders
//	s2        S2Compressor, block format
//	lz4       LZ4Compressor, block format
//
//	codec, err := compress.CreateCodec(format.EncodingZstd)
//	payload, err := codec.DecompressLimit(body, maxFragmentSize)
//
// Bodies come from the network, so the transport always decodes them with
// DecompressLimit, which fails with ErrOutputLimit before allocating more
// than limit bytes of output.
//
// # Thread Safety
//
// All codecs are safe for concurrent use. Encoders, decoders and zlib
// readers/writers are pooled with sync.Pool, so concurrent fetch and decode
// tasks do not allocate a new state per call.
package compress
