package format

import "fmt"

type (
	ChunkType       [4]byte
	ColorType       uint8
	ContentEncoding uint8
)

var (
	ChunkIHDR = ChunkType{'I', 'H', 'D', 'R'} // ChunkIHDR is the header block tag.
	ChunkIDAT = ChunkType{'I', 'D', 'A', 'T'} // ChunkIDAT is the compressed-data block tag.
	ChunkIEND = ChunkType{'I', 'E', 'N', 'D'} // ChunkIEND is the terminator block tag.
)

const (
	ColorGray      ColorType = 0 // ColorGray is a single luminance channel.
	ColorRGB       ColorType = 2 // ColorRGB is three color channels.
	ColorGrayAlpha ColorType = 4 // ColorGrayAlpha is luminance plus alpha.
	ColorRGBA      ColorType = 6 // ColorRGBA is three color channels plus alpha.
)

const (
	EncodingIdentity ContentEncoding = 0x1 // EncodingIdentity is an unencoded body.
	EncodingZstd     ContentEncoding = 0x2 // EncodingZstd is a Zstandard body.
	EncodingS2       ContentEncoding = 0x3 // EncodingS2 is an S2 block body.
	EncodingLZ4      ContentEncoding = 0x4 // EncodingLZ4 is an LZ4 block body.
)

func (c ChunkType) String() string {
	return string(c[:])
}

// Bytes returns the tag as a slice backed by a copy of c.
func (c ChunkType) Bytes() []byte {
	return c[:]
}

// Channels returns the number of samples per pixel, or 0 for an unsupported color type.
func (c ColorType) Channels() int {
	switch c {
	case ColorGray:
		return 1
	case ColorRGB:
		return 3
	case ColorGrayAlpha:
		return 2
	case ColorRGBA:
		return 4
	default:
		return 0
	}
}

func (c ColorType) String() string {
	switch c {
	case ColorGray:
		return "Gray"
	case ColorRGB:
		return "RGB"
	case ColorGrayAlpha:
		return "GrayAlpha"
	case ColorRGBA:
		return "RGBA"
	default:
		return "Unknown"
	}
}

func (e ContentEncoding) String() string {
	switch e {
	case EncodingIdentity:
		return "identity"
	case EncodingZstd:
		return "zstd"
	case EncodingS2:
		return "s2"
	case EncodingLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// ParseContentEncoding maps an HTTP Content-Encoding header value to a ContentEncoding.
// An empty value is treated as identity.
func ParseContentEncoding(s string) (ContentEncoding, error) {
	switch s {
	case "", "identity":
		return EncodingIdentity, nil
	case "zstd":
		return EncodingZstd, nil
	case "s2":
		return EncodingS2, nil
	case "lz4":
		return EncodingLZ4, nil
	default:
		return 0, fmt.Errorf("unsupported content encoding: %q", s)
	}
}
