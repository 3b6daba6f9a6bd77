package section

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
)

func TestFragmentOffsets(t *testing.T) {
	require.Equal(t, 16, HeaderWidthOffset)
	require.Equal(t, 20, HeaderHeightOffset)
	require.Equal(t, 33, DataLengthOffset)
	require.Equal(t, 37, DataTypeOffset)
	require.Equal(t, 41, DataOffset)
}

func TestChecksum_KnownTerminator(t *testing.T) {
	// The terminator block checksum is a well-known constant.
	require.Equal(t, uint32(0xAE426082), Checksum(format.ChunkIEND, nil))
}

func TestChecksum_CoversTypeAndData(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	want := crc32.ChecksumIEEE(append([]byte("IDAT"), data...))

	require.Equal(t, want, Checksum(format.ChunkIDAT, data))
	require.NotEqual(t, want, Checksum(format.ChunkIHDR, data))
}

func TestChunk_Bytes(t *testing.T) {
	c := Chunk{Type: format.ChunkIEND}
	b := c.Bytes()

	require.Equal(t, []byte{0, 0, 0, 0, 'I', 'E', 'N', 'D', 0xAE, 0x42, 0x60, 0x82}, b)
	require.Equal(t, ChunkOverhead, c.Size())
}

func TestParseChunk(t *testing.T) {
	data := []byte("compressed bytes")
	encoded := Chunk{Type: format.ChunkIDAT, Data: data}.Bytes()
	trailer := Chunk{Type: format.ChunkIEND}.Bytes()

	c, n, err := ParseChunk(append(encoded, trailer...))
	require.NoError(t, err)
	require.Equal(t, format.ChunkIDAT, c.Type)
	require.Equal(t, data, c.Data)
	require.Equal(t, len(encoded), n)
}

func TestParseChunk_Errors(t *testing.T) {
	encoded := Chunk{Type: format.ChunkIDAT, Data: []byte{9, 9, 9}}.Bytes()

	t.Run("truncated overhead", func(t *testing.T) {
		_, _, err := ParseChunk(encoded[:ChunkOverhead-1])
		require.ErrorIs(t, err, errs.ErrInvalidChunk)
	})

	t.Run("declared length too long", func(t *testing.T) {
		_, _, err := ParseChunk(encoded[:len(encoded)-1])
		require.ErrorIs(t, err, errs.ErrInvalidChunk)
	})

	t.Run("corrupt data", func(t *testing.T) {
		bad := append([]byte(nil), encoded...)
		bad[LengthSize+TypeSize] ^= 0xFF
		_, _, err := ParseChunk(bad)
		require.ErrorIs(t, err, errs.ErrChecksumMismatch)
	})
}

func TestImageHeader_RoundTrip(t *testing.T) {
	h := ImageHeader{Width: 400, Height: 300, BitDepth: 8, ColorType: format.ColorRGBA}
	b := h.Bytes()

	require.Len(t, b, ImageHeaderSize)
	require.Equal(t, []byte{0, 0, 1, 0x90, 0, 0, 1, 0x2C, 8, 6, 0, 0, 0}, b)

	parsed, err := ParseImageHeader(b)
	require.NoError(t, err)
	require.Equal(t, h, parsed)

	_, err = ParseImageHeader(b[:12])
	require.ErrorIs(t, err, errs.ErrInvalidHeaderSize)

	var h2 ImageHeader
	require.ErrorIs(t, h2.Parse(append(b, 0)), errs.ErrInvalidHeaderSize)
}

func TestImageHeader_Chunk(t *testing.T) {
	h := ImageHeader{Width: 1, Height: 1, BitDepth: 8, ColorType: format.ColorGray}
	c := h.Chunk()

	require.Equal(t, format.ChunkIHDR, c.Type)
	require.Equal(t, ChunkOverhead+ImageHeaderSize, c.Size())
}
