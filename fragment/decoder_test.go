package fragment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/paster/compress"
	"github.com/arloliu/paster/container"
	"github.com/arloliu/paster/endian"
	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
	"github.com/arloliu/paster/section"
)

var geometry = container.Descriptor{Width: 400, Height: 6, BitDepth: 8, ColorType: format.ColorRGBA}

const maxPayload = 10000

func testBlock(seq int) []byte {
	block := make([]byte, geometry.RasterSize())
	stride := geometry.RowStride()
	for i := range block {
		if i%stride == 0 {
			continue // filter tag 0
		}
		block[i] = byte(seq*31 + i%97)
	}

	return block
}

func encodeFragment(t *testing.T, seq int) (Fragment, []byte) {
	t.Helper()
	enc, err := container.NewEncoder()
	require.NoError(t, err)

	block := testBlock(seq)
	payload, err := Encode(enc, geometry, block, maxPayload)
	require.NoError(t, err)

	return New(seq, payload), block
}

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	dec, err := NewDecoder(geometry, maxPayload)
	require.NoError(t, err)

	return dec
}

func TestNew(t *testing.T) {
	a := New(3, []byte("abc"))
	b := New(4, []byte("abc"))
	require.Equal(t, 3, a.Sequence)
	require.Equal(t, 3, a.Len())
	require.Equal(t, a.Digest, b.Digest)
	require.NotEqual(t, a.Digest, New(3, []byte("abd")).Digest)
}

func TestNewDecoder(t *testing.T) {
	dec := newTestDecoder(t)
	require.Equal(t, 9606, dec.BlockStride())
	require.Equal(t, geometry, dec.Geometry())

	_, err := NewDecoder(geometry, 0)
	require.ErrorIs(t, err, errs.ErrInvalidProtocol)

	_, err = NewDecoder(container.Descriptor{Width: 400, Height: 6, BitDepth: 16, ColorType: format.ColorRGBA}, maxPayload)
	require.ErrorIs(t, err, errs.ErrInvalidDescriptor)
}

func TestDecoder_Decode(t *testing.T) {
	dec := newTestDecoder(t)
	frag, block := encodeFragment(t, 12)

	dst := make([]byte, dec.BlockStride())
	n, err := dec.Decode(frag, dst)
	require.NoError(t, err)
	require.Equal(t, block, dst)

	length, ok := endian.ReadUint32At(frag.Payload, section.DataLengthOffset)
	require.True(t, ok)
	require.Equal(t, int(length), n)
}

func TestDecoder_DecodeReusesBuffer(t *testing.T) {
	dec := newTestDecoder(t)
	dst := make([]byte, dec.BlockStride())

	for seq := range 5 {
		frag, block := encodeFragment(t, seq)
		_, err := dec.Decode(frag, dst)
		require.NoError(t, err)
		require.Equal(t, block, dst)
	}
}

func TestDecoder_Rejects(t *testing.T) {
	dec := newTestDecoder(t)
	valid, _ := encodeFragment(t, 1)

	mutate := func(fn func(p []byte) []byte) Fragment {
		p := append([]byte(nil), valid.Payload...)
		return New(valid.Sequence, fn(p))
	}

	tests := []struct {
		name    string
		frag    Fragment
		wantErr error
	}{
		{
			name:    "truncated below minimum",
			frag:    New(1, valid.Payload[:section.MinFragmentSize-1]),
			wantErr: errs.ErrMalformedFragment,
		},
		{
			name: "bad signature",
			frag: mutate(func(p []byte) []byte {
				p[0] = 0
				return p
			}),
			wantErr: errs.ErrInvalidSignature,
		},
		{
			name: "header checksum",
			frag: mutate(func(p []byte) []byte {
				p[section.HeaderEndOffset] ^= 0xFF
				return p
			}),
			wantErr: errs.ErrChecksumMismatch,
		},
		{
			name: "wrong data tag",
			frag: mutate(func(p []byte) []byte {
				copy(p[section.DataTypeOffset:], "IDAX")
				return p
			}),
			wantErr: errs.ErrInvalidChunk,
		},
		{
			name: "declared length above limit",
			frag: mutate(func(p []byte) []byte {
				endian.GetBigEndianEngine().PutUint32(p[section.DataLengthOffset:], maxPayload+1)
				return p
			}),
			wantErr: errs.ErrFragmentTooLarge,
		},
		{
			name: "declared length beyond payload",
			frag: mutate(func(p []byte) []byte {
				endian.GetBigEndianEngine().PutUint32(p[section.DataLengthOffset:], uint32(len(p)))
				return p
			}),
			wantErr: errs.ErrInvalidChunk,
		},
		{
			name: "data corruption",
			frag: mutate(func(p []byte) []byte {
				p[section.DataOffset+2] ^= 0x40
				return p
			}),
			wantErr: errs.ErrChecksumMismatch,
		},
		{
			name: "missing terminator",
			frag: mutate(func(p []byte) []byte {
				copy(p[len(p)-8:], "IENX")
				return p
			}),
			wantErr: errs.ErrMissingEndBlock,
		},
		{
			name: "terminator with data length",
			frag: mutate(func(p []byte) []byte {
				endian.GetBigEndianEngine().PutUint32(p[len(p)-section.ChunkOverhead:], 4)
				return p
			}),
			wantErr: errs.ErrInvalidChunk,
		},
		{
			name: "terminator checksum",
			frag: mutate(func(p []byte) []byte {
				p[len(p)-1] ^= 0xFF
				return p
			}),
			wantErr: errs.ErrChecksumMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, dec.BlockStride())
			_, err := dec.Decode(tt.frag, dst)
			require.ErrorIs(t, err, errs.ErrMalformedFragment)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecoder_RejectsWrongGeometry(t *testing.T) {
	enc, err := container.NewEncoder()
	require.NoError(t, err)

	other := geometry.WithHeight(5)
	payload, err := Encode(enc, other, make([]byte, other.RasterSize()), maxPayload)
	require.NoError(t, err)

	dst := make([]byte, newTestDecoder(t).BlockStride())
	_, err = newTestDecoder(t).Decode(New(0, payload), dst)
	require.ErrorIs(t, err, errs.ErrMalformedFragment)
	require.ErrorIs(t, err, errs.ErrInvalidDescriptor)
}

func TestDecoder_RejectsWrongInflatedSize(t *testing.T) {
	// Header declares the fragment geometry but the data inflates to one
	// byte less than a block.
	z, err := compress.NewZlibCompressor(compress.DefaultLevel)
	require.NoError(t, err)
	stream, err := z.Compress(make([]byte, geometry.RasterSize()-1))
	require.NoError(t, err)

	header := geometry.Header()
	payload := append([]byte(nil), section.Signature[:]...)
	payload = header.Chunk().AppendTo(payload)
	payload = section.Chunk{Type: format.ChunkIDAT, Data: stream}.AppendTo(payload)
	payload = section.Chunk{Type: format.ChunkIEND}.AppendTo(payload)

	dec := newTestDecoder(t)
	_, err = dec.Decode(New(0, payload), make([]byte, dec.BlockStride()))
	require.ErrorIs(t, err, errs.ErrMalformedFragment)
	require.ErrorIs(t, err, errs.ErrInflateSize)
}

func TestDecoder_WrongOutputBuffer(t *testing.T) {
	frag, _ := encodeFragment(t, 0)
	_, err := newTestDecoder(t).Decode(frag, make([]byte, 10))
	require.ErrorIs(t, err, errs.ErrRasterSize)
}

func TestEncode_Limits(t *testing.T) {
	enc, err := container.NewEncoder()
	require.NoError(t, err)

	t.Run("wrong block size", func(t *testing.T) {
		_, err := Encode(enc, geometry, make([]byte, geometry.RasterSize()-1), maxPayload)
		require.ErrorIs(t, err, errs.ErrRasterSize)
	})

	t.Run("container above limit", func(t *testing.T) {
		_, err := Encode(enc, geometry, testBlock(1), section.MinFragmentSize)
		require.ErrorIs(t, err, errs.ErrFragmentTooLarge)
	})

	t.Run("container within limit", func(t *testing.T) {
		payload, err := Encode(enc, geometry, testBlock(1), maxPayload)
		require.NoError(t, err)
		require.LessOrEqual(t, len(payload), maxPayload)
	})
}
