package endian

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetBigEndianEngine(t *testing.T) {
	require := require.New(t)

	engine := GetBigEndianEngine()
	require.Equal(binary.BigEndian, engine)

	buf := engine.AppendUint32(nil, 13)
	require.Equal([]byte{0, 0, 0, 13}, buf)
	require.Equal(uint32(13), engine.Uint32(buf))
}

func TestReadUint32At(t *testing.T) {
	data := []byte{0xff, 0x00, 0x00, 0x01, 0x90, 0x00}

	v, ok := ReadUint32At(data, 1)
	require.True(t, ok)
	require.Equal(t, uint32(0x00000190), v)

	_, ok = ReadUint32At(data, 3)
	require.False(t, ok, "read past end must fail")

	_, ok = ReadUint32At(data, -1)
	require.False(t, ok)
}
