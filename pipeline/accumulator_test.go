package pipeline

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/paster/errs"
)

const testStride = 9606

func filledBlock(b byte) []byte {
	return bytes.Repeat([]byte{b}, testStride)
}

func TestAccumulator_DisjointConcurrentWrites(t *testing.T) {
	var acc *Accumulator

	// Sequences 3 and 4 written concurrently, many times over fresh accumulators.
	for range 50 {
		acc = NewAccumulator(50, testStride)

		var wg sync.WaitGroup
		for _, seq := range []int{3, 4} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, acc.Write(seq, filledBlock(byte(seq)), 100))
			}()
		}
		wg.Wait()

		assert.Equal(t, 2, acc.Written())
		assert.Equal(t, int64(200), acc.CompressedBytes())
	}

	for seq := range 50 {
		if seq == 3 || seq == 4 {
			continue
		}
		require.NoError(t, acc.Write(seq, filledBlock(0xEE), 1))
	}

	raster, err := acc.Seal()
	require.NoError(t, err)
	require.Len(t, raster, 50*testStride)

	assert.Equal(t, filledBlock(3), raster[3*testStride:4*testStride])
	assert.Equal(t, filledBlock(4), raster[4*testStride:5*testStride])
	assert.Equal(t, filledBlock(0xEE), raster[2*testStride:3*testStride])
	assert.Equal(t, filledBlock(0xEE), raster[5*testStride:6*testStride])
}

func TestAccumulator_RefusedWrites(t *testing.T) {
	acc := NewAccumulator(4, testStride)

	require.NoError(t, acc.Write(1, filledBlock(1), 10))

	err := acc.Write(1, filledBlock(9), 10)
	require.ErrorIs(t, err, errs.ErrDuplicateSequence)

	require.ErrorIs(t, acc.Write(4, filledBlock(1), 10), errs.ErrSequenceOutOfRange)
	require.ErrorIs(t, acc.Write(-1, filledBlock(1), 10), errs.ErrSequenceOutOfRange)
	require.ErrorIs(t, acc.Write(2, make([]byte, testStride-1), 10), errs.ErrRasterSize)

	assert.Equal(t, 1, acc.Written())
	assert.Equal(t, 1, acc.Duplicates())
	assert.Equal(t, int64(10), acc.CompressedBytes())
	assert.Equal(t, []int{0, 2, 3}, acc.Missing())
}

func TestAccumulator_SealRequiresCompleteness(t *testing.T) {
	acc := NewAccumulator(3, testStride)
	require.NoError(t, acc.Write(0, filledBlock(1), 1))
	require.NoError(t, acc.Write(2, filledBlock(1), 1))

	_, err := acc.Seal()
	require.ErrorIs(t, err, errs.ErrIncompleteRaster)
	assert.Contains(t, err.Error(), "missing [1]")

	// A failed seal leaves the accumulator open.
	require.NoError(t, acc.Write(1, filledBlock(1), 1))
	_, err = acc.Seal()
	require.NoError(t, err)

	_, err = acc.Seal()
	require.ErrorIs(t, err, errs.ErrAlreadySealed)
	require.ErrorIs(t, acc.Write(0, filledBlock(1), 1), errs.ErrAlreadySealed)
}
