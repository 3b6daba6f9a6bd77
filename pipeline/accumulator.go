package pipeline

import (
	"fmt"
	"sync"

	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/internal/collision"
)

// Accumulator is the zero-initialized raster that decoded blocks are copied into.
//
// Block seq occupies [seq*stride, (seq+1)*stride). Each block may be written
// once; the raster can only be read as a whole, through Seal, after every
// block has been written.
type Accumulator struct {
	mu         sync.Mutex
	buf        []byte
	stride     int
	tracker    *collision.Tracker
	compressed int64
	sealed     bool
}

// NewAccumulator allocates a raster of total blocks of stride bytes each.
func NewAccumulator(total, stride int) *Accumulator {
	return &Accumulator{
		buf:     make([]byte, total*stride),
		stride:  stride,
		tracker: collision.NewTracker(total),
	}
}

// Write copies block into the region of sequence seq and adds compressedLen
// to the running compressed-bytes metric.
//
// Returns:
//   - error: ErrRasterSize for a block of the wrong size, ErrSequenceOutOfRange,
//     ErrDuplicateSequence or ErrAlreadySealed. A refused write changes nothing.
func (a *Accumulator) Write(seq int, block []byte, compressedLen int) error {
	if len(block) != a.stride {
		return fmt.Errorf("%w: block of %d bytes, stride %d", errs.ErrRasterSize, len(block), a.stride)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		return errs.ErrAlreadySealed
	}

	if err := a.tracker.Track(seq); err != nil {
		return err
	}

	copy(a.buf[seq*a.stride:(seq+1)*a.stride], block)
	a.compressed += int64(compressedLen)

	return nil
}

// Seal ends accumulation and returns the complete raster.
//
// Returns ErrIncompleteRaster, listing the missing sequences, if any block
// was never written; the accumulator stays open in that case.
func (a *Accumulator) Seal() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		return nil, errs.ErrAlreadySealed
	}

	if !a.tracker.Complete() {
		return nil, fmt.Errorf("%w: %d of %d blocks written, missing %v",
			errs.ErrIncompleteRaster, a.tracker.Count(), a.tracker.Total(), a.tracker.Missing())
	}

	a.sealed = true

	return a.buf, nil
}

// Stride returns the size of one block.
func (a *Accumulator) Stride() int {
	return a.stride
}

// Written returns the number of distinct blocks written.
func (a *Accumulator) Written() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.tracker.Count()
}

// Duplicates returns the number of refused duplicate writes.
func (a *Accumulator) Duplicates() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.tracker.Duplicates()
}

// Missing returns the sequences not yet written, in ascending order.
func (a *Accumulator) Missing() []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.tracker.Missing()
}

// CompressedBytes returns the sum of the compressed data lengths written so far.
func (a *Accumulator) CompressedBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.compressed
}
