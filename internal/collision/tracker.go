package collision

import (
	"fmt"

	"github.com/arloliu/paster/errs"
)

// Tracker records which fragment sequences have been written and detects
// a second write of the same sequence.
//
// Tracker is not safe for concurrent use; the owner serializes access.
type Tracker struct {
	written    []bool
	count      int
	duplicates int
}

// NewTracker creates a tracker for sequences in [0, total).
func NewTracker(total int) *Tracker {
	return &Tracker{written: make([]bool, total)}
}

// Track marks seq as written.
//
// Returns ErrSequenceOutOfRange if seq is outside [0, total) and
// ErrDuplicateSequence if seq was already written. Neither case changes
// the tracked set.
func (t *Tracker) Track(seq int) error {
	if seq < 0 || seq >= len(t.written) {
		return fmt.Errorf("%w: %d not in [0, %d)", errs.ErrSequenceOutOfRange, seq, len(t.written))
	}

	if t.written[seq] {
		t.duplicates++
		return fmt.Errorf("%w: %d", errs.ErrDuplicateSequence, seq)
	}

	t.written[seq] = true
	t.count++

	return nil
}

// Count returns the number of distinct sequences written.
func (t *Tracker) Count() int {
	return t.count
}

// Total returns the number of sequences the tracker expects.
func (t *Tracker) Total() int {
	return len(t.written)
}

// Duplicates returns how many writes were refused as duplicates.
func (t *Tracker) Duplicates() int {
	return t.duplicates
}

// Complete reports whether every sequence in [0, total) was written.
func (t *Tracker) Complete() bool {
	return t.count == len(t.written)
}

// Missing returns the sequences not yet written, in ascending order.
func (t *Tracker) Missing() []int {
	missing := make([]int, 0, len(t.written)-t.count)
	for seq, ok := range t.written {
		if !ok {
			missing = append(missing, seq)
		}
	}

	return missing
}
