package pipeline

import "sync/atomic"

// Dispenser hands out fragment indices to fetch and decode tasks.
//
// The fetch and decode counters are independent. Each claim returns the
// pre-increment value; claims at or past the total report done. Racing
// callers may push a counter past the total, which is harmless because only
// values below the total are ever returned as indices.
type Dispenser struct {
	total    int64
	claimed  atomic.Int64
	consumed atomic.Int64
}

// NewDispenser creates a dispenser for indices in [0, total).
func NewDispenser(total int) *Dispenser {
	return &Dispenser{total: int64(total)}
}

// ClaimFetch claims the next fragment index to fetch.
// It returns false once every index has been claimed.
func (d *Dispenser) ClaimFetch() (int, bool) {
	return d.claim(&d.claimed)
}

// ClaimDecode claims the right to receive one more fragment.
// It returns false once total decode claims have been made.
func (d *Dispenser) ClaimDecode() (int, bool) {
	return d.claim(&d.consumed)
}

func (d *Dispenser) claim(counter *atomic.Int64) (int, bool) {
	v := counter.Add(1) - 1
	if v >= d.total {
		return 0, false
	}

	return int(v), true
}

// Total returns the number of indices the dispenser hands out.
func (d *Dispenser) Total() int {
	return int(d.total)
}

// Claimed returns how many fetch claims succeeded.
func (d *Dispenser) Claimed() int {
	return int(min(d.claimed.Load(), d.total))
}

// Consumed returns how many decode claims succeeded.
func (d *Dispenser) Consumed() int {
	return int(min(d.consumed.Load(), d.total))
}
