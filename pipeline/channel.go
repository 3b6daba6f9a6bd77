package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/fragment"
)

// Channel is a fixed-capacity ring of fragments between fetch and decode tasks.
//
// Two counting semaphores track empty and filled slots. A fetch task takes an
// empty-slot permit with Reserve before it starts fetching and either commits
// a fragment or releases the permit. A decode task takes a filled-slot permit
// with Receive and returns the empty-slot permit with Delivery.Done once it
// has finished with the fragment, so at most capacity fragments are queued
// or being decoded at any instant.
type Channel struct {
	capacity int
	empty    *semaphore.Weighted
	filled   *semaphore.Weighted

	mu    sync.Mutex
	slots []fragment.Fragment
	head  int // next slot to read
	tail  int // next slot to write
	count int
	peak  int

	closed   context.Context
	markDone context.CancelFunc
}

// NewChannel creates a channel with the given number of slots.
func NewChannel(capacity int) (*Channel, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: channel capacity %d", errs.ErrInvalidParams, capacity)
	}

	filled := semaphore.NewWeighted(int64(capacity))
	if !filled.TryAcquire(int64(capacity)) {
		return nil, fmt.Errorf("%w: cannot drain filled-slot permits", errs.ErrInvalidParams)
	}

	closed, markDone := context.WithCancel(context.Background())

	return &Channel{
		capacity: capacity,
		empty:    semaphore.NewWeighted(int64(capacity)),
		filled:   filled,
		slots:    make([]fragment.Fragment, capacity),
		closed:   closed,
		markDone: markDone,
	}, nil
}

// Reservation is one empty-slot permit held by a fetch task.
//
// Exactly one of Commit or Release returns the permit's capacity to the
// channel; calling Release after Commit is a no-op, so a deferred Release
// guards every exit path.
type Reservation struct {
	ch      *Channel
	settled atomic.Bool
}

// Reserve blocks until an empty slot is available or ctx is done.
func (c *Channel) Reserve(ctx context.Context) (*Reservation, error) {
	if err := c.empty.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	return &Reservation{ch: c}, nil
}

// Commit writes f into the reserved slot and makes it available to receivers.
func (r *Reservation) Commit(f fragment.Fragment) error {
	if !r.settled.CompareAndSwap(false, true) {
		return errs.ErrReservationSpent
	}

	c := r.ch
	c.mu.Lock()
	c.slots[c.tail] = f
	c.tail = (c.tail + 1) % c.capacity
	c.count++
	c.peak = max(c.peak, c.count)
	c.mu.Unlock()

	c.filled.Release(1)

	return nil
}

// Release returns the empty-slot permit without enqueuing anything.
// It does nothing if the reservation was already committed or released.
func (r *Reservation) Release() {
	if r.settled.CompareAndSwap(false, true) {
		r.ch.empty.Release(1)
	}
}

// Delivery is a fragment taken from the channel. Its slot stays accounted
// as occupied until Done is called.
type Delivery struct {
	Fragment fragment.Fragment

	ch   *Channel
	once sync.Once
}

// Done returns one empty-slot permit to the channel. Only the first call has effect.
func (d *Delivery) Done() {
	d.once.Do(func() {
		d.ch.empty.Release(1)
	})
}

// Receive blocks until a fragment is available and removes it from the ring.
//
// After Close, Receive keeps returning queued fragments and then reports
// ErrChannelClosed.
func (c *Channel) Receive(ctx context.Context) (*Delivery, error) {
	if !c.filled.TryAcquire(1) {
		if err := c.waitFilled(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	f := c.slots[c.head]
	c.slots[c.head] = fragment.Fragment{}
	c.head = (c.head + 1) % c.capacity
	c.count--
	c.mu.Unlock()

	return &Delivery{Fragment: f, ch: c}, nil
}

func (c *Channel) waitFilled(ctx context.Context) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(c.closed, cancel)
	defer stop()

	err := c.filled.Acquire(waitCtx, 1)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	// Closed: fragments committed before Close are still drained.
	if c.filled.TryAcquire(1) {
		return nil
	}

	return errs.ErrChannelClosed
}

// Close marks the end of production. It must be called only after every
// reservation has been committed or released. Close is idempotent.
func (c *Channel) Close() {
	c.markDone()
}

// Capacity returns the number of slots.
func (c *Channel) Capacity() int {
	return c.capacity
}

// Len returns the number of fragments queued and not yet received.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

// Peak returns the highest number of fragments ever queued at once.
func (c *Channel) Peak() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.peak
}
