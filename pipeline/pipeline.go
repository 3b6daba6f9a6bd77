// Package pipeline fetches, decodes and reassembles the fragments of one image.
//
// A run starts P fetch tasks and C decode tasks. Fetch tasks claim fragment
// indices from a Dispenser, reserve a Channel slot, and fetch the fragment;
// decode tasks receive fragments, inflate them and copy each block into the
// Accumulator at the offset given by the fragment's sequence number. Once every
// fetch task has exited the channel is closed, and once every decode task has
// drained it the raster is sealed and encoded into the output container.
//
// A fragment that cannot be fetched from any endpoint, or whose container is
// malformed, is logged and left out; the run then fails with
// errs.ErrIncompleteRaster instead of producing an image with a gap.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/paster/config"
	"github.com/arloliu/paster/container"
	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/fragment"
	"github.com/arloliu/paster/internal/hash"
	"github.com/arloliu/paster/internal/options"
)

// Fetcher retrieves one fragment. attempt counts from 0 and lets the
// implementation pick a different endpoint on each retry.
//
// A returned error is final for that attempt; transient failures are retried
// inside the Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, imageID, index, attempt int) (fragment.Fragment, error)
}

// Pipeline reassembles one image. A Pipeline may be run more than once;
// every run starts from empty state.
type Pipeline struct {
	params  config.Params
	proto   config.Protocol
	fetcher Fetcher
	logger  *slog.Logger
}

// New creates a Pipeline.
//
// Returns:
//   - *Pipeline: Pipeline ready to Run
//   - error: ErrInvalidParams, ErrInvalidProtocol or an option error
func New(params config.Params, fetcher Fetcher, opts ...Option) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if fetcher == nil {
		return nil, fmt.Errorf("%w: nil fetcher", errs.ErrInvalidParams)
	}

	p := &Pipeline{
		params:  params,
		proto:   config.DefaultProtocol(),
		fetcher: fetcher,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if err := options.Apply(p, opts...); err != nil {
		return nil, err
	}

	return p, nil
}

// run holds the state of a single Run call.
type run struct {
	*Pipeline

	dispenser   *Dispenser
	channel     *Channel
	accumulator *Accumulator
	decoder     *fragment.Decoder

	retries   atomic.Int64
	abandoned atomic.Int64
	rejected  atomic.Int64
}

// Run fetches and decodes every fragment and assembles the output container.
//
// The returned Report is non-nil whenever the run got as far as starting its
// tasks, including when the raster turned out incomplete.
//
// Returns:
//   - *Report: Run statistics and, on success, the container bytes
//   - error: ErrIncompleteRaster if any fragment is missing, the context error
//     if ctx ends first, or a setup error
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	r, err := p.newRun()
	if err != nil {
		return nil, err
	}

	p.logger.Info("pipeline starting",
		"image", p.params.ImageID,
		"fragments", r.dispenser.Total(),
		"capacity", p.params.Capacity,
		"fetchers", p.params.Fetchers,
		"decoders", p.params.Decoders,
		"decode_delay", p.params.DecodeDelay,
	)

	g, gctx := errgroup.WithContext(ctx)

	var fetchers sync.WaitGroup
	for id := range p.params.Fetchers {
		fetchers.Add(1)
		g.Go(func() error {
			defer fetchers.Done()
			return r.fetchLoop(gctx, id)
		})
	}

	g.Go(func() error {
		fetchers.Wait()
		r.channel.Close()

		return nil
	})

	for id := range p.params.Decoders {
		g.Go(func() error {
			return r.decodeLoop(gctx, id)
		})
	}

	taskErr := g.Wait()
	report := r.report(start)

	if taskErr != nil {
		return report, fmt.Errorf("pipeline aborted: %w", taskErr)
	}

	raster, err := r.accumulator.Seal()
	if err != nil {
		p.logger.Error("raster incomplete",
			"written", report.Written,
			"abandoned", report.Abandoned,
			"rejected", report.Rejected,
			"missing", r.accumulator.Missing(),
		)

		return report, err
	}

	enc, err := container.NewEncoder(container.WithLevel(p.proto.Level))
	if err != nil {
		return report, err
	}

	out, err := enc.Encode(p.proto.Image(), raster)
	if err != nil {
		return report, fmt.Errorf("assemble container: %w", err)
	}

	report.Container = out
	report.Digest = hash.Digest(out)
	report.Compression = enc.Stats()
	report.Elapsed = time.Since(start)

	p.logger.Info("pipeline finished", "report", report)

	return report, nil
}

func (p *Pipeline) newRun() (*run, error) {
	ch, err := NewChannel(p.params.Capacity)
	if err != nil {
		return nil, err
	}

	dec, err := fragment.NewDecoder(p.proto.Fragment(), p.proto.MaxFragmentSize)
	if err != nil {
		return nil, err
	}

	total := p.proto.TotalFragments()

	return &run{
		Pipeline:    p,
		dispenser:   NewDispenser(total),
		channel:     ch,
		accumulator: NewAccumulator(total, dec.BlockStride()),
		decoder:     dec,
	}, nil
}

func (r *run) fetchLoop(ctx context.Context, id int) error {
	for {
		index, ok := r.dispenser.ClaimFetch()
		if !ok {
			r.logger.Debug("fetch task done", "task", id)
			return nil
		}

		if err := r.fetchOne(ctx, index); err != nil {
			return err
		}
	}
}

// fetchOne fetches fragment index into a reserved slot. Every exit path
// either commits a fragment or releases the reservation.
func (r *run) fetchOne(ctx context.Context, index int) error {
	res, err := r.channel.Reserve(ctx)
	if err != nil {
		return err
	}
	defer res.Release()

	attempts := r.proto.FetchAttempts
	for attempt := range attempts {
		frag, err := r.fetcher.Fetch(ctx, r.params.ImageID, index, attempt)
		if err == nil {
			r.logger.Debug("fragment fetched",
				"index", index,
				"sequence", frag.Sequence,
				"bytes", frag.Len(),
				"digest", frag.Digest,
				"attempt", attempt,
			)

			return res.Commit(frag)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if attempt+1 < attempts {
			r.retries.Add(1)
			r.logger.Warn("fragment fetch failed, retrying",
				"index", index,
				"attempt", attempt+1,
				"max_attempts", attempts,
				"error", err,
			)

			continue
		}

		r.abandoned.Add(1)
		r.logger.Warn("fragment abandoned",
			"index", index,
			"attempts", attempts,
			"error", err,
		)
	}

	return nil
}

func (r *run) decodeLoop(ctx context.Context, id int) error {
	// Each decode task owns one block-sized scratch buffer.
	scratch := make([]byte, r.decoder.BlockStride())

	for {
		if _, ok := r.dispenser.ClaimDecode(); !ok {
			r.logger.Debug("decode task done", "task", id)
			return nil
		}

		d, err := r.channel.Receive(ctx)
		if errors.Is(err, errs.ErrChannelClosed) {
			r.logger.Debug("decode task done, channel drained", "task", id)
			return nil
		}
		if err != nil {
			return err
		}

		if err := r.decodeOne(ctx, d, scratch); err != nil {
			return err
		}
	}
}

// decodeOne decodes one delivery and returns its slot permit.
func (r *run) decodeOne(ctx context.Context, d *Delivery, scratch []byte) error {
	defer d.Done()

	if err := r.sleep(ctx); err != nil {
		return err
	}

	frag := d.Fragment

	n, err := r.decoder.Decode(frag, scratch)
	if err != nil {
		r.rejected.Add(1)
		r.logger.Warn("fragment rejected", "sequence", frag.Sequence, "digest", frag.Digest, "error", err)

		return nil
	}

	err = r.accumulator.Write(frag.Sequence, scratch, n)
	switch {
	case err == nil:
		r.logger.Debug("fragment decoded", "sequence", frag.Sequence, "compressed_bytes", n)
		return nil
	case errors.Is(err, errs.ErrDuplicateSequence), errors.Is(err, errs.ErrSequenceOutOfRange):
		r.rejected.Add(1)
		r.logger.Warn("fragment rejected", "sequence", frag.Sequence, "digest", frag.Digest, "error", err)

		return nil
	default:
		return err
	}
}

// sleep applies the configured decode delay.
func (r *run) sleep(ctx context.Context) error {
	if r.params.DecodeDelay <= 0 {
		return nil
	}

	timer := time.NewTimer(r.params.DecodeDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *run) report(start time.Time) *Report {
	return &Report{
		Fragments:       r.dispenser.Total(),
		Written:         r.accumulator.Written(),
		Abandoned:       int(r.abandoned.Load()),
		Rejected:        int(r.rejected.Load()),
		Retries:         int(r.retries.Load()),
		CompressedBytes: r.accumulator.CompressedBytes(),
		PeakOccupancy:   r.channel.Peak(),
		Elapsed:         time.Since(start),
	}
}
