package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/arloliu/paster/compress"
)

// Report summarizes one run.
type Report struct {
	// Fragments is the number of fragments the image consists of.
	Fragments int
	// Written is the number of distinct fragments copied into the raster.
	Written int
	// Abandoned counts fragments that failed on every fetch attempt.
	Abandoned int
	// Rejected counts fragments refused by the decoder or the accumulator.
	Rejected int
	// Retries counts fetch attempts after the first.
	Retries int
	// CompressedBytes is the sum of the fragments' compressed data lengths.
	CompressedBytes int64
	// PeakOccupancy is the most fragments ever queued in the channel at once.
	PeakOccupancy int
	// Container holds the assembled output; nil unless the run succeeded.
	Container []byte
	// Digest is the xxHash64 of Container.
	Digest uint64
	// Compression describes deflating the assembled raster.
	Compression compress.CompressionStats
	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// Complete reports whether every fragment was written.
func (r *Report) Complete() bool {
	return r.Written == r.Fragments
}

// LogValue implements slog.LogValuer.
func (r *Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("fragments", r.Fragments),
		slog.Int("written", r.Written),
		slog.Int("abandoned", r.Abandoned),
		slog.Int("rejected", r.Rejected),
		slog.Int("retries", r.Retries),
		slog.Int64("compressed_bytes", r.CompressedBytes),
		slog.Int("peak_occupancy", r.PeakOccupancy),
		slog.Int("container_bytes", len(r.Container)),
		slog.String("digest", fmt.Sprintf("%016x", r.Digest)),
		slog.Float64("space_savings_pct", r.Compression.SpaceSavings()),
		slog.Duration("elapsed", r.Elapsed),
	)
}
