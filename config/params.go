// Package config holds the run parameters and protocol constants of paster.
//
// Params carries the five positional values that shape one run (channel
// capacity, fetcher and decoder counts, decode delay, image id). Protocol
// carries the values the fragment servers impose (image geometry, fragment
// size ceiling, endpoints, sequence header). Protocol has built-in defaults
// and can be overridden from a YAML file; keys missing from the file keep
// their defaults.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/arloliu/paster/errs"
)

// ParamCount is the number of positional values a run takes.
const ParamCount = 5

// Params are the per-run pipeline parameters.
type Params struct {
	// Capacity is the number of fragment channel slots (B).
	Capacity int
	// Fetchers is the number of concurrent fetch tasks (P).
	Fetchers int
	// Decoders is the number of concurrent decode tasks (C).
	Decoders int
	// DecodeDelay is slept by a decode task before each decode (X).
	DecodeDelay time.Duration
	// ImageID selects the image on the fragment servers (N).
	ImageID int
}

// ParseParams parses the positional values B P C X N. X is in milliseconds.
//
// Returns ErrInvalidParams when the count is wrong, a value is not an
// integer, or a value is out of range.
func ParseParams(args []string) (Params, error) {
	if len(args) != ParamCount {
		return Params{}, fmt.Errorf("%w: expected %d values (B P C X N), got %d", errs.ErrInvalidParams, ParamCount, len(args))
	}

	names := [ParamCount]string{"B", "P", "C", "X", "N"}
	var values [ParamCount]int

	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return Params{}, fmt.Errorf("%w: %s=%q is not an integer", errs.ErrInvalidParams, names[i], arg)
		}
		values[i] = v
	}

	p := Params{
		Capacity:    values[0],
		Fetchers:    values[1],
		Decoders:    values[2],
		DecodeDelay: time.Duration(values[3]) * time.Millisecond,
		ImageID:     values[4],
	}

	if err := p.Validate(); err != nil {
		return Params{}, err
	}

	return p, nil
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.Capacity < 1:
		return fmt.Errorf("%w: B must be at least 1, got %d", errs.ErrInvalidParams, p.Capacity)
	case p.Fetchers < 1:
		return fmt.Errorf("%w: P must be at least 1, got %d", errs.ErrInvalidParams, p.Fetchers)
	case p.Decoders < 1:
		return fmt.Errorf("%w: C must be at least 1, got %d", errs.ErrInvalidParams, p.Decoders)
	case p.DecodeDelay < 0:
		return fmt.Errorf("%w: X must not be negative, got %s", errs.ErrInvalidParams, p.DecodeDelay)
	case p.ImageID < 0:
		return fmt.Errorf("%w: N must not be negative, got %d", errs.ErrInvalidParams, p.ImageID)
	}

	return nil
}
