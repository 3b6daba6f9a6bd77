package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/paster/compress"
	"github.com/arloliu/paster/container"
	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
)

// Protocol defaults.
const (
	DefaultWidth           = 400
	DefaultHeight          = 300
	DefaultRowsPerFragment = 6
	DefaultBitDepth        = 8
	DefaultColorType       = format.ColorRGBA
	DefaultMaxFragmentSize = 10000
	DefaultSequenceHeader  = "X-Ece252-Fragment"
	DefaultOutput          = "all.png"
	DefaultFetchAttempts   = 3
	DefaultResolveRetries  = 0
	DefaultResolveBackoff  = 100 * time.Millisecond
	DefaultUserAgent       = "paster/1.0"
)

// DefaultEndpoints are the fragment server URLs, selected round-robin by fragment index.
var DefaultEndpoints = []string{
	"http://ece252-1.uwaterloo.ca:2530/image",
	"http://ece252-2.uwaterloo.ca:2530/image",
	"http://ece252-3.uwaterloo.ca:2530/image",
}

// Protocol holds the constants shared with the fragment servers.
type Protocol struct {
	Width           int              `yaml:"width"`
	Height          int              `yaml:"height"`
	RowsPerFragment int              `yaml:"rows_per_fragment"`
	BitDepth        uint8            `yaml:"bit_depth"`
	ColorType       format.ColorType `yaml:"color_type"`
	// MaxFragmentSize bounds both the fetched body and the declared data length.
	MaxFragmentSize int      `yaml:"max_fragment_size"`
	Endpoints       []string `yaml:"endpoints"`
	SequenceHeader  string   `yaml:"sequence_header"`
	UserAgent       string   `yaml:"user_agent"`
	Output          string   `yaml:"output"`
	// Level is the deflate level of the assembled container, -1 for the default.
	Level int `yaml:"level"`
	// FetchAttempts is how many endpoints a fragment is tried against before it is abandoned.
	FetchAttempts int `yaml:"fetch_attempts"`
	// ResolveRetries bounds retries on host resolution failure; 0 retries until the context ends.
	ResolveRetries int           `yaml:"resolve_retries"`
	ResolveBackoff time.Duration `yaml:"resolve_backoff"`
}

// DefaultProtocol returns the protocol used by the course fragment servers.
func DefaultProtocol() Protocol {
	return Protocol{
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		RowsPerFragment: DefaultRowsPerFragment,
		BitDepth:        DefaultBitDepth,
		ColorType:       DefaultColorType,
		MaxFragmentSize: DefaultMaxFragmentSize,
		Endpoints:       append([]string(nil), DefaultEndpoints...),
		SequenceHeader:  DefaultSequenceHeader,
		UserAgent:       DefaultUserAgent,
		Output:          DefaultOutput,
		Level:           compress.DefaultLevel,
		FetchAttempts:   DefaultFetchAttempts,
		ResolveRetries:  DefaultResolveRetries,
		ResolveBackoff:  DefaultResolveBackoff,
	}
}

// LoadProtocol reads a YAML protocol file on top of DefaultProtocol and validates the result.
func LoadProtocol(path string) (Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Protocol{}, err
	}

	return ParseProtocol(data)
}

// ParseProtocol decodes YAML protocol data on top of DefaultProtocol and validates the result.
func ParseProtocol(data []byte) (Protocol, error) {
	p := DefaultProtocol()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Protocol{}, fmt.Errorf("%w: %w", errs.ErrInvalidProtocol, err)
	}

	if err := p.Validate(); err != nil {
		return Protocol{}, err
	}

	return p, nil
}

// Validate checks that the protocol describes a consistent fragment layout.
func (p Protocol) Validate() error {
	if err := p.Image().Validate(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidProtocol, err)
	}

	switch {
	case p.RowsPerFragment < 1:
		return fmt.Errorf("%w: rows_per_fragment must be positive, got %d", errs.ErrInvalidProtocol, p.RowsPerFragment)
	case p.Height%p.RowsPerFragment != 0:
		return fmt.Errorf("%w: height %d is not a multiple of rows_per_fragment %d",
			errs.ErrInvalidProtocol, p.Height, p.RowsPerFragment)
	case p.MaxFragmentSize < 1:
		return fmt.Errorf("%w: max_fragment_size must be positive, got %d", errs.ErrInvalidProtocol, p.MaxFragmentSize)
	case len(p.Endpoints) == 0:
		return fmt.Errorf("%w: no endpoints", errs.ErrInvalidProtocol)
	case p.SequenceHeader == "":
		return fmt.Errorf("%w: empty sequence_header", errs.ErrInvalidProtocol)
	case p.Output == "":
		return fmt.Errorf("%w: empty output", errs.ErrInvalidProtocol)
	case p.Level < compress.DefaultLevel || p.Level > compress.BestCompression:
		return fmt.Errorf("%w: level %d out of range", errs.ErrInvalidProtocol, p.Level)
	case p.FetchAttempts < 1:
		return fmt.Errorf("%w: fetch_attempts must be positive, got %d", errs.ErrInvalidProtocol, p.FetchAttempts)
	case p.ResolveRetries < 0 || p.ResolveBackoff < 0:
		return fmt.Errorf("%w: negative resolve retry settings", errs.ErrInvalidProtocol)
	}

	return nil
}

// TotalFragments returns the number of fragments an image is split into.
func (p Protocol) TotalFragments() int {
	if p.RowsPerFragment < 1 {
		return 0
	}

	return p.Height / p.RowsPerFragment
}

// Image returns the descriptor of the assembled image.
func (p Protocol) Image() container.Descriptor {
	return container.Descriptor{
		Width:     p.Width,
		Height:    p.Height,
		BitDepth:  p.BitDepth,
		ColorType: p.ColorType,
	}
}

// Fragment returns the descriptor every fragment container must declare.
func (p Protocol) Fragment() container.Descriptor {
	return p.Image().WithHeight(p.RowsPerFragment)
}
