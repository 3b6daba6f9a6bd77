// Package errs defines the sentinel errors shared across paster packages.
//
// Callers should compare with errors.Is, since most errors are wrapped with
// additional context before they are returned.
package errs

import "errors"

// Parameter and configuration errors.
var (
	ErrInvalidParams     = errors.New("invalid pipeline parameters")
	ErrInvalidProtocol   = errors.New("invalid protocol configuration")
	ErrInvalidDescriptor = errors.New("invalid container descriptor")
)

// Container format errors.
var (
	ErrInvalidSignature   = errors.New("invalid container signature")
	ErrInvalidHeaderSize  = errors.New("invalid header block size")
	ErrInvalidChunk       = errors.New("invalid container block")
	ErrChecksumMismatch   = errors.New("block checksum mismatch")
	ErrMissingHeaderBlock = errors.New("container has no header block")
	ErrMissingEndBlock    = errors.New("container has no terminator block")
	ErrRasterSize         = errors.New("raster size does not match descriptor")
)

// Compression errors.
var (
	ErrCorruptStream = errors.New("corrupt compressed stream")
	ErrInflateSize   = errors.New("inflated size does not match buffer")
	ErrOutputLimit   = errors.New("decompressed output exceeds limit")
)

// Fragment errors. A rejected fragment is treated like a fatal fetch failure
// for that fragment.
var (
	ErrMalformedFragment  = errors.New("malformed fragment")
	ErrFragmentTooLarge   = errors.New("fragment data length exceeds limit")
	ErrSequenceOutOfRange = errors.New("fragment sequence out of range")
	ErrDuplicateSequence  = errors.New("fragment sequence already written")
)

// Transport errors.
var (
	ErrTransient   = errors.New("transient transport failure")
	ErrFetchFailed = errors.New("fragment fetch failed")
)

// Pipeline errors.
var (
	ErrChannelClosed    = errors.New("fragment channel closed")
	ErrReservationSpent = errors.New("channel reservation already settled")
	ErrIncompleteRaster = errors.New("raster incomplete")
	ErrAlreadySealed    = errors.New("accumulation buffer already sealed")
)
