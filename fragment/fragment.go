// Package fragment holds the unit of work that flows through the pipeline:
// one fetched scanline block, still wrapped in its own small container.
//
// Fragment containers have a fixed geometry (the image width and a fixed
// number of rows), so the Decoder reads them at fixed byte offsets instead of
// walking blocks generically.
package fragment

import "github.com/arloliu/paster/internal/hash"

// Fragment is a raw fragment payload tagged with the sequence number the
// server reported for it.
type Fragment struct {
	// Sequence selects the scanline block the payload decodes into.
	Sequence int
	// Payload is the complete fragment container.
	Payload []byte
	// Digest is the xxHash64 of Payload, used in diagnostics.
	Digest uint64
}

// New creates a Fragment and fingerprints its payload. The payload is not copied.
func New(seq int, payload []byte) Fragment {
	return Fragment{
		Sequence: seq,
		Payload:  payload,
		Digest:   hash.Digest(payload),
	}
}

// Len returns the payload length in bytes.
func (f Fragment) Len() int {
	return len(f.Payload)
}
