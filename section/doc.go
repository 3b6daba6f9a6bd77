// Package section defines the low-level binary structures and constants of the
// raster container format.
//
// A container is a fixed signature followed by a sequence of self-describing
// blocks. This package handles the byte-level layout of those blocks and of
// the header block; it does not know about rasters, compression or fragments.
//
// # Container Structure
//
//	┌─────────────────────────────────────────────────────────┐
//	│ Signature (8 bytes): 89 50 4E 47 0D 0A 1A 0A            │
//	├─────────────────────────────────────────────────────────┤
//	│ Header block "IHDR" (13 data bytes)                     │
//	├─────────────────────────────────────────────────────────┤
//	│ Data block "IDAT" (zlib stream of filtered scanlines)   │
//	├─────────────────────────────────────────────────────────┤
//	│ Terminator block "IEND" (0 data bytes)                  │
//	└─────────────────────────────────────────────────────────┘
//
// # Block Format
//
//	Bytes    | Field    | Type    | Description
//	---------|----------|---------|-----------------------------------
//	0-3      | Length   | uint32  | Data length, big-endian
//	4-7      | Type     | [4]byte | ASCII type tag
//	8-(8+n)  | Data     | []byte  | Length bytes of data
//	last 4   | Checksum | uint32  | CRC-32 over Type ++ Data, big-endian
//
// # Header Format
//
//	Bytes  | Field       | Type   | Description
//	-------|-------------|--------|----------------------------------
//	0-3    | Width       | uint32 | Pixels per row
//	4-7    | Height      | uint32 | Rows
//	8      | BitDepth    | uint8  | Bits per sample (8)
//	9      | ColorType   | uint8  | 6 = RGBA
//	10     | Compression | uint8  | 0
//	11     | Filter      | uint8  | 0
//	12     | Interlace   | uint8  | 0
//
// # Fragment Offsets
//
// A fragment is a complete single-data-block container, so the fields the
// decoder needs sit at fixed positions:
//
//	16  header width
//	20  header height
//	33  data block length
//	37  data block type tag
//	41  first compressed byte
//
// # Thread Safety
//
// All types in this package are value types and are safe for concurrent use.
package section
