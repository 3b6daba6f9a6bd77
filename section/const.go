package section

// Signature is the fixed 8-byte prefix of every container.
var Signature = [SignatureSize]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// offset and section sizes in the container
const (
	SignatureSize   = 8 // fixed signature size in bytes
	LengthSize      = 4 // block length field size in bytes
	TypeSize        = 4 // block type tag size in bytes
	ChecksumSize    = 4 // block checksum size in bytes
	ChunkOverhead   = LengthSize + TypeSize + ChecksumSize
	ImageHeaderSize = 13 // header block data size in bytes

	// MaxChunkLength is the largest data length a block may declare (2^31-1).
	MaxChunkLength = 1<<31 - 1
)

// Fixed offsets inside a fragment container. A fragment is a single-block
// container, so its header block is always first and its data block always
// second; these positions are protocol constants, not parsed generically.
const (
	HeaderLengthOffset = SignatureSize                                 // 8
	HeaderTypeOffset   = HeaderLengthOffset + LengthSize               // 12
	HeaderWidthOffset  = HeaderTypeOffset + TypeSize                   // 16
	HeaderHeightOffset = HeaderWidthOffset + 4                         // 20
	HeaderEndOffset    = HeaderTypeOffset + TypeSize + ImageHeaderSize // 29
	DataLengthOffset   = HeaderEndOffset + ChecksumSize                // 33
	DataTypeOffset     = DataLengthOffset + LengthSize                 // 37
	DataOffset         = DataTypeOffset + TypeSize                     // 41
	MinFragmentSize    = DataOffset + ChecksumSize + ChunkOverhead     // 57: empty data block plus terminator
)
