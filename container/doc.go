// Package container assembles and parses complete raster containers.
//
// A container is the signature, one header block, the raster's compressed
// data and a terminator block (see package section for the byte layout).
// The raster handed to the Encoder is already in scanline form: every row is
// one filter-tag byte followed by width × channels sample bytes, so its size
// is exactly Descriptor.RasterSize().
//
// # Encoding
//
//	enc, _ := container.NewEncoder(container.WithLevel(compress.DefaultLevel))
//	data, err := enc.Encode(desc, raster)
//
// Encoding is deterministic: the same descriptor, raster and level always
// produce the same bytes.
//
// # Parsing
//
//	c, err := container.Parse(data)
//	raster, err := c.Raster()
//
// Parse verifies every block checksum. It accepts several data blocks (their
// contents are concatenated) and skips block types it does not know.
package container
