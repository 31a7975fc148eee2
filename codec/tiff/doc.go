// Package tiff reads and writes baseline TIFF images.
//
// # Supported Matrix
//
// The codec carries its own directory parser and strip reader for the
// layouts it maps exactly onto texel formats: 4- and 8-bit grayscale with an
// optional alpha sample (both black-is-zero and white-is-zero), 8-bit RGB
// with an optional alpha sample, and 4- and 8-bit palette images. Strips may
// be stored raw or compressed with LZW, Deflate, or PackBits. Scanlines that
// already match the destination layout byte for byte are copied verbatim;
// everything else goes texel by texel through the dispatcher.
//
// Streams outside that matrix (tiles, planar sample organization,
// predictors, other photometric interpretations, depths, or compression
// schemes, and orientations other than top-left) are handed to
// golang.org/x/image/tiff, which resolves any layout to 8-bit RGBA by its
// own rules. Textures decoded that way carry KnownMapping false.
//
// # Wire Conventions
//
// Decoding accepts both byte orders and any strip chunking. Encoding always
// produces little-endian, uncompressed, top-left oriented files with a
// single strip. 4-bit palette indices are read most significant nibble
// first and written least significant nibble first; the asymmetry matches
// what existing consumers of each direction parse.
package tiff
