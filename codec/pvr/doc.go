// Package pvr implements the PVRT container for PVRTC block-compressed
// textures, including the transcoding between raw texels and compressed
// payloads and the maintenance of per-texture mipmap chains.
//
// # Container Layout
//
// A PVRT stream is little-endian: the magic "PVRT", two 32-byte
// NUL-terminated name fields (texture and mask), a one-byte mipmap count, a
// one-byte alpha flag, 16-bit base dimensions, the 32-bit OpenGL internal
// format enum, and the total byte length of the level records that follow.
// Each level record is a 32-bit payload size followed by that many bytes of
// PVRTC block data, largest level first.
//
// # Level Padding
//
// PVRTC payloads cover at least two blocks in each direction, so every
// level is compressed at dimensions rounded up to the variant's padding
// granularity (8x8 texels at 4bpp, 16x8 at 2bpp). A level therefore carries
// both physical and logical dimensions; the padding texels are transparent
// black and are cropped away on decompression.
//
// # Choosing a Variant
//
// ChooseInternalFormat applies the platform rule: images at least as large
// as 100x100 texels take the 2bpp variants, smaller images take 4bpp, and
// the alpha flag selects between the RGB and RGBA families.
package pvr
