// Package texel implements the raster data model shared by every texture
// codec: format descriptors, pixel buffers, per-texel color access, and the
// buffer-to-buffer transform engine.
//
// # Format Descriptors
//
// A Format describes how texels are laid out in memory: the color encoding
// family (Kind), the stored bit depth, the row alignment boundary, the channel
// order, and the palette layout for indexed images. Descriptors are small
// value structs; converting an image produces a new descriptor and a new
// buffer, never an in-place reinterpretation.
//
// # Color Model Dispatch
//
// A Dispatcher binds a Format (plus palette storage for indexed formats) and
// exposes uniform texel accessors: RGBA, Luminance, and raw palette-index
// access. Accessors report ok=false instead of faulting when a texel cannot
// be resolved, so callers can substitute transparent black and continue.
//
// # Transformations
//
// Convert re-encodes a whole image into a destination format. CopyRegion
// blits a rectangle between images, synthesizing transparent black for
// out-of-bounds source texels. Both run on the dispatcher; callers that have
// verified two layouts are byte-identical should copy rows directly instead.
package texel
