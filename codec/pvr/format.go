package pvr

import (
	"fmt"

	"github.com/ironsheep/texture-kit/texel"
)

// InternalFormat identifies one PVRTC pixel organization. The numerical
// values are the OpenGL internal format enums of the IMG PVRTC extension,
// suitable for passing straight to glCompressedTexImage2D.
type InternalFormat uint32

const (
	FormatRGB4bpp  InternalFormat = 0x8C00 // GL_COMPRESSED_RGB_PVRTC_4BPPV1_IMG
	FormatRGB2bpp  InternalFormat = 0x8C01 // GL_COMPRESSED_RGB_PVRTC_2BPPV1_IMG
	FormatRGBA4bpp InternalFormat = 0x8C02 // GL_COMPRESSED_RGBA_PVRTC_4BPPV1_IMG
	FormatRGBA2bpp InternalFormat = 0x8C03 // GL_COMPRESSED_RGBA_PVRTC_2BPPV1_IMG
)

// Valid reports whether f is one of the four PVRTC variants.
func (f InternalFormat) Valid() bool {
	return f >= FormatRGB4bpp && f <= FormatRGBA2bpp
}

// Depth returns the bits per texel, or zero for an invalid format.
func (f InternalFormat) Depth() int {
	switch f {
	case FormatRGB4bpp, FormatRGBA4bpp:
		return 4
	case FormatRGB2bpp, FormatRGBA2bpp:
		return 2
	}
	return 0
}

// HasAlpha reports whether f belongs to the RGBA family.
func (f InternalFormat) HasAlpha() bool {
	return f == FormatRGBA4bpp || f == FormatRGBA2bpp
}

// BlockDims returns the padding granularity: compressed levels always cover
// two PVRTC blocks in each direction so endpoint interpolation has
// neighbors to sample.
func (f InternalFormat) BlockDims() (w, h int) {
	switch f.Depth() {
	case 4:
		return 8, 8
	case 2:
		return 16, 8
	}
	return 0, 0
}

// Compression returns the texel compression tag for f.
func (f InternalFormat) Compression() texel.Compression {
	switch f {
	case FormatRGB4bpp:
		return texel.CompressionPVRTC4RGB
	case FormatRGB2bpp:
		return texel.CompressionPVRTC2RGB
	case FormatRGBA4bpp:
		return texel.CompressionPVRTC4RGBA
	case FormatRGBA2bpp:
		return texel.CompressionPVRTC2RGBA
	}
	return texel.CompressionNone
}

func (f InternalFormat) String() string {
	switch f {
	case FormatRGB4bpp:
		return "PVRTC 4bpp RGB"
	case FormatRGB2bpp:
		return "PVRTC 2bpp RGB"
	case FormatRGBA4bpp:
		return "PVRTC 4bpp RGBA"
	case FormatRGBA2bpp:
		return "PVRTC 2bpp RGBA"
	}
	return fmt.Sprintf("InternalFormat(0x%04X)", uint32(f))
}

// FromCompression maps a texel compression tag back to its container
// variant.
func FromCompression(c texel.Compression) (InternalFormat, bool) {
	switch c {
	case texel.CompressionPVRTC4RGB:
		return FormatRGB4bpp, true
	case texel.CompressionPVRTC2RGB:
		return FormatRGB2bpp, true
	case texel.CompressionPVRTC4RGBA:
		return FormatRGBA4bpp, true
	case texel.CompressionPVRTC2RGBA:
		return FormatRGBA2bpp, true
	}
	return 0, false
}

// ChooseInternalFormat picks the variant for a texture of the given base
// dimensions. Images of 100x100 texels or more take the low-rate 2bpp
// variants, smaller images keep 4bpp for quality.
func ChooseInternalFormat(width, height int, hasAlpha bool) InternalFormat {
	big := width*height >= 100*100
	switch {
	case big && hasAlpha:
		return FormatRGBA2bpp
	case big:
		return FormatRGB2bpp
	case hasAlpha:
		return FormatRGBA4bpp
	default:
		return FormatRGB4bpp
	}
}

// padDims rounds logical level dimensions up to f's padding granularity.
func padDims(f InternalFormat, width, height int) (int, int) {
	bw, bh := f.BlockDims()
	if bw == 0 {
		return width, height
	}
	return (width + bw - 1) / bw * bw, (height + bh - 1) / bh * bh
}
