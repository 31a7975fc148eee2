package texel

import (
	"errors"
	"fmt"
)

// Kind identifies the color encoding family of a raster format. For indexed
// formats the Kind describes the palette entries rather than the texels.
type Kind uint8

const (
	// KindInvalid is the zero value and never describes a real layout.
	KindInvalid Kind = iota
	// KindRGBA8888 stores 8 bits per channel with alpha.
	KindRGBA8888
	// KindRGB888 stores 8 bits per channel without alpha. At depth 32 the
	// fourth byte is an ignored pad written as 0xFF.
	KindRGB888
	// KindRGB565 packs red, green, and blue into 16 bits (5-6-5).
	KindRGB565
	// KindARGB1555 packs a 1-bit alpha and 5 bits per color channel into 16
	// bits.
	KindARGB1555
	// KindRGBA4444 packs 4 bits per channel into 16 bits.
	KindRGBA4444
	// KindLum stores a single luminance channel.
	KindLum
	// KindLumAlpha stores luminance plus alpha. At depth 8 the two channels
	// share a byte (luminance in the high nibble); at depth 16 each channel
	// takes a byte, luminance first.
	KindLumAlpha
)

// ColorModel groups kinds by the channel set they expose.
type ColorModel uint8

const (
	ModelNone ColorModel = iota
	ModelRGBA
	ModelLuminance
)

// Model returns the color model of the kind.
func (k Kind) Model() ColorModel {
	switch k {
	case KindRGBA8888, KindRGB888, KindRGB565, KindARGB1555, KindRGBA4444:
		return ModelRGBA
	case KindLum, KindLumAlpha:
		return ModelLuminance
	}
	return ModelNone
}

// HasAlpha reports whether the kind carries an alpha channel.
func (k Kind) HasAlpha() bool {
	switch k {
	case KindRGBA8888, KindARGB1555, KindRGBA4444, KindLumAlpha:
		return true
	}
	return false
}

// ColorDepth returns the canonical bits per pixel of the kind, which is also
// the storage width of palette entries encoded with it.
func (k Kind) ColorDepth() int {
	switch k {
	case KindRGBA8888:
		return 32
	case KindRGB888:
		return 24
	case KindRGB565, KindARGB1555, KindRGBA4444:
		return 16
	case KindLum:
		return 8
	case KindLumAlpha:
		return 16
	}
	return 0
}

// String returns a short name for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindRGBA8888:
		return "rgba8888"
	case KindRGB888:
		return "rgb888"
	case KindRGB565:
		return "rgb565"
	case KindARGB1555:
		return "argb1555"
	case KindRGBA4444:
		return "rgba4444"
	case KindLum:
		return "lum"
	case KindLumAlpha:
		return "lum_alpha"
	}
	return "invalid"
}

// Order is the channel permutation of byte-per-channel kinds. Packed 16-bit
// kinds and luminance kinds have a fixed layout and ignore it.
type Order uint8

const (
	// OrderRGBA stores channels as red, green, blue, alpha. Three-channel
	// kinds use the same permutation without the alpha byte.
	OrderRGBA Order = iota
	// OrderBGRA stores blue first.
	OrderBGRA
)

// String returns a short name for diagnostics.
func (o Order) String() string {
	if o == OrderBGRA {
		return "bgra"
	}
	return "rgba"
}

// PaletteType selects the index layout of indexed formats.
type PaletteType uint8

const (
	// PaletteNone marks a format without a palette.
	PaletteNone PaletteType = iota
	// Palette4 packs two 4-bit indices per byte, first texel in the high
	// nibble.
	Palette4
	// Palette4LSB packs two 4-bit indices per byte, first texel in the low
	// nibble.
	Palette4LSB
	// Palette8 stores one 8-bit index per byte.
	Palette8
)

// IndexDepth returns the bits per stored palette index.
func (p PaletteType) IndexDepth() int {
	switch p {
	case Palette4, Palette4LSB:
		return 4
	case Palette8:
		return 8
	}
	return 0
}

// String returns a short name for diagnostics.
func (p PaletteType) String() string {
	switch p {
	case Palette4:
		return "pal4"
	case Palette4LSB:
		return "pal4lsb"
	case Palette8:
		return "pal8"
	}
	return "none"
}

// Compression tags an image as holding raw texels or an opaque
// block-compressed payload. Compressed images cannot be dispatched or
// transformed; codecs must expand them first.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionPVRTC2RGB
	CompressionPVRTC2RGBA
	CompressionPVRTC4RGB
	CompressionPVRTC4RGBA
)

// Compressed reports whether the tag names a block-compressed payload.
func (c Compression) Compressed() bool { return c != CompressionNone }

// String returns a short name for diagnostics.
func (c Compression) String() string {
	switch c {
	case CompressionPVRTC2RGB:
		return "pvrtc 2bpp rgb"
	case CompressionPVRTC2RGBA:
		return "pvrtc 2bpp rgba"
	case CompressionPVRTC4RGB:
		return "pvrtc 4bpp rgb"
	case CompressionPVRTC4RGBA:
		return "pvrtc 4bpp rgba"
	}
	return "none"
}

// Format describes the memory layout of raster data.
//
// For indexed formats (Palette != PaletteNone) the Depth is the index depth
// (4 or 8) and must match the palette type, while Kind and Order describe the
// palette entries, stored at the kind's canonical color depth.
type Format struct {
	Kind     Kind
	Depth    int
	RowAlign int
	Order    Order
	Palette  PaletteType
}

// CanonicalRGBA is the interchange layout used when bridging to the standard
// image ecosystem and when expanding compressed texels: 8 bits per channel
// RGBA with rows aligned to 4 bytes.
var CanonicalRGBA = Format{Kind: KindRGBA8888, Depth: 32, RowAlign: 4, Order: OrderRGBA}

// ErrBadFormat reports an invalid format descriptor.
var ErrBadFormat = errors.New("texel: invalid format descriptor")

// Validate checks that the descriptor names a layout the dispatcher supports.
func (f Format) Validate() error {
	if f.RowAlign <= 0 {
		return fmt.Errorf("%w: row alignment %d", ErrBadFormat, f.RowAlign)
	}
	if f.Kind.Model() == ModelNone {
		return fmt.Errorf("%w: kind %v", ErrBadFormat, f.Kind)
	}
	if f.Palette != PaletteNone {
		if f.Depth != f.Palette.IndexDepth() {
			return fmt.Errorf("%w: depth %d does not match palette %v", ErrBadFormat, f.Depth, f.Palette)
		}
		if f.Kind.Model() != ModelRGBA {
			return fmt.Errorf("%w: palette entries must use a color kind, got %v", ErrBadFormat, f.Kind)
		}
		return nil
	}
	ok := false
	switch f.Kind {
	case KindRGBA8888:
		ok = f.Depth == 32
	case KindRGB888:
		ok = f.Depth == 24 || f.Depth == 32
	case KindRGB565, KindARGB1555, KindRGBA4444:
		ok = f.Depth == 16
	case KindLum:
		ok = f.Depth == 4 || f.Depth == 8
	case KindLumAlpha:
		ok = f.Depth == 8 || f.Depth == 16
	}
	if !ok {
		return fmt.Errorf("%w: depth %d invalid for %v", ErrBadFormat, f.Depth, f.Kind)
	}
	return nil
}

// Indexed reports whether texels are palette indices.
func (f Format) Indexed() bool { return f.Palette != PaletteNone }

// RowSize returns the byte size of one row at the given width.
func (f Format) RowSize(width int) int {
	return RowSize(width, f.Depth, f.RowAlign)
}

// PaletteColorFormat returns the layout of the palette entries of an indexed
// format: the same kind and order at the kind's canonical depth, without row
// padding. The zero Format is returned for non-indexed formats.
func (f Format) PaletteColorFormat() Format {
	if !f.Indexed() {
		return Format{}
	}
	return Format{Kind: f.Kind, Depth: f.Kind.ColorDepth(), RowAlign: 1, Order: f.Order}
}

// String renders the descriptor for diagnostics, for example
// "rgb888/24" or "pal8[rgba8888]".
func (f Format) String() string {
	if f.Indexed() {
		return fmt.Sprintf("%v[%v]", f.Palette, f.Kind)
	}
	if f.Order == OrderBGRA {
		return fmt.Sprintf("%v/%d bgra", f.Kind, f.Depth)
	}
	return fmt.Sprintf("%v/%d", f.Kind, f.Depth)
}

// RowSize returns the byte size of one pixel row: width texels at depth bits
// each, rounded up to whole bytes and then to the alignment boundary.
// Non-positive inputs yield zero.
func RowSize(width, depth, align int) int {
	if width <= 0 || depth <= 0 || align <= 0 {
		return 0
	}
	bytes := (width*depth + 7) / 8
	return (bytes + align - 1) / align * align
}

// DataSize returns the byte size of a texel buffer of height rows.
func DataSize(rowSize, height int) int {
	if rowSize <= 0 || height <= 0 {
		return 0
	}
	return rowSize * height
}

// PaletteEntryCount returns the full table size of a palette type: 16 for the
// 4-bit layouts, 256 for 8-bit, zero for PaletteNone.
func PaletteEntryCount(p PaletteType) int {
	switch p {
	case Palette4, Palette4LSB:
		return 16
	case Palette8:
		return 256
	}
	return 0
}

// PaletteDataSize returns the byte size of a palette of count entries encoded
// at colorDepth bits each.
func PaletteDataSize(count, colorDepth int) int {
	if count <= 0 || colorDepth <= 0 {
		return 0
	}
	return (count*colorDepth + 7) / 8
}

// NeedsConversion reports whether texels laid out as src must be re-encoded
// texel by texel to be read as dst. It is exact field-wise equality: a false
// result guarantees the two layouts are byte-identical, so identity never
// converts. Callers comparing buffers of differing row alignment should
// verify row sizes and normalize the alignment field before asking.
func NeedsConversion(src, dst Format) bool {
	return src != dst
}
