package texel

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Convert re-encodes src into the dst layout and returns a new image. The
// source is never modified.
//
// Identical layouts are copied verbatim. Between two indexed formats the
// palette table is re-encoded entry by entry and the indices are copied
// numerically (widened between 4 and 8 bit), never remapped; narrowing a
// table of more than 16 entries into a 4-bit layout fails. Converting a
// full-color image into an indexed layout needs a destination palette and
// lives in ConvertToPalette.
func Convert(src *Image, dst Format) (*Image, error) {
	if src == nil || src.Data == nil {
		return nil, ErrNoData
	}
	if src.Compression.Compressed() {
		return nil, ErrCompressed
	}
	out, err := NewImage(dst, src.Width, src.Height)
	if err != nil {
		return nil, err
	}
	out.HasAlpha = src.HasAlpha && dst.Kind.HasAlpha()

	if src.Format == dst {
		copy(out.Data, src.Data)
		copy(out.Palette, src.Palette)
		out.PaletteLen = src.PaletteLen
		return out, nil
	}

	switch {
	case src.Format.Indexed() && dst.Indexed():
		if src.PaletteLen > PaletteEntryCount(dst.Palette) {
			return nil, fmt.Errorf("%w: %d entries into %v", ErrPaletteTooLarge, src.PaletteLen, dst.Palette)
		}
		if err := convertPalette(src, out); err != nil {
			return nil, err
		}
		copyIndices(src, out)
	case dst.Indexed():
		return nil, ErrNeedPalette
	default:
		copyTexels(src, out)
	}
	return out, nil
}

// convertPalette re-encodes the source palette entries into the destination
// palette color layout.
func convertPalette(src, dst *Image) error {
	sd := src.Dispatcher()
	dd := dst.Dispatcher()
	for n := 0; n < src.PaletteLen; n++ {
		r, g, b, a, ok := sd.PaletteColor(n)
		if !ok {
			r, g, b, a = 0, 0, 0, 0
		}
		dd.SetPaletteColor(n, r, g, b, a)
	}
	dst.PaletteLen = src.PaletteLen
	return nil
}

// copyIndices moves palette indices texel by texel between two indexed
// buffers.
func copyIndices(src, dst *Image) {
	sd := src.Dispatcher()
	dd := dst.Dispatcher()
	for y := 0; y < src.Height; y++ {
		srow, drow := src.Row(y), dst.Row(y)
		for x := 0; x < src.Width; x++ {
			pi, ok := sd.PaletteIndex(srow, x)
			if !ok {
				pi = 0
			}
			dd.SetPaletteIndex(drow, x, pi)
		}
	}
}

// copyTexels moves color values texel by texel, resolving palettes on the
// source side and bridging color models through the dispatcher.
func copyTexels(src, dst *Image) {
	sd := src.Dispatcher()
	dd := dst.Dispatcher()
	lum := dst.Format.Kind.Model() == ModelLuminance && src.Format.Kind.Model() == ModelLuminance && !src.Format.Indexed()
	for y := 0; y < src.Height; y++ {
		srow, drow := src.Row(y), dst.Row(y)
		for x := 0; x < src.Width; x++ {
			if lum {
				l, a, ok := sd.Luminance(srow, x)
				if !ok {
					l, a = 0, 0
				}
				dd.SetLuminance(drow, x, l, a)
				continue
			}
			r, g, b, a, ok := sd.RGBA(srow, x)
			if !ok {
				r, g, b, a = 0, 0, 0, 0
			}
			dd.SetRGBA(drow, x, r, g, b, a)
		}
	}
}

// ConvertToPalette re-encodes a full-color image into an indexed layout over
// a caller-provided palette. The palette is given in the destination's
// palette color format and is copied into the result; every texel maps to
// the nearest entry by perceptual color distance, with the alpha distance as
// a secondary component.
func ConvertToPalette(src *Image, dst Format, palette []byte, paletteLen int) (*Image, error) {
	if src == nil || src.Data == nil {
		return nil, ErrNoData
	}
	if src.Compression.Compressed() {
		return nil, ErrCompressed
	}
	if !dst.Indexed() {
		return nil, fmt.Errorf("%w: destination %v", ErrBadFormat, dst)
	}
	if paletteLen <= 0 || paletteLen > PaletteEntryCount(dst.Palette) {
		return nil, fmt.Errorf("%w: %d entries into %v", ErrPaletteTooLarge, paletteLen, dst.Palette)
	}
	out, err := NewImage(dst, src.Width, src.Height)
	if err != nil {
		return nil, err
	}
	if len(palette) > len(out.Palette) {
		return nil, fmt.Errorf("%w: table of %d bytes", ErrPaletteTooLarge, len(palette))
	}
	copy(out.Palette, palette)
	out.PaletteLen = paletteLen
	out.HasAlpha = src.HasAlpha && dst.Kind.HasAlpha()

	dd := out.Dispatcher()
	entries := make([]colorful.Color, paletteLen)
	alphas := make([]float64, paletteLen)
	for n := 0; n < paletteLen; n++ {
		r, g, b, a, ok := dd.PaletteColor(n)
		if !ok {
			r, g, b, a = 0, 0, 0, 0
		}
		entries[n] = colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
		alphas[n] = float64(a) / 255
	}

	sd := src.Dispatcher()
	for y := 0; y < src.Height; y++ {
		srow, drow := src.Row(y), out.Row(y)
		for x := 0; x < src.Width; x++ {
			r, g, b, a, ok := sd.RGBA(srow, x)
			if !ok {
				r, g, b, a = 0, 0, 0, 0
			}
			c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
			fa := float64(a) / 255
			best, bestDist := 0, math.Inf(1)
			for n := range entries {
				dist := c.DistanceLab(entries[n]) + math.Abs(fa-alphas[n])
				if dist < bestDist {
					best, bestDist = n, dist
				}
			}
			dd.SetPaletteIndex(drow, x, best)
		}
	}
	return out, nil
}

// CopyRegion blits a width by height rectangle from src at (srcX, srcY) into
// dst at (dstX, dstY). The destination rectangle must lie inside dst; the
// source rectangle may extend outside src, and out-of-bounds source texels
// read as transparent black (index zero between two indexed images).
//
// Between two indexed images the raw indices are copied and the palettes are
// left untouched; callers are responsible for table compatibility. Copying
// from a full-color image into an indexed one is not possible.
func CopyRegion(dst *Image, dstX, dstY int, src *Image, srcX, srcY, width, height int) error {
	if dst == nil || dst.Data == nil || src == nil || src.Data == nil {
		return ErrNoData
	}
	if dst.Compression.Compressed() || src.Compression.Compressed() {
		return ErrCompressed
	}
	if width < 0 || height < 0 {
		return fmt.Errorf("%w: region %dx%d", ErrBadDimensions, width, height)
	}
	if dstX < 0 || dstY < 0 || dstX+width > dst.Width || dstY+height > dst.Height {
		return fmt.Errorf("%w: region %dx%d at (%d,%d) outside %dx%d",
			ErrBadDimensions, width, height, dstX, dstY, dst.Width, dst.Height)
	}
	indexed := dst.Format.Indexed()
	if indexed && !src.Format.Indexed() {
		return ErrNeedPalette
	}

	sd := src.Dispatcher()
	dd := dst.Dispatcher()
	for y := 0; y < height; y++ {
		sy := srcY + y
		drow := dst.Row(dstY + y)
		var srow []byte
		if sy >= 0 && sy < src.Height {
			srow = src.Row(sy)
		}
		for x := 0; x < width; x++ {
			sx := srcX + x
			inside := srow != nil && sx >= 0 && sx < src.Width
			if indexed {
				pi := 0
				if inside {
					if v, ok := sd.PaletteIndex(srow, sx); ok {
						pi = v
					}
				}
				dd.SetPaletteIndex(drow, dstX+x, pi)
				continue
			}
			var r, g, b, a uint8
			if inside {
				if vr, vg, vb, va, ok := sd.RGBA(srow, sx); ok {
					r, g, b, a = vr, vg, vb, va
				}
			}
			dd.SetRGBA(drow, dstX+x, r, g, b, a)
		}
	}
	return nil
}
