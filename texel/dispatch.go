package texel

import "encoding/binary"

// Channel expansion keeps round trips through narrow channels stable: a value
// quantized from an expanded value re-expands to the same bytes.
func expand4(v uint8) uint8 { return v<<4 | v }
func expand5(v uint8) uint8 { return v<<3 | v>>2 }
func expand6(v uint8) uint8 { return v<<2 | v>>4 }

func lumFromRGB(r, g, b uint8) uint8 {
	return uint8((uint16(r) + uint16(g) + uint16(b)) / 3)
}

// Dispatcher provides uniform texel access over one format. It is bound to a
// Format and, for indexed formats, to the palette storage that indices
// resolve through.
//
// All accessors address texels by flat index within a single row slice and
// report ok=false when the texel cannot be resolved: the row is too short,
// the descriptor names an unsupported combination, or a palette index falls
// outside the table. Callers substitute transparent black.
//
// Packed 16-bit kinds are stored little-endian. Sub-byte layouts follow the
// format descriptor: Palette4 and 4-bit luminance put the first texel in the
// high nibble, Palette4LSB in the low nibble, and 4+4 luminance/alpha puts
// luminance in the high nibble.
type Dispatcher struct {
	f          Format
	stride     int
	valid      bool
	palette    []byte
	paletteLen int
	colors     *Dispatcher
}

// NewDispatcher binds a dispatcher to a format. palette and paletteLen are
// ignored for non-indexed formats.
func NewDispatcher(f Format, palette []byte, paletteLen int) *Dispatcher {
	d := &Dispatcher{
		f:          f,
		valid:      f.Validate() == nil,
		palette:    palette,
		paletteLen: paletteLen,
	}
	if f.Depth >= 8 {
		d.stride = f.Depth / 8
	}
	if d.valid && f.Indexed() {
		cf := f.PaletteColorFormat()
		d.colors = &Dispatcher{f: cf, valid: true, stride: cf.Depth / 8}
	}
	return d
}

// Format returns the bound descriptor.
func (d *Dispatcher) Format() Format { return d.f }

// RGBA reads the texel at idx as 8-bit RGBA. Luminance kinds replicate the
// luminance value across the color channels; indexed formats resolve through
// the palette.
func (d *Dispatcher) RGBA(row []byte, idx int) (r, g, b, a uint8, ok bool) {
	if !d.valid || idx < 0 {
		return 0, 0, 0, 0, false
	}
	if d.f.Indexed() {
		pi, found := d.PaletteIndex(row, idx)
		if !found || pi >= d.paletteLen {
			return 0, 0, 0, 0, false
		}
		return d.colors.RGBA(d.palette, pi)
	}
	switch d.f.Kind {
	case KindRGBA8888, KindRGB888:
		off := idx * d.stride
		if off+d.stride > len(row) {
			return 0, 0, 0, 0, false
		}
		if d.f.Order == OrderBGRA {
			b, g, r = row[off], row[off+1], row[off+2]
		} else {
			r, g, b = row[off], row[off+1], row[off+2]
		}
		a = 255
		if d.f.Kind == KindRGBA8888 {
			a = row[off+3]
		}
		return r, g, b, a, true
	case KindRGB565:
		v, found := d.packed16(row, idx)
		if !found {
			return 0, 0, 0, 0, false
		}
		return expand5(uint8(v >> 11)), expand6(uint8(v >> 5 & 0x3F)), expand5(uint8(v & 0x1F)), 255, true
	case KindARGB1555:
		v, found := d.packed16(row, idx)
		if !found {
			return 0, 0, 0, 0, false
		}
		a = 0
		if v&0x8000 != 0 {
			a = 255
		}
		return expand5(uint8(v >> 10 & 0x1F)), expand5(uint8(v >> 5 & 0x1F)), expand5(uint8(v & 0x1F)), a, true
	case KindRGBA4444:
		v, found := d.packed16(row, idx)
		if !found {
			return 0, 0, 0, 0, false
		}
		return expand4(uint8(v >> 12)), expand4(uint8(v >> 8 & 0xF)), expand4(uint8(v >> 4 & 0xF)), expand4(uint8(v & 0xF)), true
	case KindLum, KindLumAlpha:
		l, la, found := d.Luminance(row, idx)
		return l, l, l, la, found
	}
	return 0, 0, 0, 0, false
}

// SetRGBA writes the texel at idx from 8-bit RGBA, quantizing into packed
// kinds and averaging into luminance kinds. Indexed formats cannot be written
// through color values; use SetPaletteIndex.
func (d *Dispatcher) SetRGBA(row []byte, idx int, r, g, b, a uint8) bool {
	if !d.valid || idx < 0 || d.f.Indexed() {
		return false
	}
	switch d.f.Kind {
	case KindRGBA8888, KindRGB888:
		off := idx * d.stride
		if off+d.stride > len(row) {
			return false
		}
		if d.f.Order == OrderBGRA {
			row[off], row[off+1], row[off+2] = b, g, r
		} else {
			row[off], row[off+1], row[off+2] = r, g, b
		}
		if d.f.Kind == KindRGBA8888 {
			row[off+3] = a
		} else if d.stride == 4 {
			row[off+3] = 0xFF
		}
		return true
	case KindRGB565:
		return d.setPacked16(row, idx, uint16(r>>3)<<11|uint16(g>>2)<<5|uint16(b>>3))
	case KindARGB1555:
		v := uint16(r>>3)<<10 | uint16(g>>3)<<5 | uint16(b>>3)
		if a >= 128 {
			v |= 0x8000
		}
		return d.setPacked16(row, idx, v)
	case KindRGBA4444:
		return d.setPacked16(row, idx, uint16(r>>4)<<12|uint16(g>>4)<<8|uint16(b>>4)<<4|uint16(a>>4))
	case KindLum, KindLumAlpha:
		return d.SetLuminance(row, idx, lumFromRGB(r, g, b), a)
	}
	return false
}

// Luminance reads the texel at idx as luminance plus alpha. Color kinds are
// averaged; indexed formats resolve the palette entry first.
func (d *Dispatcher) Luminance(row []byte, idx int) (lum, alpha uint8, ok bool) {
	if !d.valid || idx < 0 {
		return 0, 0, false
	}
	if d.f.Indexed() || d.f.Kind.Model() == ModelRGBA {
		r, g, b, a, found := d.RGBA(row, idx)
		if !found {
			return 0, 0, false
		}
		return lumFromRGB(r, g, b), a, true
	}
	switch d.f.Kind {
	case KindLum:
		if d.f.Depth == 4 {
			off := idx >> 1
			if off >= len(row) {
				return 0, 0, false
			}
			v := row[off]
			if idx&1 == 0 {
				v >>= 4
			} else {
				v &= 0xF
			}
			return expand4(v), 255, true
		}
		if idx >= len(row) {
			return 0, 0, false
		}
		return row[idx], 255, true
	case KindLumAlpha:
		if d.f.Depth == 8 {
			if idx >= len(row) {
				return 0, 0, false
			}
			v := row[idx]
			return expand4(v >> 4), expand4(v & 0xF), true
		}
		off := idx * 2
		if off+2 > len(row) {
			return 0, 0, false
		}
		return row[off], row[off+1], true
	}
	return 0, 0, false
}

// SetLuminance writes the texel at idx from luminance plus alpha. Color kinds
// replicate the luminance across channels. The alpha argument is ignored by
// kinds without an alpha channel.
func (d *Dispatcher) SetLuminance(row []byte, idx int, lum, alpha uint8) bool {
	if !d.valid || idx < 0 || d.f.Indexed() {
		return false
	}
	switch d.f.Kind {
	case KindLum:
		if d.f.Depth == 4 {
			off := idx >> 1
			if off >= len(row) {
				return false
			}
			if idx&1 == 0 {
				row[off] = row[off]&0x0F | lum&0xF0
			} else {
				row[off] = row[off]&0xF0 | lum>>4
			}
			return true
		}
		if idx >= len(row) {
			return false
		}
		row[idx] = lum
		return true
	case KindLumAlpha:
		if d.f.Depth == 8 {
			if idx >= len(row) {
				return false
			}
			row[idx] = lum&0xF0 | alpha>>4
			return true
		}
		off := idx * 2
		if off+2 > len(row) {
			return false
		}
		row[off], row[off+1] = lum, alpha
		return true
	}
	return d.SetRGBA(row, idx, lum, lum, lum, alpha)
}

// PaletteIndex reads the raw palette index of the texel at idx. It does not
// check the index against the palette length; index-copy paths move indices
// between tables verbatim.
func (d *Dispatcher) PaletteIndex(row []byte, idx int) (int, bool) {
	if !d.valid || idx < 0 {
		return 0, false
	}
	switch d.f.Palette {
	case Palette4, Palette4LSB:
		off := idx >> 1
		if off >= len(row) {
			return 0, false
		}
		v := row[off]
		hi := idx&1 == 0
		if d.f.Palette == Palette4LSB {
			hi = !hi
		}
		if hi {
			return int(v >> 4), true
		}
		return int(v & 0xF), true
	case Palette8:
		if idx >= len(row) {
			return 0, false
		}
		return int(row[idx]), true
	}
	return 0, false
}

// SetPaletteIndex writes the raw palette index of the texel at idx, masked to
// the index depth. Callers guarantee the value fits; Convert validates table
// sizes before narrowing.
func (d *Dispatcher) SetPaletteIndex(row []byte, idx, value int) bool {
	if !d.valid || idx < 0 || value < 0 {
		return false
	}
	switch d.f.Palette {
	case Palette4, Palette4LSB:
		off := idx >> 1
		if off >= len(row) {
			return false
		}
		v := uint8(value) & 0xF
		hi := idx&1 == 0
		if d.f.Palette == Palette4LSB {
			hi = !hi
		}
		if hi {
			row[off] = row[off]&0x0F | v<<4
		} else {
			row[off] = row[off]&0xF0 | v
		}
		return true
	case Palette8:
		if idx >= len(row) {
			return false
		}
		row[idx] = uint8(value)
		return true
	}
	return false
}

// PaletteColor reads palette entry n as 8-bit RGBA.
func (d *Dispatcher) PaletteColor(n int) (r, g, b, a uint8, ok bool) {
	if d.colors == nil || n < 0 || n >= d.paletteLen {
		return 0, 0, 0, 0, false
	}
	return d.colors.RGBA(d.palette, n)
}

// SetPaletteColor writes palette entry n from 8-bit RGBA.
func (d *Dispatcher) SetPaletteColor(n int, r, g, b, a uint8) bool {
	if d.colors == nil || n < 0 {
		return false
	}
	return d.colors.SetRGBA(d.palette, n, r, g, b, a)
}

func (d *Dispatcher) packed16(row []byte, idx int) (uint16, bool) {
	off := idx * 2
	if off+2 > len(row) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(row[off:]), true
}

func (d *Dispatcher) setPacked16(row []byte, idx int, v uint16) bool {
	off := idx * 2
	if off+2 > len(row) {
		return false
	}
	binary.LittleEndian.PutUint16(row[off:], v)
	return true
}
