package tiff

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ironsheep/texture-kit/codec"
	"github.com/ironsheep/texture-kit/texel"
)

// encodePlan is the tag assignment and wire scanline layout for one outgoing
// image. Samples are always 8 bits wide except palette indices, which keep
// their source depth.
type encodePlan struct {
	wire          texel.Format
	photometric   uint16
	bitsPerSample uint16
	sampleCount   uint16
	alphaSample   bool
	colorMap      []uint16
}

// planEncode maps a source layout onto wire tags. Alpha follows the source
// kind: a format without an alpha channel writes none.
func planEncode(im *texel.Image) encodePlan {
	f := im.Format
	var p encodePlan
	switch {
	case f.Indexed():
		bps := f.Depth
		if bps != 4 && bps != 8 {
			bps = 8
		}
		pal := texel.Palette4LSB
		if bps == 8 {
			pal = texel.Palette8
		}
		p.wire = texel.Format{Kind: f.Kind, Depth: bps, RowAlign: 1, Order: f.Order, Palette: pal}
		p.photometric = photoPalette
		p.bitsPerSample = uint16(bps)
		p.sampleCount = 1
		p.colorMap = buildColorMap(im, bps)
	case f.Kind.Model() == texel.ModelLuminance:
		p.photometric = photoMinIsBlack
		p.bitsPerSample = 8
		if f.Kind.HasAlpha() {
			p.wire = texel.Format{Kind: texel.KindLumAlpha, Depth: 16, RowAlign: 1}
			p.sampleCount = 2
			p.alphaSample = true
		} else {
			p.wire = texel.Format{Kind: texel.KindLum, Depth: 8, RowAlign: 1}
			p.sampleCount = 1
		}
	default:
		p.photometric = photoRGB
		p.bitsPerSample = 8
		if f.Kind.HasAlpha() {
			p.wire = texel.Format{Kind: texel.KindRGBA8888, Depth: 32, RowAlign: 1}
			p.sampleCount = 4
			p.alphaSample = true
		} else {
			p.wire = texel.Format{Kind: texel.KindRGB888, Depth: 24, RowAlign: 1}
			p.sampleCount = 3
		}
	}
	return p
}

// buildColorMap renders the palette as the wire's 16-bit-per-channel table.
// Entries past the source palette stay zero.
func buildColorMap(im *texel.Image, bps int) []uint16 {
	n := 1 << bps
	cm := make([]uint16, 3*n)
	d := im.Dispatcher()
	for i := 0; i < n; i++ {
		r, g, b, _, ok := d.PaletteColor(i)
		if !ok {
			continue
		}
		cm[i] = uint16(uint32(r) * 65535 / 255)
		cm[n+i] = uint16(uint32(g) * 65535 / 255)
		cm[2*n+i] = uint16(uint32(b) * 65535 / 255)
	}
	return cm
}

// buildStrip renders the image as wire scanlines. Rows move verbatim when
// the source layout already matches the wire byte for byte.
func buildStrip(im *texel.Image, plan encodePlan) []byte {
	wireRow := plan.wire.RowSize(im.Width)
	out := make([]byte, wireRow*im.Height)

	wireNorm := plan.wire
	wireNorm.RowAlign = im.Format.RowAlign
	if !texel.NeedsConversion(im.Format, wireNorm) && im.RowSize() == wireRow {
		for y := 0; y < im.Height; y++ {
			copy(out[y*wireRow:(y+1)*wireRow], im.Row(y))
		}
		return out
	}

	from := im.Dispatcher()
	to := texel.NewDispatcher(plan.wire, nil, 0)
	for y := 0; y < im.Height; y++ {
		convertRow(from, to, im.Row(y), out[y*wireRow:(y+1)*wireRow], im.Width, false)
	}
	return out
}

// tagEntry is one outgoing directory field. Values wider than the four
// inline bytes carry their payload in extra and get an offset patched in
// during assembly.
type tagEntry struct {
	tag   uint16
	ftype uint16
	count uint32
	value [4]byte
	extra []byte
}

func shortEntry(tag uint16, v uint16) tagEntry {
	e := tagEntry{tag: tag, ftype: typeShort, count: 1}
	binary.LittleEndian.PutUint16(e.value[:], v)
	return e
}

func longEntry(tag uint16, v uint32) tagEntry {
	e := tagEntry{tag: tag, ftype: typeLong, count: 1}
	binary.LittleEndian.PutUint32(e.value[:], v)
	return e
}

func shortsEntry(tag uint16, vs []uint16) tagEntry {
	e := tagEntry{tag: tag, ftype: typeShort, count: uint32(len(vs))}
	if len(vs) <= 2 {
		for i, v := range vs {
			binary.LittleEndian.PutUint16(e.value[2*i:], v)
		}
		return e
	}
	e.extra = make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(e.extra[2*i:], v)
	}
	return e
}

// Encode writes the base level as a little-endian, uncompressed, top-left
// oriented file with a single strip. The input must hold raw texels.
func (tiffCodec) Encode(ctx *codec.Context, w io.Writer, t *codec.Texture) error {
	if t.Compression.Compressed() {
		return codec.UnsupportedError("compressed texels cannot be stored")
	}
	if len(t.Mipmaps) == 0 {
		return codec.MalformedError("texture has no mipmap levels")
	}
	im, err := t.LayerImage(0)
	if err != nil {
		return err
	}
	if im.Width <= 0 || im.Height <= 0 {
		return codec.MalformedError("texture has empty base dimensions")
	}
	if err := im.Format.Validate(); err != nil {
		return err
	}
	if extra := len(t.Mipmaps) - 1; extra > 0 {
		ctx.Warnf("dropping %d mipmap levels", extra)
	}

	plan := planEncode(im)
	strip := buildStrip(im, plan)

	bps := make([]uint16, plan.sampleCount)
	for i := range bps {
		bps[i] = plan.bitsPerSample
	}
	entries := []tagEntry{
		longEntry(tagImageWidth, uint32(im.Width)),
		longEntry(tagImageLength, uint32(im.Height)),
		shortsEntry(tagBitsPerSample, bps),
		shortEntry(tagCompression, compressionNone),
		shortEntry(tagPhotometric, plan.photometric),
		longEntry(tagStripOffsets, headerLen),
		shortEntry(tagOrientation, orientationTopLeft),
		shortEntry(tagSamplesPerPixel, plan.sampleCount),
		longEntry(tagRowsPerStrip, uint32(im.Height)),
		longEntry(tagStripByteCounts, uint32(len(strip))),
		shortEntry(tagPlanarConfig, planarContig),
	}
	if plan.colorMap != nil {
		entries = append(entries, shortsEntry(tagColorMap, plan.colorMap))
	}
	if plan.alphaSample {
		entries = append(entries, shortEntry(tagExtraSamples, extraUnassociated))
	}

	// Single strip at offset 8, out-of-line values 2-byte aligned after it,
	// directory last. Tags are appended above in ascending order.
	extraStart := headerLen + len(strip)
	if extraStart%2 == 1 {
		extraStart++
	}
	off := extraStart
	for i := range entries {
		if entries[i].extra == nil {
			continue
		}
		binary.LittleEndian.PutUint32(entries[i].value[:], uint32(off))
		off += len(entries[i].extra)
	}
	ifdOffset := off

	buf := make([]byte, 0, ifdOffset+2+len(entries)*ifdEntryLen+4)
	buf = append(buf, 'I', 'I')
	buf = binary.LittleEndian.AppendUint16(buf, tiffVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ifdOffset))
	buf = append(buf, strip...)
	for len(buf) < extraStart {
		buf = append(buf, 0)
	}
	for _, e := range entries {
		buf = append(buf, e.extra...)
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(entries)))
	for _, e := range entries {
		buf = binary.LittleEndian.AppendUint16(buf, e.tag)
		buf = binary.LittleEndian.AppendUint16(buf, e.ftype)
		buf = binary.LittleEndian.AppendUint32(buf, e.count)
		buf = append(buf, e.value[:]...)
	}
	buf = binary.LittleEndian.AppendUint32(buf, 0)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write TIFF stream: %w", err)
	}
	return nil
}
