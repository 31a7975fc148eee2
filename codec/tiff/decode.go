package tiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ironsheep/texture-kit/codec"
	"github.com/ironsheep/texture-kit/texel"
	gotiff "golang.org/x/image/tiff"
)

// ifdEntry is one parsed directory field with its payload loaded. Fields of
// unknown type keep a nil payload; presence checks still see them.
type ifdEntry struct {
	ftype uint16
	count uint32
	data  []byte
}

// directory indexes the fields of one image file directory by tag.
type directory struct {
	order   binary.ByteOrder
	entries map[uint16]ifdEntry
}

// readDirectory parses the directory at base+off and loads every out-of-line
// payload of known field type. It returns the parsed directory and the
// offset of the next one, zero at the end of the chain.
func readDirectory(rs io.ReadSeeker, order binary.ByteOrder, base, total, off int64) (*directory, int64, error) {
	if off < headerLen || base+off+2 > total {
		return nil, 0, codec.MalformedError("directory offset outside the stream")
	}
	if _, err := rs.Seek(base+off, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("failed to seek to directory: %w", err)
	}
	var cnt [2]byte
	if _, err := io.ReadFull(rs, cnt[:]); err != nil {
		return nil, 0, codec.MalformedError("truncated directory")
	}
	count := int(order.Uint16(cnt[:]))
	if count == 0 {
		return nil, 0, codec.MalformedError("empty image directory")
	}
	blockLen := count*ifdEntryLen + 4
	if base+off+2+int64(blockLen) > total {
		return nil, 0, codec.MalformedError("directory overruns the stream")
	}
	block := make([]byte, blockLen)
	if _, err := io.ReadFull(rs, block); err != nil {
		return nil, 0, codec.MalformedError("truncated directory")
	}

	d := &directory{order: order, entries: make(map[uint16]ifdEntry, count)}
	for i := 0; i < count; i++ {
		e := block[i*ifdEntryLen : (i+1)*ifdEntryLen]
		tag := order.Uint16(e[0:2])
		entry := ifdEntry{ftype: order.Uint16(e[2:4]), count: order.Uint32(e[4:8])}
		size := int64(typeSize(entry.ftype))
		payload := size * int64(entry.count)
		switch {
		case size == 0:
		case payload <= 4:
			entry.data = e[8 : 8+payload]
		default:
			voff := int64(order.Uint32(e[8:12]))
			if base+voff+payload > total {
				return nil, 0, codec.MalformedError(fmt.Sprintf("field %d payload outside the stream", tag))
			}
			if _, err := rs.Seek(base+voff, io.SeekStart); err != nil {
				return nil, 0, fmt.Errorf("failed to seek to field payload: %w", err)
			}
			entry.data = make([]byte, payload)
			if _, err := io.ReadFull(rs, entry.data); err != nil {
				return nil, 0, codec.MalformedError(fmt.Sprintf("field %d payload truncated", tag))
			}
		}
		d.entries[tag] = entry
	}
	return d, int64(order.Uint32(block[blockLen-4:])), nil
}

func (d *directory) has(tag uint16) bool {
	_, ok := d.entries[tag]
	return ok
}

// uintSlice returns the values of an integer field. Fields of non-integer
// type, and integer fields whose payload came up short, read as absent.
func (d *directory) uintSlice(tag uint16) []uint32 {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	n := int(e.count)
	var out []uint32
	switch e.ftype {
	case typeByte:
		if len(e.data) < n {
			return nil
		}
		out = make([]uint32, n)
		for i := range out {
			out[i] = uint32(e.data[i])
		}
	case typeShort:
		if len(e.data) < 2*n {
			return nil
		}
		out = make([]uint32, n)
		for i := range out {
			out[i] = uint32(d.order.Uint16(e.data[2*i:]))
		}
	case typeLong:
		if len(e.data) < 4*n {
			return nil
		}
		out = make([]uint32, n)
		for i := range out {
			out[i] = d.order.Uint32(e.data[4*i:])
		}
	}
	return out
}

// uintVal returns the first value of an integer field.
func (d *directory) uintVal(tag uint16) (uint32, bool) {
	vs := d.uintSlice(tag)
	if len(vs) == 0 {
		return 0, false
	}
	return vs[0], true
}

// uintOrDefault returns the first value of an integer field, or def when the
// field is absent.
func (d *directory) uintOrDefault(tag uint16, def uint32) uint32 {
	if v, ok := d.uintVal(tag); ok {
		return v
	}
	return def
}

// features is the tag set that drives the layout decision.
type features struct {
	width, height   int
	bitsPerSample   uint32
	uniformDepth    bool
	samplesPerPixel uint32
	photometric     uint32
	compression     uint32
	orientation     uint32
	planar          uint32
	predictor       uint32
	rowsPerStrip    int
	stripOffsets    []uint32
	stripCounts     []uint32
	extraSamples    []uint32
	colorMap        []uint32
	tiled           bool
	hasAlpha        bool
}

// gatherFeatures extracts the decode-relevant tags. The mandatory five
// (photometric, width, length, bits per sample, samples per pixel) must be
// present, and all but the photometric must be nonzero; orientation,
// compression, planar configuration, and predictor fall back to their
// defaults when absent.
func gatherFeatures(d *directory) (features, error) {
	var f features

	photometric, ok := d.uintVal(tagPhotometric)
	if !ok {
		return f, codec.MalformedError("missing photometric interpretation")
	}
	f.photometric = photometric

	width, ok := d.uintVal(tagImageWidth)
	if !ok || width == 0 {
		return f, codec.MalformedError("missing or zero image width")
	}
	length, ok := d.uintVal(tagImageLength)
	if !ok || length == 0 {
		return f, codec.MalformedError("missing or zero image length")
	}
	if width > maxPixelDimension || length > maxPixelDimension {
		return f, codec.AllocationError(fmt.Sprintf("%dx%d image", width, length))
	}
	f.width, f.height = int(width), int(length)

	bps := d.uintSlice(tagBitsPerSample)
	if len(bps) == 0 {
		return f, codec.MalformedError("missing bits per sample")
	}
	f.uniformDepth = true
	for _, v := range bps {
		if v == 0 {
			return f, codec.MalformedError("zero bits per sample")
		}
		if v != bps[0] {
			f.uniformDepth = false
		}
	}
	f.bitsPerSample = bps[0]

	spp, ok := d.uintVal(tagSamplesPerPixel)
	if !ok || spp == 0 {
		return f, codec.MalformedError("missing or zero samples per pixel")
	}
	f.samplesPerPixel = spp

	f.compression = d.uintOrDefault(tagCompression, compressionNone)
	f.orientation = d.uintOrDefault(tagOrientation, orientationTopLeft)
	f.planar = d.uintOrDefault(tagPlanarConfig, planarContig)
	f.predictor = d.uintOrDefault(tagPredictor, predictorNone)

	rows := d.uintOrDefault(tagRowsPerStrip, 0)
	if rows == 0 || rows > uint32(f.height) {
		rows = uint32(f.height)
	}
	f.rowsPerStrip = int(rows)

	f.stripOffsets = d.uintSlice(tagStripOffsets)
	f.stripCounts = d.uintSlice(tagStripByteCounts)
	f.extraSamples = d.uintSlice(tagExtraSamples)
	f.colorMap = d.uintSlice(tagColorMap)
	f.tiled = d.has(tagTileWidth) || d.has(tagTileLength)

	f.hasAlpha = len(f.extraSamples) == 1 &&
		(f.extraSamples[0] == extraAssociated || f.extraSamples[0] == extraUnassociated)

	return f, nil
}

// layout maps the tag set onto a texel format pair: the scanline layout of
// the wire and the destination image layout. White-is-zero grayscale flips
// luminance while converting.
type layout struct {
	wire   texel.Format
	dst    texel.Format
	invert bool
}

// mapLayout decides whether the feature set falls inside the supported
// matrix. A non-empty reason means it does not and the decode must go
// through the fallback library.
func mapLayout(f features) (layout, string) {
	var l layout
	if f.orientation != orientationTopLeft {
		return l, "orientation is not top-left"
	}
	if f.tiled {
		return l, "tiled layout"
	}
	if f.planar != planarContig {
		return l, "planar sample organization"
	}
	if f.predictor != predictorNone {
		return l, "predictor applied to strips"
	}
	switch f.compression {
	case compressionNone, compressionLZW, compressionDeflate, compressionDeflateOld, compressionPackBits:
	default:
		return l, fmt.Sprintf("compression scheme %d", f.compression)
	}
	if !f.uniformDepth {
		return l, "mixed per-sample depths"
	}
	if len(f.extraSamples) > 0 && !f.hasAlpha {
		return l, "unrecognized extra samples"
	}

	bps := int(f.bitsPerSample)
	switch f.photometric {
	case photoMinIsWhite, photoMinIsBlack:
		if bps != 4 && bps != 8 {
			return l, fmt.Sprintf("grayscale depth %d", bps)
		}
		want := uint32(1)
		if f.hasAlpha {
			want = 2
		}
		if f.samplesPerPixel != want {
			return l, "sample count does not match the grayscale layout"
		}
		l.invert = f.photometric == photoMinIsWhite
		if f.hasAlpha {
			l.wire = texel.Format{Kind: texel.KindLumAlpha, Depth: bps * 2, RowAlign: 1}
			l.dst = texel.Format{Kind: texel.KindLumAlpha, Depth: bps * 2, RowAlign: 4}
		} else {
			l.wire = texel.Format{Kind: texel.KindLum, Depth: bps, RowAlign: 1}
			l.dst = texel.Format{Kind: texel.KindLum, Depth: 8, RowAlign: 4}
		}
	case photoRGB:
		if bps != 8 {
			return l, fmt.Sprintf("RGB depth %d", bps)
		}
		want := uint32(3)
		if f.hasAlpha {
			want = 4
		}
		if f.samplesPerPixel != want {
			return l, "sample count does not match the RGB layout"
		}
		if f.hasAlpha {
			l.wire = texel.Format{Kind: texel.KindRGBA8888, Depth: 32, RowAlign: 1}
			l.dst = texel.CanonicalRGBA
		} else {
			l.wire = texel.Format{Kind: texel.KindRGB888, Depth: 24, RowAlign: 1}
			l.dst = texel.Format{Kind: texel.KindRGB888, Depth: 24, RowAlign: 4}
		}
	case photoPalette:
		if bps != 4 && bps != 8 {
			return l, fmt.Sprintf("palette depth %d", bps)
		}
		if f.samplesPerPixel != 1 {
			return l, "sample count does not match the palette layout"
		}
		if len(f.extraSamples) > 0 {
			return l, "palette with extra samples"
		}
		if len(f.colorMap) < 3*(1<<bps) {
			return l, "colormap is missing or short"
		}
		pal := texel.Palette4
		if bps == 8 {
			pal = texel.Palette8
		}
		l.wire = texel.Format{Kind: texel.KindRGB888, Depth: bps, RowAlign: 1, Palette: pal}
		l.dst = texel.Format{Kind: texel.KindRGB888, Depth: bps, RowAlign: 4, Palette: pal}
	default:
		return l, fmt.Sprintf("photometric %d", f.photometric)
	}
	return l, ""
}

// Decode reads the first image directory. Layouts inside the supported
// matrix go through the codec's own strip reader; everything else is decoded
// by the fallback library and marked as such on the texture.
func (c tiffCodec) Decode(ctx *codec.Context, rs io.ReadSeeker) (*codec.Texture, error) {
	base, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to capture stream position: %w", err)
	}
	total, err := codec.StreamSize(rs)
	if err != nil {
		return nil, err
	}

	order, first, err := readHeader(rs)
	if err != nil {
		var mismatch codec.FormatMismatchError
		if errors.As(err, &mismatch) {
			return nil, err
		}
		return nil, codec.MalformedError("stream shorter than a TIFF header")
	}
	if first == 0 {
		return nil, codec.MalformedError("no image directories")
	}

	dir, nextDir, err := readDirectory(rs, order, base, total, first)
	if err != nil {
		return nil, err
	}
	if nextDir != 0 {
		ctx.Warnf("multiple image directories, decoding the first")
	}

	f, err := gatherFeatures(dir)
	if err != nil {
		return nil, err
	}
	l, reason := mapLayout(f)
	if reason != "" {
		return c.decodeFallback(ctx, rs, base, reason)
	}

	if int64(l.dst.RowSize(f.width))*int64(f.height) > maxImageBytes {
		return nil, codec.AllocationError(fmt.Sprintf("%dx%d image", f.width, f.height))
	}
	img, err := texel.NewImage(l.dst, f.width, f.height)
	if err != nil {
		return nil, err
	}
	img.HasAlpha = l.dst.Kind.HasAlpha()

	if l.dst.Indexed() {
		img.PaletteLen = texel.PaletteEntryCount(l.dst.Palette)
		pd := img.Dispatcher()
		n := img.PaletteLen
		for i := 0; i < n; i++ {
			r := uint8(f.colorMap[i] * 255 / 65535)
			g := uint8(f.colorMap[n+i] * 255 / 65535)
			b := uint8(f.colorMap[2*n+i] * 255 / 65535)
			pd.SetPaletteColor(i, r, g, b, 255)
		}
	}

	strips := (f.height + f.rowsPerStrip - 1) / f.rowsPerStrip
	if len(f.stripOffsets) < strips || len(f.stripCounts) < strips {
		return nil, codec.MalformedError("strip tables shorter than the strip count")
	}

	// The wire layout differing from the destination only in row padding
	// means rows can move verbatim.
	wireNorm := l.wire
	wireNorm.RowAlign = l.dst.RowAlign
	wireRow := l.wire.RowSize(f.width)
	rowCopy := !l.invert &&
		!texel.NeedsConversion(wireNorm, l.dst) &&
		wireRow == l.dst.RowSize(f.width)

	var wireD, dstD *texel.Dispatcher
	if !rowCopy {
		wireD = texel.NewDispatcher(l.wire, nil, 0)
		dstD = img.Dispatcher()
	}

	y := 0
	for s := 0; s < strips; s++ {
		rows := f.rowsPerStrip
		if rest := f.height - y; rows > rest {
			rows = rest
		}
		data, err := readStrip(rs, base, total, f, s, wireRow*rows)
		if err != nil {
			return nil, err
		}
		for r := 0; r < rows; r++ {
			line := data[r*wireRow : (r+1)*wireRow]
			if rowCopy {
				copy(img.Row(y), line)
			} else {
				convertRow(wireD, dstD, line, img.Row(y), f.width, l.invert)
			}
			y++
		}
	}

	return codec.NewTexture(img), nil
}

// convertRow re-encodes one scanline texel by texel, reading through from
// and writing through to. Texels the reader cannot resolve come out as
// transparent black.
func convertRow(from, to *texel.Dispatcher, src, dst []byte, width int, invert bool) {
	switch {
	case to.Format().Indexed():
		for x := 0; x < width; x++ {
			idx, ok := from.PaletteIndex(src, x)
			if !ok {
				idx = 0
			}
			to.SetPaletteIndex(dst, x, idx)
		}
	case to.Format().Kind.Model() == texel.ModelLuminance:
		for x := 0; x < width; x++ {
			lum, alpha, ok := from.Luminance(src, x)
			if !ok {
				lum, alpha = 0, 0
			}
			if invert {
				lum = 255 - lum
			}
			to.SetLuminance(dst, x, lum, alpha)
		}
	default:
		for x := 0; x < width; x++ {
			r, g, b, a, ok := from.RGBA(src, x)
			if !ok {
				r, g, b, a = 0, 0, 0, 0
			}
			to.SetRGBA(dst, x, r, g, b, a)
		}
	}
}

// decodeFallback hands the stream to the generic TIFF library, which
// resolves any layout to 8-bit RGBA by its own rules.
func (tiffCodec) decodeFallback(ctx *codec.Context, rs io.ReadSeeker, base int64, reason string) (*codec.Texture, error) {
	ctx.Warnf("%s, decoding through the generic TIFF library", reason)
	if _, err := rs.Seek(base, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind stream: %w", err)
	}
	src, err := gotiff.Decode(rs)
	if err != nil {
		return nil, &codec.LibraryError{Op: "decode tiff stream", Err: err}
	}
	im, err := texel.FromImage(src)
	if err != nil {
		return nil, err
	}
	t := codec.NewTexture(im)
	t.KnownMapping = false
	return t, nil
}
