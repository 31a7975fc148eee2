package tiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/ironsheep/texture-kit/codec"
	"github.com/ironsheep/texture-kit/texel"
	kzlib "github.com/klauspost/compress/zlib"
)

// lzwCompress packs bytes as literal codes: a clear code, each byte as a
// 9-bit code, then end-of-information, bits filled from the high end of
// every output byte. Valid only while the payload is short enough that the
// decoder never widens its codes.
func lzwCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	if len(data) > 200 {
		t.Fatal("literal-only LZW writer cannot exceed 9-bit codes")
	}
	var (
		out  []byte
		acc  uint32
		bits uint
	)
	emit := func(code uint32) {
		acc = acc<<9 | code
		bits += 9
		for bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>bits))
		}
	}
	emit(256)
	for _, b := range data {
		emit(uint32(b))
	}
	emit(257)
	if bits > 0 {
		out = append(out, byte(acc<<(8-bits)))
	}
	return out
}

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := kzlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("failed to deflate strip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to deflate strip: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeRGB(t *testing.T) {
	strip := make([]byte, 4*4*3)
	for i := range strip {
		strip[i] = byte(i)
	}
	data := buildTIFF(binary.LittleEndian, strip,
		baseTags(4, 4, photoRGB, []uint32{8, 8, 8}, 3, len(strip)))

	tex, ctx := decodeStream(t, data)
	if len(ctx.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", ctx.Warnings())
	}
	want := texel.Format{Kind: texel.KindRGB888, Depth: 24, RowAlign: 4}
	if tex.Format != want {
		t.Errorf("format = %+v, want %+v", tex.Format, want)
	}
	if !tex.KnownMapping {
		t.Error("supported matrix decode should keep a known mapping")
	}
	if tex.HasAlpha {
		t.Error("RGB stream decoded with an alpha flag")
	}
	if tex.Width() != 4 || tex.Height() != 4 {
		t.Errorf("decoded %dx%d, want 4x4", tex.Width(), tex.Height())
	}
	if !bytes.Equal(tex.Mipmaps[0].Data, strip) {
		t.Error("pixel rows did not move verbatim")
	}
}

func TestDecodeRGBAlphaSample(t *testing.T) {
	strip := []byte{
		10, 20, 30, 40, 50, 60, 70, 80,
		90, 100, 110, 120, 130, 140, 150, 160,
	}
	tags := withTag(baseTags(2, 2, photoRGB, []uint32{8, 8, 8, 8}, 4, len(strip)),
		tagExtraSamples, typeShort, extraUnassociated)

	tex, _ := decodeStream(t, buildTIFF(binary.LittleEndian, strip, tags))
	if tex.Format != texel.CanonicalRGBA {
		t.Errorf("format = %+v, want %+v", tex.Format, texel.CanonicalRGBA)
	}
	if !tex.HasAlpha {
		t.Error("alpha sample did not set the alpha flag")
	}
	if !bytes.Equal(tex.Mipmaps[0].Data, strip) {
		t.Error("pixel rows did not move verbatim")
	}
}

func TestDecodeRGBRowPadding(t *testing.T) {
	strip := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	data := buildTIFF(binary.LittleEndian, strip,
		baseTags(3, 1, photoRGB, []uint32{8, 8, 8}, 3, len(strip)))

	tex, _ := decodeStream(t, data)
	row := tex.Mipmaps[0].Data
	if len(row) != 12 {
		t.Fatalf("row holds %d bytes, want 12", len(row))
	}
	if !bytes.Equal(row[:9], strip) {
		t.Errorf("pixels = %v, want %v", row[:9], strip)
	}
	if row[9] != 0 || row[10] != 0 || row[11] != 0 {
		t.Errorf("row padding = %v, want zeros", row[9:])
	}
}

func TestDecodeGray8(t *testing.T) {
	strip := []byte{0, 85, 170, 255}
	tests := []struct {
		name        string
		photometric uint32
		want        []byte
	}{
		{"min is black", photoMinIsBlack, []byte{0, 85, 170, 255}},
		{"min is white", photoMinIsWhite, []byte{255, 170, 85, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildTIFF(binary.LittleEndian, strip,
				baseTags(4, 1, tt.photometric, []uint32{8}, 1, len(strip)))
			tex, _ := decodeStream(t, data)
			want := texel.Format{Kind: texel.KindLum, Depth: 8, RowAlign: 4}
			if tex.Format != want {
				t.Errorf("format = %+v, want %+v", tex.Format, want)
			}
			if tex.HasAlpha {
				t.Error("grayscale stream decoded with an alpha flag")
			}
			if !bytes.Equal(tex.Mipmaps[0].Data, tt.want) {
				t.Errorf("luminance = %v, want %v", tex.Mipmaps[0].Data, tt.want)
			}
		})
	}
}

func TestDecodeGray4(t *testing.T) {
	// Two texels per byte, most significant nibble first, expanded to the
	// full 8-bit range.
	strip := []byte{0x01, 0x23}
	tests := []struct {
		name        string
		photometric uint32
		want        []byte
	}{
		{"min is black", photoMinIsBlack, []byte{0, 17, 34, 51}},
		{"min is white", photoMinIsWhite, []byte{255, 238, 221, 204}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildTIFF(binary.LittleEndian, strip,
				baseTags(4, 1, tt.photometric, []uint32{4}, 1, len(strip)))
			tex, _ := decodeStream(t, data)
			if tex.Format.Depth != 8 {
				t.Errorf("depth = %d, want 8", tex.Format.Depth)
			}
			if !bytes.Equal(tex.Mipmaps[0].Data, tt.want) {
				t.Errorf("luminance = %v, want %v", tex.Mipmaps[0].Data, tt.want)
			}
		})
	}
}

func TestDecodeGrayAlpha44(t *testing.T) {
	strip := []byte{0xF0, 0xA5, 0x3C, 0x81}
	tags := withTag(baseTags(4, 1, photoMinIsBlack, []uint32{4, 4}, 2, len(strip)),
		tagExtraSamples, typeShort, extraUnassociated)

	tex, _ := decodeStream(t, buildTIFF(binary.LittleEndian, strip, tags))
	want := texel.Format{Kind: texel.KindLumAlpha, Depth: 8, RowAlign: 4}
	if tex.Format != want {
		t.Errorf("format = %+v, want %+v", tex.Format, want)
	}
	if !tex.HasAlpha {
		t.Error("alpha sample did not set the alpha flag")
	}
	if !bytes.Equal(tex.Mipmaps[0].Data, strip) {
		t.Error("packed luminance rows did not move verbatim")
	}

	im, err := tex.LayerImage(0)
	if err != nil {
		t.Fatal(err)
	}
	d := im.Dispatcher()
	lum, alpha, ok := d.Luminance(im.Row(0), 1)
	if !ok || lum != 170 || alpha != 85 {
		t.Errorf("texel 1 = (%d,%d,%v), want (170,85,true)", lum, alpha, ok)
	}
}

func TestDecodeGrayAlpha88(t *testing.T) {
	strip := []byte{10, 20, 30, 40}
	tags := withTag(baseTags(2, 1, photoMinIsBlack, []uint32{8, 8}, 2, len(strip)),
		tagExtraSamples, typeShort, extraAssociated)

	tex, _ := decodeStream(t, buildTIFF(binary.LittleEndian, strip, tags))
	want := texel.Format{Kind: texel.KindLumAlpha, Depth: 16, RowAlign: 4}
	if tex.Format != want {
		t.Errorf("format = %+v, want %+v", tex.Format, want)
	}
	if !bytes.Equal(tex.Mipmaps[0].Data, strip) {
		t.Error("luminance rows did not move verbatim")
	}
}

func TestDecodePalette8(t *testing.T) {
	strip := []byte{1, 2, 3, 0}
	cm := make([]uint32, 3*256)
	for i := 0; i < 256; i++ {
		cm[i] = uint32(i) * 257
		cm[256+i] = uint32(255-i) * 257
		cm[512+i] = 128 * 257
	}
	tags := withTag(baseTags(4, 1, photoPalette, []uint32{8}, 1, len(strip)),
		tagColorMap, typeShort, cm...)

	tex, _ := decodeStream(t, buildTIFF(binary.LittleEndian, strip, tags))
	if tex.Format.Palette != texel.Palette8 {
		t.Fatalf("palette type = %v, want %v", tex.Format.Palette, texel.Palette8)
	}
	if tex.PaletteLen != 256 {
		t.Errorf("palette length = %d, want 256", tex.PaletteLen)
	}
	if !bytes.Equal(tex.Mipmaps[0].Data, strip) {
		t.Error("index rows did not move verbatim")
	}

	im, err := tex.LayerImage(0)
	if err != nil {
		t.Fatal(err)
	}
	d := im.Dispatcher()
	// The 16-bit wire channels rescale back to the exact 8-bit values.
	r, g, b, a, ok := d.PaletteColor(9)
	if !ok || r != 9 || g != 246 || b != 128 || a != 255 {
		t.Errorf("palette entry 9 = (%d,%d,%d,%d,%v), want (9,246,128,255,true)", r, g, b, a, ok)
	}
	if idx, ok := d.PaletteIndex(im.Row(0), 2); !ok || idx != 3 {
		t.Errorf("texel 2 index = %d, want 3", idx)
	}
}

func TestDecodePalette4(t *testing.T) {
	// Indices pack two per byte, most significant nibble first.
	strip := []byte{0x12, 0x34, 0x56, 0x78}
	cm := make([]uint32, 3*16)
	for i := 0; i < 16; i++ {
		cm[i] = uint32(i) * 17 * 257
	}
	tags := withTag(baseTags(8, 1, photoPalette, []uint32{4}, 1, len(strip)),
		tagColorMap, typeShort, cm...)

	tex, _ := decodeStream(t, buildTIFF(binary.LittleEndian, strip, tags))
	if tex.Format.Palette != texel.Palette4 {
		t.Fatalf("palette type = %v, want %v", tex.Format.Palette, texel.Palette4)
	}
	if tex.PaletteLen != 16 {
		t.Errorf("palette length = %d, want 16", tex.PaletteLen)
	}

	im, err := tex.LayerImage(0)
	if err != nil {
		t.Fatal(err)
	}
	d := im.Dispatcher()
	for x, want := range []int{1, 2, 3, 4, 5, 6, 7, 8} {
		if idx, ok := d.PaletteIndex(im.Row(0), x); !ok || idx != want {
			t.Errorf("texel %d index = %d, want %d", x, idx, want)
		}
	}
}

func TestDecodeBigEndian(t *testing.T) {
	strip := []byte{1, 2, 3, 4}
	data := buildTIFF(binary.BigEndian, strip,
		baseTags(2, 2, photoMinIsBlack, []uint32{8}, 1, len(strip)))

	tex, _ := decodeStream(t, data)
	// Rows are two bytes wide but pad to the four-byte alignment.
	want := []byte{1, 2, 0, 0, 3, 4, 0, 0}
	if !bytes.Equal(tex.Mipmaps[0].Data, want) {
		t.Errorf("luminance = %v, want %v", tex.Mipmaps[0].Data, want)
	}
}

func TestDecodeMultipleStrips(t *testing.T) {
	strip := make([]byte, 12)
	for i := range strip {
		strip[i] = byte(i + 1)
	}
	tags := baseTags(4, 3, photoMinIsBlack, []uint32{8}, 1, len(strip))
	tags = withTag(tags, tagRowsPerStrip, typeLong, 2)
	tags = withTag(tags, tagStripOffsets, typeLong, 8, 16)
	tags = withTag(tags, tagStripByteCounts, typeLong, 8, 4)

	tex, _ := decodeStream(t, buildTIFF(binary.LittleEndian, strip, tags))
	if !bytes.Equal(tex.Mipmaps[0].Data, strip) {
		t.Errorf("luminance = %v, want %v", tex.Mipmaps[0].Data, strip)
	}
}

func TestDecodeCompressedStrips(t *testing.T) {
	strip := make([]byte, 4*2*3)
	for i := range strip {
		strip[i] = byte(200 - i)
	}
	packed := []byte{3, 200, 199, 198, 197, 0x80, 0xF9, 196, 3, 188, 187, 186, 185, 0xF9, 184}

	tests := []struct {
		name        string
		compression uint32
		data        []byte
	}{
		{"lzw", compressionLZW, lzwCompress(t, strip)},
		{"deflate", compressionDeflate, zlibCompress(t, strip)},
		{"deflate legacy code", compressionDeflateOld, zlibCompress(t, strip)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags := withTag(baseTags(4, 2, photoRGB, []uint32{8, 8, 8}, 3, len(tt.data)),
				tagCompression, typeShort, tt.compression)
			tex, _ := decodeStream(t, buildTIFF(binary.LittleEndian, tt.data, tags))
			if !bytes.Equal(tex.Mipmaps[0].Data, strip) {
				t.Error("inflated rows do not match the source pixels")
			}
		})
	}

	t.Run("packbits", func(t *testing.T) {
		// 4 literals, a filler byte, a run of 8, 4 literals, a run of 8.
		want := make([]byte, 0, 24)
		want = append(want, 200, 199, 198, 197)
		for i := 0; i < 8; i++ {
			want = append(want, 196)
		}
		want = append(want, 188, 187, 186, 185)
		for i := 0; i < 8; i++ {
			want = append(want, 184)
		}
		tags := withTag(baseTags(4, 2, photoRGB, []uint32{8, 8, 8}, 3, len(packed)),
			tagCompression, typeShort, compressionPackBits)
		tex, _ := decodeStream(t, buildTIFF(binary.LittleEndian, packed, tags))
		if !bytes.Equal(tex.Mipmaps[0].Data, want) {
			t.Errorf("unpacked rows = %v, want %v", tex.Mipmaps[0].Data, want)
		}
	})
}

func TestDecodeStripErrors(t *testing.T) {
	short := lzwCompress(t, []byte{7, 7})

	tests := []struct {
		name  string
		strip []byte
		tags  func([]testTag) []testTag
	}{
		{
			"strip outside the stream",
			[]byte{1, 2, 3, 4},
			func(tags []testTag) []testTag {
				return withTag(tags, tagStripOffsets, typeLong, 4096)
			},
		},
		{
			"strip inflates short",
			short,
			func(tags []testTag) []testTag {
				tags = withTag(tags, tagCompression, typeShort, compressionLZW)
				return withTag(tags, tagStripByteCounts, typeLong, uint32(len(short)))
			},
		},
		{
			"truncated packbits run",
			[]byte{5},
			func(tags []testTag) []testTag {
				tags = withTag(tags, tagCompression, typeShort, compressionPackBits)
				return withTag(tags, tagStripByteCounts, typeLong, 1)
			},
		},
		{
			"strip tables shorter than the strip count",
			[]byte{1, 2, 3, 4},
			func(tags []testTag) []testTag {
				return dropTag(tags, tagStripByteCounts)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags := tt.tags(baseTags(2, 2, photoMinIsBlack, []uint32{8}, 1, len(tt.strip)))
			data := buildTIFF(binary.LittleEndian, tt.strip, tags)
			_, err := (tiffCodec{}).Decode(codec.NewContext(), bytes.NewReader(data))
			var malformed codec.MalformedError
			if !errors.As(err, &malformed) {
				t.Errorf("error = %v, want a MalformedError", err)
			}
		})
	}
}

func TestDecodeMandatoryTags(t *testing.T) {
	tests := []struct {
		name string
		tags func([]testTag) []testTag
	}{
		{"missing photometric", func(tags []testTag) []testTag { return dropTag(tags, tagPhotometric) }},
		{"missing width", func(tags []testTag) []testTag { return dropTag(tags, tagImageWidth) }},
		{"zero width", func(tags []testTag) []testTag { return withTag(tags, tagImageWidth, typeLong, 0) }},
		{"missing length", func(tags []testTag) []testTag { return dropTag(tags, tagImageLength) }},
		{"zero length", func(tags []testTag) []testTag { return withTag(tags, tagImageLength, typeLong, 0) }},
		{"missing bits per sample", func(tags []testTag) []testTag { return dropTag(tags, tagBitsPerSample) }},
		{"zero bits per sample", func(tags []testTag) []testTag { return withTag(tags, tagBitsPerSample, typeShort, 0) }},
		{"missing samples per pixel", func(tags []testTag) []testTag { return dropTag(tags, tagSamplesPerPixel) }},
		{"zero samples per pixel", func(tags []testTag) []testTag { return withTag(tags, tagSamplesPerPixel, typeShort, 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strip := []byte{1, 2, 3, 4}
			tags := tt.tags(baseTags(2, 2, photoMinIsBlack, []uint32{8}, 1, len(strip)))
			data := buildTIFF(binary.LittleEndian, strip, tags)
			_, err := (tiffCodec{}).Decode(codec.NewContext(), bytes.NewReader(data))
			var malformed codec.MalformedError
			if !errors.As(err, &malformed) {
				t.Errorf("error = %v, want a MalformedError", err)
			}
		})
	}
}

func TestDecodeOversizedDimensions(t *testing.T) {
	strip := []byte{1}
	tags := withTag(baseTags(1, 1, photoMinIsBlack, []uint32{8}, 1, len(strip)),
		tagImageWidth, typeLong, 1<<21)
	data := buildTIFF(binary.LittleEndian, strip, tags)

	_, err := (tiffCodec{}).Decode(codec.NewContext(), bytes.NewReader(data))
	var alloc codec.AllocationError
	if !errors.As(err, &alloc) {
		t.Errorf("error = %v, want an AllocationError", err)
	}
}

func TestDecodeFallback(t *testing.T) {
	tests := []struct {
		name  string
		strip []byte
		tags  []testTag
	}{
		{
			// 16-bit samples are outside the supported matrix but well
			// within the fallback library's reach.
			"sixteen bit grayscale",
			[]byte{0x00, 0x00, 0xFF, 0xFF},
			baseTags(2, 1, photoMinIsBlack, []uint32{16}, 1, 4),
		},
		{
			"mirrored orientation",
			[]byte{0x00, 0xFF},
			withTag(baseTags(2, 1, photoMinIsBlack, []uint32{8}, 1, 2),
				tagOrientation, typeShort, 4),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tex, ctx := decodeStream(t, buildTIFF(binary.LittleEndian, tt.strip, tt.tags))
			if tex.KnownMapping {
				t.Error("fallback decode kept a known mapping")
			}
			if tex.Format != texel.CanonicalRGBA {
				t.Errorf("format = %+v, want %+v", tex.Format, texel.CanonicalRGBA)
			}
			warnings := ctx.Warnings()
			if len(warnings) != 1 || !strings.Contains(warnings[0], "generic TIFF library") {
				t.Errorf("warnings = %v, want one naming the fallback", warnings)
			}
		})
	}
}

func TestDecodeFallbackPixels(t *testing.T) {
	data := buildTIFF(binary.LittleEndian, []byte{0x00, 0x00, 0xFF, 0xFF},
		baseTags(2, 1, photoMinIsBlack, []uint32{16}, 1, 4))

	tex, _ := decodeStream(t, data)
	im, err := tex.LayerImage(0)
	if err != nil {
		t.Fatal(err)
	}
	d := im.Dispatcher()
	if r, g, b, a, _ := d.RGBA(im.Row(0), 0); r != 0 || g != 0 || b != 0 || a != 255 {
		t.Errorf("texel 0 = (%d,%d,%d,%d), want (0,0,0,255)", r, g, b, a)
	}
	if r, g, b, a, _ := d.RGBA(im.Row(0), 1); r != 255 || g != 255 || b != 255 || a != 255 {
		t.Errorf("texel 1 = (%d,%d,%d,%d), want (255,255,255,255)", r, g, b, a)
	}
}

func TestDecodeFallbackFailure(t *testing.T) {
	strip := []byte{1, 2, 3, 4}
	tags := withTag(baseTags(2, 2, photoMinIsBlack, []uint32{8}, 1, len(strip)),
		tagCompression, typeShort, 7)
	data := buildTIFF(binary.LittleEndian, strip, tags)

	_, err := (tiffCodec{}).Decode(codec.NewContext(), bytes.NewReader(data))
	var lib *codec.LibraryError
	if !errors.As(err, &lib) {
		t.Fatalf("error = %v, want a LibraryError", err)
	}
	if lib.Op != "decode tiff stream" {
		t.Errorf("operation = %q, want decode tiff stream", lib.Op)
	}
}

func TestDecodeSecondDirectoryWarns(t *testing.T) {
	data := chainSecondDirectory(minimalTIFF(binary.LittleEndian))

	tex, ctx := decodeStream(t, data)
	if tex.Width() != 1 || tex.Height() != 1 {
		t.Errorf("decoded %dx%d, want 1x1", tex.Width(), tex.Height())
	}
	warnings := ctx.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "multiple image directories") {
		t.Errorf("warnings = %v, want one about extra directories", warnings)
	}
}
