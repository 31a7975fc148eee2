package natimage

import (
	"bytes"
	"errors"
	"image"
	"io"
	"testing"

	kzlib "github.com/klauspost/compress/zlib"

	"github.com/ironsheep/texture-kit/codec"
	_ "github.com/ironsheep/texture-kit/codec/tiff"
	"github.com/ironsheep/texture-kit/texel"
)

// zlibCompress wraps data in a zlib stream.
func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := kzlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("failed to compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close the compressor: %v", err)
	}
	return buf.Bytes()
}

// tiffImage binds an empty image to the TIFF codec from the default
// registry.
func tiffImage(t *testing.T) *Image {
	t.Helper()
	im, err := New("tiff")
	if err != nil {
		t.Fatalf("failed to bind image: %v", err)
	}
	return im
}

// bindImage registers a codec in a private registry and binds an image to
// it.
func bindImage(t *testing.T, impl codec.Format) *Image {
	t.Helper()
	registry := codec.NewRegistry()
	if err := registry.Register("fake", nil, codec.Capabilities{}, impl); err != nil {
		t.Fatalf("failed to register codec: %v", err)
	}
	im, err := NewWith(registry, "fake")
	if err != nil {
		t.Fatalf("failed to bind image: %v", err)
	}
	return im
}

// testPattern returns a 4x4 gradient with one translucent texel.
func testPattern() *image.NRGBA {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			i := src.PixOffset(x, y)
			src.Pix[i+0] = uint8(x * 60)
			src.Pix[i+1] = uint8(y * 60)
			src.Pix[i+2] = 25
			src.Pix[i+3] = 255
		}
	}
	src.Pix[3] = 128
	return src
}

// populate adopts the test pattern as owned content.
func populate(t *testing.T, im *Image) {
	t.Helper()
	if err := im.SetImage(testPattern()); err != nil {
		t.Fatalf("failed to populate image: %v", err)
	}
}

// encodeImage serializes the image's content to a byte slice.
func encodeImage(t *testing.T, im *Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := im.WriteStream(codec.NewContext(), &buf); err != nil {
		t.Fatalf("failed to write stream: %v", err)
	}
	return buf.Bytes()
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New("no-such-format"); err == nil {
		t.Error("New accepted an unregistered format name")
	}
	if _, err := NewWith(codec.NewRegistry(), "tiff"); err == nil {
		t.Error("NewWith found tiff in an empty registry")
	}
}

func TestNewBindsFormat(t *testing.T) {
	im := tiffImage(t)
	if im.FormatName() != "TIFF" {
		t.Errorf("FormatName() = %q, want %q", im.FormatName(), "TIFF")
	}
	if !im.Empty() {
		t.Error("fresh image is not empty")
	}
	if im.Texture() != nil {
		t.Error("fresh image hands back a texture")
	}
	if pixels, palette := im.Borrowed(); pixels || palette {
		t.Error("fresh image reports borrowed buffers")
	}
}

func TestStreamRoundTrip(t *testing.T) {
	src := testPattern()
	im := tiffImage(t)
	if err := im.SetImage(src); err != nil {
		t.Fatalf("SetImage failed: %v", err)
	}
	data := encodeImage(t, im)

	out := tiffImage(t)
	if err := out.ReadStream(codec.NewContext(), bytes.NewReader(data)); err != nil {
		t.Fatalf("ReadStream failed: %v", err)
	}
	if out.Empty() {
		t.Fatal("image is empty after a successful decode")
	}
	tex := out.Texture()
	if tex.Width() != 4 || tex.Height() != 4 {
		t.Fatalf("decoded %dx%d, want 4x4", tex.Width(), tex.Height())
	}
	if pixels, palette := out.Borrowed(); pixels || palette {
		t.Error("decoded buffers report as borrowed")
	}

	view, err := out.ToImage()
	if err != nil {
		t.Fatalf("ToImage failed: %v", err)
	}
	if !bytes.Equal(view.(*image.NRGBA).Pix, src.Pix) {
		t.Error("pixels changed across the stream round trip")
	}
}

func TestReadStreamCompressed(t *testing.T) {
	im := tiffImage(t)
	populate(t, im)
	data := encodeImage(t, im)

	out := tiffImage(t)
	if err := out.ReadStream(codec.NewContext(), bytes.NewReader(zlibCompress(t, data))); err != nil {
		t.Fatalf("ReadStream failed on a zlib wrapped stream: %v", err)
	}
	if tex := out.Texture(); tex == nil || tex.Width() != 4 {
		t.Error("compressed stream did not decode to the original texture")
	}
}

func TestReadStreamFailureLeavesEmpty(t *testing.T) {
	im := tiffImage(t)
	populate(t, im)

	err := im.ReadStream(codec.NewContext(), bytes.NewReader([]byte("not a texture stream")))
	if err == nil {
		t.Fatal("ReadStream accepted garbage")
	}
	var mismatch codec.FormatMismatchError
	if !errors.As(err, &mismatch) {
		t.Errorf("error = %v, want a format mismatch", err)
	}
	if !im.Empty() {
		t.Error("image kept stale content after a failed decode")
	}
}

func TestWriteStreamEmpty(t *testing.T) {
	im := tiffImage(t)
	if err := im.WriteStream(codec.NewContext(), &bytes.Buffer{}); !errors.Is(err, ErrEmpty) {
		t.Errorf("error = %v, want ErrEmpty", err)
	}
}

func TestFetchKeepsHold(t *testing.T) {
	t.Run("pixels", func(t *testing.T) {
		tex := rgbaTexture(t, 4, 2)
		r := NewRaster(tex)
		if r.Refs() != 0 {
			t.Fatalf("baseline refs = %d, want 0", r.Refs())
		}

		im := tiffImage(t)
		if err := im.FetchFromRaster(codec.NewContext(), r); err != nil {
			t.Fatalf("FetchFromRaster failed: %v", err)
		}
		if im.Empty() {
			t.Fatal("image is empty after a successful fetch")
		}
		pixels, palette := im.Borrowed()
		if !pixels || palette {
			t.Errorf("Borrowed() = %v, %v, want pixels only", pixels, palette)
		}
		if r.Refs() != 1 {
			t.Errorf("refs while borrowed = %d, want 1", r.Refs())
		}
		if &im.Texture().Mipmaps[0].Data[0] != &tex.Mipmaps[0].Data[0] {
			t.Error("pixel buffer was copied instead of borrowed")
		}

		im.Clear()
		if !im.Empty() {
			t.Error("image is not empty after Clear")
		}
		if r.Refs() != 0 {
			t.Errorf("refs after Clear = %d, want baseline 0", r.Refs())
		}
	})

	t.Run("palette", func(t *testing.T) {
		f := texel.Format{Kind: texel.KindRGB888, Depth: 8, RowAlign: 4, Palette: texel.Palette8}
		src, err := texel.NewImage(f, 4, 2)
		if err != nil {
			t.Fatalf("failed to create image: %v", err)
		}
		src.PaletteLen = 16
		r := NewRaster(codec.NewTexture(src))

		im := tiffImage(t)
		if err := im.FetchFromRaster(codec.NewContext(), r); err != nil {
			t.Fatalf("FetchFromRaster failed: %v", err)
		}
		if pixels, palette := im.Borrowed(); !pixels || !palette {
			t.Errorf("Borrowed() = %v, %v, want both", pixels, palette)
		}
		if r.Refs() != 1 {
			t.Errorf("refs while borrowed = %d, want 1", r.Refs())
		}
	})
}

func TestDoubleFetchReturnsBaseline(t *testing.T) {
	first := NewRaster(rgbaTexture(t, 2, 2))
	second := NewRaster(rgbaTexture(t, 2, 2))
	im := tiffImage(t)

	if err := im.FetchFromRaster(codec.NewContext(), first); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if err := im.FetchFromRaster(codec.NewContext(), first); err != nil {
		t.Fatalf("repeat fetch failed: %v", err)
	}
	if first.Refs() != 1 {
		t.Errorf("refs after fetching twice = %d, want 1", first.Refs())
	}

	if err := im.FetchFromRaster(codec.NewContext(), second); err != nil {
		t.Fatalf("fetch from the second raster failed: %v", err)
	}
	if first.Refs() != 0 {
		t.Errorf("first raster refs = %d, want baseline 0", first.Refs())
	}
	if second.Refs() != 1 {
		t.Errorf("second raster refs = %d, want 1", second.Refs())
	}

	im.Clear()
	if second.Refs() != 0 {
		t.Errorf("second raster refs after Clear = %d, want 0", second.Refs())
	}
}

func TestFetchEmptyRaster(t *testing.T) {
	im := tiffImage(t)
	populate(t, im)

	r := &Raster{}
	if err := im.FetchFromRaster(codec.NewContext(), r); !errors.Is(err, ErrRasterEmpty) {
		t.Errorf("error = %v, want ErrRasterEmpty", err)
	}
	if !im.Empty() {
		t.Error("image kept stale content after a failed fetch")
	}
	if r.Refs() != 0 {
		t.Errorf("refs after a failed fetch = %d, want 0", r.Refs())
	}
}

func TestFetchFailureLeavesEmpty(t *testing.T) {
	r := NewRaster(&codec.Texture{Compression: texel.CompressionPVRTC4RGB})
	im := tiffImage(t)
	populate(t, im)

	err := im.FetchFromRaster(codec.NewContext(), r)
	var unsupported codec.UnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want an unsupported variant", err)
	}
	if !im.Empty() {
		t.Error("image kept stale content after a failed fetch")
	}
	if r.Refs() != 0 {
		t.Errorf("refs after a failed fetch = %d, want 0", r.Refs())
	}
}

func TestPutMovesContent(t *testing.T) {
	im := tiffImage(t)
	populate(t, im)
	data := im.Texture().Mipmaps[0].Data

	r := &Raster{}
	if err := im.PutToRaster(codec.NewContext(), r); err != nil {
		t.Fatalf("PutToRaster failed: %v", err)
	}
	if !im.Empty() {
		t.Error("image is not empty after handing its content over")
	}
	tex := r.Texture()
	if tex == nil || tex.Width() != 4 || tex.Height() != 4 {
		t.Fatalf("raster texture = %+v, want the 4x4 source", tex)
	}
	if &tex.Mipmaps[0].Data[0] != &data[0] {
		t.Error("pixel buffer was copied instead of handed over")
	}
	if r.Refs() != 0 {
		t.Errorf("refs after put = %d, want 0", r.Refs())
	}
}

func TestPutBorrowedRefused(t *testing.T) {
	src := NewRaster(rgbaTexture(t, 2, 2))
	im := tiffImage(t)
	if err := im.FetchFromRaster(codec.NewContext(), src); err != nil {
		t.Fatalf("FetchFromRaster failed: %v", err)
	}

	dst := &Raster{}
	if err := im.PutToRaster(codec.NewContext(), dst); !errors.Is(err, ErrDataBorrowed) {
		t.Fatalf("error = %v, want ErrDataBorrowed", err)
	}
	if im.Empty() {
		t.Error("refused put emptied the image")
	}
	if dst.Texture() != nil {
		t.Error("refused put still reached the raster")
	}
	if src.Refs() != 1 {
		t.Errorf("source raster refs = %d, want the hold kept", src.Refs())
	}

	// Owned content lifts the refusal.
	populate(t, im)
	if src.Refs() != 0 {
		t.Errorf("source raster refs after repopulating = %d, want 0", src.Refs())
	}
	if err := im.PutToRaster(codec.NewContext(), dst); err != nil {
		t.Errorf("put of owned content failed: %v", err)
	}
}

func TestPutEmpty(t *testing.T) {
	im := tiffImage(t)
	if err := im.PutToRaster(codec.NewContext(), &Raster{}); !errors.Is(err, ErrEmpty) {
		t.Errorf("error = %v, want ErrEmpty", err)
	}
}

var errPushRejected = errors.New("push rejected")

// copyingCodec is a raster bridge whose hops copy buffers, never handing
// them over directly.
type copyingCodec struct {
	pushErr error
}

func (copyingCodec) Sniff(io.ReadSeeker) error {
	return codec.FormatMismatchError("copying test codec")
}

func (copyingCodec) Decode(*codec.Context, io.ReadSeeker) (*codec.Texture, error) {
	return nil, codec.UnsupportedError("copying test codec does not decode")
}

func (copyingCodec) Encode(*codec.Context, io.Writer, *codec.Texture) error {
	return codec.UnsupportedError("copying test codec does not encode")
}

func (copyingCodec) FetchRaster(_ *codec.Context, src *codec.Texture) (*codec.Texture, codec.AcquireFeedback, error) {
	return src.Clone(), codec.AcquireFeedback{}, nil
}

func (c copyingCodec) PushRaster(_ *codec.Context, img *codec.Texture) (*codec.Texture, codec.AcquireFeedback, error) {
	if c.pushErr != nil {
		return nil, codec.AcquireFeedback{}, c.pushErr
	}
	return img.Clone(), codec.AcquireFeedback{}, nil
}

// streamOnlyCodec has no raster bridge.
type streamOnlyCodec struct{}

func (streamOnlyCodec) Sniff(io.ReadSeeker) error {
	return codec.FormatMismatchError("stream only test codec")
}

func (streamOnlyCodec) Decode(*codec.Context, io.ReadSeeker) (*codec.Texture, error) {
	return nil, codec.UnsupportedError("stream only test codec does not decode")
}

func (streamOnlyCodec) Encode(*codec.Context, io.Writer, *codec.Texture) error {
	return codec.UnsupportedError("stream only test codec does not encode")
}

func TestPutFailureKeepsContent(t *testing.T) {
	im := bindImage(t, copyingCodec{pushErr: errPushRejected})
	populate(t, im)

	r := &Raster{}
	if err := im.PutToRaster(codec.NewContext(), r); !errors.Is(err, errPushRejected) {
		t.Fatalf("error = %v, want the injected push failure", err)
	}
	if im.Empty() {
		t.Error("failed put emptied the image")
	}
	if r.Texture() != nil {
		t.Error("failed put still replaced the raster texture")
	}
}

func TestFetchCopyingBridgeTakesNoHold(t *testing.T) {
	im := bindImage(t, copyingCodec{})
	r := NewRaster(rgbaTexture(t, 2, 2))

	if err := im.FetchFromRaster(codec.NewContext(), r); err != nil {
		t.Fatalf("FetchFromRaster failed: %v", err)
	}
	if im.Empty() {
		t.Fatal("image is empty after a successful fetch")
	}
	if pixels, palette := im.Borrowed(); pixels || palette {
		t.Errorf("Borrowed() = %v, %v, want neither on a copying hop", pixels, palette)
	}
	if r.Refs() != 0 {
		t.Errorf("refs after a copying fetch = %d, want 0", r.Refs())
	}
	if &im.Texture().Mipmaps[0].Data[0] == &r.Texture().Mipmaps[0].Data[0] {
		t.Error("copying hop still shares the raster's buffer")
	}

	im.Clear()
	if r.Refs() != 0 {
		t.Errorf("refs after Clear = %d, want 0 with no double release", r.Refs())
	}
}

func TestStreamOnlyFormatCannotHopRasters(t *testing.T) {
	im := bindImage(t, streamOnlyCodec{})
	var unsupported codec.UnsupportedError

	err := im.FetchFromRaster(codec.NewContext(), NewRaster(rgbaTexture(t, 2, 2)))
	if !errors.As(err, &unsupported) {
		t.Errorf("fetch error = %v, want an unsupported variant", err)
	}
	if err := im.PutToRaster(codec.NewContext(), &Raster{}); !errors.As(err, &unsupported) {
		t.Errorf("put error = %v, want an unsupported variant", err)
	}
}

func TestClone(t *testing.T) {
	t.Run("owned content is deep copied", func(t *testing.T) {
		im := tiffImage(t)
		populate(t, im)

		clone := im.Clone()
		if clone.FormatName() != im.FormatName() {
			t.Error("clone lost the format binding")
		}
		if clone.Empty() {
			t.Fatal("clone of a populated image is empty")
		}
		if &clone.Texture().Mipmaps[0].Data[0] == &im.Texture().Mipmaps[0].Data[0] {
			t.Fatal("clone shares owned buffers")
		}
		im.Texture().Mipmaps[0].Data[0] ^= 0xFF
		if clone.Texture().Mipmaps[0].Data[0] == im.Texture().Mipmaps[0].Data[0] {
			t.Error("mutating the original reached the clone")
		}
	})

	t.Run("borrowed content shares and re-acquires", func(t *testing.T) {
		r := NewRaster(rgbaTexture(t, 2, 2))
		im := tiffImage(t)
		if err := im.FetchFromRaster(codec.NewContext(), r); err != nil {
			t.Fatalf("FetchFromRaster failed: %v", err)
		}

		clone := im.Clone()
		if r.Refs() != 2 {
			t.Fatalf("refs after cloning a borrower = %d, want 2", r.Refs())
		}
		if &clone.Texture().Mipmaps[0].Data[0] != &im.Texture().Mipmaps[0].Data[0] {
			t.Error("clone of borrowed content copied the buffer")
		}
		if pixels, _ := clone.Borrowed(); !pixels {
			t.Error("clone does not report the borrow")
		}

		im.Clear()
		if r.Refs() != 1 {
			t.Errorf("refs after clearing the original = %d, want 1", r.Refs())
		}
		clone.Clear()
		if r.Refs() != 0 {
			t.Errorf("refs after clearing both = %d, want 0", r.Refs())
		}
	})

	t.Run("empty", func(t *testing.T) {
		im := tiffImage(t)
		clone := im.Clone()
		if !clone.Empty() {
			t.Error("clone of an empty image holds data")
		}
		if clone.FormatName() != "TIFF" {
			t.Error("clone lost the format binding")
		}
	})
}

func TestDetectFormat(t *testing.T) {
	im := tiffImage(t)
	populate(t, im)
	rs := bytes.NewReader(encodeImage(t, im))

	name, err := DetectFormat(rs)
	if err != nil {
		t.Fatalf("DetectFormat failed: %v", err)
	}
	if name != "TIFF" {
		t.Errorf("DetectFormat() = %q, want %q", name, "TIFF")
	}
	if pos, _ := rs.Seek(0, io.SeekCurrent); pos != 0 {
		t.Errorf("stream left at %d, want the starting position", pos)
	}

	if _, err := DetectFormat(bytes.NewReader([]byte("????????"))); !errors.Is(err, codec.ErrUnknownFormat) {
		t.Errorf("error = %v, want ErrUnknownFormat", err)
	}
}
