package natimage

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ironsheep/texture-kit/codec"
)

var (
	// ErrEmpty reports an operation that needs a populated image.
	ErrEmpty = errors.New("natimage: image holds no data")

	// ErrRasterEmpty reports a fetch from a raster holding no texture.
	ErrRasterEmpty = errors.New("natimage: raster holds no texture")

	// ErrDataBorrowed reports a push of pixel data the image only borrows
	// from a raster.
	ErrDataBorrowed = errors.New("natimage: pixel data is borrowed from a raster")
)

// Image is a texture carrier bound to one registered codec. It moves data
// between streams and rasters through that codec and tracks whether its
// buffers are owned or borrowed.
//
// All methods are safe for concurrent use. Populating operations serialize
// behind a write lock; queries and stream writes share a read lock. Raster
// locks are always taken after the image's own, so callers must not invoke
// image methods while holding a raster's lock.
type Image struct {
	reg *codec.Registration

	mu      sync.RWMutex
	tex     *codec.Texture
	pixels  bool
	palette bool
	owner   *Raster
}

// New binds an empty image to a named format in the default registry.
func New(format string) (*Image, error) {
	return NewWith(codec.Default, format)
}

// NewWith binds an empty image to a named format in the given registry.
func NewWith(registry *codec.Registry, format string) (*Image, error) {
	reg, ok := registry.Lookup(format)
	if !ok {
		return nil, fmt.Errorf("natimage: no codec registered for format %q", format)
	}
	return &Image{reg: reg}, nil
}

// FormatName returns the name of the bound codec. The binding is fixed at
// construction.
func (im *Image) FormatName() string { return im.reg.Name }

// Empty reports whether the image holds no texture.
func (im *Image) Empty() bool {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.tex == nil
}

// Texture returns the held texture, which may be nil. The image keeps
// ownership; callers must not retain the buffers across a Clear or a
// repopulation.
func (im *Image) Texture() *codec.Texture {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.tex
}

// Borrowed reports which of the image's buffers are shared with a raster
// rather than owned.
func (im *Image) Borrowed() (pixels, palette bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.pixels, im.palette
}

// Clear returns the image to the empty state. Owned buffers are dropped for
// collection; borrowed ones stay with their raster, whose hold is
// surrendered.
func (im *Image) Clear() {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.clearLocked()
}

// clearLocked resets content and flags and surrenders any raster hold. The
// caller holds the write lock.
func (im *Image) clearLocked() {
	im.tex = nil
	im.pixels = false
	im.palette = false
	if im.owner != nil {
		im.owner.Release()
		im.owner = nil
	}
}

// FetchFromRaster populates the image from a raster's texture through the
// bound codec's raster bridge. Previous content is cleared first, so
// repeated fetches never stack raster holds.
//
// The raster is held for the duration of the fetch. When the bridge reports
// that pixel or palette buffers were handed over directly, the hold is kept
// until the image is cleared; otherwise it is surrendered before returning.
// A failed fetch leaves the image empty.
func (im *Image) FetchFromRaster(ctx *codec.Context, r *Raster) error {
	bridge, ok := im.reg.Impl.(codec.RasterBridge)
	if !ok {
		return codec.UnsupportedError(fmt.Sprintf("%s textures cannot hop rasters", im.reg.Name))
	}

	im.mu.Lock()
	defer im.mu.Unlock()
	im.clearLocked()

	r.Acquire()
	r.mu.RLock()
	var (
		tex *codec.Texture
		fb  codec.AcquireFeedback
		err error
	)
	if r.tex == nil {
		err = ErrRasterEmpty
	} else {
		tex, fb, err = bridge.FetchRaster(ctx, r.tex)
	}
	r.mu.RUnlock()
	if err != nil {
		r.Release()
		return err
	}

	im.tex = tex
	im.pixels = fb.PixelsAcquired
	im.palette = fb.PaletteAcquired
	if fb.PixelsAcquired || fb.PaletteAcquired {
		im.owner = r
	} else {
		r.Release()
	}
	return nil
}

// PutToRaster moves the image's content into the raster through the bound
// codec's raster bridge, replacing whatever texture the raster held. Pixel
// data borrowed from another raster is not the image's to give, so the push
// is refused with ErrDataBorrowed. On success the image ends empty; on
// failure it keeps its content.
func (im *Image) PutToRaster(ctx *codec.Context, r *Raster) error {
	bridge, ok := im.reg.Impl.(codec.RasterBridge)
	if !ok {
		return codec.UnsupportedError(fmt.Sprintf("%s textures cannot hop rasters", im.reg.Name))
	}

	im.mu.Lock()
	defer im.mu.Unlock()
	if im.tex == nil {
		return ErrEmpty
	}
	if im.owner != nil {
		return ErrDataBorrowed
	}

	r.mu.Lock()
	tex, _, err := bridge.PushRaster(ctx, im.tex)
	if err == nil {
		r.tex = tex
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	im.clearLocked()
	return nil
}

// ReadStream clears the image and decodes one texture from the stream with
// the bound codec. Transparent whole-stream compression (zlib, gzip, zstd)
// is unwrapped first. A failed decode leaves the image empty; decoded
// buffers are owned.
func (im *Image) ReadStream(ctx *codec.Context, rs io.ReadSeeker) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.clearLocked()

	rs, err := codec.OpenDecompressed(rs)
	if err != nil {
		return err
	}
	tex, err := im.reg.Impl.Decode(ctx, rs)
	if err != nil {
		return err
	}
	im.tex = tex
	return nil
}

// WriteStream serializes the image's texture with the bound codec. The
// image is only read, so queries and other writers may run concurrently.
func (im *Image) WriteStream(ctx *codec.Context, w io.Writer) error {
	im.mu.RLock()
	defer im.mu.RUnlock()
	if im.tex == nil {
		return ErrEmpty
	}
	return im.reg.Impl.Encode(ctx, w, im.tex)
}

// Clone returns an image bound to the same codec and holding the same
// content. Owned buffers are deep-copied; borrowed buffers stay shared and
// the clone takes its own hold on the owning raster.
func (im *Image) Clone() *Image {
	im.mu.RLock()
	defer im.mu.RUnlock()

	out := &Image{reg: im.reg}
	if im.tex == nil {
		return out
	}
	if im.owner != nil {
		out.tex = im.tex
		out.pixels = im.pixels
		out.palette = im.palette
		out.owner = im.owner
		out.owner.Acquire()
		return out
	}
	out.tex = im.tex.Clone()
	return out
}

// DetectFormat probes the default registry and returns the name of the
// first codec claiming the stream, leaving the stream where it started.
// Streams matching no registered codec fail with codec.ErrUnknownFormat.
func DetectFormat(rs io.ReadSeeker) (string, error) {
	reg, err := codec.Detect(rs)
	if err != nil {
		return "", err
	}
	return reg.Name, nil
}
