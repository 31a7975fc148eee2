package pvr

import (
	"fmt"

	"github.com/ironsheep/texture-kit/codec"
	"github.com/ironsheep/texture-kit/internal/pvrtc"
	"github.com/ironsheep/texture-kit/mipmap"
	"github.com/ironsheep/texture-kit/texel"
)

// CompressLayer encodes one raw image as a PVRTC level. Images are
// converted to canonical texels first; dimensions that are not multiples of
// the padding granularity are copied onto a transparent black canvas of the
// padded size. The returned layer owns fresh buffers.
func CompressLayer(im *texel.Image, f InternalFormat) (mipmap.Layer, error) {
	if !f.Valid() {
		return mipmap.Layer{}, codec.UnsupportedError(fmt.Sprintf("internal format 0x%04X", uint32(f)))
	}
	if im.Compression.Compressed() {
		return mipmap.Layer{}, texel.ErrCompressed
	}

	canon := im
	if texel.NeedsConversion(im.Format, texel.CanonicalRGBA) {
		var err error
		canon, err = texel.Convert(im, texel.CanonicalRGBA)
		if err != nil {
			return mipmap.Layer{}, fmt.Errorf("failed to canonicalize layer: %w", err)
		}
	}

	physW, physH := padDims(f, im.Width, im.Height)
	if physW != im.Width || physH != im.Height {
		padded, err := texel.NewImage(texel.CanonicalRGBA, physW, physH)
		if err != nil {
			return mipmap.Layer{}, fmt.Errorf("failed to allocate padded layer: %w", err)
		}
		if err := texel.CopyRegion(padded, 0, 0, canon, 0, 0, physW, physH); err != nil {
			return mipmap.Layer{}, fmt.Errorf("failed to pad layer: %w", err)
		}
		canon = padded
	}

	data, err := pvrtc.Encode(canon.Data, physW, physH, f.Depth(), f.HasAlpha())
	if err != nil {
		return mipmap.Layer{}, fmt.Errorf("failed to compress layer: %w", err)
	}
	return mipmap.Layer{
		Width:       physW,
		Height:      physH,
		LayerWidth:  im.Width,
		LayerHeight: im.Height,
		Data:        data,
	}, nil
}

// DecompressLayer expands one PVRTC level into canonical texels at its
// logical dimensions, cropping away the block padding.
func DecompressLayer(layer mipmap.Layer, f InternalFormat) (*texel.Image, error) {
	if !f.Valid() {
		return nil, codec.UnsupportedError(fmt.Sprintf("internal format 0x%04X", uint32(f)))
	}
	if int64(layer.Width)*int64(layer.Height)*4 > maxLevelBytes {
		return nil, codec.AllocationError(fmt.Sprintf("decompressing %dx%d level", layer.Width, layer.Height))
	}
	raw, err := pvrtc.Decode(layer.Data, layer.Width, layer.Height, f.Depth())
	if err != nil {
		return nil, fmt.Errorf("failed to decompress layer: %w", err)
	}
	full := &texel.Image{
		Format:   texel.CanonicalRGBA,
		Width:    layer.Width,
		Height:   layer.Height,
		Data:     raw,
		HasAlpha: f.HasAlpha(),
	}
	if layer.Width == layer.LayerWidth && layer.Height == layer.LayerHeight {
		return full, nil
	}
	out, err := texel.NewImage(texel.CanonicalRGBA, layer.LayerWidth, layer.LayerHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate cropped layer: %w", err)
	}
	out.HasAlpha = full.HasAlpha
	if err := texel.CopyRegion(out, 0, 0, full, 0, 0, layer.LayerWidth, layer.LayerHeight); err != nil {
		return nil, fmt.Errorf("failed to crop layer: %w", err)
	}
	return out, nil
}

// AppendLayer compresses im and appends it to t's mipmap chain. Unless the
// chain is empty, the image must have the next dimensions in the halving
// sequence.
func AppendLayer(t *codec.Texture, im *texel.Image) error {
	f, ok := FromCompression(t.Compression)
	if !ok {
		return codec.UnsupportedError("texture is not PVRTC compressed")
	}
	if len(t.Mipmaps) > 0 {
		wantW, wantH := mipmap.Dimensions(t.Width(), t.Height(), len(t.Mipmaps))
		if im.Width != wantW || im.Height != wantH {
			return fmt.Errorf("level %d must be %dx%d, got %dx%d: %w",
				len(t.Mipmaps), wantW, wantH, im.Width, im.Height, mipmap.ErrBrokenChain)
		}
	}
	layer, err := CompressLayer(im, f)
	if err != nil {
		return err
	}
	t.Mipmaps = append(t.Mipmaps, layer)
	return nil
}

// ClearMipmaps drops every level beyond the base image.
func ClearMipmaps(t *codec.Texture) {
	if len(t.Mipmaps) > 1 {
		t.Mipmaps = t.Mipmaps[:1]
	}
}

// Info summarizes the layout of a compressed texture.
type Info struct {
	Format   InternalFormat
	Width    int
	Height   int
	Levels   int
	HasAlpha bool
}

// TextureInfo reports the variant, logical base dimensions and level count
// of a PVRTC texture.
func TextureInfo(t *codec.Texture) (Info, error) {
	f, ok := FromCompression(t.Compression)
	if !ok {
		return Info{}, codec.UnsupportedError("texture is not PVRTC compressed")
	}
	if len(t.Mipmaps) == 0 {
		return Info{}, codec.MalformedError("texture has no mipmap levels")
	}
	return Info{
		Format:   f,
		Width:    t.Width(),
		Height:   t.Height(),
		Levels:   len(t.Mipmaps),
		HasAlpha: t.HasAlpha,
	}, nil
}

// GenerateMipmaps rebuilds the chain below the base level: the base is
// decompressed, downsampled to 1x1, and every derived level is compressed
// back. The base level's payload is kept untouched.
func GenerateMipmaps(t *codec.Texture) error {
	f, ok := FromCompression(t.Compression)
	if !ok {
		return codec.UnsupportedError("texture is not PVRTC compressed")
	}
	if len(t.Mipmaps) == 0 {
		return codec.MalformedError("texture has no base level")
	}
	base, err := DecompressLayer(t.Mipmaps[0], f)
	if err != nil {
		return err
	}
	chain, err := mipmap.Generate(base, 0)
	if err != nil {
		return fmt.Errorf("failed to generate mipmap chain: %w", err)
	}

	layers := make([]mipmap.Layer, 1, len(chain))
	layers[0] = t.Mipmaps[0]
	for i := 1; i < len(chain); i++ {
		im := &texel.Image{
			Format:   texel.CanonicalRGBA,
			Width:    chain[i].LayerWidth,
			Height:   chain[i].LayerHeight,
			Data:     chain[i].Data,
			HasAlpha: t.HasAlpha,
		}
		layer, err := CompressLayer(im, f)
		if err != nil {
			return fmt.Errorf("failed to compress level %d: %w", i, err)
		}
		layers = append(layers, layer)
	}
	t.Mipmaps = layers
	return nil
}
