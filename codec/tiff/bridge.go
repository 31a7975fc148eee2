package tiff

import (
	"github.com/ironsheep/texture-kit/codec"
	"github.com/ironsheep/texture-kit/mipmap"
)

// shareBase wraps the base level of a raw texture without copying any
// buffer.
func shareBase(t *codec.Texture) *codec.Texture {
	return &codec.Texture{
		Format:       t.Format,
		HasAlpha:     t.HasAlpha,
		KnownMapping: t.KnownMapping,
		Name:         t.Name,
		MaskName:     t.MaskName,
		Palette:      t.Palette,
		PaletteLen:   t.PaletteLen,
		Mipmaps:      []mipmap.Layer{t.Mipmaps[0]},
	}
}

// FetchRaster hands the base level over directly. TIFF textures already
// hold raw texels, so the hop moves slice headers and reports the
// acquisition instead of copying.
func (tiffCodec) FetchRaster(ctx *codec.Context, src *codec.Texture) (*codec.Texture, codec.AcquireFeedback, error) {
	if src.Compression.Compressed() {
		return nil, codec.AcquireFeedback{}, codec.UnsupportedError("texture holds compressed texels")
	}
	if len(src.Mipmaps) == 0 {
		return nil, codec.AcquireFeedback{}, codec.MalformedError("texture has no mipmap levels")
	}
	fb := codec.AcquireFeedback{PixelsAcquired: true, PaletteAcquired: src.Palette != nil}
	return shareBase(src), fb, nil
}

// PushRaster adopts raw pixels as a native texture, sharing the buffers the
// same way FetchRaster does.
func (tiffCodec) PushRaster(ctx *codec.Context, img *codec.Texture) (*codec.Texture, codec.AcquireFeedback, error) {
	if img.Compression.Compressed() {
		return nil, codec.AcquireFeedback{}, codec.UnsupportedError("source is already compressed")
	}
	if len(img.Mipmaps) == 0 {
		return nil, codec.AcquireFeedback{}, codec.MalformedError("texture has no mipmap levels")
	}
	fb := codec.AcquireFeedback{PixelsAcquired: true, PaletteAcquired: img.Palette != nil}
	return shareBase(img), fb, nil
}
