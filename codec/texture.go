package codec

import (
	"github.com/ironsheep/texture-kit/mipmap"
	"github.com/ironsheep/texture-kit/texel"
)

// Texture is the canonical carrier that codecs decode into and encode from:
// a layout descriptor, an optional palette, and an ordered mipmap chain.
//
// Raw textures (Compression none) hold texels laid out per Format. Block
// compressed textures hold opaque per-level payloads; their Format is the
// zero value and the Compression tag names the payload encoding.
//
// KnownMapping records whether the texels came through a codec's own layout
// mapping. A decode that had to route through a generic fallback library
// clears it so later logic knows the exact source layout was not preserved.
type Texture struct {
	Format       texel.Format
	Compression  texel.Compression
	HasAlpha     bool
	KnownMapping bool
	Name         string
	MaskName     string
	Palette      []byte
	PaletteLen   int
	Mipmaps      []mipmap.Layer
}

// AcquireFeedback reports which backing buffers of a raster hop were handed
// over directly instead of copied. A direct acquisition means the receiver
// shares the slices and must keep the provider alive.
type AcquireFeedback struct {
	PixelsAcquired  bool
	PaletteAcquired bool
}

// NewTexture wraps a single raw image as a one-level texture. The image's
// buffers are handed over, not copied.
func NewTexture(im *texel.Image) *Texture {
	return &Texture{
		Format:       im.Format,
		Compression:  im.Compression,
		HasAlpha:     im.HasAlpha,
		KnownMapping: true,
		Palette:      im.Palette,
		PaletteLen:   im.PaletteLen,
		Mipmaps: []mipmap.Layer{{
			Width:       im.Width,
			Height:      im.Height,
			LayerWidth:  im.Width,
			LayerHeight: im.Height,
			Data:        im.Data,
		}},
	}
}

// Width returns the logical width of the base layer, or zero for an empty
// texture.
func (t *Texture) Width() int {
	if len(t.Mipmaps) == 0 {
		return 0
	}
	return t.Mipmaps[0].LayerWidth
}

// Height returns the logical height of the base layer, or zero for an empty
// texture.
func (t *Texture) Height() int {
	if len(t.Mipmaps) == 0 {
		return 0
	}
	return t.Mipmaps[0].LayerHeight
}

// LayerImage wraps mipmap level as a texel image sharing the texture's
// buffers. Only raw textures can be viewed this way.
func (t *Texture) LayerImage(level int) (*texel.Image, error) {
	if t.Compression.Compressed() {
		return nil, texel.ErrCompressed
	}
	if level < 0 || level >= len(t.Mipmaps) {
		return nil, texel.ErrNoData
	}
	layer := t.Mipmaps[level]
	return &texel.Image{
		Format:     t.Format,
		Width:      layer.LayerWidth,
		Height:     layer.LayerHeight,
		Data:       layer.Data,
		Palette:    t.Palette,
		PaletteLen: t.PaletteLen,
		HasAlpha:   t.HasAlpha,
	}, nil
}

// Clone returns a deep copy with freshly owned buffers.
func (t *Texture) Clone() *Texture {
	c := *t
	if t.Palette != nil {
		c.Palette = make([]byte, len(t.Palette))
		copy(c.Palette, t.Palette)
	}
	c.Mipmaps = make([]mipmap.Layer, len(t.Mipmaps))
	for i, layer := range t.Mipmaps {
		c.Mipmaps[i] = layer
		if layer.Data != nil {
			c.Mipmaps[i].Data = make([]byte, len(layer.Data))
			copy(c.Mipmaps[i].Data, layer.Data)
		}
	}
	return &c
}
