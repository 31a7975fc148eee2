package pvr

import (
	"github.com/ironsheep/texture-kit/codec"
	"github.com/ironsheep/texture-kit/mipmap"
)

// FetchRaster decompresses the base level into a raw canonical texture. The
// result owns fresh buffers, so nothing of the source is acquired.
func (pvrCodec) FetchRaster(ctx *codec.Context, src *codec.Texture) (*codec.Texture, codec.AcquireFeedback, error) {
	f, ok := FromCompression(src.Compression)
	if !ok {
		return nil, codec.AcquireFeedback{}, codec.UnsupportedError("texture is not PVRTC compressed")
	}
	if len(src.Mipmaps) == 0 {
		return nil, codec.AcquireFeedback{}, codec.MalformedError("texture has no mipmap levels")
	}
	im, err := DecompressLayer(src.Mipmaps[0], f)
	if err != nil {
		return nil, codec.AcquireFeedback{}, err
	}
	out := codec.NewTexture(im)
	out.Name = src.Name
	out.MaskName = src.MaskName
	return out, codec.AcquireFeedback{}, nil
}

// PushRaster compresses raw pixels into a single-level native texture with
// the variant chosen for the image's dimensions and alpha flag.
func (pvrCodec) PushRaster(ctx *codec.Context, img *codec.Texture) (*codec.Texture, codec.AcquireFeedback, error) {
	if img.Compression.Compressed() {
		return nil, codec.AcquireFeedback{}, codec.UnsupportedError("source is already compressed")
	}
	if len(img.Mipmaps) == 0 {
		return nil, codec.AcquireFeedback{}, codec.MalformedError("texture has no mipmap levels")
	}
	im, err := img.LayerImage(0)
	if err != nil {
		return nil, codec.AcquireFeedback{}, err
	}

	f := ChooseInternalFormat(im.Width, im.Height, img.HasAlpha)
	layer, err := CompressLayer(im, f)
	if err != nil {
		return nil, codec.AcquireFeedback{}, err
	}
	out := &codec.Texture{
		Compression:  f.Compression(),
		HasAlpha:     img.HasAlpha,
		KnownMapping: true,
		Name:         img.Name,
		MaskName:     img.MaskName,
		Mipmaps:      []mipmap.Layer{layer},
	}
	return out, codec.AcquireFeedback{}, nil
}
