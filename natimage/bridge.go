package natimage

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/texture-kit/codec"
	"github.com/ironsheep/texture-kit/texel"
)

// ToImage converts the base mipmap level to a standard library image. The
// result is an independent copy in NRGBA layout. Block compressed textures
// cannot be viewed this way and fail with texel.ErrCompressed.
func (im *Image) ToImage() (image.Image, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	if im.tex == nil {
		return nil, ErrEmpty
	}
	base, err := im.tex.LayerImage(0)
	if err != nil {
		return nil, err
	}
	return base.NRGBA()
}

// SetImage clears the image and adopts a standard library image as an owned
// single-level texture in canonical RGBA layout.
func (im *Image) SetImage(src image.Image) error {
	conv, err := texel.FromImage(src)
	if err != nil {
		return err
	}

	im.mu.Lock()
	defer im.mu.Unlock()
	im.clearLocked()
	im.tex = codec.NewTexture(conv)
	return nil
}

// Resized returns a new image bound to the same codec whose base level is
// scaled to the given dimensions with Lanczos resampling. Mipmap levels
// beyond the base are not carried over.
func (im *Image) Resized(width, height int) (*Image, error) {
	src, err := im.ToImage()
	if err != nil {
		return nil, err
	}
	out := &Image{reg: im.reg}
	if err := out.SetImage(imaging.Resize(src, width, height, imaging.Lanczos)); err != nil {
		return nil, err
	}
	return out, nil
}
