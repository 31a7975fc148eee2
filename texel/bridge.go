package texel

import (
	"image"
	"image/draw"
)

// FromImage repacks a standard library image into a CanonicalRGBA texel
// image. An *image.NRGBA with a tight stride at the origin hands its pixel
// slice over directly; anything else is redrawn.
func FromImage(src image.Image) (*Image, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if nr, ok := src.(*image.NRGBA); ok && w > 0 && h > 0 &&
		nr.Stride == 4*w && b.Min == (image.Point{}) && len(nr.Pix) == 4*w*h {
		return &Image{
			Format:   CanonicalRGBA,
			Width:    w,
			Height:   h,
			Data:     nr.Pix,
			HasAlpha: true,
		}, nil
	}
	out, err := NewImage(CanonicalRGBA, w, h)
	if err != nil {
		return nil, err
	}
	dst := &image.NRGBA{Pix: out.Data, Stride: out.RowSize(), Rect: image.Rect(0, 0, w, h)}
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	out.HasAlpha = true
	return out, nil
}

// NRGBA converts the image to CanonicalRGBA and wraps the result in an
// *image.NRGBA sharing the converted buffer.
func (im *Image) NRGBA() (*image.NRGBA, error) {
	conv, err := Convert(im, CanonicalRGBA)
	if err != nil {
		return nil, err
	}
	return &image.NRGBA{
		Pix:    conv.Data,
		Stride: conv.RowSize(),
		Rect:   image.Rect(0, 0, conv.Width, conv.Height),
	}, nil
}
