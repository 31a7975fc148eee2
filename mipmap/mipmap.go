// Package mipmap models mipmap chains: per-level layers that track physical
// and logical dimensions separately, the halving arithmetic, and chain
// generation by downsampling.
package mipmap

import (
	"errors"
	"fmt"

	"github.com/anthonynsimon/bild/transform"

	"github.com/ironsheep/texture-kit/texel"
)

// Layer is one mipmap level. Width and Height are the physical dimensions of
// the stored data; block-compressed payloads round them up to block
// boundaries. LayerWidth and LayerHeight are the logical dimensions of the
// level and drive the halving sequence.
type Layer struct {
	Width       int
	Height      int
	LayerWidth  int
	LayerHeight int
	Data        []byte
}

// ErrBrokenChain reports a layer sequence that does not follow the halving
// rule.
var ErrBrokenChain = errors.New("mipmap: chain does not follow the halving sequence")

// Dimensions returns the logical dimensions of the given level: each level
// halves the base, never dropping below one texel per axis.
func Dimensions(baseWidth, baseHeight, level int) (int, int) {
	w := baseWidth >> level
	h := baseHeight >> level
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// CountForSize returns the length of the full chain from the given base down
// to 1x1 inclusive.
func CountForSize(width, height int) int {
	count := 1
	for width > 1 || height > 1 {
		width, height = Dimensions(width, height, 1)
		count++
	}
	return count
}

// Generate builds a chain of raw layers from a base image by successive
// downsampling with a linear filter. Level 0 is the base itself; levels is
// the total chain length, and any value below one generates the full chain
// down to 1x1.
//
// Every returned layer holds CanonicalRGBA texels with physical dimensions
// equal to the logical ones.
func Generate(base *texel.Image, levels int) ([]Layer, error) {
	if base == nil || base.Data == nil {
		return nil, texel.ErrNoData
	}
	if base.Compression.Compressed() {
		return nil, texel.ErrCompressed
	}
	full := CountForSize(base.Width, base.Height)
	if levels < 1 || levels > full {
		levels = full
	}

	src, err := base.NRGBA()
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize base layer: %w", err)
	}
	chain := make([]Layer, 0, levels)
	chain = append(chain, Layer{
		Width:       base.Width,
		Height:      base.Height,
		LayerWidth:  base.Width,
		LayerHeight: base.Height,
		Data:        src.Pix,
	})
	for level := 1; level < levels; level++ {
		w, h := Dimensions(base.Width, base.Height, level)
		scaled, err := texel.FromImage(transform.Resize(src, w, h, transform.Linear))
		if err != nil {
			return nil, fmt.Errorf("failed to downsample level %d: %w", level, err)
		}
		chain = append(chain, Layer{
			Width:       w,
			Height:      h,
			LayerWidth:  w,
			LayerHeight: h,
			Data:        scaled.Data,
		})
	}
	return chain, nil
}

// ValidateChain checks that the logical dimensions of every layer follow the
// halving sequence rooted at level 0.
func ValidateChain(layers []Layer) error {
	if len(layers) == 0 {
		return fmt.Errorf("%w: empty chain", ErrBrokenChain)
	}
	base := layers[0]
	if base.LayerWidth < 1 || base.LayerHeight < 1 {
		return fmt.Errorf("%w: base layer is %dx%d", ErrBrokenChain, base.LayerWidth, base.LayerHeight)
	}
	for level, layer := range layers {
		w, h := Dimensions(base.LayerWidth, base.LayerHeight, level)
		if layer.LayerWidth != w || layer.LayerHeight != h {
			return fmt.Errorf("%w: level %d is %dx%d, want %dx%d",
				ErrBrokenChain, level, layer.LayerWidth, layer.LayerHeight, w, h)
		}
		if layer.Width < layer.LayerWidth || layer.Height < layer.LayerHeight {
			return fmt.Errorf("%w: level %d physical %dx%d below logical %dx%d",
				ErrBrokenChain, level, layer.Width, layer.Height, layer.LayerWidth, layer.LayerHeight)
		}
	}
	return nil
}
