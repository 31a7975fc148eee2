// Package pvrtc transcodes between raw RGBA texels and PVRTC-style
// block-compressed payloads.
//
// Each 64-bit block covers 4x4 texels at 4 bits per pixel or 8x4 texels at
// 2 bits per pixel and stores two 16-bit endpoint colors plus one modulation
// word. Endpoint colors are shared across block boundaries: the decoder
// bilinearly interpolates the endpoint grids before applying each texel's
// modulation, so a block influences the texels of its neighbors. Blocks are
// laid out row-major and serialized little-endian.
//
// An endpoint word with bit 15 set holds an opaque RGB555 color; with bit 15
// clear it holds A3R4G4B4. Quantization truncates, expansion replicates high
// bits, so colors already on the quantized lattice survive a round trip
// exactly.
package pvrtc

import (
	"encoding/binary"
	"errors"
)

var (
	ErrBadDepth      = errors.New("pvrtc: bits per pixel must be 2 or 4")
	ErrBadDimensions = errors.New("pvrtc: dimensions must be positive multiples of the block size")
	ErrShortData     = errors.New("pvrtc: payload shorter than the block grid requires")
	ErrShortPixels   = errors.New("pvrtc: pixel buffer shorter than width*height*4")
)

// BlockDims returns the texel footprint of one block, or zeros for an
// unsupported depth.
func BlockDims(bpp int) (w, h int) {
	switch bpp {
	case 4:
		return 4, 4
	case 2:
		return 8, 4
	}
	return 0, 0
}

// DataSize returns the compressed payload size for the given dimensions.
func DataSize(width, height, bpp int) (int, error) {
	bw, bh := BlockDims(bpp)
	if bw == 0 {
		return 0, ErrBadDepth
	}
	if width <= 0 || height <= 0 || width%bw != 0 || height%bh != 0 {
		return 0, ErrBadDimensions
	}
	return (width / bw) * (height / bh) * 8, nil
}

// Modulation values interpolate the two endpoints in eighths.
var modWeights = [4]int32{0, 3, 5, 8}

type rgba struct {
	r, g, b, a int32
}

func expand3(v int32) int32 { return v<<5 | v<<2 | v>>1 }
func expand4(v int32) int32 { return v<<4 | v }
func expand5(v int32) int32 { return v<<3 | v>>2 }

func packEndpoint(c rgba, withAlpha bool) uint16 {
	if !withAlpha || c.a == 0xFF {
		return 0x8000 | uint16(c.r>>3)<<10 | uint16(c.g>>3)<<5 | uint16(c.b>>3)
	}
	return uint16(c.a>>5)<<12 | uint16(c.r>>4)<<8 | uint16(c.g>>4)<<4 | uint16(c.b>>4)
}

func unpackEndpoint(w uint16) rgba {
	if w&0x8000 != 0 {
		return rgba{
			r: expand5(int32(w >> 10 & 0x1F)),
			g: expand5(int32(w >> 5 & 0x1F)),
			b: expand5(int32(w & 0x1F)),
			a: 0xFF,
		}
	}
	return rgba{
		r: expand4(int32(w >> 8 & 0x0F)),
		g: expand4(int32(w >> 4 & 0x0F)),
		b: expand4(int32(w & 0x0F)),
		a: expand3(int32(w >> 12 & 0x07)),
	}
}

// lerpAxis locates the two block centers bracketing texel coordinate x and
// the fixed-point fraction between them. Doubled coordinates keep the block
// centers integral; indices clamp at the image edges.
func lerpAxis(x, span, n int) (i0, i1, frac, scale int) {
	scale = 2 * span
	d := 2*x + 1 - span
	i0 = d / scale
	frac = d % scale
	if frac < 0 {
		i0--
		frac += scale
	}
	i1 = i0 + 1
	if i0 < 0 {
		i0 = 0
	}
	if i1 > n-1 {
		i1 = n - 1
	}
	return i0, i1, frac, scale
}

// sampleGrid bilinearly interpolates one endpoint grid at texel (x, y).
// A uniform grid interpolates to its exact value.
func sampleGrid(grid []rgba, nx, ny, bw, bh, x, y int) rgba {
	x0, x1, fx, sx := lerpAxis(x, bw, nx)
	y0, y1, fy, sy := lerpAxis(y, bh, ny)

	c00 := grid[y0*nx+x0]
	c10 := grid[y0*nx+x1]
	c01 := grid[y1*nx+x0]
	c11 := grid[y1*nx+x1]

	w00 := int32((sx - fx) * (sy - fy))
	w10 := int32(fx * (sy - fy))
	w01 := int32((sx - fx) * fy)
	w11 := int32(fx * fy)
	total := int32(sx * sy)

	blend := func(v00, v10, v01, v11 int32) int32 {
		return (v00*w00 + v10*w10 + v01*w01 + v11*w11 + total/2) / total
	}
	return rgba{
		r: blend(c00.r, c10.r, c01.r, c11.r),
		g: blend(c00.g, c10.g, c01.g, c11.g),
		b: blend(c00.b, c10.b, c01.b, c11.b),
		a: blend(c00.a, c10.a, c01.a, c11.a),
	}
}

func mix(a, b, w int32) int32 {
	return (a*(8-w) + b*w + 4) >> 3
}

func lerp(a, b rgba, w int32) rgba {
	return rgba{mix(a.r, b.r, w), mix(a.g, b.g, w), mix(a.b, b.b, w), mix(a.a, b.a, w)}
}

func texelError(c, px rgba) int32 {
	dr := c.r - px.r
	dg := c.g - px.g
	db := c.b - px.b
	da := c.a - px.a
	return dr*dr + dg*dg + db*db + da*da
}

func texelAt(pix []byte, width, x, y int, withAlpha bool) rgba {
	o := (y*width + x) * 4
	c := rgba{r: int32(pix[o]), g: int32(pix[o+1]), b: int32(pix[o+2]), a: 0xFF}
	if withAlpha {
		c.a = int32(pix[o+3])
	}
	return c
}

func brightness(c rgba) int32 { return c.r + c.g + c.b + c.a }

// blockEndpoints picks the darkest and brightest texels of one block as its
// endpoint pair.
func blockEndpoints(pix []byte, width, x0, y0, bw, bh int, withAlpha bool) (lo, hi rgba) {
	lo = texelAt(pix, width, x0, y0, withAlpha)
	hi = lo
	loScore, hiScore := brightness(lo), brightness(hi)
	for ty := 0; ty < bh; ty++ {
		for tx := 0; tx < bw; tx++ {
			px := texelAt(pix, width, x0+tx, y0+ty, withAlpha)
			s := brightness(px)
			if s < loScore {
				lo, loScore = px, s
			}
			if s > hiScore {
				hi, hiScore = px, s
			}
		}
	}
	return lo, hi
}

func bestModulation(a, b, px rgba) uint32 {
	best := uint32(0)
	bestErr := texelError(lerp(a, b, modWeights[0]), px)
	for i := 1; i < len(modWeights); i++ {
		if e := texelError(lerp(a, b, modWeights[i]), px); e < bestErr {
			best, bestErr = uint32(i), e
		}
	}
	return best
}

// Encode compresses tightly packed RGBA texels. Width and height must be
// positive multiples of the block footprint for the chosen depth. When
// withAlpha is false the alpha channel is ignored and every block is stored
// in opaque form.
func Encode(pix []byte, width, height, bpp int, withAlpha bool) ([]byte, error) {
	bw, bh := BlockDims(bpp)
	if bw == 0 {
		return nil, ErrBadDepth
	}
	if width <= 0 || height <= 0 || width%bw != 0 || height%bh != 0 {
		return nil, ErrBadDimensions
	}
	if len(pix) < width*height*4 {
		return nil, ErrShortPixels
	}
	nx, ny := width/bw, height/bh

	// Pass 1: endpoints. The quantized colors feed the same interpolation
	// the decoder will run, so modulation choices see decoder-true values.
	wordA := make([]uint16, nx*ny)
	wordB := make([]uint16, nx*ny)
	gridA := make([]rgba, nx*ny)
	gridB := make([]rgba, nx*ny)
	for by := 0; by < ny; by++ {
		for bx := 0; bx < nx; bx++ {
			lo, hi := blockEndpoints(pix, width, bx*bw, by*bh, bw, bh, withAlpha)
			i := by*nx + bx
			wordA[i] = packEndpoint(lo, withAlpha)
			wordB[i] = packEndpoint(hi, withAlpha)
			gridA[i] = unpackEndpoint(wordA[i])
			gridB[i] = unpackEndpoint(wordB[i])
		}
	}

	// Pass 2: per-texel modulation against the interpolated endpoints.
	out := make([]byte, nx*ny*8)
	for by := 0; by < ny; by++ {
		for bx := 0; bx < nx; bx++ {
			var mod uint32
			for ty := 0; ty < bh; ty++ {
				for tx := 0; tx < bw; tx++ {
					x, y := bx*bw+tx, by*bh+ty
					a := sampleGrid(gridA, nx, ny, bw, bh, x, y)
					b := sampleGrid(gridB, nx, ny, bw, bh, x, y)
					px := texelAt(pix, width, x, y, withAlpha)
					ti := ty*bw + tx
					if bpp == 4 {
						mod |= bestModulation(a, b, px) << (2 * ti)
					} else if texelError(b, px) < texelError(a, px) {
						mod |= 1 << ti
					}
				}
			}
			i := by*nx + bx
			block := uint64(mod) | uint64(wordB[i])<<32 | uint64(wordA[i])<<48
			binary.LittleEndian.PutUint64(out[i*8:], block)
		}
	}
	return out, nil
}

// Decode expands a compressed payload into tightly packed RGBA texels.
func Decode(data []byte, width, height, bpp int) ([]byte, error) {
	bw, bh := BlockDims(bpp)
	if bw == 0 {
		return nil, ErrBadDepth
	}
	if width <= 0 || height <= 0 || width%bw != 0 || height%bh != 0 {
		return nil, ErrBadDimensions
	}
	nx, ny := width/bw, height/bh
	if len(data) < nx*ny*8 {
		return nil, ErrShortData
	}

	mods := make([]uint32, nx*ny)
	gridA := make([]rgba, nx*ny)
	gridB := make([]rgba, nx*ny)
	for i := 0; i < nx*ny; i++ {
		block := binary.LittleEndian.Uint64(data[i*8:])
		mods[i] = uint32(block)
		gridB[i] = unpackEndpoint(uint16(block >> 32))
		gridA[i] = unpackEndpoint(uint16(block >> 48))
	}

	out := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			a := sampleGrid(gridA, nx, ny, bw, bh, x, y)
			b := sampleGrid(gridB, nx, ny, bw, bh, x, y)

			bi := (y/bh)*nx + x/bw
			ti := (y%bh)*bw + x%bw
			var w int32
			if bpp == 4 {
				w = modWeights[mods[bi]>>(2*ti)&3]
			} else {
				w = int32(mods[bi]>>ti&1) * 8
			}

			c := lerp(a, b, w)
			o := (y*width + x) * 4
			out[o+0] = byte(c.r)
			out[o+1] = byte(c.g)
			out[o+2] = byte(c.b)
			out[o+3] = byte(c.a)
		}
	}
	return out, nil
}
