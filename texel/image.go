package texel

import (
	"errors"
	"fmt"
)

// Allocation guards. Dimensions and buffer sizes beyond these limits are
// rejected before any allocation happens.
const (
	maxDimension  = 1 << 20
	maxImageBytes = 1 << 30
)

var (
	// ErrBadDimensions reports non-positive or absurd image dimensions.
	ErrBadDimensions = errors.New("texel: invalid image dimensions")
	// ErrImageTooLarge reports a buffer size beyond the allocation limit.
	ErrImageTooLarge = errors.New("texel: image exceeds the allocation limit")
	// ErrCompressed reports a texel operation on block-compressed data.
	ErrCompressed = errors.New("texel: operation requires uncompressed texels")
	// ErrNoData reports an operation on an image without a backing buffer.
	ErrNoData = errors.New("texel: image has no texel data")
	// ErrPaletteTooLarge reports a palette that does not fit the destination
	// index depth.
	ErrPaletteTooLarge = errors.New("texel: palette does not fit the destination index depth")
	// ErrNeedPalette reports a conversion into an indexed format without a
	// destination palette.
	ErrNeedPalette = errors.New("texel: conversion to an indexed format requires a palette")
)

// Image is a single raster: a format descriptor, the texel rows, and the
// palette table for indexed formats. The backing slices have exactly one
// owner at a time; hand-off between owners moves the slice headers without
// copying.
type Image struct {
	Format      Format
	Width       int
	Height      int
	Data        []byte
	Palette     []byte
	PaletteLen  int
	Compression Compression
	HasAlpha    bool
}

// NewImage allocates an image of the given format and dimensions. The texel
// buffer is zeroed; indexed formats also get a zeroed full-size palette table
// with PaletteLen 0. Size and overflow guards run before any allocation.
func NewImage(f Format, width, height int) (*Image, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadDimensions, width, height)
	}
	rowSize := f.RowSize(width)
	size := int64(rowSize) * int64(height)
	if size <= 0 || size > maxImageBytes {
		return nil, fmt.Errorf("%w: %dx%d at depth %d", ErrImageTooLarge, width, height, f.Depth)
	}
	im := &Image{
		Format: f,
		Width:  width,
		Height: height,
		Data:   make([]byte, size),
	}
	if f.Indexed() {
		count := PaletteEntryCount(f.Palette)
		im.Palette = make([]byte, PaletteDataSize(count, f.Kind.ColorDepth()))
	}
	return im, nil
}

// RowSize returns the byte size of one row of the image.
func (im *Image) RowSize() int {
	return im.Format.RowSize(im.Width)
}

// Row returns the backing slice of row y, capped to the row size.
func (im *Image) Row(y int) []byte {
	rs := im.RowSize()
	off := y * rs
	return im.Data[off : off+rs : off+rs]
}

// Dispatcher returns a texel accessor bound to the image's format and
// palette.
func (im *Image) Dispatcher() *Dispatcher {
	return NewDispatcher(im.Format, im.Palette, im.PaletteLen)
}

// Clone returns a deep copy with freshly owned buffers.
func (im *Image) Clone() *Image {
	c := &Image{
		Format:      im.Format,
		Width:       im.Width,
		Height:      im.Height,
		PaletteLen:  im.PaletteLen,
		Compression: im.Compression,
		HasAlpha:    im.HasAlpha,
	}
	if im.Data != nil {
		c.Data = make([]byte, len(im.Data))
		copy(c.Data, im.Data)
	}
	if im.Palette != nil {
		c.Palette = make([]byte, len(im.Palette))
		copy(c.Palette, im.Palette)
	}
	return c
}

// Release drops the backing buffers. The image is unusable afterwards; the
// single-owner discipline calls this exactly once, on the owner.
func (im *Image) Release() {
	im.Data = nil
	im.Palette = nil
	im.PaletteLen = 0
}
