package natimage

import (
	"sync"

	"github.com/ironsheep/texture-kit/codec"
)

// Raster is the platform-side holder of one native texture. Images fetch
// from it and push to it through their codec's raster bridge, and every
// image that ends up sharing the raster's buffers keeps a reference hold on
// it so the backing memory outlives the image's use.
//
// The zero value is an empty raster with no holds.
type Raster struct {
	mu   sync.RWMutex
	refs int
	tex  *codec.Texture
}

// NewRaster wraps a texture in a raster. The texture's buffers are handed
// over, not copied.
func NewRaster(tex *codec.Texture) *Raster {
	return &Raster{tex: tex}
}

// Acquire adds a reference hold. Every Acquire must be paired with a
// Release.
func (r *Raster) Acquire() {
	r.mu.Lock()
	r.refs++
	r.mu.Unlock()
}

// Release surrenders one reference hold.
func (r *Raster) Release() {
	r.mu.Lock()
	r.refs--
	r.mu.Unlock()
}

// Refs reports the number of outstanding holds.
func (r *Raster) Refs() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refs
}

// Texture returns the held texture, which may be nil. The raster keeps
// ownership; callers that outlive their lock on the surrounding logic must
// Clone it.
func (r *Raster) Texture() *codec.Texture {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tex
}

// SetTexture replaces the held texture, handing the buffers over.
func (r *Raster) SetTexture(tex *codec.Texture) {
	r.mu.Lock()
	r.tex = tex
	r.mu.Unlock()
}
