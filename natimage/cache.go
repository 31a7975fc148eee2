package natimage

import (
	"fmt"
	"os"
	"sync"

	"github.com/ironsheep/texture-kit/codec"
)

// Cache is a thread-safe store of decoded textures keyed by file path, so
// repeated loads of the same texture skip the disk read and decode work.
// Cached textures are shared between callers; treat them as read-only or
// Clone before mutating.
type Cache struct {
	mu       sync.RWMutex
	registry *codec.Registry
	entries  map[string]cacheEntry
}

type cacheEntry struct {
	tex    *codec.Texture
	format string
}

// NewCache creates an empty cache resolving formats against the default
// registry.
func NewCache() *Cache {
	return NewCacheWith(codec.Default)
}

// NewCacheWith creates an empty cache resolving formats against the given
// registry.
func NewCacheWith(registry *codec.Registry) *Cache {
	return &Cache{
		registry: registry,
		entries:  make(map[string]cacheEntry),
	}
}

// Load returns the texture stored at the given path, decoding and caching
// it on first use. The format is detected from the stream contents, after
// unwrapping transparent whole-file compression.
func (c *Cache) Load(path string) (*codec.Texture, error) {
	entry, err := c.loadEntry(path)
	if err != nil {
		return nil, err
	}
	return entry.tex, nil
}

func (c *Cache) loadEntry(path string) (cacheEntry, error) {
	c.mu.RLock()
	if entry, ok := c.entries[path]; ok {
		c.mu.RUnlock()
		return entry, nil
	}
	c.mu.RUnlock()

	entry, err := c.read(path)
	if err != nil {
		return cacheEntry{}, err
	}

	c.mu.Lock()
	c.entries[path] = entry
	c.mu.Unlock()

	return entry, nil
}

func (c *Cache) read(path string) (cacheEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("failed to open texture file: %w", err)
	}
	defer file.Close()

	rs, err := codec.OpenDecompressed(file)
	if err != nil {
		return cacheEntry{}, err
	}
	reg, err := c.registry.Detect(rs)
	if err != nil {
		return cacheEntry{}, err
	}
	tex, err := reg.Impl.Decode(codec.NewContext(), rs)
	if err != nil {
		return cacheEntry{}, err
	}
	return cacheEntry{tex: tex, format: reg.Name}, nil
}

// Evict removes a single texture from the cache.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Clear removes all cached textures.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// TextureInfo describes a texture file without exposing its buffers. The
// JSON field names are part of the tool output format.
type TextureInfo struct {
	Format         string `json:"format"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Levels         int    `json:"levels"`
	Compression    string `json:"compression"`
	PaletteEntries int    `json:"palette_entries"`
	HasAlpha       bool   `json:"has_alpha"`
	FileSizeBytes  int64  `json:"file_size_bytes"`
}

// LoadInfo loads the texture at the given path through the cache and
// reports its metadata.
func (c *Cache) LoadInfo(path string) (*TextureInfo, error) {
	entry, err := c.loadEntry(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat texture file: %w", err)
	}

	return &TextureInfo{
		Format:         entry.format,
		Width:          entry.tex.Width(),
		Height:         entry.tex.Height(),
		Levels:         len(entry.tex.Mipmaps),
		Compression:    entry.tex.Compression.String(),
		PaletteEntries: entry.tex.PaletteLen,
		HasAlpha:       entry.tex.HasAlpha,
		FileSizeBytes:  stat.Size(),
	}, nil
}
