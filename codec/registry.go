package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Format is the interface every texture codec implements.
//
// Sniff inspects the stream from its current position and returns nil when
// the stream belongs to this codec; the conventional rejection is a
// FormatMismatchError. Sniff may move the stream; the registry restores
// positions between probes.
//
// Decode reads one texture from the stream into the canonical carrier.
// Encode serializes a texture to the writer. Both report recoverable
// oddities on the Context and reserve errors for real failures.
type Format interface {
	Sniff(rs io.ReadSeeker) error
	Decode(ctx *Context, rs io.ReadSeeker) (*Texture, error)
	Encode(ctx *Context, w io.Writer, t *Texture) error
}

// RasterBridge is implemented by codecs that can move pixel data between
// their native texture form and raw canonical texels.
//
// FetchRaster extracts the pixels of a native texture in raw form. PushRaster
// builds a native texture from raw pixels. Both return AcquireFeedback
// telling the caller which buffers of the input were handed over directly
// rather than copied; a direct acquisition obliges the receiver to keep the
// provider alive.
type RasterBridge interface {
	FetchRaster(ctx *Context, src *Texture) (*Texture, AcquireFeedback, error)
	PushRaster(ctx *Context, img *Texture) (*Texture, AcquireFeedback, error)
}

// Capabilities describes what pixel organizations a codec can store. Generic
// callers use it to pre-filter candidate codecs for a texture without
// attempting an encode.
type Capabilities struct {
	DXT1    bool
	DXT2    bool
	DXT3    bool
	DXT4    bool
	DXT5    bool
	Palette bool
}

// Supports reports whether every capability required by needs is present.
func (c Capabilities) Supports(needs Capabilities) bool {
	if needs.DXT1 && !c.DXT1 {
		return false
	}
	if needs.DXT2 && !c.DXT2 {
		return false
	}
	if needs.DXT3 && !c.DXT3 {
		return false
	}
	if needs.DXT4 && !c.DXT4 {
		return false
	}
	if needs.DXT5 && !c.DXT5 {
		return false
	}
	if needs.Palette && !c.Palette {
		return false
	}
	return true
}

// Registration describes one registered codec.
type Registration struct {
	Name       string
	Extensions []string
	Caps       Capabilities
	Impl       Format
}

// ErrUnknownFormat reports that no registered codec accepted a stream.
var ErrUnknownFormat = errors.New("codec: stream matches no registered format")

// Registry maps format names to codecs. Registration order is preserved and
// drives detection; all methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	order  []*Registration
	byName map[string]*Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Registration)}
}

// Register adds a codec under a unique name. Extensions are normalized to
// lowercase without the leading dot. Registering a name twice is an error.
func (r *Registry) Register(name string, extensions []string, caps Capabilities, impl Format) error {
	if name == "" {
		return errors.New("codec: empty format name")
	}
	if impl == nil {
		return fmt.Errorf("codec: format %q has no implementation", name)
	}
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("codec: format %q already registered", name)
	}
	reg := &Registration{Name: name, Caps: caps, Impl: impl}
	for _, ext := range extensions {
		reg.Extensions = append(reg.Extensions, normalizeExt(ext))
	}
	r.byName[key] = reg
	r.order = append(r.order, reg)
	Logger().Debug("texture format registered", "format", name, "extensions", reg.Extensions)
	return nil
}

// Unregister removes a codec by name and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	reg, exists := r.byName[key]
	if !exists {
		return false
	}
	delete(r.byName, key)
	for i, o := range r.order {
		if o == reg {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Lookup finds a codec by name, case-insensitively.
func (r *Registry) Lookup(name string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byName[strings.ToLower(name)]
	return reg, ok
}

// ByExtension finds the first codec claiming the given file extension.
func (r *Registry) ByExtension(ext string) (*Registration, bool) {
	ext = normalizeExt(ext)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, reg := range r.order {
		for _, e := range reg.Extensions {
			if e == ext {
				return reg, true
			}
		}
	}
	return nil, false
}

// Formats returns the registrations in registration order.
func (r *Registry) Formats() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, len(r.order))
	for i, reg := range r.order {
		out[i] = *reg
	}
	return out
}

// Supporting returns the codecs whose capabilities cover needs, in
// registration order.
func (r *Registry) Supporting(needs Capabilities) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Registration
	for _, reg := range r.order {
		if reg.Caps.Supports(needs) {
			out = append(out, *reg)
		}
	}
	return out
}

// Detect probes registered codecs in registration order against the stream.
// The stream position is restored before every probe and again before
// returning, so the winning codec's Decode can run immediately. Returns
// ErrUnknownFormat when nothing matches.
func (r *Registry) Detect(rs io.ReadSeeker) (*Registration, error) {
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to capture stream position: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, reg := range r.order {
		if _, err := rs.Seek(start, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind stream: %w", err)
		}
		if sniffErr := reg.Impl.Sniff(rs); sniffErr != nil {
			Logger().Debug("detection probe rejected", "format", reg.Name, "reason", sniffErr)
			continue
		}
		if _, err := rs.Seek(start, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind stream: %w", err)
		}
		Logger().Debug("texture format detected", "format", reg.Name)
		return reg, nil
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind stream: %w", err)
	}
	return nil, ErrUnknownFormat
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Default is the registry that format packages register into from their init
// functions.
var Default = NewRegistry()

// Register adds a codec to the Default registry.
func Register(name string, extensions []string, caps Capabilities, impl Format) error {
	return Default.Register(name, extensions, caps, impl)
}

// Unregister removes a codec from the Default registry.
func Unregister(name string) bool { return Default.Unregister(name) }

// Lookup finds a codec in the Default registry.
func Lookup(name string) (*Registration, bool) { return Default.Lookup(name) }

// ByExtension finds a codec in the Default registry by file extension.
func ByExtension(ext string) (*Registration, bool) { return Default.ByExtension(ext) }

// Formats lists the Default registry.
func Formats() []Registration { return Default.Formats() }

// Detect probes the Default registry.
func Detect(rs io.ReadSeeker) (*Registration, error) { return Default.Detect(rs) }
