package codec

import (
	"fmt"
	"io"
	"sync"
)

// StreamSize returns the total length of the stream, restoring the current
// position afterwards.
func StreamSize(rs io.ReadSeeker) (int64, error) {
	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("failed to capture stream position: %w", err)
	}
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to measure stream: %w", err)
	}
	if _, err := rs.Seek(cur, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to rewind stream: %w", err)
	}
	return end, nil
}

// CompressionProvider recognizes and inflates one stream compression scheme.
// Sniff inspects the stream from its current position and may move it; the
// wrapper restores positions between probes. Open consumes the stream and
// returns a fully inflated replacement positioned at the start.
type CompressionProvider interface {
	Name() string
	Sniff(rs io.ReadSeeker) bool
	Open(rs io.ReadSeeker) (io.ReadSeeker, error)
}

var (
	compressionMu sync.RWMutex
	compressions  []CompressionProvider
)

// RegisterCompression adds a provider to the transparent decompression
// wrapper. Providers are probed in registration order.
func RegisterCompression(p CompressionProvider) {
	compressionMu.Lock()
	defer compressionMu.Unlock()
	compressions = append(compressions, p)
}

// OpenDecompressed probes the registered compression providers against the
// stream. On a match the whole payload is inflated into memory and returned
// as a fresh stream at position zero; a provider that matched but failed to
// inflate is a LibraryError. Unrecognized streams are handed back unchanged,
// rewound to where they started.
func OpenDecompressed(rs io.ReadSeeker) (io.ReadSeeker, error) {
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to capture stream position: %w", err)
	}

	compressionMu.RLock()
	defer compressionMu.RUnlock()
	for _, p := range compressions {
		if _, err := rs.Seek(start, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind stream: %w", err)
		}
		if !p.Sniff(rs) {
			continue
		}
		if _, err := rs.Seek(start, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind stream: %w", err)
		}
		out, err := p.Open(rs)
		if err != nil {
			return nil, &LibraryError{Op: "inflate " + p.Name() + " stream", Err: err}
		}
		Logger().Debug("compressed stream inflated", "scheme", p.Name())
		return out, nil
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind stream: %w", err)
	}
	return rs, nil
}
