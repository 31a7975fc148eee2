package tiff

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ironsheep/texture-kit/codec"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/image/tiff/lzw"
)

// readStrip loads strip index and inflates it to at least want bytes of
// scanline data. Trailing bytes beyond want are tolerated; writers pad.
func readStrip(rs io.ReadSeeker, base, total int64, f features, index, want int) ([]byte, error) {
	off := int64(f.stripOffsets[index])
	size := int64(f.stripCounts[index])
	if base+off+size > total {
		return nil, codec.MalformedError(fmt.Sprintf("strip %d outside the stream", index))
	}
	if _, err := rs.Seek(base+off, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to strip: %w", err)
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(rs, raw); err != nil {
		return nil, codec.MalformedError(fmt.Sprintf("strip %d truncated", index))
	}

	data, err := inflateStrip(raw, f.compression, want)
	if err != nil {
		return nil, err
	}
	if len(data) < want {
		return nil, codec.MalformedError(fmt.Sprintf("strip %d shorter than its rows", index))
	}
	return data, nil
}

// inflateStrip expands one strip's payload according to the compression tag.
// At most want bytes are produced.
func inflateStrip(raw []byte, compression uint32, want int) ([]byte, error) {
	switch compression {
	case compressionNone:
		return raw, nil
	case compressionLZW:
		r := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer r.Close()
		out, err := io.ReadAll(io.LimitReader(r, int64(want)))
		if err != nil {
			return nil, &codec.LibraryError{Op: "inflate LZW strip", Err: err}
		}
		return out, nil
	case compressionDeflate, compressionDeflateOld:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, &codec.LibraryError{Op: "inflate deflate strip", Err: err}
		}
		defer zr.Close()
		out, err := io.ReadAll(io.LimitReader(zr, int64(want)))
		if err != nil {
			return nil, &codec.LibraryError{Op: "inflate deflate strip", Err: err}
		}
		return out, nil
	case compressionPackBits:
		out, ok := unpackBits(raw, want)
		if !ok {
			return nil, codec.MalformedError("truncated PackBits run")
		}
		return out, nil
	}
	return nil, codec.UnsupportedError(fmt.Sprintf("compression scheme %d", compression))
}

// unpackBits expands a PackBits run-length stream until want bytes are out
// or the input ends. A header byte n of 0..127 copies n+1 literal bytes, -1
// to -127 repeats the next byte 1-n times, and -128 is a filler.
func unpackBits(src []byte, want int) ([]byte, bool) {
	out := make([]byte, 0, want)
	for i := 0; i < len(src) && len(out) < want; {
		n := int8(src[i])
		i++
		switch {
		case n >= 0:
			run := int(n) + 1
			if i+run > len(src) {
				return nil, false
			}
			out = append(out, src[i:i+run]...)
			i += run
		case n == -128:
		default:
			if i >= len(src) {
				return nil, false
			}
			run := 1 - int(n)
			for j := 0; j < run; j++ {
				out = append(out, src[i])
			}
			i++
		}
	}
	return out, len(out) >= want
}
