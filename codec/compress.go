package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

func init() {
	RegisterCompression(zlibProvider{})
	RegisterCompression(gzipProvider{})
	RegisterCompression(zstdProvider{})
}

func sniffMagic(rs io.ReadSeeker, n int) ([]byte, bool) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rs, buf); err != nil {
		return nil, false
	}
	return buf, true
}

type zlibProvider struct{}

func (zlibProvider) Name() string { return "zlib" }

// Sniff checks the two-byte zlib header: deflate method, a sane window, and
// the header checksum divisible by 31.
func (zlibProvider) Sniff(rs io.ReadSeeker) bool {
	h, ok := sniffMagic(rs, 2)
	if !ok {
		return false
	}
	if h[0]&0x0F != 8 || h[0]>>4 > 7 {
		return false
	}
	return (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}

func (zlibProvider) Open(rs io.ReadSeeker) (io.ReadSeeker, error) {
	data, err := io.ReadAll(rs)
	if err != nil {
		return nil, err
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(out), nil
}

type gzipProvider struct{}

func (gzipProvider) Name() string { return "gzip" }

func (gzipProvider) Sniff(rs io.ReadSeeker) bool {
	h, ok := sniffMagic(rs, 2)
	return ok && h[0] == 0x1F && h[1] == 0x8B
}

func (gzipProvider) Open(rs io.ReadSeeker) (io.ReadSeeker, error) {
	data, err := io.ReadAll(rs)
	if err != nil {
		return nil, err
	}
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	out, err := io.ReadAll(gr)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(out), nil
}

type zstdProvider struct{}

func (zstdProvider) Name() string { return "zstd" }

func (zstdProvider) Sniff(rs io.ReadSeeker) bool {
	h, ok := sniffMagic(rs, 4)
	return ok && h[0] == 0x28 && h[1] == 0xB5 && h[2] == 0x2F && h[3] == 0xFD
}

func (zstdProvider) Open(rs io.ReadSeeker) (io.ReadSeeker, error) {
	data, err := io.ReadAll(rs)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(out), nil
}
