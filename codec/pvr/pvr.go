package pvr

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ironsheep/texture-kit/codec"
	"github.com/ironsheep/texture-kit/internal/pvrtc"
	"github.com/ironsheep/texture-kit/mipmap"
	"github.com/ironsheep/texture-kit/texel"
)

const (
	pvrtMagic    = "PVRT"
	nameFieldLen = 32
	maxNameLen   = nameFieldLen - 1
	headerSize   = 4 + 2*nameFieldLen + 1 + 1 + 2 + 2 + 4 + 4
	maxDimension = 0xFFFF

	// maxLevelBytes bounds what a single level record may ask us to
	// allocate, compressed or decompressed.
	maxLevelBytes = 1 << 30
)

type pvrCodec struct{}

func init() {
	if err := codec.Register("PowerVR", []string{"pvr"}, codec.Capabilities{}, pvrCodec{}); err != nil {
		panic(err)
	}
}

type pvrtHeader struct {
	name        string
	maskName    string
	mipmapCount int
	hasAlpha    bool
	width       int
	height      int
	format      InternalFormat
	streamSize  uint32
}

func parseHeader(b []byte) (pvrtHeader, error) {
	h := pvrtHeader{
		name:        cString(b[4 : 4+nameFieldLen]),
		maskName:    cString(b[36 : 36+nameFieldLen]),
		mipmapCount: int(b[68]),
		hasAlpha:    b[69] != 0,
		width:       int(binary.LittleEndian.Uint16(b[70:])),
		height:      int(binary.LittleEndian.Uint16(b[72:])),
		format:      InternalFormat(binary.LittleEndian.Uint32(b[74:])),
		streamSize:  binary.LittleEndian.Uint32(b[78:]),
	}
	if h.mipmapCount == 0 {
		return h, codec.MalformedError("mipmap count is zero")
	}
	if h.width == 0 || h.height == 0 {
		return h, codec.MalformedError("zero base dimensions")
	}
	if !h.format.Valid() {
		return h, codec.UnsupportedError(fmt.Sprintf("internal format 0x%04X", uint32(h.format)))
	}
	return h, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Sniff accepts streams that open with a plausible PVRT header whose level
// records fit inside the stream.
func (pvrCodec) Sniff(rs io.ReadSeeker) error {
	total, err := codec.StreamSize(rs)
	if err != nil {
		return err
	}
	var hdr [headerSize]byte
	if _, err := io.ReadFull(rs, hdr[:]); err != nil {
		return codec.FormatMismatchError("stream shorter than a PVRT header")
	}
	if string(hdr[:4]) != pvrtMagic {
		return codec.FormatMismatchError("missing PVRT magic")
	}
	h, err := parseHeader(hdr[:])
	if err != nil {
		return codec.FormatMismatchError("implausible PVRT header")
	}
	if int64(headerSize)+int64(h.streamSize) > total {
		return codec.FormatMismatchError("level data overruns the stream")
	}
	return nil
}

// Decode reads a PVRT stream into a compressed texture. Level payloads stay
// in their PVRTC form; each level's size is validated against the block
// grid its dimensions require.
func (pvrCodec) Decode(ctx *codec.Context, rs io.ReadSeeker) (*codec.Texture, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(rs, hdr[:]); err != nil {
		return nil, codec.MalformedError("stream shorter than a PVRT header")
	}
	if string(hdr[:4]) != pvrtMagic {
		return nil, codec.FormatMismatchError("missing PVRT magic")
	}
	h, err := parseHeader(hdr[:])
	if err != nil {
		return nil, err
	}

	t := &codec.Texture{
		Compression:  h.format.Compression(),
		HasAlpha:     h.hasAlpha,
		KnownMapping: true,
		Name:         h.name,
		MaskName:     h.maskName,
		Mipmaps:      make([]mipmap.Layer, 0, h.mipmapCount),
	}
	var consumed uint32
	for level := 0; level < h.mipmapCount; level++ {
		var sizeBuf [4]byte
		if _, err := io.ReadFull(rs, sizeBuf[:]); err != nil {
			return nil, codec.MalformedError(fmt.Sprintf("level %d record truncated", level))
		}
		size := binary.LittleEndian.Uint32(sizeBuf[:])

		lw, lh := mipmap.Dimensions(h.width, h.height, level)
		pw, ph := padDims(h.format, lw, lh)
		expected, err := pvrtc.DataSize(pw, ph, h.format.Depth())
		if err != nil {
			return nil, codec.MalformedError(fmt.Sprintf("level %d has impossible dimensions %dx%d", level, pw, ph))
		}
		if expected > maxLevelBytes {
			return nil, codec.AllocationError(fmt.Sprintf("level %d needs %d bytes", level, expected))
		}
		if int(size) != expected {
			return nil, codec.MalformedError(fmt.Sprintf("level %d payload is %d bytes, need %d", level, size, expected))
		}

		data := make([]byte, size)
		if _, err := io.ReadFull(rs, data); err != nil {
			return nil, codec.MalformedError(fmt.Sprintf("level %d payload truncated", level))
		}
		consumed += 4 + size
		t.Mipmaps = append(t.Mipmaps, mipmap.Layer{
			Width:       pw,
			Height:      ph,
			LayerWidth:  lw,
			LayerHeight: lh,
			Data:        data,
		})
	}
	if consumed != h.streamSize {
		ctx.Warnf("level records span %d bytes, header declares %d", consumed, h.streamSize)
	}
	return t, nil
}

// Encode writes a texture as a PVRT stream. Raw textures are compressed
// level by level with the variant ChooseInternalFormat picks for the base
// dimensions; already-compressed textures are validated and written as-is.
func (pvrCodec) Encode(ctx *codec.Context, w io.Writer, t *codec.Texture) error {
	if len(t.Mipmaps) == 0 {
		return codec.MalformedError("texture has no mipmap levels")
	}
	width, height := t.Width(), t.Height()
	if width <= 0 || height <= 0 {
		return codec.MalformedError("texture has empty base dimensions")
	}
	if width > maxDimension || height > maxDimension {
		return codec.UnsupportedError(fmt.Sprintf("%dx%d exceeds the container's 16-bit dimensions", width, height))
	}
	if len(t.Mipmaps) > 0xFF {
		return codec.UnsupportedError(fmt.Sprintf("%d levels exceed the container's count field", len(t.Mipmaps)))
	}

	var f InternalFormat
	var levels []mipmap.Layer
	if t.Compression == texel.CompressionNone {
		f = ChooseInternalFormat(width, height, t.HasAlpha)
		levels = make([]mipmap.Layer, 0, len(t.Mipmaps))
		for i := range t.Mipmaps {
			im, err := t.LayerImage(i)
			if err != nil {
				return fmt.Errorf("failed to view level %d: %w", i, err)
			}
			layer, err := CompressLayer(im, f)
			if err != nil {
				return fmt.Errorf("failed to compress level %d: %w", i, err)
			}
			levels = append(levels, layer)
		}
	} else {
		var ok bool
		f, ok = FromCompression(t.Compression)
		if !ok {
			return codec.UnsupportedError(fmt.Sprintf("compression %s", t.Compression))
		}
		for i, layer := range t.Mipmaps {
			expected, err := pvrtc.DataSize(layer.Width, layer.Height, f.Depth())
			if err != nil || expected != len(layer.Data) {
				return codec.MalformedError(fmt.Sprintf("level %d payload does not match its dimensions", i))
			}
		}
		levels = t.Mipmaps
	}

	name := t.Name
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
		ctx.Warnf("texture name %q truncated to %d characters", t.Name, maxNameLen)
	}
	mask := t.MaskName
	if len(mask) > maxNameLen {
		mask = mask[:maxNameLen]
		ctx.Warnf("mask name %q truncated to %d characters", t.MaskName, maxNameLen)
	}

	var streamSize uint32
	for _, layer := range levels {
		streamSize += 4 + uint32(len(layer.Data))
	}

	buf := make([]byte, 0, headerSize+int(streamSize))
	buf = append(buf, pvrtMagic...)
	buf = appendName(buf, name)
	buf = appendName(buf, mask)
	buf = append(buf, byte(len(levels)), boolByte(t.HasAlpha))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(width))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(height))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(f))
	buf = binary.LittleEndian.AppendUint32(buf, streamSize)
	for _, layer := range levels {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(layer.Data)))
		buf = append(buf, layer.Data...)
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write PVRT stream: %w", err)
	}
	return nil
}

func appendName(buf []byte, s string) []byte {
	buf = append(buf, s...)
	for i := len(s); i < nameFieldLen; i++ {
		buf = append(buf, 0)
	}
	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
