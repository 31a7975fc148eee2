package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/texture-kit/codec"
	"github.com/ironsheep/texture-kit/codec/pvr"
	"github.com/ironsheep/texture-kit/mipmap"
	"github.com/ironsheep/texture-kit/texel"
)

type convertCmd struct {
	Src     string `arg:"" help:"Source texture file." type:"existingfile"`
	Dst     string `arg:"" help:"Destination file; its extension selects the output format." type:"path"`
	Resize  string `help:"Scale the base level to the given size before encoding." placeholder:"WxH"`
	Mipmaps bool   `help:"Regenerate the full mipmap chain before encoding."`
}

func (c convertCmd) Validate() error {
	if c.Resize != "" {
		if _, _, err := parseSize(c.Resize); err != nil {
			return err
		}
	}
	ext := filepath.Ext(c.Dst)
	if _, ok := codec.ByExtension(ext); !ok {
		return fmt.Errorf("no codec registered for extension %q", ext)
	}
	return nil
}

func (c convertCmd) Run() error {
	tex, srcReg, err := decodeFile(c.Src)
	if err != nil {
		return err
	}
	dstReg, _ := codec.ByExtension(filepath.Ext(c.Dst))
	slog.Debug("converting", "from", srcReg.Name, "to", dstReg.Name,
		"size", fmt.Sprintf("%dx%d", tex.Width(), tex.Height()), "levels", len(tex.Mipmaps))

	// Cross-format moves and resizing need raw texels, so compressed
	// sources are expanded through their codec's raster bridge first.
	needRaw := c.Resize != "" || dstReg.Name != srcReg.Name
	if needRaw && tex.Compression.Compressed() {
		bridge, ok := srcReg.Impl.(codec.RasterBridge)
		if !ok {
			return fmt.Errorf("%s textures cannot be expanded to raw texels", srcReg.Name)
		}
		if tex, _, err = bridge.FetchRaster(codec.NewContext(), tex); err != nil {
			return fmt.Errorf("failed to expand %s: %w", c.Src, err)
		}
	}

	if c.Resize != "" {
		if tex, err = resizeTexture(tex, c.Resize); err != nil {
			return err
		}
	}
	if c.Mipmaps {
		if tex, err = regenerateMipmaps(tex); err != nil {
			return err
		}
	}

	out, err := os.Create(c.Dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", c.Dst, err)
	}
	if err := dstReg.Impl.Encode(codec.NewContext(), out, tex); err != nil {
		out.Close()
		os.Remove(c.Dst)
		return fmt.Errorf("failed to encode %s: %w", c.Dst, err)
	}
	return out.Close()
}

// decodeFile detects and decodes one texture file, unwrapping transparent
// whole-file compression.
func decodeFile(path string) (*codec.Texture, *codec.Registration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rs, err := codec.OpenDecompressed(f)
	if err != nil {
		return nil, nil, err
	}
	reg, err := codec.Detect(rs)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	tex, err := reg.Impl.Decode(codec.NewContext(), rs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return tex, reg, nil
}

// resizeTexture scales the base level with Lanczos resampling, dropping any
// further levels.
func resizeTexture(tex *codec.Texture, size string) (*codec.Texture, error) {
	w, h, err := parseSize(size)
	if err != nil {
		return nil, err
	}
	base, err := tex.LayerImage(0)
	if err != nil {
		return nil, err
	}
	view, err := base.NRGBA()
	if err != nil {
		return nil, err
	}
	scaled, err := texel.FromImage(imaging.Resize(view, w, h, imaging.Lanczos))
	if err != nil {
		return nil, err
	}
	scaled.HasAlpha = tex.HasAlpha

	out := codec.NewTexture(scaled)
	out.Name = tex.Name
	out.MaskName = tex.MaskName
	return out, nil
}

// regenerateMipmaps rebuilds the full chain below the base level. Raw
// textures come back in canonical layout; compressed ones keep their
// variant.
func regenerateMipmaps(tex *codec.Texture) (*codec.Texture, error) {
	if tex.Compression.Compressed() {
		if err := pvr.GenerateMipmaps(tex); err != nil {
			return nil, err
		}
		return tex, nil
	}
	base, err := tex.LayerImage(0)
	if err != nil {
		return nil, err
	}
	chain, err := mipmap.Generate(base, 0)
	if err != nil {
		return nil, err
	}
	return &codec.Texture{
		Format:       texel.CanonicalRGBA,
		HasAlpha:     tex.HasAlpha,
		KnownMapping: true,
		Name:         tex.Name,
		MaskName:     tex.MaskName,
		Mipmaps:      chain,
	}, nil
}

func parseSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q is not WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid width in %q", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid height in %q", s)
	}
	return width, height, nil
}
