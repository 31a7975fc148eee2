// Command texkit inspects and converts platform native texture files.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ironsheep/texture-kit/codec"
	_ "github.com/ironsheep/texture-kit/codec/pvr"
	_ "github.com/ironsheep/texture-kit/codec/tiff"
	"github.com/ironsheep/texture-kit/natimage"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

type cli struct {
	Debug   bool             `help:"Enable debug logging." short:"d"`
	Version kong.VersionFlag `help:"Print version information and quit." short:"v"`

	Formats formatsCmd `cmd:"" help:"List the registered texture formats."`
	Info    infoCmd    `cmd:"" help:"Describe a texture file."`
	Convert convertCmd `cmd:"" help:"Convert a texture file between formats."`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("texkit"),
		kong.Description("Inspect and convert platform native texture files."),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("texkit %s (built %s)", Version, BuildTime)},
	)

	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	codec.SetLogger(logger)

	kctx.FatalIfErrorf(kctx.Run())
}

type formatsCmd struct{}

func (formatsCmd) Run() error {
	for _, reg := range codec.Formats() {
		fmt.Printf("%-6s  %-10s  %s\n", reg.Name, strings.Join(reg.Extensions, ","), describeCaps(reg.Caps))
	}
	return nil
}

func describeCaps(caps codec.Capabilities) string {
	var parts []string
	if caps.Palette {
		parts = append(parts, "palette")
	}
	dxt := []struct {
		name string
		ok   bool
	}{
		{"dxt1", caps.DXT1}, {"dxt2", caps.DXT2}, {"dxt3", caps.DXT3},
		{"dxt4", caps.DXT4}, {"dxt5", caps.DXT5},
	}
	for _, d := range dxt {
		if d.ok {
			parts = append(parts, d.name)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

type infoCmd struct {
	File string `arg:"" help:"Texture file to inspect." type:"existingfile"`
	JSON bool   `help:"Emit machine readable JSON."`
}

func (c infoCmd) Run() error {
	info, err := natimage.NewCache().LoadInfo(c.File)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Printf("format:       %s\n", info.Format)
	fmt.Printf("dimensions:   %dx%d\n", info.Width, info.Height)
	fmt.Printf("levels:       %d\n", info.Levels)
	fmt.Printf("compression:  %s\n", info.Compression)
	if info.PaletteEntries > 0 {
		fmt.Printf("palette:      %d entries\n", info.PaletteEntries)
	}
	fmt.Printf("alpha:        %v\n", info.HasAlpha)
	fmt.Printf("file size:    %d bytes\n", info.FileSizeBytes)
	return nil
}
