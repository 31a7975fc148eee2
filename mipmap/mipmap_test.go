package mipmap

import (
	"errors"
	"testing"

	"github.com/ironsheep/texture-kit/texel"
)

func TestDimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h, level  int
		wantW, wantH int
	}{
		{"level 0", 256, 256, 0, 256, 256},
		{"level 3", 256, 256, 3, 32, 32},
		{"level 8", 256, 256, 8, 1, 1},
		{"clamped", 256, 256, 12, 1, 1},
		{"non-square", 128, 32, 4, 8, 2},
		{"narrow clamps early", 128, 32, 6, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Dimensions(tt.w, tt.h, tt.level)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestCountForSize(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want int
	}{
		{"256 square", 256, 256, 9},
		{"single texel", 1, 1, 1},
		{"non-square", 128, 32, 8},
		{"non-power-of-two", 100, 100, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountForSize(tt.w, tt.h); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGenerate_FullChain(t *testing.T) {
	base, err := texel.NewImage(texel.CanonicalRGBA, 256, 256)
	if err != nil {
		t.Fatalf("NewImage failed: %v", err)
	}
	d := base.Dispatcher()
	for y := 0; y < 256; y++ {
		row := base.Row(y)
		for x := 0; x < 256; x++ {
			d.SetRGBA(row, x, 80, 160, 240, 255)
		}
	}

	chain, err := Generate(base, 0)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(chain) != 9 {
		t.Fatalf("chain length: got %d, want 9", len(chain))
	}
	for level, layer := range chain {
		wantW, wantH := Dimensions(256, 256, level)
		if layer.LayerWidth != wantW || layer.LayerHeight != wantH {
			t.Errorf("level %d: got %dx%d, want %dx%d", level, layer.LayerWidth, layer.LayerHeight, wantW, wantH)
		}
		if len(layer.Data) != wantW*wantH*4 {
			t.Errorf("level %d data size: got %d, want %d", level, len(layer.Data), wantW*wantH*4)
		}
	}
	if err := ValidateChain(chain); err != nil {
		t.Errorf("ValidateChain failed: %v", err)
	}

	// A solid base stays solid at every level.
	last := chain[len(chain)-1]
	r, g, b, _ := last.Data[0], last.Data[1], last.Data[2], last.Data[3]
	if r != 80 || g != 160 || b != 240 {
		t.Errorf("1x1 level: got (%d,%d,%d), want (80,160,240)", r, g, b)
	}
}

func TestGenerate_PartialChain(t *testing.T) {
	base, err := texel.NewImage(texel.CanonicalRGBA, 64, 16)
	if err != nil {
		t.Fatalf("NewImage failed: %v", err)
	}
	chain, err := Generate(base, 3)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("chain length: got %d, want 3", len(chain))
	}
	if chain[2].LayerWidth != 16 || chain[2].LayerHeight != 4 {
		t.Errorf("level 2: got %dx%d, want 16x4", chain[2].LayerWidth, chain[2].LayerHeight)
	}
}

func TestGenerate_CompressedRejected(t *testing.T) {
	base, err := texel.NewImage(texel.CanonicalRGBA, 8, 8)
	if err != nil {
		t.Fatalf("NewImage failed: %v", err)
	}
	base.Compression = texel.CompressionPVRTC4RGB
	if _, err := Generate(base, 0); !errors.Is(err, texel.ErrCompressed) {
		t.Errorf("got %v, want ErrCompressed", err)
	}
}

func TestValidateChain_Broken(t *testing.T) {
	tests := []struct {
		name   string
		layers []Layer
	}{
		{"empty", nil},
		{"wrong halving", []Layer{
			{Width: 8, Height: 8, LayerWidth: 8, LayerHeight: 8},
			{Width: 6, Height: 6, LayerWidth: 6, LayerHeight: 6},
		}},
		{"physical below logical", []Layer{
			{Width: 4, Height: 8, LayerWidth: 8, LayerHeight: 8},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateChain(tt.layers); !errors.Is(err, ErrBrokenChain) {
				t.Errorf("got %v, want ErrBrokenChain", err)
			}
		})
	}
}
