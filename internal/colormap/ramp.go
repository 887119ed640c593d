package colormap

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dblezek/tga"
	"golang.org/x/image/bmp"

	"github.com/erinpentecost/cmapsync/internal/dds"
)

// LoadRamp builds a table from a 1xN ramp image. The format follows the file
// extension: .bmp, .tga or .dds.
func LoadRamp(name string, path string, blend Blend) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading ramp file %q: %w", path, err)
	}
	defer f.Close()
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	t, err := DecodeRamp(name, f, format, blend)
	if err != nil {
		return nil, fmt.Errorf("loading ramp file %q: %w", path, err)
	}
	return t, nil
}

// DecodeRamp reads a ramp image in the given format and spaces its pixels
// evenly over [0,1].
func DecodeRamp(name string, r io.Reader, format string, blend Blend) (*Table, error) {
	var (
		img image.Image
		err error
	)
	switch format {
	case "bmp":
		img, err = bmp.Decode(r)
	case "tga":
		img, err = tga.Decode(r)
	case "dds":
		var raw []byte
		raw, err = io.ReadAll(r)
		if err == nil {
			img, err = dds.Decode(raw)
		}
	default:
		return nil, fmt.Errorf("unsupported ramp format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode color ramp %s: %w", strings.ToUpper(format), err)
	}

	b := img.Bounds()
	if b.Dy() != 1 || b.Dx() < 2 {
		return nil, fmt.Errorf("invalid color ramp dimensions (expected 1xN with N >= 2, got %dx%d)", b.Dx(), b.Dy())
	}
	colors := make([]color.RGBA, b.Dx())
	for x := b.Min.X; x < b.Max.X; x++ {
		c := color.NRGBAModel.Convert(img.At(x, b.Min.Y)).(color.NRGBA)
		colors[x-b.Min.X] = color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
	}
	return EvenTable(name, colors, blend)
}
