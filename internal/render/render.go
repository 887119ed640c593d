// Package render turns normalized color indices into pictures.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strings"

	"golang.org/x/image/draw"

	"github.com/erinpentecost/cmapsync/internal/dds"
)

// Colorize lays indices out in rows of width pixels and colors each one
// from lut. NaN becomes transparent. The last row is padded with
// transparent pixels.
func Colorize(indices []float64, lut []color.RGBA, width int) (*image.RGBA, error) {
	if width < 1 {
		return nil, fmt.Errorf("invalid width %d", width)
	}
	if len(lut) == 0 {
		return nil, errors.New("empty lookup table")
	}
	if len(indices) == 0 {
		return nil, errors.New("nothing to render")
	}
	height := (len(indices) + width - 1) / width
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	top := float64(len(lut) - 1)
	for i, v := range indices {
		if math.IsNaN(v) {
			continue
		}
		idx := int(math.Round(math.Max(0, math.Min(top, v))))
		img.SetRGBA(i%width, i/width, lut[idx])
	}
	return img, nil
}

// Resize scales img to w x h. Enlarging keeps hard pixel edges.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	var scaler draw.Scaler = draw.CatmullRom
	if w >= img.Bounds().Dx() && h >= img.Bounds().Dy() {
		scaler = draw.NearestNeighbor
	}
	scaler.Scale(dst, dst.Rect, img, img.Bounds(), draw.Src, nil)
	return dst
}

// Encode writes img as "png" or "dds". codec only applies to dds.
func Encode(w io.Writer, img image.Image, format string, codec dds.Codec) error {
	switch strings.ToLower(format) {
	case "png":
		return png.Encode(w, img)
	case "dds":
		return dds.Encode(w, img, codec)
	}
	return fmt.Errorf("unsupported image format %q", format)
}

// Colorbar writes lut as one line of 24-bit ANSI background swatches,
// width cells wide.
func Colorbar(w io.Writer, lut []color.RGBA, width int) error {
	if width < 1 || len(lut) == 0 {
		return nil
	}
	var sb strings.Builder
	for i := range width {
		idx := 0
		if width > 1 {
			idx = i * (len(lut) - 1) / (width - 1)
		}
		c := lut[idx]
		fmt.Fprintf(&sb, "\x1b[48;2;%d;%d;%dm ", c.R, c.G, c.B)
	}
	sb.WriteString("\x1b[0m\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
