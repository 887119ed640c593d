// Package dds reads and writes DirectDraw Surface textures, used for
// colormap ramps and rendered colorbars.
package dds

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"
	"io"
)

type Codec int

const (
	// Lossless is uncompressed RGBA8.
	Lossless Codec = iota
	// DXT1 doesn't support alpha.
	DXT1
)

func (c Codec) String() string {
	switch c {
	case Lossless:
		return "lossless"
	case DXT1:
		return "dxt1"
	default:
		return fmt.Sprintf("Codec(%d)", int(c))
	}
}

// ParseCodec is the inverse of Codec.String.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "lossless":
		return Lossless, nil
	case "dxt1":
		return DXT1, nil
	}
	return Lossless, fmt.Errorf("unknown dds codec %q", s)
}

const (
	magic      = "DDS "
	headerSize = 124
	pfOffset   = 72 // pixel format offset inside the header

	ddsdCaps        = 0x1
	ddsdHeight      = 0x2
	ddsdWidth       = 0x4
	ddsdPitch       = 0x8
	ddsdPixelFormat = 0x1000
	ddsdLinearSize  = 0x80000

	ddpfAlphaPixels = 0x1
	ddpfFourCC      = 0x4
	ddpfRGB         = 0x40

	ddscapsTexture = 0x1000
)

// Encode writes m encoded as DDS into w.
func Encode(w io.Writer, m image.Image, codec Codec) error {
	rgba := toRGBA(m)
	width, height := rgba.Rect.Dx(), rgba.Rect.Dy()
	if width == 0 || height == 0 {
		return fmt.Errorf("dds: empty image")
	}
	switch codec {
	case Lossless:
		return encodeLossless(w, rgba)
	case DXT1:
		return encodeDXT1(w, rgba)
	default:
		return fmt.Errorf("unknown codec %v", codec)
	}
}

func toRGBA(m image.Image) *image.RGBA {
	if im, ok := m.(*image.RGBA); ok {
		return im
	}
	b := m.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Rect, m, b.Min, draw.Src)
	return rgba
}

// header fills the fields shared by every variant we write.
func header(width, height int, flags uint32, pitchOrLinear int) [headerSize]byte {
	var h [headerSize]byte
	binary.LittleEndian.PutUint32(h[0:], headerSize)
	binary.LittleEndian.PutUint32(h[4:], ddsdCaps|ddsdHeight|ddsdWidth|ddsdPixelFormat|flags)
	binary.LittleEndian.PutUint32(h[8:], uint32(height))
	binary.LittleEndian.PutUint32(h[12:], uint32(width))
	binary.LittleEndian.PutUint32(h[16:], uint32(pitchOrLinear))
	binary.LittleEndian.PutUint32(h[pfOffset:], 32)
	binary.LittleEndian.PutUint32(h[104:], ddscapsTexture)
	return h
}

func writeHeader(w io.Writer, h [headerSize]byte) error {
	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	_, err := w.Write(h[:])
	return err
}

func encodeLossless(w io.Writer, rgba *image.RGBA) error {
	width, height := rgba.Rect.Dx(), rgba.Rect.Dy()
	rowBytes := width * 4

	h := header(width, height, ddsdPitch, rowBytes)
	binary.LittleEndian.PutUint32(h[pfOffset+4:], ddpfRGB|ddpfAlphaPixels)
	binary.LittleEndian.PutUint32(h[pfOffset+12:], 32)
	// masks put the bytes on disk in R, G, B, A order
	binary.LittleEndian.PutUint32(h[pfOffset+16:], 0x000000FF)
	binary.LittleEndian.PutUint32(h[pfOffset+20:], 0x0000FF00)
	binary.LittleEndian.PutUint32(h[pfOffset+24:], 0x00FF0000)
	binary.LittleEndian.PutUint32(h[pfOffset+28:], 0xFF000000)
	if err := writeHeader(w, h); err != nil {
		return err
	}

	for y := range height {
		off := rgba.PixOffset(rgba.Rect.Min.X, rgba.Rect.Min.Y+y)
		if _, err := w.Write(rgba.Pix[off : off+rowBytes]); err != nil {
			return err
		}
	}
	return nil
}
