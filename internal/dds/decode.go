package dds

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/mauserzjeh/dxt"
)

// Decode parses a DDS file and returns an image.Image.
// Supports DXT1, DXT3, DXT5 and uncompressed 24/32-bit RGB(A).
func Decode(raw []byte) (image.Image, error) {
	const total = len(magic) + headerSize
	if len(raw) < total {
		return nil, fmt.Errorf("dds: data too short for header: %d < %d", len(raw), total)
	}
	if string(raw[:4]) != magic {
		return nil, fmt.Errorf("dds: missing magic %q", magic)
	}
	hdr := raw[4:total]
	height := binary.LittleEndian.Uint32(hdr[8:12])
	width := binary.LittleEndian.Uint32(hdr[12:16])
	pf := hdr[pfOffset : pfOffset+32]
	pfFlags := binary.LittleEndian.Uint32(pf[4:8])
	fourCC := string(pf[8:12])
	bitCount := binary.LittleEndian.Uint32(pf[12:16])

	data := raw[total:]
	if len(data) == 0 {
		return nil, fmt.Errorf("dds: no image data")
	}

	var (
		pix []byte
		err error
	)
	switch {
	case pfFlags&ddpfFourCC == 0:
		pix, err = decodeUncompressed(data, int(width), int(height), pf)
	case fourCC == "DXT1":
		pix, err = dxt.DecodeDXT1(data, uint(width), uint(height))
	case fourCC == "DXT3":
		pix, err = dxt.DecodeDXT3(data, uint(width), uint(height))
	case fourCC == "DXT5":
		pix, err = dxt.DecodeDXT5(data, uint(width), uint(height))
	default:
		return nil, fmt.Errorf("dds: unsupported FourCC %q or rgbBits=%d", fourCC, bitCount)
	}
	if err != nil {
		return nil, fmt.Errorf("dds: decode error: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	if len(pix) != len(img.Pix) {
		return nil, fmt.Errorf("dds: unexpected decoded byte length %d, want %d", len(pix), len(img.Pix))
	}
	copy(img.Pix, pix)
	return img, nil
}

// decodeUncompressed reorders 24 or 32-bit pixels into RGBA using the
// channel masks from the pixel format block.
func decodeUncompressed(data []byte, width, height int, pf []byte) ([]byte, error) {
	bits := binary.LittleEndian.Uint32(pf[12:16])
	if bits != 24 && bits != 32 {
		return nil, fmt.Errorf("unsupported bit count %d", bits)
	}
	bpp := int(bits / 8)
	if len(data) < width*height*bpp {
		return nil, fmt.Errorf("data too small (%d < %d)", len(data), width*height*bpp)
	}

	masks := [4]uint32{
		binary.LittleEndian.Uint32(pf[16:20]),
		binary.LittleEndian.Uint32(pf[20:24]),
		binary.LittleEndian.Uint32(pf[24:28]),
		binary.LittleEndian.Uint32(pf[28:32]),
	}
	if masks[0] == 0 && masks[1] == 0 && masks[2] == 0 {
		// legacy BGR(A)
		masks = [4]uint32{0x00FF0000, 0x0000FF00, 0x000000FF, 0xFF000000}
	}

	out := make([]byte, width*height*4)
	for i := range width * height {
		var v uint32
		for b := range bpp {
			v |= uint32(data[i*bpp+b]) << (8 * b)
		}
		for c, m := range masks {
			if m == 0 || (bpp == 3 && c == 3) {
				out[i*4+c] = 0xFF
				continue
			}
			out[i*4+c] = byte((v & m) >> shift(m))
		}
	}
	return out, nil
}

func shift(mask uint32) uint {
	var s uint
	for mask&1 == 0 {
		mask >>= 1
		s++
	}
	return s
}
