package dds

import (
	"encoding/binary"
	"image"
	"image/color"
	"io"
)

func encodeDXT1(w io.Writer, rgba *image.RGBA) error {
	width, height := rgba.Rect.Dx(), rgba.Rect.Dy()
	blocksAcross := (width + 3) / 4
	blocksDown := (height + 3) / 4

	h := header(width, height, ddsdLinearSize, blocksAcross*blocksDown*8)
	binary.LittleEndian.PutUint32(h[pfOffset+4:], ddpfFourCC)
	copy(h[pfOffset+8:], "DXT1")
	if err := writeHeader(w, h); err != nil {
		return err
	}

	for by := 0; by < height; by += 4 {
		for bx := 0; bx < width; bx += 4 {
			var px [16]color.RGBA
			for i := range px {
				// edge blocks repeat the last row/column
				x := min(bx+i%4, width-1)
				y := min(by+i/4, height-1)
				px[i] = rgba.RGBAAt(rgba.Rect.Min.X+x, rgba.Rect.Min.Y+y)
			}
			block := compressBlock(px)
			if _, err := w.Write(block[:]); err != nil {
				return err
			}
		}
	}
	return nil
}

// compressBlock picks the darkest and brightest pixels as endpoints and maps
// every pixel to the nearest of the four interpolated colors.
func compressBlock(px [16]color.RGBA) [8]byte {
	lo, hi := px[0], px[0]
	for _, p := range px[1:] {
		if luma(p) < luma(lo) {
			lo = p
		}
		if luma(p) > luma(hi) {
			hi = p
		}
	}
	c0, c1 := to565(hi), to565(lo)
	if c0 < c1 {
		c0, c1 = c1, c0
	}

	var block [8]byte
	binary.LittleEndian.PutUint16(block[0:], c0)
	binary.LittleEndian.PutUint16(block[2:], c1)
	if c0 == c1 {
		return block
	}

	e0, e1 := from565(c0), from565(c1)
	palette := [4][3]int{
		e0,
		e1,
		{(2*e0[0] + e1[0]) / 3, (2*e0[1] + e1[1]) / 3, (2*e0[2] + e1[2]) / 3},
		{(e0[0] + 2*e1[0]) / 3, (e0[1] + 2*e1[1]) / 3, (e0[2] + 2*e1[2]) / 3},
	}

	var indices uint32
	for i, p := range px {
		best, bestDist := 0, -1
		for j, c := range palette {
			dr, dg, db := int(p.R)-c[0], int(p.G)-c[1], int(p.B)-c[2]
			d := dr*dr + dg*dg + db*db
			if bestDist < 0 || d < bestDist {
				best, bestDist = j, d
			}
		}
		indices |= uint32(best) << (2 * i)
	}
	binary.LittleEndian.PutUint32(block[4:], indices)
	return block
}

func luma(c color.RGBA) int {
	return 299*int(c.R) + 587*int(c.G) + 114*int(c.B)
}

func to565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

func from565(v uint16) [3]int {
	r := int(v>>11) & 0x1F
	g := int(v>>5) & 0x3F
	b := int(v) & 0x1F
	return [3]int{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2}
}
