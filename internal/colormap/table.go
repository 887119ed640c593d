// Package colormap defines immutable named color lookup tables and the
// collections they are loaded into.
package colormap

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"slices"
	"sort"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Blend selects the color space stops are interpolated in.
type Blend int

const (
	BlendRGB Blend = iota
	BlendLab
	BlendHCL
)

func (b Blend) String() string {
	switch b {
	case BlendRGB:
		return "rgb"
	case BlendLab:
		return "lab"
	case BlendHCL:
		return "hcl"
	default:
		return fmt.Sprintf("Blend(%d)", int(b))
	}
}

// ParseBlend accepts "rgb", "lab" or "hcl". The empty string is rgb.
func ParseBlend(s string) (Blend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rgb":
		return BlendRGB, nil
	case "lab":
		return BlendLab, nil
	case "hcl":
		return BlendHCL, nil
	}
	return BlendRGB, fmt.Errorf("unknown blend %q", s)
}

// Stop is one control point of a table. Pos is in [0,1].
type Stop struct {
	Pos   float64
	Color color.RGBA
}

// Table is a named, immutable list of color stops.
type Table struct {
	name  string
	stops []Stop
	blend Blend
}

var errNoStops = errors.New("colormap needs at least one stop")

// NewTable validates and copies stops into a new Table.
func NewTable(name string, stops []Stop, blend Blend) (*Table, error) {
	if len(name) == 0 {
		return nil, errors.New("colormap name is empty")
	}
	if len(stops) == 0 {
		return nil, fmt.Errorf("table %q: %w", name, errNoStops)
	}
	for i, s := range stops {
		if math.IsNaN(s.Pos) || s.Pos < 0 || s.Pos > 1 {
			return nil, fmt.Errorf("table %q: stop %d position %v outside [0,1]", name, i, s.Pos)
		}
		if i > 0 && s.Pos < stops[i-1].Pos {
			return nil, fmt.Errorf("table %q: stop %d position %v before previous stop %v", name, i, s.Pos, stops[i-1].Pos)
		}
	}
	return &Table{
		name:  name,
		stops: slices.Clone(stops),
		blend: blend,
	}, nil
}

// EvenTable spaces colors evenly over [0,1].
func EvenTable(name string, colors []color.RGBA, blend Blend) (*Table, error) {
	stops := make([]Stop, len(colors))
	for i, c := range colors {
		pos := 0.0
		if len(colors) > 1 {
			pos = float64(i) / float64(len(colors)-1)
		}
		stops[i] = Stop{Pos: pos, Color: c}
	}
	return NewTable(name, stops, blend)
}

func (t *Table) Name() string { return t.name }

func (t *Table) Blend() Blend { return t.blend }

// Stops returns a copy of the table's stops.
func (t *Table) Stops() []Stop { return slices.Clone(t.stops) }

// At returns the color at position v. Positions outside [0,1] are clamped.
// NaN maps to transparent black.
func (t *Table) At(v float64) color.RGBA {
	if math.IsNaN(v) {
		return color.RGBA{}
	}
	first, last := t.stops[0], t.stops[len(t.stops)-1]
	if v <= first.Pos {
		return first.Color
	}
	if v >= last.Pos {
		return last.Color
	}
	i := sort.Search(len(t.stops), func(i int) bool { return t.stops[i].Pos >= v })
	lo, hi := t.stops[i-1], t.stops[i]
	span := hi.Pos - lo.Pos
	if span == 0 {
		return hi.Color
	}
	return t.mix(lo.Color, hi.Color, (v-lo.Pos)/span)
}

// Sample evaluates the table at n evenly spaced positions.
func (t *Table) Sample(n int) []color.RGBA {
	if n < 1 {
		return nil
	}
	out := make([]color.RGBA, n)
	if n == 1 {
		out[0] = t.At(0)
		return out
	}
	for i := range n {
		out[i] = t.At(float64(i) / float64(n-1))
	}
	return out
}

func (t *Table) mix(a, b color.RGBA, f float64) color.RGBA {
	ca, cb := toColorful(a), toColorful(b)
	var c colorful.Color
	switch t.blend {
	case BlendLab:
		c = ca.BlendLab(cb, f)
	case BlendHCL:
		c = ca.BlendHcl(cb, f)
	default:
		c = ca.BlendRgb(cb, f)
	}
	r, g, bb := c.Clamped().RGB255()
	alpha := float64(a.A) + f*(float64(b.A)-float64(a.A))
	return color.RGBA{R: r, G: g, B: bb, A: uint8(math.Round(alpha))}
}

func toColorful(c color.RGBA) colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}
}
