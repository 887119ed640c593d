package colormap

// Lightness returns the CIE L* of n evenly spaced samples, each in [0,1].
func (t *Table) Lightness(n int) []float64 {
	samples := t.Sample(n)
	out := make([]float64, len(samples))
	for i, c := range samples {
		l, _, _ := toColorful(c).Lab()
		out[i] = l
	}
	return out
}

// IsSequential reports whether lightness moves in one direction across the
// table, allowing a small wobble from 8-bit quantization.
func (t *Table) IsSequential() bool {
	const tolerance = 0.01
	l := t.Lightness(64)
	var up, down bool
	for i := 1; i < len(l); i++ {
		d := l[i] - l[i-1]
		if d > tolerance {
			up = true
		} else if d < -tolerance {
			down = true
		}
	}
	return !(up && down)
}
