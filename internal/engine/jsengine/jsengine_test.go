package jsengine

import (
	"context"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erinpentecost/cmapsync/internal/colormap"
	"github.com/erinpentecost/cmapsync/internal/engine"
	"github.com/erinpentecost/cmapsync/internal/engine/native"
)

func boot(t *testing.T, fn engine.BootFunc) (engine.Engine, engine.Registry) {
	t.Helper()
	eng, err := fn(context.Background())
	require.NoError(t, err)
	gray, err := colormap.EvenTable("gray", []color.RGBA{{0, 0, 0, 255}, {255, 255, 255, 255}}, colormap.BlendRGB)
	require.NoError(t, err)
	reg := eng.NewRegistry()
	reg.AddColormap("gray", gray)
	return eng, reg
}

func TestRegistry(t *testing.T) {
	_, reg := boot(t, Boot())
	require.True(t, reg.Has("gray"))
	require.False(t, reg.Has("toString"))
	require.Equal(t, []string{"gray"}, reg.Names())
}

func TestMatchesNativeEngine(t *testing.T) {
	jsEng, jsReg := boot(t, Boot())
	goEng, goReg := boot(t, native.Boot(1))

	tests := []struct {
		name    string
		in      []float64
		takeLog bool
	}{
		{name: "linear", in: []float64{0, 0.5, 1.0}},
		{name: "unsorted", in: []float64{4, -2, 9, 1.5, 3}},
		{name: "log", in: []float64{1, 10, 1000, 0.01}, takeLog: true},
		{name: "constant", in: []float64{2, 2}},
		{name: "empty", in: []float64{}},
		{name: "only infinities", in: []float64{math.Inf(1), math.Inf(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := goEng.NormalizeBuffer(goReg, "gray", tt.in, tt.takeLog)
			require.NoError(t, err)
			got, err := jsEng.NormalizeBuffer(jsReg, "gray", tt.in, tt.takeLog)
			require.NoError(t, err)
			require.InDeltaSlice(t, want, got, 1e-9)
		})
	}
}

func TestNonFiniteValues(t *testing.T) {
	eng, reg := boot(t, Boot())
	out, err := eng.NormalizeBuffer(reg, "gray", []float64{-1, 10, 100}, true)
	require.NoError(t, err)
	require.True(t, math.IsNaN(out[0]))
	require.Equal(t, 0.0, out[1])
	require.Equal(t, 255.0, out[2])
}

func TestUnknownColormap(t *testing.T) {
	eng, reg := boot(t, Boot())
	out, err := eng.NormalizeBuffer(reg, "plasma", []float64{1, 2}, false)
	require.ErrorIs(t, err, engine.ErrUnknownColormap)
	require.Nil(t, out)
}

func TestForeignRegistry(t *testing.T) {
	eng, _ := boot(t, Boot())
	_, otherReg := boot(t, Boot())
	_, err := eng.NormalizeBuffer(otherReg, "gray", []float64{1}, false)
	require.Error(t, err)
}

func TestBootFailures(t *testing.T) {
	tests := map[string]string{
		"syntax error":     "function (",
		"throws":           "throw new Error('no engine');",
		"missing function": "function newRegistry() { return {}; }",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			eng, err := BootSource(name, src)(context.Background())
			require.Error(t, err)
			require.Nil(t, eng)
		})
	}
}
