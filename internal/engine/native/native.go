// Package native is the in-process Go implementation of the numeric engine.
package native

import (
	"context"
	"fmt"
	"image/color"
	"maps"
	"math"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/erinpentecost/cmapsync/internal/colormap"
	"github.com/erinpentecost/cmapsync/internal/engine"
	"github.com/erinpentecost/cmapsync/internal/logger"
)

// LUTSize is the number of entries each colormap is sampled into. Normalized
// output lies in [0, LUTSize-1].
const LUTSize = 256

// chunkSize is the number of samples a single kernel goroutine handles.
const chunkSize = 1 << 16

type Engine struct {
	workers int
}

// Boot returns a booted native engine. workers limits kernel goroutines; a
// value below one means one.
func Boot(workers int) engine.BootFunc {
	return func(ctx context.Context) (engine.Engine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Logger().Info("native engine booted", "workers", max(workers, 1), "lut", LUTSize)
		return &Engine{workers: max(workers, 1)}, nil
	}
}

// Registry stores sampled lookup tables by name.
type Registry struct {
	mux  sync.RWMutex
	luts map[string][]color.RGBA
}

func (e *Engine) NewRegistry() engine.Registry {
	return &Registry{luts: map[string][]color.RGBA{}}
}

func (r *Registry) AddColormap(name string, table *colormap.Table) {
	lut := table.Sample(LUTSize)
	r.mux.Lock()
	defer r.mux.Unlock()
	r.luts[name] = lut
}

func (r *Registry) Has(name string) bool {
	r.mux.RLock()
	defer r.mux.RUnlock()
	_, ok := r.luts[name]
	return ok
}

func (r *Registry) Names() []string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return slices.Sorted(maps.Keys(r.luts))
}

// LUT returns the sampled table for name.
func (r *Registry) LUT(name string) ([]color.RGBA, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	lut, ok := r.luts[name]
	return lut, ok
}

func (e *Engine) NormalizeBuffer(reg engine.Registry, name string, buf []float64, takeLog bool) ([]float64, error) {
	r, ok := reg.(*Registry)
	if !ok {
		return nil, fmt.Errorf("registry %T was not allocated by the native engine", reg)
	}
	if _, ok := r.LUT(name); !ok {
		return nil, fmt.Errorf("normalize with %q: %w", name, engine.ErrUnknownColormap)
	}

	out := make([]float64, len(buf))
	for i, v := range buf {
		out[i] = Scale(v, takeLog)
	}
	lo, hi, ok := Extent(out)
	if !ok {
		// Nothing finite: infinities still go to the ends.
		lo, hi = math.Inf(-1), math.Inf(1)
	}

	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	chunks := 0
	for start := 0; start < len(out); start += chunkSize {
		part := out[start:min(start+chunkSize, len(out))]
		chunks++
		g.Go(func() error {
			for i, v := range part {
				part[i] = Index(v, lo, hi)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("normalize with %q: %w", name, err)
	}
	logger.Logger().Debug("normalized buffer", "colormap", name, "len", len(buf), "log", takeLog, "chunks", chunks)
	return out, nil
}

// Scale applies the optional log10 transform. Values that have no logarithm
// become NaN.
func Scale(v float64, takeLog bool) float64 {
	if !takeLog {
		return v
	}
	if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return math.NaN()
	}
	return math.Log10(v)
}

// Extent returns the range of the finite values in buf.
func Extent(buf []float64) (lo float64, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range buf {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
		ok = true
	}
	return lo, hi, ok
}

// Index rescales v from [lo, hi] into the LUT index domain. Infinite values
// clamp to the ends, NaN stays NaN and a degenerate range maps to zero.
func Index(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return v
	case v <= lo:
		return 0
	case v >= hi:
		if hi == lo {
			return 0
		}
		return LUTSize - 1
	}
	return (v - lo) / (hi - lo) * (LUTSize - 1)
}
