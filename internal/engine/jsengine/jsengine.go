// Package jsengine runs the normalization kernel as JavaScript inside goja.
// It produces the same indices as the native engine.
package jsengine

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/erinpentecost/cmapsync/internal/colormap"
	"github.com/erinpentecost/cmapsync/internal/engine"
	"github.com/erinpentecost/cmapsync/internal/engine/native"
	"github.com/erinpentecost/cmapsync/internal/logger"
)

//go:embed kernel.js
var kernelSource string

// Engine owns one goja runtime. goja runtimes are not goroutine safe, so
// every call into the kernel holds mux.
type Engine struct {
	mux sync.Mutex
	vm  *goja.Runtime

	newRegistry   goja.Callable
	addColormap   goja.Callable
	hasColormap   goja.Callable
	colormapNames goja.Callable
	normalize     goja.Callable
}

// Boot compiles the bundled kernel.
func Boot() engine.BootFunc {
	return BootSource("kernel.js", kernelSource)
}

// BootSource compiles a kernel from src. The kernel must define newRegistry,
// addColormap, hasColormap, colormapNames and normalize.
func BootSource(name string, src string) engine.BootFunc {
	return func(ctx context.Context) (engine.Engine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prog, err := goja.Compile(name, src, true)
		if err != nil {
			return nil, fmt.Errorf("compile kernel %q: %w", name, err)
		}
		vm := goja.New()
		if _, err := vm.RunProgram(prog); err != nil {
			return nil, fmt.Errorf("run kernel %q: %w", name, err)
		}
		e := &Engine{vm: vm}
		for fn, dst := range map[string]*goja.Callable{
			"newRegistry":   &e.newRegistry,
			"addColormap":   &e.addColormap,
			"hasColormap":   &e.hasColormap,
			"colormapNames": &e.colormapNames,
			"normalize":     &e.normalize,
		} {
			callable, ok := goja.AssertFunction(vm.Get(fn))
			if !ok {
				return nil, fmt.Errorf("kernel %q does not define %s()", name, fn)
			}
			*dst = callable
		}
		logger.Logger().Info("javascript engine booted", "kernel", name)
		return e, nil
	}
}

// Registry is a handle on a registry object living in the runtime.
type Registry struct {
	e   *Engine
	obj goja.Value
}

func (e *Engine) NewRegistry() engine.Registry {
	e.mux.Lock()
	defer e.mux.Unlock()
	obj, err := e.newRegistry(goja.Undefined())
	if err != nil {
		// the bundled kernel cannot fail here; a broken custom kernel gets
		// an empty registry that rejects every name
		logger.Logger().Warn("kernel newRegistry failed", "err", err)
		obj = e.vm.NewObject()
	}
	return &Registry{e: e, obj: obj}
}

func (r *Registry) AddColormap(name string, table *colormap.Table) {
	lut := table.Sample(native.LUTSize)
	flat := make([]int64, 0, 4*len(lut))
	for _, c := range lut {
		flat = append(flat, int64(c.R), int64(c.G), int64(c.B), int64(c.A))
	}

	r.e.mux.Lock()
	defer r.e.mux.Unlock()
	vm := r.e.vm
	if _, err := r.e.addColormap(goja.Undefined(), r.obj, vm.ToValue(name), vm.ToValue(flat)); err != nil {
		logger.Logger().Warn("kernel addColormap failed", "name", name, "err", err)
	}
}

func (r *Registry) Has(name string) bool {
	r.e.mux.Lock()
	defer r.e.mux.Unlock()
	v, err := r.e.hasColormap(goja.Undefined(), r.obj, r.e.vm.ToValue(name))
	return err == nil && v.ToBoolean()
}

func (r *Registry) Names() []string {
	r.e.mux.Lock()
	defer r.e.mux.Unlock()
	v, err := r.e.colormapNames(goja.Undefined(), r.obj)
	if err != nil {
		return nil
	}
	var names []string
	if err := r.e.vm.ExportTo(v, &names); err != nil {
		return nil
	}
	return names
}

func (e *Engine) NormalizeBuffer(reg engine.Registry, name string, buf []float64, takeLog bool) ([]float64, error) {
	r, ok := reg.(*Registry)
	if !ok || r.e != e {
		return nil, fmt.Errorf("registry %T was not allocated by this engine", reg)
	}
	if !r.Has(name) {
		return nil, fmt.Errorf("normalize with %q: %w", name, engine.ErrUnknownColormap)
	}

	if buf == nil {
		buf = []float64{}
	}

	e.mux.Lock()
	defer e.mux.Unlock()
	v, err := e.normalize(goja.Undefined(),
		r.obj,
		e.vm.ToValue(name),
		e.vm.ToValue(buf),
		e.vm.ToValue(takeLog),
		e.vm.ToValue(native.LUTSize),
	)
	if err != nil {
		return nil, fmt.Errorf("normalize with %q: %w", name, err)
	}
	out := make([]float64, 0, len(buf))
	if err := e.vm.ExportTo(v, &out); err != nil {
		return nil, fmt.Errorf("export normalized buffer: %w", err)
	}
	if len(out) != len(buf) {
		return nil, fmt.Errorf("kernel returned %d values for %d inputs", len(out), len(buf))
	}
	return out, nil
}
