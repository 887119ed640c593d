// Package engine is the call surface of a numeric normalization engine.
// The colormap controller drives any implementation through these
// interfaces and never looks at the arithmetic behind them.
package engine

import (
	"context"
	"errors"

	"github.com/erinpentecost/cmapsync/internal/colormap"
)

var (
	// ErrEngineUnavailable means the engine failed to boot. It is terminal.
	ErrEngineUnavailable = errors.New("numeric engine unavailable")
	// ErrDuplicateColormapName means a collection named two tables the same.
	ErrDuplicateColormapName = errors.New("duplicate colormap name")
	// ErrUnknownColormap means the registry has no table with that name.
	ErrUnknownColormap = errors.New("unknown colormap")
)

// Engine is a booted numeric engine.
type Engine interface {
	// NewRegistry allocates an empty engine-side colormap registry.
	NewRegistry() Registry
	// NormalizeBuffer maps buf into color-index values using the named
	// colormap of reg. The input is not modified.
	NormalizeBuffer(reg Registry, name string, buf []float64, takeLog bool) ([]float64, error)
}

// Registry holds the colormaps loaded into an engine.
type Registry interface {
	AddColormap(name string, table *colormap.Table)
	Has(name string) bool
	Names() []string
}

// BootFunc loads an engine. It is called at most once per bootstrap.
type BootFunc func(ctx context.Context) (Engine, error)
