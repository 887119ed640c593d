// Package registry loads colormap collections into engine-side registries,
// building each one at most once.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/erinpentecost/cmapsync/internal/colormap"
	"github.com/erinpentecost/cmapsync/internal/engine"
	"github.com/erinpentecost/cmapsync/internal/logger"
)

// DuplicatePolicy decides what a build does when a collection names two
// tables the same.
type DuplicatePolicy int

const (
	// RejectDuplicates fails the build with engine.ErrDuplicateColormapName.
	RejectDuplicates DuplicatePolicy = iota
	// LastWriteWins registers the last table configured for each name.
	LastWriteWins
)

func (p DuplicatePolicy) String() string {
	switch p {
	case RejectDuplicates:
		return "reject"
	case LastWriteWins:
		return "last-write-wins"
	default:
		return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
	}
}

type key struct {
	eng  engine.Engine
	coll *colormap.Collection
}

// Registry caches one populated engine registry per (engine, collection)
// pair. Engines must be comparable, which every pointer type is.
type Registry struct {
	policy DuplicatePolicy

	mux   sync.Mutex
	cache map[key]engine.Registry
	// ids names in-flight or failed builds; an entry is dropped once cached.
	ids    map[key]string
	nextID int
	group  singleflight.Group
}

// New returns an empty registry applying policy to duplicate names.
func New(policy DuplicatePolicy) *Registry {
	return &Registry{
		policy: policy,
		cache:  map[key]engine.Registry{},
		ids:    map[key]string{},
	}
}

// EnsurePopulated returns the engine registry holding every table of coll,
// building it on first use. Concurrent callers for the same pair share one
// build. A failed build is not cached, so the next call tries again.
//
// ctx only bounds the wait; an abandoned build still runs to completion.
func (r *Registry) EnsurePopulated(ctx context.Context, coll *colormap.Collection, eng engine.Engine) (engine.Registry, error) {
	if coll.Len() == 0 {
		return emptyRegistry{}, nil
	}
	k := key{eng: eng, coll: coll}

	r.mux.Lock()
	if reg, ok := r.cache[k]; ok {
		r.mux.Unlock()
		return reg, nil
	}
	id, ok := r.ids[k]
	if !ok {
		id = strconv.Itoa(r.nextID)
		r.nextID++
		r.ids[k] = id
	}
	r.mux.Unlock()

	ch := r.group.DoChan(id, func() (any, error) {
		return r.build(k)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(engine.Registry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cached reports the registry built for the pair, if any.
func (r *Registry) Cached(coll *colormap.Collection, eng engine.Engine) (engine.Registry, bool) {
	r.mux.Lock()
	defer r.mux.Unlock()
	reg, ok := r.cache[key{eng: eng, coll: coll}]
	return reg, ok
}

func (r *Registry) build(k key) (engine.Registry, error) {
	r.mux.Lock()
	if reg, ok := r.cache[k]; ok {
		r.mux.Unlock()
		return reg, nil
	}
	r.mux.Unlock()

	tables := k.coll.Tables()
	if dups := k.coll.Duplicates(); len(dups) > 0 {
		if r.policy != LastWriteWins {
			logger.Logger().Warn("rejecting colormap collection", "duplicates", dups)
			return nil, fmt.Errorf("build registry: %w: %s", engine.ErrDuplicateColormapName, strings.Join(dups, ", "))
		}
		tables = lastWins(tables)
	}

	reg := k.eng.NewRegistry()
	for _, t := range tables {
		reg.AddColormap(t.Name(), t)
	}
	logger.Logger().Debug("built colormap registry", "tables", len(tables), "policy", r.policy.String())

	r.mux.Lock()
	defer r.mux.Unlock()
	r.cache[k] = reg
	delete(r.ids, k)
	return reg, nil
}

// lastWins keeps the final table for every name, in the order those final
// tables were configured.
func lastWins(tables []*colormap.Table) []*colormap.Table {
	last := map[string]int{}
	for i, t := range tables {
		last[t.Name()] = i
	}
	out := make([]*colormap.Table, 0, len(last))
	for i, t := range tables {
		if last[t.Name()] == i {
			out = append(out, t)
		}
	}
	return out
}

type emptyRegistry struct{}

func (emptyRegistry) AddColormap(string, *colormap.Table) {}
func (emptyRegistry) Has(string) bool                     { return false }
func (emptyRegistry) Names() []string                     { return nil }
