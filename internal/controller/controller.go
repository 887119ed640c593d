// Package controller keeps a colormap selection in sync with a host state
// store and normalizes buffers through a lazily booted numeric engine.
package controller

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/erinpentecost/cmapsync/internal/bootstrap"
	"github.com/erinpentecost/cmapsync/internal/colormap"
	"github.com/erinpentecost/cmapsync/internal/engine"
	"github.com/erinpentecost/cmapsync/internal/engine/native"
	"github.com/erinpentecost/cmapsync/internal/logger"
	"github.com/erinpentecost/cmapsync/internal/registry"
	"github.com/erinpentecost/cmapsync/internal/store"
)

// Store keys the controller listens to.
const (
	NameKey  = "name"
	IsLogKey = "is_log"
)

// Notifier is the read and change-notification side of the host state store.
type Notifier interface {
	Get(key string) (any, bool)
	Subscribe(key string, fn func(store.Event)) (cancel func())
}

// State is the controller's boot progress.
type State int32

const (
	Uninitialized State = iota
	Booting
	Ready
	// Failed is entered when the engine cannot boot. Like Ready it is final.
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Booting:
		return "booting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config is handed to New once. Only Collection is required in practice;
// the rest fall back to process-wide defaults.
type Config struct {
	Collection *colormap.Collection
	Selection  SelectionState
	// Notifier may be nil, in which case the selection never changes.
	Notifier Notifier
	// Bootstrap defaults to the shared native engine.
	Bootstrap *bootstrap.Bootstrap
	// Registry defaults to a process-wide registry rejecting duplicates.
	Registry *registry.Registry
}

// Controller is safe for concurrent use.
type Controller struct {
	coll     *colormap.Collection
	boot     *bootstrap.Bootstrap
	registry *registry.Registry
	notifier Notifier

	state    atomic.Int32
	bootOnce sync.Once
	bootDone chan struct{}
	eng      engine.Engine
	bootErr  error

	mux         sync.RWMutex
	selection   SelectionState
	transitions []Transition
	cancels     []func()
	closed      bool
}

// DefaultBootstrap is the process-wide native engine bootstrap.
func DefaultBootstrap() *bootstrap.Bootstrap {
	return bootstrap.Shared("native", native.Boot(runtime.GOMAXPROCS(0)))
}

var defaultRegistry = sync.OnceValue(func() *registry.Registry {
	return registry.New(registry.RejectDuplicates)
})

// DefaultRegistry is the process-wide colormap registry.
func DefaultRegistry() *registry.Registry {
	return defaultRegistry()
}

// New stores the configuration. It does not touch the engine.
func New(cfg Config) *Controller {
	c := &Controller{
		coll:      cfg.Collection,
		boot:      cfg.Bootstrap,
		registry:  cfg.Registry,
		notifier:  cfg.Notifier,
		bootDone:  make(chan struct{}),
		selection: cfg.Selection.clone(),
	}
	if c.boot == nil {
		c.boot = DefaultBootstrap()
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	return c
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// Boot starts the engine boot if needed and waits for the controller to be
// ready. ctx only bounds the wait.
func (c *Controller) Boot(ctx context.Context) error {
	_, err := c.ready(ctx)
	return err
}

func (c *Controller) ready(ctx context.Context) (engine.Engine, error) {
	c.bootOnce.Do(func() {
		c.state.Store(int32(Booting))
		go c.runBoot()
	})
	select {
	case <-c.bootDone:
		return c.eng, c.bootErr
	default:
	}
	select {
	case <-c.bootDone:
		return c.eng, c.bootErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Controller) runBoot() {
	defer close(c.bootDone)
	eng, err := c.boot.Ready(context.Background())
	if err != nil {
		c.bootErr = err
		c.state.Store(int32(Failed))
		logger.Logger().Warn("colormap controller failed to boot", "err", err)
		return
	}
	c.attach()
	c.eng = eng
	c.state.Store(int32(Ready))
	logger.Logger().Debug("colormap controller ready", "selection", c.Selection().String())
}

// attach subscribes to the store and then resyncs the selection from its
// current values. It runs at most once per controller.
func (c *Controller) attach() {
	if c.notifier == nil {
		return
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.closed {
		return
	}
	c.cancels = append(c.cancels,
		c.notifier.Subscribe(NameKey, c.onNameChanged),
		c.notifier.Subscribe(IsLogKey, c.onScaleChanged),
	)
	if v, ok := c.notifier.Get(NameKey); ok {
		c.applyName(v)
	}
	if v, ok := c.notifier.Get(IsLogKey); ok {
		c.applyScale(v)
	}
}

// Normalize maps buf into color-index values with the named colormap. name
// and takeLog are used as given; the current selection does not constrain
// them. On failure no buffer is returned.
func (c *Controller) Normalize(ctx context.Context, name string, buf []float64, takeLog bool) ([]float64, error) {
	eng, err := c.ready(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := c.registry.EnsurePopulated(ctx, c.coll, eng)
	if err != nil {
		return nil, err
	}
	if !reg.Has(name) {
		return nil, fmt.Errorf("normalize with %q: %w", name, engine.ErrUnknownColormap)
	}
	out, err := eng.NormalizeBuffer(reg, name, buf, takeLog)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close detaches from the store. Normalize keeps working.
func (c *Controller) Close() {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.closed = true
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
}
