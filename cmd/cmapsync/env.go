package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/erinpentecost/cmapsync/internal/bootstrap"
	"github.com/erinpentecost/cmapsync/internal/colormap"
	"github.com/erinpentecost/cmapsync/internal/controller"
	"github.com/erinpentecost/cmapsync/internal/engine/jsengine"
	"github.com/erinpentecost/cmapsync/internal/logger"
	"github.com/erinpentecost/cmapsync/internal/registry"
	"github.com/erinpentecost/cmapsync/internal/store"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	verbose    bool
	config     string
	state      string
	engine     string
	duplicates string
}

func (g *globalFlags) register(fl *pflag.FlagSet) {
	fl.BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")
	fl.StringVar(&g.config, "config", "", "YAML colormap collection (default: built-in maps)")
	fl.StringVar(&g.state, "state", "", "selection state file, created if missing")
	fl.StringVar(&g.engine, "engine", "native", "numeric engine: native or js")
	fl.StringVar(&g.duplicates, "duplicates", "reject", "duplicate colormap names: reject or last-write-wins")
}

// selectionFlags are the host-side colormap choice.
type selectionFlags struct {
	cmap  string
	log   bool
	cmapF *pflag.Flag
	logF  *pflag.Flag
}

func (s *selectionFlags) register(fl *pflag.FlagSet) {
	fl.StringVar(&s.cmap, "cmap", "", "select this colormap (persisted with --state)")
	fl.BoolVar(&s.log, "log", false, "select a logarithmic scale (persisted with --state)")
	s.cmapF = fl.Lookup("cmap")
	s.logF = fl.Lookup("log")
}

// env is everything a subcommand needs, wired together.
type env struct {
	flags *globalFlags
	coll  *colormap.Collection
	store *store.Store
	ctrl  *controller.Controller
}

func parsePolicy(s string) (registry.DuplicatePolicy, error) {
	switch s {
	case registry.RejectDuplicates.String():
		return registry.RejectDuplicates, nil
	case registry.LastWriteWins.String():
		return registry.LastWriteWins, nil
	}
	return registry.RejectDuplicates, fmt.Errorf("unknown duplicate policy %q", s)
}

func pickBootstrap(name string) (*bootstrap.Bootstrap, error) {
	switch name {
	case "native":
		return controller.DefaultBootstrap(), nil
	case "js":
		return bootstrap.Shared("js", jsengine.Boot()), nil
	}
	return nil, fmt.Errorf("unknown engine %q", name)
}

func loadCollection(path string) (*colormap.Collection, error) {
	if len(path) == 0 {
		return colormap.Builtin(), nil
	}
	return colormap.LoadFile(path)
}

// initialState reads the state file, falling back to the first colormap on
// a linear scale.
func initialState(path string, coll *colormap.Collection) (map[string]any, error) {
	values := map[string]any{controller.IsLogKey: false}
	if names := coll.Names(); len(names) > 0 {
		values[controller.NameKey] = names[0]
	}
	if len(path) == 0 {
		return values, nil
	}
	saved, err := store.LoadSnapshot(path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, err
	}
	for k, v := range saved {
		values[k] = v
	}
	return values, nil
}

func openEnv(ctx context.Context, g *globalFlags) (*env, error) {
	if g.verbose {
		logger.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	policy, err := parsePolicy(g.duplicates)
	if err != nil {
		return nil, err
	}
	boot, err := pickBootstrap(g.engine)
	if err != nil {
		return nil, err
	}
	coll, err := loadCollection(g.config)
	if err != nil {
		return nil, err
	}
	values, err := initialState(g.state, coll)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	st, err := store.New(values)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sel := controller.SelectionState{}
	if name, ok := values[controller.NameKey].(string); ok {
		sel.ActiveName = controller.Ref(name)
	}
	if isLog, ok := values[controller.IsLogKey].(bool); ok {
		sel.IsLog = controller.Ref(isLog)
	}
	ctrl := controller.New(controller.Config{
		Collection: coll,
		Selection:  sel,
		Notifier:   st,
		Bootstrap:  boot,
		Registry:   registry.New(policy),
	})
	if err := ctrl.Boot(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return &env{flags: g, coll: coll, store: st, ctrl: ctrl}, nil
}

// applySelection pushes explicitly set flags into the store and waits until
// the controller has seen them.
func (e *env) applySelection(s *selectionFlags) error {
	if s.cmapF != nil && s.cmapF.Changed {
		if err := e.store.Set(controller.NameKey, s.cmap); err != nil {
			return err
		}
	}
	if s.logF != nil && s.logF.Changed {
		if err := e.store.Set(controller.IsLogKey, s.log); err != nil {
			return err
		}
	}
	e.store.Sync()
	return nil
}

// current returns the selected colormap name and scale.
func (e *env) current() (string, bool, error) {
	sel := e.ctrl.Selection()
	if sel.ActiveName == nil {
		return "", false, errors.New("no colormap selected")
	}
	isLog := sel.IsLog != nil && *sel.IsLog
	return *sel.ActiveName, isLog, nil
}

func (e *env) close() error {
	e.ctrl.Close()
	e.store.Close()
	if len(e.flags.state) == 0 {
		return nil
	}
	return e.store.Save(e.flags.state)
}
