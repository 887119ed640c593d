package controller

import (
	"fmt"

	"github.com/erinpentecost/cmapsync/internal/logger"
	"github.com/erinpentecost/cmapsync/internal/store"
)

// maxTransitions bounds the recorded selection history.
const maxTransitions = 64

// SelectionState mirrors the host's latest colormap choice. A nil field has
// not been set by the host.
type SelectionState struct {
	ActiveName *string
	IsLog      *bool
}

// Ref returns a pointer to a copy of v.
func Ref[T any](v T) *T {
	return &v
}

func (s SelectionState) clone() SelectionState {
	out := SelectionState{}
	if s.ActiveName != nil {
		out.ActiveName = Ref(*s.ActiveName)
	}
	if s.IsLog != nil {
		out.IsLog = Ref(*s.IsLog)
	}
	return out
}

func (s SelectionState) String() string {
	name, scale := "<nil>", "<nil>"
	if s.ActiveName != nil {
		name = *s.ActiveName
	}
	if s.IsLog != nil {
		scale = fmt.Sprint(*s.IsLog)
	}
	return fmt.Sprintf("name=%s is_log=%s", name, scale)
}

// Transition records one applied selection change.
type Transition struct {
	Key string
	Old any
	New any
}

// Selection returns a copy of the current selection.
func (c *Controller) Selection() SelectionState {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.selection.clone()
}

// Transitions returns the most recent selection changes, oldest first.
func (c *Controller) Transitions() []Transition {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return append([]Transition(nil), c.transitions...)
}

func (c *Controller) onNameChanged(ev store.Event) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.applyName(ev.New)
}

func (c *Controller) onScaleChanged(ev store.Event) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.applyScale(ev.New)
}

// applyName must be called with mux held.
func (c *Controller) applyName(v any) {
	name, ok := v.(string)
	if !ok {
		logger.Logger().Warn("ignoring colormap name change", "value", v)
		return
	}
	var old any
	if c.selection.ActiveName != nil {
		if *c.selection.ActiveName == name {
			return
		}
		old = *c.selection.ActiveName
	}
	c.selection.ActiveName = Ref(name)
	c.record(Transition{Key: NameKey, Old: old, New: name})
}

// applyScale must be called with mux held.
func (c *Controller) applyScale(v any) {
	isLog, ok := v.(bool)
	if !ok {
		logger.Logger().Warn("ignoring colormap scale change", "value", v)
		return
	}
	var old any
	if c.selection.IsLog != nil {
		if *c.selection.IsLog == isLog {
			return
		}
		old = *c.selection.IsLog
	}
	c.selection.IsLog = Ref(isLog)
	c.record(Transition{Key: IsLogKey, Old: old, New: isLog})
}

// record must be called with mux held.
func (c *Controller) record(t Transition) {
	logger.Logger().Debug("selection changed", "key", t.Key, "from", t.Old, "to", t.New)
	if len(c.transitions) == maxTransitions {
		c.transitions = append(c.transitions[:0], c.transitions[1:]...)
	}
	c.transitions = append(c.transitions, t)
}
