// Package render implements the client-side render loop: a three-state
// controller (Idle / Updating / Rendering) coalescing triggers by priority,
// a frame pacer with adaptive target FPS, and an ordered multi-renderer
// pipeline composing per-chart-type draw passes over a shared compute pass.
package render

import (
	"fmt"
)

// TriggerKind is the kind of work a trigger requires.
type TriggerKind int

const (
	KindData TriggerKind = iota
	KindView
	KindConfig
)

func (k TriggerKind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindView:
		return "view"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// priority orders kinds for coalescing: Config > Data > View; higher wins.
func (k TriggerKind) priority() int {
	switch k {
	case KindConfig:
		return 2
	case KindData:
		return 1
	case KindView:
		return 0
	default:
		return -1
	}
}

// State is the render loop's current phase.
type State int

const (
	StateIdle State = iota
	StateUpdating
	StateRendering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUpdating:
		return "updating"
	case StateRendering:
		return "rendering"
	default:
		return "unknown"
	}
}

// Controller drives the Idle -> Updating(kind) -> Rendering -> Idle cycle,
// coalescing same-or-lower-priority triggers into at most one pending
// update while busy, and letting a higher-priority trigger supersede it.
//
// Not goroutine-safe: cooperative scheduling runs single-threaded on the
// host event loop, so every method is meant to be called from that one
// loop.
type Controller struct {
	state   State
	kind    TriggerKind
	pending *TriggerKind
}

// NewController starts a controller in the Idle state.
func NewController() *Controller {
	return &Controller{state: StateIdle}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Kind returns the kind of work being performed while Updating or
// Rendering.
func (c *Controller) Kind() TriggerKind { return c.kind }

// Trigger feeds one event into the controller. It returns true if this
// trigger caused an immediate transition into Updating (i.e. the caller
// should begin the update work now), false if it was queued or coalesced.
func (c *Controller) Trigger(kind TriggerKind) bool {
	switch c.state {
	case StateIdle:
		c.state = StateUpdating
		c.kind = kind
		return true

	case StateUpdating:
		// A higher-priority trigger supersedes the in-flight update's kind
		// and any lower-priority pending trigger; it does not restart the
		// in-flight work, since that work (e.g. an in-flight fetch) isn't
		// cancelled, only its downstream consequence is upgraded.
		if kind.priority() > c.kind.priority() {
			c.kind = kind
		}
		c.setPending(kind)
		return false

	case StateRendering:
		c.setPending(kind)
		return false

	default:
		return false
	}
}

func (c *Controller) setPending(kind TriggerKind) {
	if c.pending == nil {
		k := kind
		c.pending = &k
		return
	}
	if kind.priority() > c.pending.priority() {
		k := kind
		c.pending = &k
	}
}

// UpdateComplete transitions Updating -> Rendering. It is an error to call
// this outside the Updating state.
func (c *Controller) UpdateComplete() error {
	if c.state != StateUpdating {
		return fmt.Errorf("render: UpdateComplete called in state %s", c.state)
	}
	c.state = StateRendering
	return nil
}

// RenderComplete transitions Rendering -> Idle, immediately re-entering
// Updating if a trigger was coalesced during the Updating or Rendering
// phase. It
// returns the kind of the newly started update, if any.
func (c *Controller) RenderComplete() (started TriggerKind, hasNext bool) {
	c.state = StateIdle
	if c.pending == nil {
		return 0, false
	}
	kind := *c.pending
	c.pending = nil
	c.state = StateUpdating
	c.kind = kind
	return kind, true
}

// Error forces the controller back to Idle from any state, discarding any
// pending trigger.
func (c *Controller) Error() {
	c.state = StateIdle
	c.pending = nil
}
