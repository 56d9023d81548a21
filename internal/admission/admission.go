// Package admission holds the process-wide lockdown flag consulted before
// any new HTTP request or WebSocket connection is accepted.
package admission

import "sync/atomic"

// Gate is the lockdown switch. The zero value admits everything.
// State is process memory only; a restart clears a lockdown.
type Gate struct {
	locked atomic.Bool
}

// New returns an open gate.
func New() *Gate {
	return &Gate{}
}

// Locked reports whether new connections must be rejected.
func (g *Gate) Locked() bool {
	return g.locked.Load()
}

// Toggle flips the lockdown state and returns the new state.
func (g *Gate) Toggle() bool {
	for {
		old := g.locked.Load()
		if g.locked.CompareAndSwap(old, !old) {
			return !old
		}
	}
}
