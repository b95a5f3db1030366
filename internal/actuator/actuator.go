// Package actuator is the execution surface for emitted commands. The real
// robot sits behind the Actuator interface; the simulated actuator applies
// each acknowledged action's effect to the authoritative world state, which
// is exactly how the real state advances: only on confirmed execution.
package actuator

import (
	"context"
	"fmt"
	"sync"

	"github.com/haricheung/labhand/internal/action"
	"github.com/haricheung/labhand/internal/world"
)

// Actuator executes one command at a time, strictly sequentially. A nil
// error is the acknowledgment that the physical action succeeded.
type Actuator interface {
	Execute(ctx context.Context, a action.Action) error
	// Snapshot returns a fresh copy of the authoritative world state for a
	// new planning pass.
	Snapshot() *world.State
}

// Sim is an in-process actuator over a world state. It rechecks every
// precondition against the authoritative state before applying, so a
// physical mismatch with the planner's simulation surfaces as a failed
// command rather than a silently wrong world.
type Sim struct {
	mu  sync.Mutex
	chk action.Checker
	st  *world.State

	// failures maps a 0-based execution index to an injected error, for
	// exercising the discard-and-replan path.
	failures map[int]error
	executed int
}

// NewSim creates a simulated actuator owning st.
func NewSim(chk action.Checker, st *world.State) *Sim {
	return &Sim{chk: chk, st: st, failures: make(map[int]error)}
}

// FailAt injects an error for the n-th executed command (0-based).
func (s *Sim) FailAt(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[n] = err
}

// Execute applies a to the authoritative state.
func (s *Sim) Execute(ctx context.Context, a action.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.executed
	s.executed++
	if err, ok := s.failures[n]; ok {
		delete(s.failures, n)
		return fmt.Errorf("actuator: %s: %w", a, err)
	}

	v, err := s.chk.Apply(a, s.st)
	if err != nil {
		return fmt.Errorf("actuator: %s: %w", a, err)
	}
	if v != nil {
		return fmt.Errorf("actuator: %s: physical state mismatch: %w", a, v)
	}
	return nil
}

// Snapshot returns a fresh clone of the authoritative state.
func (s *Sim) Snapshot() *world.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}
