package actuator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/haricheung/labhand/internal/action"
	"github.com/haricheung/labhand/internal/world"
)

func simState() *world.State {
	s := world.New()
	s.Objects["fridge"] = &world.Object{ID: "fridge", Kind: "fridge", Closure: world.ClosureOpen, Contains: []string{"milk_bottle"}}
	s.Objects["milk_bottle"] = &world.Object{ID: "milk_bottle", Kind: "bottle", ContainedIn: "fridge", Volume: 1.0, FillLevel: 0.4, Liquids: map[string]bool{"milk": true}}
	s.Objects["hand_left"] = &world.Object{ID: "hand_left", Kind: world.KindHand}
	return s
}

func TestExecute_AdvancesAuthoritativeState(t *testing.T) {
	// Acknowledged commands are the only thing that moves the real state
	sim := NewSim(action.Checker{}, simState())
	err := sim.Execute(context.Background(), action.Action{Kind: action.Get, Object: "milk_bottle", Source: "fridge", Hand: "hand_left"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	snap := sim.Snapshot()
	if got := snap.Objects["milk_bottle"].ContainedIn; got != "hand_left" {
		t.Errorf("milk_bottle in %q, want hand_left", got)
	}
}

func TestExecute_ViolatedPreconditionIsMismatch(t *testing.T) {
	// The actuator rechecks against authoritative state; a violated
	// precondition there is a physical mismatch, not a planner violation
	st := simState()
	st.Objects["fridge"].Closure = world.ClosureClosed
	sim := NewSim(action.Checker{}, st)
	err := sim.Execute(context.Background(), action.Action{Kind: action.Get, Object: "milk_bottle", Source: "fridge", Hand: "hand_left"})
	if err == nil || !strings.Contains(err.Error(), "physical state mismatch") {
		t.Fatalf("err = %v, want physical state mismatch", err)
	}
	if got := st.Objects["milk_bottle"].ContainedIn; got != "fridge" {
		t.Error("failed execute mutated the state")
	}
}

func TestExecute_InjectedFailureFiresOnce(t *testing.T) {
	sim := NewSim(action.Checker{}, simState())
	boom := errors.New("gripper slip")
	sim.FailAt(0, boom)

	a := action.Action{Kind: action.Get, Object: "milk_bottle", Source: "fridge", Hand: "hand_left"}
	if err := sim.Execute(context.Background(), a); !errors.Is(err, boom) {
		t.Fatalf("first execute err = %v, want injected failure", err)
	}
	// the injected failure must not have touched the state
	if got := sim.Snapshot().Objects["milk_bottle"].ContainedIn; got != "fridge" {
		t.Errorf("injected failure moved the object to %q", got)
	}
	if err := sim.Execute(context.Background(), a); err != nil {
		t.Fatalf("second execute err = %v, want success", err)
	}
}

func TestExecute_HonorsContextCancellation(t *testing.T) {
	sim := NewSim(action.Checker{}, simState())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sim.Execute(ctx, action.Action{Kind: action.Wait, Seconds: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSnapshot_IsIsolatedFromAuthoritativeState(t *testing.T) {
	// Mutating a snapshot must never leak into the actuator's state
	sim := NewSim(action.Checker{}, simState())
	snap := sim.Snapshot()
	snap.Objects["fridge"].Closure = world.ClosureClosed
	if got := sim.Snapshot().Objects["fridge"].Closure; got != world.ClosureOpen {
		t.Errorf("snapshot mutation leaked: closure = %q", got)
	}
}
