package world

import (
	"errors"
	"testing"
)

// kitchen builds a small containment tree: a closed fridge holding a milk
// bottle, an empty glass, and two empty hands.
func kitchen() *State {
	s := New()
	s.Objects["fridge"] = &Object{ID: "fridge", Kind: "fridge", Closure: ClosureClosed, Contains: []string{"milk_bottle"}}
	s.Objects["milk_bottle"] = &Object{ID: "milk_bottle", Kind: "bottle", ContainedIn: "fridge", Volume: 1.0, FillLevel: 0.4, Liquids: map[string]bool{"milk": true}}
	s.Objects["glass"] = &Object{ID: "glass", Kind: "glass", Volume: 0.3}
	s.Objects["hand_left"] = &Object{ID: "hand_left", Kind: KindHand}
	s.Objects["hand_right"] = &Object{ID: "hand_right", Kind: KindHand}
	return s
}

// --- Move ---

func TestMove_UpdatesBothDirections(t *testing.T) {
	// Move rewires Contains on both containers and ContainedIn on the object
	s := kitchen()
	if err := s.Move("milk_bottle", "fridge", "hand_left"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := s.Objects["hand_left"].Holding(); got != "milk_bottle" {
		t.Errorf("hand holds %q, want milk_bottle", got)
	}
	if got := s.Objects["milk_bottle"].ContainedIn; got != "hand_left" {
		t.Errorf("ContainedIn = %q, want hand_left", got)
	}
	if n := len(s.Objects["fridge"].Contains); n != 0 {
		t.Errorf("fridge still lists %d objects", n)
	}
}

func TestMove_RejectsStaleSource(t *testing.T) {
	// Moving from a container that does not hold the object fails and leaves
	// the state untouched
	s := kitchen()
	err := s.Move("milk_bottle", "glass", "hand_left")
	var ime *InvalidMoveError
	if !errors.As(err, &ime) {
		t.Fatalf("expected InvalidMoveError, got %v", err)
	}
	if got := s.Objects["milk_bottle"].ContainedIn; got != "fridge" {
		t.Errorf("failed move mutated state: ContainedIn = %q", got)
	}
}

func TestMove_RejectsUnknownObject(t *testing.T) {
	s := kitchen()
	var nfe *NotFoundError
	if err := s.Move("ghost", "fridge", "hand_left"); !errors.As(err, &nfe) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestMove_RejectsContainmentCycle(t *testing.T) {
	// An object cannot be moved into anything it transitively contains
	s := New()
	s.Objects["table"] = &Object{ID: "table", Kind: "table", Contains: []string{"box"}}
	s.Objects["box"] = &Object{ID: "box", Kind: "box", ContainedIn: "table", Contains: []string{"cup"}}
	s.Objects["cup"] = &Object{ID: "cup", Kind: "cup", ContainedIn: "box"}

	err := s.Move("box", "table", "cup")
	var ime *InvalidMoveError
	if !errors.As(err, &ime) {
		t.Fatalf("expected InvalidMoveError, got %v", err)
	}
	if s.Objects["box"].ContainedIn != "table" {
		t.Error("failed move mutated state")
	}
}

// --- AdjustFill ---

func TestAdjustFill_WithinRange(t *testing.T) {
	s := kitchen()
	if err := s.AdjustFill("glass", 0.25); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if got := s.Objects["glass"].FillLevel; got != 0.25 {
		t.Errorf("fill = %v, want 0.25", got)
	}
}

func TestAdjustFill_RejectsOverCapacity(t *testing.T) {
	// Exceeding the vessel volume fails without mutating the fill level
	s := kitchen()
	err := s.AdjustFill("glass", 0.5)
	var cee *CapacityExceededError
	if !errors.As(err, &cee) {
		t.Fatalf("expected CapacityExceededError, got %v", err)
	}
	if got := s.Objects["glass"].FillLevel; got != 0 {
		t.Errorf("failed adjust mutated fill: %v", got)
	}
}

func TestAdjustFill_RejectsBelowZero(t *testing.T) {
	s := kitchen()
	var cee *CapacityExceededError
	if err := s.AdjustFill("milk_bottle", -0.5); !errors.As(err, &cee) {
		t.Fatalf("expected CapacityExceededError, got err = %v", err)
	}
}

func TestAdjustFill_ClampsFloatDrift(t *testing.T) {
	// Sums that land within epsilon of the bounds are clamped, not rejected
	s := kitchen()
	s.Objects["glass"].FillLevel = 0.3 - 1e-12
	if err := s.AdjustFill("glass", 1e-12); err != nil {
		t.Fatalf("epsilon adjust rejected: %v", err)
	}
	if got := s.Objects["glass"].FillLevel; got > 0.3 {
		t.Errorf("fill %v exceeds volume after clamp", got)
	}
}

// --- Clone ---

func TestClone_IsIndependent(t *testing.T) {
	// Mutating the clone leaves the original untouched
	s := kitchen()
	cp := s.Clone()
	if err := cp.Move("milk_bottle", "fridge", "hand_left"); err != nil {
		t.Fatalf("move on clone: %v", err)
	}
	if err := cp.AddLiquid("glass", "milk"); err != nil {
		t.Fatalf("add liquid on clone: %v", err)
	}
	if got := s.Objects["milk_bottle"].ContainedIn; got != "fridge" {
		t.Errorf("clone move leaked into original: %q", got)
	}
	if len(s.Objects["glass"].Liquids) != 0 {
		t.Error("clone liquid leaked into original")
	}
}

// --- Hands ---

func TestHands_SortedOrder(t *testing.T) {
	s := kitchen()
	hands := s.Hands()
	if len(hands) != 2 || hands[0] != "hand_left" || hands[1] != "hand_right" {
		t.Errorf("Hands() = %v, want [hand_left hand_right]", hands)
	}
}

// --- Check ---

func TestCheck_AcceptsConsistentState(t *testing.T) {
	if err := kitchen().Check(); err != nil {
		t.Fatalf("consistent state rejected: %v", err)
	}
}

func TestCheck_RejectsOneWayContainment(t *testing.T) {
	// Object claims a container that does not list it back
	s := kitchen()
	s.Objects["glass"].ContainedIn = "fridge"
	if err := s.Check(); err == nil {
		t.Fatal("expected containment disagreement to be rejected")
	}
}

func TestCheck_RejectsOverloadedHand(t *testing.T) {
	s := kitchen()
	s.Objects["hand_left"].Contains = []string{"milk_bottle", "glass"}
	s.Objects["milk_bottle"].ContainedIn = "hand_left"
	s.Objects["glass"].ContainedIn = "hand_left"
	s.Objects["fridge"].Contains = nil
	if err := s.Check(); err == nil {
		t.Fatal("expected two-object hand to be rejected")
	}
}

func TestCheck_RejectsFillAboveVolume(t *testing.T) {
	s := kitchen()
	s.Objects["glass"].FillLevel = 0.4
	var cee *CapacityExceededError
	if err := s.Check(); !errors.As(err, &cee) {
		t.Fatalf("expected CapacityExceededError, got %v", err)
	}
}
