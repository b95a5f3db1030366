package synth

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/haricheung/labhand/internal/config"
	"github.com/haricheung/labhand/internal/world"
)

func labState() *world.State {
	s := world.New()
	s.Objects["table"] = &world.Object{ID: "table", Kind: "table", Contains: []string{"first_glass", "basil_bowl", "pizza_dough_big_plate", "big_plate", "mixer"}}
	s.Objects["fridge"] = &world.Object{ID: "fridge", Kind: "fridge", Closure: world.ClosureClosed, Contains: []string{"milk_bottle"}}
	s.Objects["milk_bottle"] = &world.Object{ID: "milk_bottle", Kind: "bottle", ContainedIn: "fridge", Volume: 1.0, FillLevel: 0.4, Liquids: map[string]bool{"milk": true}}
	s.Objects["first_glass"] = &world.Object{ID: "first_glass", Kind: "glass", ContainedIn: "table", Volume: 0.3}
	s.Objects["basil_bowl"] = &world.Object{ID: "basil_bowl", Kind: "bowl", ContainedIn: "table", Contains: []string{"basil"}}
	s.Objects["basil"] = &world.Object{ID: "basil", Kind: "ingredient", ContainedIn: "basil_bowl"}
	s.Objects["pizza_dough_big_plate"] = &world.Object{ID: "pizza_dough_big_plate", Kind: "pizza_dough_big_plate", ContainedIn: "table", Contains: []string{"pizza_dough"}}
	s.Objects["pizza_dough"] = &world.Object{ID: "pizza_dough", Kind: "pizza_dough", ContainedIn: "pizza_dough_big_plate"}
	s.Objects["big_plate"] = &world.Object{ID: "big_plate", Kind: "plate", ContainedIn: "table"}
	s.Objects["mixer"] = &world.Object{ID: "mixer", Kind: "mixer", ContainedIn: "table", Power: world.PowerOff}
	s.Objects["hand_left"] = &world.Object{ID: "hand_left", Kind: world.KindHand}
	s.Objects["hand_right"] = &world.Object{ID: "hand_right", Kind: world.KindHand}
	return s
}

func synthFor(objects ...string) *Synthesizer {
	return New(config.Default(), labState(), objects)
}

func commands(t *testing.T, s *Synthesizer, steps ...string) []string {
	t.Helper()
	plan, err := s.Synthesize(steps)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	return plan.Commands()
}

// --- take ---

func TestSynthesize_TakeWithExplicitSource(t *testing.T) {
	got := commands(t, synthFor("milk_bottle", "fridge"), "take milk_bottle from fridge")
	want := []string{"get milk_bottle from fridge hand_left"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_TakeResolvesCurrentContainer(t *testing.T) {
	// A bare "take X" looks up X's container in the world state
	got := commands(t, synthFor("basil"), "take basil")
	want := []string{"get basil from basil_bowl hand_left"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_SecondTakeUsesOtherHand(t *testing.T) {
	// Hand tie-break follows the configured order: first empty hand wins
	got := commands(t, synthFor("milk_bottle", "fridge", "basil"),
		"take milk_bottle from fridge", "take basil")
	want := []string{
		"get milk_bottle from fridge hand_left",
		"get basil from basil_bowl hand_right",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_ThirdTakeFallsBackToFirstHand(t *testing.T) {
	// With every hand occupied in the draft ledger the first configured hand
	// is chosen; the validator will flag it and repair inserts the put-back
	got := commands(t, synthFor("milk_bottle", "fridge", "basil", "first_glass"),
		"take milk_bottle from fridge", "take basil", "take first_glass")
	if got[2] != "get first_glass from table hand_left" {
		t.Errorf("third take = %q, want hand_left fallback", got[2])
	}
}

// --- pour ---

func TestSynthesize_PourItUsesLastHeld(t *testing.T) {
	got := commands(t, synthFor("milk_bottle", "fridge", "first_glass"),
		"take milk_bottle from fridge", "pour it into first_glass 250 ml")
	want := []string{
		"get milk_bottle from fridge hand_left",
		"pour milk_bottle first_glass 250",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_PourUnheldSourceTakesItFirst(t *testing.T) {
	// Pouring requires holding the source; the synthesizer prepends the get
	got := commands(t, synthFor("milk_bottle", "first_glass"),
		"pour milk_bottle into first_glass 100 ml")
	want := []string{
		"get milk_bottle from fridge hand_left",
		"pour milk_bottle first_glass 100",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_PourDefaultVolumeByDestinationKind(t *testing.T) {
	// No explicit amount: the default for the destination kind applies
	got := commands(t, synthFor("milk_bottle", "first_glass"),
		"pour milk_bottle into first_glass")
	if got[len(got)-1] != "pour milk_bottle first_glass 250" {
		t.Errorf("pour = %q, want glass default 250 ml", got[len(got)-1])
	}
}

func TestSynthesize_PourWithoutSourceOrAntecedentFails(t *testing.T) {
	_, err := synthFor("first_glass").Synthesize([]string{"pour into first_glass"})
	var use *UnresolvedStepError
	if !errors.As(err, &use) {
		t.Fatalf("expected UnresolvedStepError, got %v", err)
	}
}

// --- put ---

func TestSynthesize_PutItAfterTake(t *testing.T) {
	got := commands(t, synthFor("basil", "basil_bowl", "big_plate"),
		"take basil from basil_bowl", "put it on big_plate")
	want := []string{
		"get basil from basil_bowl hand_left",
		"put basil big_plate",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_PutUnheldObjectTakesItFirst(t *testing.T) {
	got := commands(t, synthFor("basil", "big_plate"), "put basil on big_plate")
	want := []string{
		"get basil from basil_bowl hand_left",
		"put basil big_plate",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_SubstrateDepositRewrittenToCarrier(t *testing.T) {
	// Deposits onto a soft substrate target its rigid carrier instead
	got := commands(t, synthFor("basil", "basil_bowl", "pizza_dough"),
		"take basil from basil_bowl and put it on pizza_dough")
	want := []string{
		"get basil from basil_bowl hand_left",
		"put basil pizza_dough_big_plate",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_CarrierReusedForPlanRemainder(t *testing.T) {
	// Once a carrier is established for a substrate every later deposit to
	// that substrate reuses it
	s := synthFor("basil", "pizza_dough", "cheese")
	st := s.st
	st.Objects["cheese"] = &world.Object{ID: "cheese", Kind: "ingredient", ContainedIn: "table"}
	st.Objects["table"].Contains = append(st.Objects["table"].Contains, "cheese")
	got := commands(t, s,
		"put basil on pizza_dough", "put cheese on pizza_dough")
	if got[1] != "put basil pizza_dough_big_plate" || got[3] != "put cheese pizza_dough_big_plate" {
		t.Errorf("carrier not reused: %v", got)
	}
}

// --- mix / switch / wait / gaze ---

func TestSynthesize_MixLowersToSwitchWaitSwitch(t *testing.T) {
	// There is no mix command; mixing is powered-device behavior over time
	got := commands(t, synthFor("mixer"), "mix in mixer")
	want := []string{"switch_on mixer", "wait 10", "switch_off mixer"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_SwitchAndWait(t *testing.T) {
	got := commands(t, synthFor("mixer"), "switch on mixer", "wait 5 seconds", "turn off mixer")
	want := []string{"switch_on mixer", "wait 5", "switch_off mixer"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_Gaze(t *testing.T) {
	got := commands(t, synthFor("fridge"), "look at fridge")
	want := []string{"gaze fridge"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

// --- step handling ---

func TestSynthesize_NormalizesCaseAndPunctuation(t *testing.T) {
	got := commands(t, synthFor("basil", "basil_bowl"), "Take basil from basil_bowl.")
	if got[0] != "get basil from basil_bowl hand_left" {
		t.Errorf("normalization failed: %v", got)
	}
}

func TestSynthesize_UnmatchableStepFails(t *testing.T) {
	_, err := synthFor().Synthesize([]string{"juggle the bottles"})
	var use *UnresolvedStepError
	if !errors.As(err, &use) {
		t.Fatalf("expected UnresolvedStepError, got %v", err)
	}
	if use.Step != "juggle the bottles" {
		t.Errorf("error names step %q", use.Step)
	}
}

func TestSynthesize_ObjectOutsideNeededListFails(t *testing.T) {
	// Every referenced object must appear in the translator's ObjectsNeeded
	_, err := synthFor("basil").Synthesize([]string{"open fridge"})
	var use *UnresolvedStepError
	if !errors.As(err, &use) {
		t.Fatalf("expected UnresolvedStepError, got %v", err)
	}
}
