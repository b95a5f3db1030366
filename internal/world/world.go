// Package world holds the authoritative symbolic graph of lab objects:
// containment, hands, liquids, and device power/closure. Everything else in
// the planner reads and mutates this model, never the raw snapshot.
//
// All mutators validate their arguments completely before touching the
// state, so a failed call leaves the state exactly as it was.
package world

import (
	"fmt"
	"math"
	"sort"
)

// Closure is the open/closed attribute of containers that have a lid or door.
type Closure string

const (
	ClosureNone   Closure = ""
	ClosureOpen   Closure = "open"
	ClosureClosed Closure = "closed"
)

// Power is the on/off attribute of powered devices.
type Power string

const (
	PowerNone Power = ""
	PowerOn   Power = "on"
	PowerOff  Power = "off"
)

// KindHand marks the robot's manipulators; a hand holds at most one object.
const KindHand = "hand"

// fillEpsilon absorbs float drift in volume bookkeeping.
const fillEpsilon = 1e-9

// NotFoundError reports a referenced object absent from the world state.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("world: object %q not found", e.ID)
}

// InvalidMoveError reports a relocation that would break the containment invariant.
type InvalidMoveError struct {
	Object string
	From   string
	To     string
	Detail string
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("world: cannot move %q from %q to %q: %s", e.Object, e.From, e.To, e.Detail)
}

// CapacityExceededError reports a fill adjustment outside [0, volume].
type CapacityExceededError struct {
	Object    string
	FillLevel float64
	Volume    float64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("world: fill level %.4f l outside [0, %.4f l] for %q", e.FillLevel, e.Volume, e.Object)
}

// Object is one node in the world-state graph.
// Volume and FillLevel are in liters; both are zero for dry objects.
type Object struct {
	ID          string
	Kind        string
	Closure     Closure
	Power       Power
	Volume      float64
	FillLevel   float64
	Contains    []string // insertion order = placement order; duplicates allowed
	ContainedIn string   // exactly one parent ("" only for roots like the room)
	Liquids     map[string]bool
}

// Holding returns the object a hand currently holds, or "" when empty.
func (o *Object) Holding() string {
	if len(o.Contains) == 0 {
		return ""
	}
	return o.Contains[0]
}

// LiquidList returns the object's liquid substances in sorted order.
func (o *Object) LiquidList() []string {
	out := make([]string, 0, len(o.Liquids))
	for l := range o.Liquids {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (o *Object) clone() *Object {
	cp := *o
	cp.Contains = append([]string(nil), o.Contains...)
	cp.Liquids = make(map[string]bool, len(o.Liquids))
	for l := range o.Liquids {
		cp.Liquids[l] = true
	}
	return &cp
}

// State is one snapshot of the world. The planning pass owns its working
// copy exclusively; the real state is advanced only on actuator acks.
type State struct {
	Objects map[string]*Object

	// Attention is the object the robot last gazed at; informational only.
	Attention string
}

// New returns an empty state.
func New() *State {
	return &State{Objects: make(map[string]*Object)}
}

// Clone deep-copies the state for a disposable simulation walk.
func (s *State) Clone() *State {
	cp := &State{
		Objects:   make(map[string]*Object, len(s.Objects)),
		Attention: s.Attention,
	}
	for id, o := range s.Objects {
		cp.Objects[id] = o.clone()
	}
	return cp
}

// Get returns the object with the given id.
func (s *State) Get(id string) (*Object, error) {
	o, ok := s.Objects[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return o, nil
}

// Has reports whether id resolves in the state. Presence doubles as the
// robot's perception set: every known object is considered visible.
func (s *State) Has(id string) bool {
	_, ok := s.Objects[id]
	return ok
}

// ContainerOf returns the id of the object's current container.
func (s *State) ContainerOf(id string) (string, error) {
	o, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return o.ContainedIn, nil
}

// Hands returns the ids of all hand objects in sorted order.
func (s *State) Hands() []string {
	var hands []string
	for id, o := range s.Objects {
		if o.Kind == KindHand {
			hands = append(hands, id)
		}
	}
	sort.Strings(hands)
	return hands
}

// contained reports whether inner is transitively contained in outer.
func (s *State) contained(inner, outer string) bool {
	seen := make(map[string]bool)
	for cur := inner; cur != "" && !seen[cur]; {
		seen[cur] = true
		o, ok := s.Objects[cur]
		if !ok {
			return false
		}
		if o.ContainedIn == outer {
			return true
		}
		cur = o.ContainedIn
	}
	return false
}

// Move relocates objID from fromID to toID, maintaining the containment
// invariant atomically: validated completely first, then applied.
func (s *State) Move(objID, fromID, toID string) error {
	obj, err := s.Get(objID)
	if err != nil {
		return err
	}
	from, err := s.Get(fromID)
	if err != nil {
		return err
	}
	to, err := s.Get(toID)
	if err != nil {
		return err
	}
	if obj.ContainedIn != fromID {
		return &InvalidMoveError{Object: objID, From: fromID, To: toID,
			Detail: fmt.Sprintf("object is contained in %q", obj.ContainedIn)}
	}
	idx := -1
	for i, c := range from.Contains {
		if c == objID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return &InvalidMoveError{Object: objID, From: fromID, To: toID,
			Detail: "source does not list the object"}
	}
	if toID == objID || s.contained(toID, objID) {
		return &InvalidMoveError{Object: objID, From: fromID, To: toID,
			Detail: "move would create a containment cycle"}
	}

	from.Contains = append(from.Contains[:idx], from.Contains[idx+1:]...)
	to.Contains = append(to.Contains, objID)
	obj.ContainedIn = toID
	return nil
}

// SetClosure sets the closure attribute of id.
func (s *State) SetClosure(id string, c Closure) error {
	o, err := s.Get(id)
	if err != nil {
		return err
	}
	o.Closure = c
	return nil
}

// SetPower sets the power attribute of id.
func (s *State) SetPower(id string, p Power) error {
	o, err := s.Get(id)
	if err != nil {
		return err
	}
	o.Power = p
	return nil
}

// AdjustFill changes the fill level of id by delta liters. The result must
// stay within [0, volume]; out-of-range adjustments fail without mutating.
func (s *State) AdjustFill(id string, delta float64) error {
	o, err := s.Get(id)
	if err != nil {
		return err
	}
	next := o.FillLevel + delta
	if next < -fillEpsilon || next > o.Volume+fillEpsilon {
		return &CapacityExceededError{Object: id, FillLevel: next, Volume: o.Volume}
	}
	o.FillLevel = math.Max(0, math.Min(next, o.Volume))
	return nil
}

// AddLiquid records a liquid substance as present in id.
func (s *State) AddLiquid(id, liquid string) error {
	o, err := s.Get(id)
	if err != nil {
		return err
	}
	if o.Liquids == nil {
		o.Liquids = make(map[string]bool)
	}
	o.Liquids[liquid] = true
	return nil
}

// RemoveLiquid removes a liquid substance from id.
func (s *State) RemoveLiquid(id, liquid string) error {
	o, err := s.Get(id)
	if err != nil {
		return err
	}
	delete(o.Liquids, liquid)
	return nil
}

// Check verifies the structural invariants:
// containment forms a forest, both directions of the containment relation
// agree, each hand holds at most one object, and fill levels are in range.
func (s *State) Check() error {
	for id, o := range s.Objects {
		if o.ContainedIn != "" {
			parent, ok := s.Objects[o.ContainedIn]
			if !ok {
				return fmt.Errorf("world: %q names unknown container %q", id, o.ContainedIn)
			}
			found := false
			for _, c := range parent.Contains {
				if c == id {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("world: %q claims container %q but is not listed there", id, o.ContainedIn)
			}
		}
		for _, c := range o.Contains {
			child, ok := s.Objects[c]
			if !ok {
				return fmt.Errorf("world: %q contains unknown object %q", id, c)
			}
			if child.ContainedIn != id {
				return fmt.Errorf("world: %q lists %q but that object claims container %q", id, c, child.ContainedIn)
			}
		}
		if s.contained(id, id) {
			return fmt.Errorf("world: %q contains itself transitively", id)
		}
		if o.Kind == KindHand && len(o.Contains) > 1 {
			return fmt.Errorf("world: hand %q holds %d objects", id, len(o.Contains))
		}
		if o.FillLevel < -fillEpsilon || o.FillLevel > o.Volume+fillEpsilon {
			return &CapacityExceededError{Object: id, FillLevel: o.FillLevel, Volume: o.Volume}
		}
	}
	return nil
}
