package world

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SnapshotObject is one entry of the external world-state contract. Fields
// are present only when relevant for the object kind, so everything beyond
// type and the containment lists is optional.
type SnapshotObject struct {
	Type           string   `json:"type"`
	HoldsObject    []string `json:"holdsObject"`
	IsHeldByObject []string `json:"isHeldByObject,omitempty"`
	Closure        *string  `json:"closure,omitempty"`
	Power          *string  `json:"power,omitempty"`
	Volume         *float64 `json:"volume,omitempty"`
	FillLevel      *float64 `json:"fillLevel,omitempty"`
	HoldsLiquid    []string `json:"holdsLiquid,omitempty"`
}

// ParseSnapshot normalizes the duck-typed external mapping into a typed
// State, verifying that both directions of the containment relation agree
// and that the structural invariants hold. The snapshot is the sole source
// of truth at planning time; nothing downstream re-reads the raw form.
func ParseSnapshot(data []byte) (*State, error) {
	var raw map[string]SnapshotObject
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("world: parse snapshot: %w", err)
	}

	s := New()
	for id, so := range raw {
		o := &Object{
			ID:      id,
			Kind:    so.Type,
			Liquids: make(map[string]bool, len(so.HoldsLiquid)),
		}
		if so.Type == "" {
			return nil, fmt.Errorf("world: snapshot object %q has no type", id)
		}
		o.Contains = append([]string(nil), so.HoldsObject...)
		switch len(so.IsHeldByObject) {
		case 0:
		case 1:
			o.ContainedIn = so.IsHeldByObject[0]
		default:
			return nil, fmt.Errorf("world: snapshot object %q has %d holders, want at most 1", id, len(so.IsHeldByObject))
		}
		if so.Closure != nil {
			switch Closure(*so.Closure) {
			case ClosureOpen, ClosureClosed:
				o.Closure = Closure(*so.Closure)
			default:
				return nil, fmt.Errorf("world: snapshot object %q has closure %q, want open|closed", id, *so.Closure)
			}
		}
		if so.Power != nil {
			switch Power(*so.Power) {
			case PowerOn, PowerOff:
				o.Power = Power(*so.Power)
			default:
				return nil, fmt.Errorf("world: snapshot object %q has power %q, want on|off", id, *so.Power)
			}
		}
		if so.Volume != nil {
			if *so.Volume < 0 {
				return nil, fmt.Errorf("world: snapshot object %q has negative volume", id)
			}
			o.Volume = *so.Volume
		}
		if so.FillLevel != nil {
			if *so.FillLevel < 0 {
				return nil, fmt.Errorf("world: snapshot object %q has negative fillLevel", id)
			}
			o.FillLevel = *so.FillLevel
		}
		for _, l := range so.HoldsLiquid {
			o.Liquids[l] = true
		}
		s.Objects[id] = o
	}

	if err := s.Check(); err != nil {
		return nil, fmt.Errorf("world: snapshot rejected: %w", err)
	}
	return s, nil
}

// Snapshot serializes the state back into the external contract, for
// handing to the translator and for test round-trips.
func (s *State) Snapshot() ([]byte, error) {
	raw := make(map[string]SnapshotObject, len(s.Objects))
	ids := make([]string, 0, len(s.Objects))
	for id := range s.Objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		o := s.Objects[id]
		so := SnapshotObject{
			Type:        o.Kind,
			HoldsObject: append([]string{}, o.Contains...),
		}
		if o.ContainedIn != "" {
			so.IsHeldByObject = []string{o.ContainedIn}
		}
		if o.Closure != ClosureNone {
			c := string(o.Closure)
			so.Closure = &c
		}
		if o.Power != PowerNone {
			p := string(o.Power)
			so.Power = &p
		}
		if o.Volume > 0 || o.FillLevel > 0 {
			v, f := o.Volume, o.FillLevel
			so.Volume = &v
			so.FillLevel = &f
		}
		if len(o.Liquids) > 0 {
			so.HoldsLiquid = o.LiquidList()
		}
		raw[id] = so
	}
	return json.MarshalIndent(raw, "", "  ")
}
