package action

import (
	"fmt"

	"github.com/haricheung/labhand/internal/world"
)

// fillEpsilon matches the world model's float tolerance for volumes.
const fillEpsilon = 1e-9

// Checker evaluates preconditions and applies effects. ItemCapacity bounds
// how many discrete items a container kind accepts on put; kinds absent
// from the map are unbounded.
type Checker struct {
	ItemCapacity map[string]int
}

// Precheck evaluates every precondition of a against st and returns the
// first violated one, or nil when the action is executable. It never
// mutates st.
func (c Checker) Precheck(a Action, st *world.State) *Violation {
	switch a.Kind {
	case Open:
		obj, v := c.resolve(a, st, a.Object)
		if v != nil {
			return v
		}
		switch obj.Closure {
		case world.ClosureNone:
			return &Violation{Action: a, Cause: CauseNoClosure, Object: a.Object}
		case world.ClosureOpen:
			return &Violation{Action: a, Cause: CauseAlreadyOpen, Object: a.Object}
		}
		return nil

	case Close:
		obj, v := c.resolve(a, st, a.Object)
		if v != nil {
			return v
		}
		switch obj.Closure {
		case world.ClosureNone:
			return &Violation{Action: a, Cause: CauseNoClosure, Object: a.Object}
		case world.ClosureClosed:
			return &Violation{Action: a, Cause: CauseAlreadyClosed, Object: a.Object}
		}
		return nil

	case Get:
		obj, v := c.resolve(a, st, a.Object)
		if v != nil {
			return v
		}
		src, v := c.resolve(a, st, a.Source)
		if v != nil {
			return v
		}
		hand, v := c.resolve(a, st, a.Hand)
		if v != nil {
			return v
		}
		if obj.ContainedIn != a.Source {
			return &Violation{Action: a, Cause: CauseWrongContainer, Object: a.Object,
				Detail: fmt.Sprintf("contained in %q, not %q", obj.ContainedIn, a.Source)}
		}
		if src.Closure == world.ClosureClosed {
			return &Violation{Action: a, Cause: CauseContainerClosed, Object: a.Source}
		}
		if held := hand.Holding(); held != "" {
			return &Violation{Action: a, Cause: CauseHandOccupied, Object: held,
				Detail: fmt.Sprintf("%s already holds %q", a.Hand, held)}
		}
		return nil

	case Put:
		if _, v := c.resolve(a, st, a.Object); v != nil {
			return v
		}
		dst, v := c.resolve(a, st, a.Dest)
		if v != nil {
			return v
		}
		hand, v := c.resolve(a, st, a.Hand)
		if v != nil {
			return v
		}
		if hand.Holding() != a.Object {
			return &Violation{Action: a, Cause: CauseNotInHand, Object: a.Object,
				Detail: fmt.Sprintf("%s holds %q", a.Hand, hand.Holding())}
		}
		if dst.Closure == world.ClosureClosed {
			return &Violation{Action: a, Cause: CauseContainerClosed, Object: a.Dest}
		}
		if cap, ok := c.ItemCapacity[dst.Kind]; ok && len(dst.Contains) >= cap {
			return &Violation{Action: a, Cause: CauseOverCapacity, Object: a.Dest,
				Detail: fmt.Sprintf("holds %d items, capacity %d", len(dst.Contains), cap)}
		}
		return nil

	case Pour:
		src, v := c.resolve(a, st, a.Source)
		if v != nil {
			return v
		}
		dst, v := c.resolve(a, st, a.Dest)
		if v != nil {
			return v
		}
		if a.VolumeML <= 0 {
			return &Violation{Action: a, Cause: CauseBadVolume, Object: a.Source,
				Detail: fmt.Sprintf("volume %.1f ml", a.VolumeML)}
		}
		if src.Closure == world.ClosureClosed {
			return &Violation{Action: a, Cause: CauseContainerClosed, Object: a.Source}
		}
		if dst.Closure == world.ClosureClosed {
			return &Violation{Action: a, Cause: CauseContainerClosed, Object: a.Dest}
		}
		// Pouring requires holding the source vessel.
		holder, ok := st.Objects[src.ContainedIn]
		if !ok || holder.Kind != world.KindHand {
			return &Violation{Action: a, Cause: CauseNotInHand, Object: a.Source,
				Detail: "pour source must be held in a hand"}
		}
		vol := a.VolumeML / 1000
		if len(src.Liquids) == 0 || src.FillLevel+fillEpsilon < vol {
			return &Violation{Action: a, Cause: CauseInsufficientLiquid, Object: a.Source,
				Detail: fmt.Sprintf("has %.3f l, pour needs %.3f l", src.FillLevel, vol)}
		}
		if dst.FillLevel+vol > dst.Volume+fillEpsilon {
			return &Violation{Action: a, Cause: CauseNoLiquidCapacity, Object: a.Dest,
				Detail: fmt.Sprintf("%.3f l free, pour needs %.3f l", dst.Volume-dst.FillLevel, vol)}
		}
		return nil

	case SwitchOn, SwitchOff:
		obj, v := c.resolve(a, st, a.Object)
		if v != nil {
			return v
		}
		if obj.Power == world.PowerNone {
			return &Violation{Action: a, Cause: CauseNoPower, Object: a.Object}
		}
		target := world.PowerOn
		if a.Kind == SwitchOff {
			target = world.PowerOff
		}
		if obj.Power == target {
			return &Violation{Action: a, Cause: CausePowerRedundant, Object: a.Object,
				Detail: fmt.Sprintf("already %s", target)}
		}
		return nil

	case Wait:
		if a.Seconds < 0 {
			return &Violation{Action: a, Cause: CauseNegativeDuration,
				Detail: fmt.Sprintf("%.1f s", a.Seconds)}
		}
		return nil

	case Gaze:
		if !st.Has(a.Object) {
			return &Violation{Action: a, Cause: CauseNotVisible, Object: a.Object}
		}
		return nil
	}

	return &Violation{Action: a, Cause: CauseNotFound, Detail: fmt.Sprintf("unknown action kind %q", a.Kind)}
}

// Apply checks every precondition of a and, only if all hold, applies the
// effect to st. Returns the violation when one exists; world-level errors
// after a clean precheck indicate a bug and are propagated.
func (c Checker) Apply(a Action, st *world.State) (*Violation, error) {
	if v := c.Precheck(a, st); v != nil {
		return v, nil
	}
	switch a.Kind {
	case Open:
		return nil, st.SetClosure(a.Object, world.ClosureOpen)
	case Close:
		return nil, st.SetClosure(a.Object, world.ClosureClosed)
	case Get:
		return nil, st.Move(a.Object, a.Source, a.Hand)
	case Put:
		return nil, st.Move(a.Object, a.Hand, a.Dest)
	case Pour:
		vol := a.VolumeML / 1000
		if err := st.AdjustFill(a.Source, -vol); err != nil {
			return nil, err
		}
		if err := st.AdjustFill(a.Dest, vol); err != nil {
			return nil, err
		}
		src, _ := st.Get(a.Source)
		for _, l := range src.LiquidList() {
			if err := st.AddLiquid(a.Dest, l); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case SwitchOn:
		return nil, st.SetPower(a.Object, world.PowerOn)
	case SwitchOff:
		return nil, st.SetPower(a.Object, world.PowerOff)
	case Wait:
		return nil, nil // elapsed time only; no state effect
	case Gaze:
		st.Attention = a.Object
		return nil, nil
	}
	return nil, fmt.Errorf("action: unknown kind %q", a.Kind)
}

// resolve looks up id and converts absence into a NotFound violation so
// prechecks stay total.
func (c Checker) resolve(a Action, st *world.State, id string) (*world.Object, *Violation) {
	obj, err := st.Get(id)
	if err != nil {
		return nil, &Violation{Action: a, Cause: CauseNotFound, Object: id}
	}
	return obj, nil
}
