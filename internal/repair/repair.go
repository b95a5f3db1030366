// Package repair is the corrective replanner. It consumes the validator's
// violation report, determines the minimal missing prerequisite via a fixed
// lookup over the violation cause, splices the fix in directly before the
// failing index, and resubmits the whole plan — an explicit bounded loop
// over (plan, violation) pairs, never unbounded recursion.
//
// State machine: Validating → {Accepted, Repairing} → Validating → … →
// Accepted | Exhausted. Causes with no mechanical fix terminate as
// Infeasible instead.
package repair

import (
	"fmt"

	"github.com/haricheung/labhand/internal/action"
	"github.com/haricheung/labhand/internal/config"
	"github.com/haricheung/labhand/internal/validate"
	"github.com/haricheung/labhand/internal/world"
)

// Status is the terminal state of one repair run.
type Status string

const (
	Accepted   Status = "accepted"
	Exhausted  Status = "exhausted"
	Infeasible Status = "infeasible"
)

// InfeasibleError reports a violation with no mechanical fix.
type InfeasibleError struct {
	Violation *action.Violation
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("repair: infeasible: %v", e.Violation)
}

// ExhaustedError reports that the repair round bound was exceeded. A fix
// may exist but was not found within budget; this is distinct from
// Infeasible.
type ExhaustedError struct {
	Rounds    int
	Violation *action.Violation
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("repair: exhausted after %d rounds, still violated: %v", e.Rounds, e.Violation)
}

// Fix records one corrective splice for the trace.
type Fix struct {
	Round     int
	At        int
	Violation action.Violation
	Inserted  action.Plan    // actions spliced in before the failing index
	Removed   *action.Action // action deleted (strict-idempotence repairs)
	Rewritten *action.Action // action replaced in place (stale source/hand)
}

// Outcome is the result of one repair run.
type Outcome struct {
	Status Status
	Plan   action.Plan
	Rounds int
	Fixes  []Fix
	Final  *world.State // simulated end state when Accepted
}

// Replanner repairs draft plans against a fixed checker and configuration.
type Replanner struct {
	chk action.Checker
	cfg config.Config
}

// New creates a Replanner.
func New(chk action.Checker, cfg config.Config) *Replanner {
	return &Replanner{chk: chk, cfg: cfg}
}

// Repair validates p against st and iterates corrective splices to a fixed
// point. The returned error is nil only when the outcome is Accepted.
func (r *Replanner) Repair(p action.Plan, st *world.State) (Outcome, error) {
	// Original containers, for put-back fixes and open/close symmetry.
	origin := make(map[string]string, len(st.Objects))
	for id, o := range st.Objects {
		origin[id] = o.ContainedIn
	}

	plan := p.Clone()
	out := Outcome{Status: Accepted}
	var opened []string // containers opened by corrective fixes, in order
	symmetryDone := false

	for {
		res, err := validate.Walk(r.chk, plan, st)
		if err != nil {
			return out, err
		}

		if res.Accepted {
			if !symmetryDone {
				symmetryDone = true
				if tail := r.symmetryTail(plan, res.Final, opened, origin); len(tail) > 0 {
					plan = append(plan, tail...)
					continue // revalidate the trailing restores and closes
				}
			}
			out.Status = Accepted
			out.Plan = plan
			out.Final = res.Final
			return out, nil
		}

		if out.Rounds >= r.cfg.MaxRepairRounds {
			out.Status = Exhausted
			out.Plan = plan
			return out, &ExhaustedError{Rounds: out.Rounds, Violation: res.Violation}
		}

		fix, feasible := r.fixFor(res, origin)
		if !feasible {
			out.Status = Infeasible
			out.Plan = plan
			return out, &InfeasibleError{Violation: res.Violation}
		}
		out.Rounds++
		fix.Round = out.Rounds
		out.Fixes = append(out.Fixes, fix)

		idx := res.Violation.Index
		switch {
		case fix.Removed != nil:
			plan = append(plan[:idx], plan[idx+1:]...)
		case fix.Rewritten != nil:
			plan[idx] = *fix.Rewritten
		default:
			spliced := make(action.Plan, 0, len(plan)+len(fix.Inserted))
			spliced = append(spliced, plan[:idx]...)
			spliced = append(spliced, fix.Inserted...)
			spliced = append(spliced, plan[idx:]...)
			plan = spliced
			for _, a := range fix.Inserted {
				if a.Kind == action.Open {
					opened = append(opened, a.Object)
				}
			}
		}
	}
}

// fixFor maps a violation cause to its minimal mechanical fix. The second
// return value is false when no fix exists.
func (r *Replanner) fixFor(res validate.Result, origin map[string]string) (Fix, bool) {
	v := res.Violation
	a := v.Action
	fix := Fix{At: v.Index, Violation: *v}

	switch v.Cause {
	case action.CauseContainerClosed:
		fix.Inserted = action.Plan{{Kind: action.Open, Object: v.Object}}
		return fix, true

	case action.CauseHandOccupied:
		// Free the hand by returning its content to where it came from.
		held := v.Object
		dest := origin[held]
		if dest == "" || dest == a.Hand {
			dest = r.cfg.Carrier.Fallback
		}
		fix.Inserted = action.Plan{{Kind: action.Put, Object: held, Dest: dest, Hand: a.Hand}}
		return fix, true

	case action.CauseNotInHand:
		obj := v.Object
		cur, err := res.Final.ContainerOf(obj)
		if err != nil {
			return fix, false
		}
		if holder, err := res.Final.Get(cur); err == nil && holder.Kind == world.KindHand {
			if a.Kind == action.Put {
				// Right object, wrong hand on the put.
				rw := a
				rw.Hand = cur
				fix.Rewritten = &rw
				return fix, true
			}
			return fix, false
		}
		hand := a.Hand
		if hand == "" {
			hand = r.emptyHand(res.Final)
		}
		fix.Inserted = action.Plan{{Kind: action.Get, Object: obj, Source: cur, Hand: hand}}
		return fix, true

	case action.CauseWrongContainer:
		cur, err := res.Final.ContainerOf(v.Object)
		if err != nil {
			return fix, false
		}
		if cur == a.Hand {
			// Already in the chosen hand; the get is redundant.
			fix.Removed = &a
			return fix, true
		}
		rw := a
		rw.Source = cur
		fix.Rewritten = &rw
		return fix, true

	case action.CauseAlreadyOpen, action.CauseAlreadyClosed, action.CausePowerRedundant:
		// Strict idempotence: the redundant action is the defect; drop it.
		fix.Removed = &a
		return fix, true
	}

	// InsufficientLiquid, NoLiquidCapacity, OverCapacity, NotFound,
	// NotVisible, NoClosure, NoPower, BadVolume, NegativeDuration:
	// nothing mechanical restores these.
	return fix, false
}

// symmetryTail builds the trailing restore actions for containers opened by
// corrective fixes: objects taken out of such a container and still held at
// plan end are put back, then the container is closed again — unless the
// plan itself re-opens it later or already leaves it closed.
func (r *Replanner) symmetryTail(plan action.Plan, final *world.State, opened []string, origin map[string]string) action.Plan {
	var tail action.Plan
	seen := make(map[string]bool)
	for i := len(opened) - 1; i >= 0; i-- {
		c := opened[i]
		if seen[c] {
			continue
		}
		seen[c] = true
		obj, err := final.Get(c)
		if err != nil || obj.Closure != world.ClosureOpen {
			continue // plan already leaves it closed (or it vanished)
		}
		if countOpens(plan, c) > 1 {
			continue // a goal step re-opens it; leave as the goal wants
		}
		for _, h := range r.cfg.Hands.Order {
			hand, err := final.Get(h)
			if err != nil {
				continue
			}
			if held := hand.Holding(); held != "" && origin[held] == c {
				tail = append(tail, action.Action{Kind: action.Put, Object: held, Dest: c, Hand: h})
			}
		}
		tail = append(tail, action.Action{Kind: action.Close, Object: c})
	}
	return tail
}

func countOpens(plan action.Plan, c string) int {
	n := 0
	for _, a := range plan {
		if a.Kind == action.Open && a.Object == c {
			n++
		}
	}
	return n
}

// emptyHand returns the first configured hand that is empty in st, or the
// first configured hand.
func (r *Replanner) emptyHand(st *world.State) string {
	for _, h := range r.cfg.Hands.Order {
		if o, err := st.Get(h); err == nil && o.Holding() == "" {
			return h
		}
	}
	return r.cfg.Hands.Order[0]
}
