// Package validate replays a candidate plan against a working copy of the
// world state, action by action. The first violated precondition halts the
// walk; the report carries the applied prefix, the violation, and the
// remaining suffix so the replanner can splice a fix in place.
package validate

import (
	"fmt"

	"github.com/haricheung/labhand/internal/action"
	"github.com/haricheung/labhand/internal/world"
)

// Result is the outcome of one simulated walk.
type Result struct {
	Accepted  bool
	Violation *action.Violation // nil when Accepted
	Applied   action.Plan       // prefix whose effects were applied
	Remaining action.Plan       // failing action onward; empty when Accepted
	Final     *world.State      // simulated state: final on success, at the failure point otherwise
}

// Walk simulates p from st. st itself is never mutated; the walk owns a
// clone exclusively.
func Walk(chk action.Checker, p action.Plan, st *world.State) (Result, error) {
	work := st.Clone()
	for i, a := range p {
		v, err := chk.Apply(a, work)
		if err != nil {
			// A world-level failure after a clean precheck means the model
			// and the schema disagree; surface it, never the real world.
			return Result{}, fmt.Errorf("validate: step %d (%s): %w", i, a, err)
		}
		if v != nil {
			v.Index = i
			return Result{
				Violation: v,
				Applied:   p[:i].Clone(),
				Remaining: p[i:].Clone(),
				Final:     work,
			}, nil
		}
	}
	return Result{Accepted: true, Applied: p.Clone(), Final: work}, nil
}
