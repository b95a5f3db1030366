// Package action is the fixed catalogue of robot action kinds: typed
// parameters, precondition checks, and effects over the world model.
//
// Precondition checks are total: they return a *Violation naming the
// specific cause instead of a boolean, so the replanner can pick the right
// corrective splice. Effects are applied only when every precondition
// holds; a violated action is never partially applied.
package action

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind names one schema of the action catalogue.
type Kind string

const (
	Open      Kind = "open"
	Close     Kind = "close"
	Get       Kind = "get"
	Put       Kind = "put"
	Pour      Kind = "pour"
	SwitchOn  Kind = "switch_on"
	SwitchOff Kind = "switch_off"
	Wait      Kind = "wait"
	Gaze      Kind = "gaze"
)

// Action is one bound instance of a schema. Immutable once constructed.
type Action struct {
	Kind     Kind
	Object   string  // open/close/get/put/switch/gaze target
	Source   string  // get: current container; pour: source vessel (Object unused)
	Dest     string  // put/pour destination
	Hand     string  // get/put hand selection
	VolumeML float64 // pour
	Seconds  float64 // wait
}

// String renders the action in the strict external command syntax,
// one fixed token order per kind.
func (a Action) String() string {
	switch a.Kind {
	case Open, Close, SwitchOn, SwitchOff, Gaze:
		return fmt.Sprintf("%s %s", a.Kind, a.Object)
	case Get:
		return fmt.Sprintf("get %s from %s %s", a.Object, a.Source, a.Hand)
	case Put:
		return fmt.Sprintf("put %s %s", a.Object, a.Dest)
	case Pour:
		return fmt.Sprintf("pour %s %s %s", a.Source, a.Dest, trimFloat(a.VolumeML))
	case Wait:
		return fmt.Sprintf("wait %s", trimFloat(a.Seconds))
	}
	return string(a.Kind)
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Plan is an ordered sequence of actions. Mutable only by the synthesizer
// and replanner; frozen once emitted.
type Plan []Action

// Clone returns an independent copy of the plan.
func (p Plan) Clone() Plan {
	return append(Plan(nil), p...)
}

// Commands renders every action in the external command syntax.
func (p Plan) Commands() []string {
	out := make([]string, len(p))
	for i, a := range p {
		out[i] = a.String()
	}
	return out
}

func (p Plan) String() string {
	return strings.Join(p.Commands(), "\n")
}

// Cause is the closed set of precondition failure causes. The replanner's
// fix lookup is total over this set.
type Cause string

const (
	CauseNotFound           Cause = "object_not_found"
	CauseNotVisible         Cause = "not_visible"
	CauseNoClosure          Cause = "no_closure"
	CauseAlreadyOpen        Cause = "already_open"
	CauseAlreadyClosed      Cause = "already_closed"
	CauseContainerClosed    Cause = "container_closed"
	CauseWrongContainer     Cause = "wrong_container"
	CauseHandOccupied       Cause = "hand_occupied"
	CauseNotInHand          Cause = "not_in_hand"
	CauseOverCapacity       Cause = "over_capacity"
	CauseInsufficientLiquid Cause = "insufficient_liquid"
	CauseNoLiquidCapacity   Cause = "no_liquid_capacity"
	CauseNoPower            Cause = "no_power"
	CausePowerRedundant     Cause = "power_redundant"
	CauseBadVolume          Cause = "bad_volume"
	CauseNegativeDuration   Cause = "negative_duration"
)

// Violation records which precondition of which action failed and the
// object(s) implicated. Index is the action's position in the plan; the
// validator fills it in.
type Violation struct {
	Index  int
	Action Action
	Cause  Cause
	Object string
	Detail string
}

func (v *Violation) Error() string {
	msg := fmt.Sprintf("precondition violated at step %d (%s): %s on %q", v.Index, v.Action, v.Cause, v.Object)
	if v.Detail != "" {
		msg += ": " + v.Detail
	}
	return msg
}
