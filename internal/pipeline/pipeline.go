// Package pipeline runs one request through the planning core: translate →
// synthesize → validate ⇄ repair → emit → actuate. Planning is synchronous
// and single-threaded; the working state of each pass is owned exclusively
// by that pass, and the authoritative state only advances on actuator acks.
//
// If the actuator rejects a command, the in-flight plan is discarded and
// planning restarts from a freshly queried snapshot — the core never patches
// a stale plan against updated ground truth.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/haricheung/labhand/internal/action"
	"github.com/haricheung/labhand/internal/actuator"
	"github.com/haricheung/labhand/internal/bus"
	"github.com/haricheung/labhand/internal/config"
	"github.com/haricheung/labhand/internal/emit"
	"github.com/haricheung/labhand/internal/memory"
	"github.com/haricheung/labhand/internal/repair"
	"github.com/haricheung/labhand/internal/synth"
	"github.com/haricheung/labhand/internal/tracelog"
	"github.com/haricheung/labhand/internal/types"
	"github.com/haricheung/labhand/internal/world"
)

// Translator is the collaborator that turns a request and a snapshot into
// the structured planning message.
type Translator interface {
	Translate(ctx context.Context, requestID, text string, st *world.State) (types.Translation, error)
}

// Result is the outcome of one fully handled request.
type Result struct {
	Translation types.Translation
	Plan        action.Plan
	Commands    string // emitted command sequence, one per line
	Rounds      int    // repair rounds of the accepted pass
	Executed    int    // commands acknowledged by the actuator
	Replans     int    // fresh-snapshot replans after actuator failures
}

// Pipeline wires the planning core to its collaborators.
type Pipeline struct {
	cfg  config.Config
	chk  action.Checker
	b    *bus.Bus
	tr   Translator
	act  actuator.Actuator
	hist *memory.Store // may be nil
}

// New creates a Pipeline.
func New(cfg config.Config, b *bus.Bus, tr Translator, act actuator.Actuator, hist *memory.Store) *Pipeline {
	return &Pipeline{
		cfg:  cfg,
		chk:  action.Checker{ItemCapacity: cfg.Capacity.Items},
		b:    b,
		tr:   tr,
		act:  act,
		hist: hist,
	}
}

// Handle plans and executes one request. Terminal planning failures
// (Infeasible, Exhausted, UnresolvedStep, contract errors) are returned as
// errors after being published and traced.
func (p *Pipeline) Handle(ctx context.Context, requestID, text string, trace *tracelog.Trace) (Result, error) {
	var res Result
	for attempt := 0; ; attempt++ {
		st := p.act.Snapshot()

		msg, err := p.tr.Translate(ctx, requestID, text, st)
		if err != nil {
			p.fail(requestID, "translation", err, trace)
			return res, err
		}
		trace.Translation(msg.Goal, msg.ObjectsNeeded, msg.RemainingSteps)
		res.Translation = msg

		plan, rounds, err := p.planOnce(requestID, msg, st, trace)
		if err != nil {
			return res, err
		}
		res.Plan = plan
		res.Rounds = rounds
		res.Commands = emit.Emit(plan)

		p.publish(types.StageEmitter, types.StageActuator, types.MsgPlanAccepted, types.PlanAccepted{
			RequestID: requestID,
			Goal:      msg.Goal,
			Commands:  plan.Commands(),
			Rounds:    rounds,
		})
		trace.Accepted(msg.Goal, plan.Commands(), rounds)

		execErr := p.execute(ctx, requestID, plan, &res, trace)
		if execErr == nil {
			if p.hist != nil {
				p.hist.Record(memory.PlanRecord{
					RequestID: requestID,
					Goal:      msg.Goal,
					Commands:  plan.Commands(),
					Status:    "executed",
				})
			}
			trace.Done("executed", rounds)
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		// Physical mismatch: discard the plan, replan from a fresh snapshot.
		log.Printf("[PIPELINE] request=%s actuator failure, discarding plan (attempt %d): %v", requestID, attempt+1, execErr)
		if attempt >= p.cfg.MaxActuatorReplans {
			err := fmt.Errorf("pipeline: giving up after %d fresh-snapshot replans: %w", attempt+1, execErr)
			p.fail(requestID, "actuator", err, trace)
			return res, err
		}
		res.Replans++
	}
}

// planOnce runs synthesize → validate ⇄ repair for one snapshot.
func (p *Pipeline) planOnce(requestID string, msg types.Translation, st *world.State, trace *tracelog.Trace) (action.Plan, int, error) {
	sy := synth.New(p.cfg, st, msg.ObjectsNeeded)
	draft, err := sy.Synthesize(msg.RemainingSteps)
	if err != nil {
		p.fail(requestID, failKind(err), err, trace)
		return nil, 0, err
	}
	p.publish(types.StageSynth, types.StageValidator, types.MsgPlanDraft, types.PlanDraft{
		RequestID: requestID,
		Commands:  draft.Commands(),
	})
	trace.Synth(draft.Commands())

	rp := repair.New(p.chk, p.cfg)
	outcome, err := rp.Repair(draft, st)
	for _, fix := range outcome.Fixes {
		v := fix.Violation
		p.publish(types.StageValidator, types.StageReplanner, types.MsgViolation, types.ViolationNote{
			RequestID: requestID,
			Index:     v.Index,
			Command:   v.Action.String(),
			Cause:     string(v.Cause),
			Object:    v.Object,
			Detail:    v.Detail,
		})
		trace.Violation(v.Index, string(v.Cause), v.Object, v.Detail, v.Action.String())

		note := types.RepairNote{RequestID: requestID, Round: fix.Round, At: fix.At}
		var removed string
		if fix.Removed != nil {
			removed = fix.Removed.String()
			note.Removed = removed
		}
		if fix.Rewritten != nil {
			note.Rewritten = fix.Rewritten.String()
		}
		note.Inserted = fix.Inserted.Commands()
		p.publish(types.StageReplanner, types.StageValidator, types.MsgRepair, note)
		trace.Repair(fix.Round, fix.At, note.Inserted, removed)
	}
	if err != nil {
		p.fail(requestID, failKind(err), err, trace)
		return nil, outcome.Rounds, err
	}
	return outcome.Plan, outcome.Rounds, nil
}

// execute walks the accepted plan through the actuator, one command
// outstanding at a time.
func (p *Pipeline) execute(ctx context.Context, requestID string, plan action.Plan, res *Result, trace *tracelog.Trace) error {
	for i, a := range plan {
		err := p.act.Execute(ctx, a)
		ack := types.ActuatorAck{RequestID: requestID, Index: i, Command: a.String(), OK: err == nil, Last: i == len(plan)-1}
		if err != nil {
			ack.Error = err.Error()
		}
		p.publish(types.StageActuator, types.StageUser, types.MsgActuatorAck, ack)
		trace.Ack(i, ack.Command, ack.OK, ack.Error)
		if err != nil {
			return err
		}
		res.Executed++
	}
	return nil
}

func (p *Pipeline) fail(requestID, kind string, err error, trace *tracelog.Trace) {
	p.publish(types.StageReplanner, types.StageUser, types.MsgPlanFailed, types.PlanFailed{
		RequestID: requestID,
		Kind:      kind,
		Reason:    err.Error(),
	})
	trace.Failed(kind, err.Error())
	trace.Done(kind, 0)
}

func (p *Pipeline) publish(from, to types.Stage, mt types.MessageType, payload any) {
	p.b.Publish(types.Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		From:      from,
		To:        to,
		Type:      mt,
		Payload:   payload,
	})
}

// failKind maps a planning error to the taxonomy name reported upward.
func failKind(err error) string {
	var unresolved *synth.UnresolvedStepError
	var infeasible *repair.InfeasibleError
	var exhausted *repair.ExhaustedError
	var notFound *world.NotFoundError
	switch {
	case errors.As(err, &unresolved):
		return "unresolved_step"
	case errors.As(err, &infeasible):
		return "infeasible"
	case errors.As(err, &exhausted):
		return "exhausted"
	case errors.As(err, &notFound):
		return "not_found"
	}
	return "planning"
}
