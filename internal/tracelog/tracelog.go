// Package tracelog provides per-request structured logging for the planning
// pipeline. Each request gets one JSONL file capturing every stage: routing,
// translation, synthesis, violations, repair splices, acceptance or terminal
// failure, emission, and actuator acks.
//
// All Trace methods are nil-safe (no-op on nil receiver) so pipeline stages
// don't need nil checks before every log call.
package tracelog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventKind labels a single structured event in the trace.
type EventKind string

const (
	KindRequest     EventKind = "request"
	KindRoute       EventKind = "route"
	KindTranslation EventKind = "translation"
	KindSynth       EventKind = "synth"
	KindViolation   EventKind = "violation"
	KindRepair      EventKind = "repair"
	KindAccepted    EventKind = "accepted"
	KindFailed      EventKind = "failed"
	KindAck         EventKind = "ack"
	KindDone        EventKind = "done"
)

// Event is one JSONL line in the trace. Fields are omitempty so each event
// only serialises relevant data.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp string    `json:"ts"`

	RequestID string `json:"request_id,omitempty"`
	Text      string `json:"text,omitempty"`

	// route
	Route string `json:"route,omitempty"`
	Reply string `json:"reply,omitempty"`

	// translation / synth / accepted
	Goal           string   `json:"goal,omitempty"`
	ObjectsNeeded  []string `json:"objects_needed,omitempty"`
	RemainingSteps []string `json:"remaining_steps,omitempty"`
	Commands       []string `json:"commands,omitempty"`

	// violation / repair
	Index    int      `json:"index,omitempty"`
	Cause    string   `json:"cause,omitempty"`
	Object   string   `json:"object,omitempty"`
	Detail   string   `json:"detail,omitempty"`
	Round    int      `json:"round,omitempty"`
	Inserted []string `json:"inserted,omitempty"`
	Removed  string   `json:"removed,omitempty"`

	// failed / ack
	FailKind string `json:"fail_kind,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Command  string `json:"command,omitempty"`
	OK       *bool  `json:"ok,omitempty"` // pointer: false must be serialised

	// done
	Status    string `json:"status,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`
	Rounds    int    `json:"rounds,omitempty"`
}

// Trace owns one request's JSONL file.
type Trace struct {
	mu      sync.Mutex
	f       *os.File
	started time.Time
}

// Open creates the trace file dir/<requestID>.jsonl. A nil Trace with a nil
// error is returned when dir is empty (tracing disabled).
func Open(dir, requestID string) (*Trace, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tracelog: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, requestID+".jsonl"))
	if err != nil {
		return nil, fmt.Errorf("tracelog: %w", err)
	}
	return &Trace{f: f, started: time.Now()}, nil
}

// Close flushes and closes the trace file.
func (t *Trace) Close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f != nil {
		_ = t.f.Close()
		t.f = nil
	}
}

func (t *Trace) write(e Event) {
	if t == nil {
		return
	}
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return
	}
	line, err := json.Marshal(e)
	if err != nil {
		slog.Warn("tracelog: marshal event failed", "kind", e.Kind, "err", err)
		return
	}
	if _, err := t.f.Write(append(line, '\n')); err != nil {
		slog.Warn("tracelog: write failed", "kind", e.Kind, "err", err)
	}
}

// Request records the raw input entering the pipeline.
func (t *Trace) Request(requestID, text string) {
	t.write(Event{Kind: KindRequest, RequestID: requestID, Text: text})
}

// Route records the dispatcher's verdict.
func (t *Trace) Route(route, reply string) {
	t.write(Event{Kind: KindRoute, Route: route, Reply: reply})
}

// Translation records the translator's structured message.
func (t *Trace) Translation(goal string, objects, steps []string) {
	t.write(Event{Kind: KindTranslation, Goal: goal, ObjectsNeeded: objects, RemainingSteps: steps})
}

// Synth records the draft command sequence.
func (t *Trace) Synth(commands []string) {
	t.write(Event{Kind: KindSynth, Commands: commands})
}

// Violation records one precondition failure found by the validator.
func (t *Trace) Violation(index int, cause, object, detail, command string) {
	t.write(Event{Kind: KindViolation, Index: index, Cause: cause, Object: object, Detail: detail, Command: command})
}

// Repair records one corrective splice.
func (t *Trace) Repair(round, at int, inserted []string, removed string) {
	t.write(Event{Kind: KindRepair, Round: round, Index: at, Inserted: inserted, Removed: removed})
}

// Accepted records the final validated command sequence.
func (t *Trace) Accepted(goal string, commands []string, rounds int) {
	t.write(Event{Kind: KindAccepted, Goal: goal, Commands: commands, Rounds: rounds})
}

// Failed records a terminal planning failure.
func (t *Trace) Failed(failKind, reason string) {
	t.write(Event{Kind: KindFailed, FailKind: failKind, Reason: reason})
}

// Ack records one actuator acknowledgment.
func (t *Trace) Ack(index int, command string, ok bool, reason string) {
	t.write(Event{Kind: KindAck, Index: index, Command: command, OK: &ok, Reason: reason})
}

// Done records the request's terminal status and elapsed time.
func (t *Trace) Done(status string, rounds int) {
	if t == nil {
		return
	}
	t.write(Event{Kind: KindDone, Status: status, Rounds: rounds, ElapsedMs: time.Since(t.started).Milliseconds()})
}
