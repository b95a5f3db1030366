package types

import "time"

// Stage identifiers for bus messages
type Stage string

const (
	StageUser       Stage = "user"
	StageDispatcher Stage = "dispatcher"
	StageTranslator Stage = "translator"
	StageSynth      Stage = "synth"
	StageValidator  Stage = "validator"
	StageReplanner  Stage = "replanner"
	StageEmitter    Stage = "emitter"
	StageActuator   Stage = "actuator"
	StageMemory     Stage = "memory"
)

// MessageType identifies the payload type of a bus message
type MessageType string

const (
	MsgRequest      MessageType = "Request"
	MsgRoute        MessageType = "Route"
	MsgAnswer       MessageType = "Answer"
	MsgTranslation  MessageType = "Translation"
	MsgPlanDraft    MessageType = "PlanDraft"
	MsgViolation    MessageType = "Violation"
	MsgRepair       MessageType = "Repair"
	MsgPlanAccepted MessageType = "PlanAccepted"
	MsgPlanFailed   MessageType = "PlanFailed"
	MsgActuatorAck  MessageType = "ActuatorAck"
)

// Message is the envelope for all inter-stage traffic on the bus
type Message struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	From      Stage       `json:"from"`
	To        Stage       `json:"to"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
}

// Request is the raw user input entering the pipeline
type Request struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
}

// Route is the dispatcher's verdict on a Request
type Route struct {
	RequestID string `json:"request_id"`
	Route     string `json:"route"` // "answer" | "act"
	Reply     string `json:"reply,omitempty"`
}

// Translation is the four-field structured message from the translator.
// ObjectsNeeded must all resolve in the world model; StateSummary is
// informational only and never parsed by the planning core.
type Translation struct {
	RequestID      string   `json:"request_id"`
	Goal           string   `json:"goal"`
	ObjectsNeeded  []string `json:"objects_needed"`
	StateSummary   string   `json:"state_summary"`
	RemainingSteps []string `json:"remaining_steps"`
}

// PlanDraft carries the synthesizer's draft before validation
type PlanDraft struct {
	RequestID string   `json:"request_id"`
	Commands  []string `json:"commands"`
}

// ViolationNote reports one precondition failure found during validation
type ViolationNote struct {
	RequestID string `json:"request_id"`
	Index     int    `json:"index"`
	Command   string `json:"command"`
	Cause     string `json:"cause"`
	Object    string `json:"object"`
	Detail    string `json:"detail,omitempty"`
}

// RepairNote reports one corrective splice made by the replanner
type RepairNote struct {
	RequestID string   `json:"request_id"`
	Round     int      `json:"round"`
	At        int      `json:"at"`
	Inserted  []string `json:"inserted,omitempty"`
	Removed   string   `json:"removed,omitempty"`
	Rewritten string   `json:"rewritten,omitempty"`
}

// PlanAccepted carries the validated, corrected command sequence
type PlanAccepted struct {
	RequestID string   `json:"request_id"`
	Goal      string   `json:"goal"`
	Commands  []string `json:"commands"`
	Rounds    int      `json:"rounds"`
}

// PlanFailed is a terminal planning failure with a structured reason
type PlanFailed struct {
	RequestID string `json:"request_id"`
	Kind      string `json:"kind"` // "infeasible" | "exhausted" | "unresolved_step" | "not_found" | "translation"
	Reason    string `json:"reason"`
}

// ActuatorAck reports the actuator's result for one emitted command
type ActuatorAck struct {
	RequestID string `json:"request_id"`
	Index     int    `json:"index"`
	Command   string `json:"command"`
	OK        bool   `json:"ok"`
	Last      bool   `json:"last,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Answer carries a directly answered request back to the user
type Answer struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
}
