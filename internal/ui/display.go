package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/haricheung/labhand/internal/types"
)

// ANSI codes
const (
	ansiReset   = "\033[0m"
	ansiDim     = "\033[2m"
	ansiCyan    = "\033[36m"
	ansiYellow  = "\033[33m"
	ansiGreen   = "\033[32m"
	ansiRed     = "\033[31m"
	ansiMagenta = "\033[35m"
	ansiBlue    = "\033[34m"
)

var stageEmoji = map[types.Stage]string{
	types.StageDispatcher: "🚦",
	types.StageTranslator: "🗣️ ",
	types.StageSynth:      "📐",
	types.StageValidator:  "🔍",
	types.StageReplanner:  "🔧",
	types.StageEmitter:    "📤",
	types.StageActuator:   "🦾",
	types.StageMemory:     "💾",
	types.StageUser:       "👤",
}

var msgColor = map[types.MessageType]string{
	types.MsgRoute:        ansiCyan,
	types.MsgTranslation:  ansiBlue,
	types.MsgPlanDraft:    ansiYellow,
	types.MsgViolation:    ansiRed,
	types.MsgRepair:       ansiMagenta,
	types.MsgPlanAccepted: ansiGreen,
	types.MsgPlanFailed:   ansiRed,
	types.MsgActuatorAck:  ansiDim,
}

var msgStatus = map[types.MessageType]string{
	types.MsgRoute:        "🗣️  translating...",
	types.MsgTranslation:  "📐 synthesizing...",
	types.MsgPlanDraft:    "🔍 validating...",
	types.MsgViolation:    "🔧 repairing...",
	types.MsgRepair:       "🔍 revalidating...",
	types.MsgPlanAccepted: "🦾 executing...",
}

// dynamicStatus returns a spinner label for msg, enriched with payload detail
// for message types where the static label alone is not informative enough.
func dynamicStatus(msg types.Message) string {
	switch msg.Type {
	case types.MsgViolation:
		var v types.ViolationNote
		if remarshal(msg.Payload, &v) == nil && v.Cause != "" {
			return fmt.Sprintf("🔧 repairing %s at #%d...", v.Cause, v.Index)
		}
	case types.MsgActuatorAck:
		var a types.ActuatorAck
		if remarshal(msg.Payload, &a) == nil && a.Command != "" {
			return fmt.Sprintf("🦾 #%d %s", a.Index, clipCols(a.Command, 45))
		}
	}
	if s := msgStatus[msg.Type]; s != "" {
		return s
	}
	return ""
}

var spinRunes = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Display renders a live inter-stage flow visualization to stdout.
// It reads from a bus tap channel and animates a pipeline view; the final
// accepted plan is rendered as an aligned command table.
type Display struct {
	tap     <-chan types.Message
	mu      sync.Mutex
	status  string
	started time.Time
	inTask  bool
	spinIdx int
}

// New creates a Display reading from tap.
func New(tap <-chan types.Message) *Display {
	return &Display{tap: tap}
}

// Run is the main goroutine. It renders flow lines and animates the spinner.
// All terminal writes happen within this single goroutine so no extra
// locking is needed for I/O.
func (d *Display) Run(ctx context.Context) {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Print("\r\033[K")
			return

		case msg, ok := <-d.tap:
			if !ok {
				return
			}
			if !d.inTask && msg.Type == types.MsgRequest {
				d.startTask()
			}
			// Clear spinner line before printing a new flow line.
			fmt.Print("\r\033[K")
			d.printFlow(msg)
			d.setStatus(dynamicStatus(msg))
			switch msg.Type {
			case types.MsgPlanAccepted:
				d.printPlan(msg)
			case types.MsgPlanFailed:
				d.endTask(false)
			case types.MsgAnswer:
				d.endTask(true)
			case types.MsgActuatorAck:
				var a types.ActuatorAck
				if remarshal(msg.Payload, &a) == nil && a.Last && a.OK {
					d.endTask(true)
				}
			}

		case <-ticker.C:
			if !d.inTask {
				continue
			}
			frame := spinRunes[d.spinIdx%len(spinRunes)]
			d.spinIdx++
			d.mu.Lock()
			status := d.status
			d.mu.Unlock()
			fmt.Printf("\r%s%s%s %s", ansiCyan, string(frame), ansiReset, status)
		}
	}
}

func (d *Display) startTask() {
	d.started = time.Now()
	d.inTask = true
	d.setStatus("dispatching...")
	fmt.Printf("\n%s┌─── 🦾 labhand pipeline %s%s\n", ansiDim, strings.Repeat("─", 38), ansiReset)
}

func (d *Display) endTask(success bool) {
	if !d.inTask {
		return
	}
	d.inTask = false
	elapsed := time.Since(d.started).Round(time.Millisecond)
	icon := "✅"
	if !success {
		icon = "❌"
	}
	fmt.Printf("\r\033[K%s└─── %s  %v %s%s\n", ansiDim, icon, elapsed, strings.Repeat("─", 35), ansiReset)
}

func (d *Display) setStatus(s string) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

func (d *Display) printFlow(msg types.Message) {
	from := stageLabel(msg.From)
	to := stageLabel(msg.To)

	label := string(msg.Type)
	if det := msgDetail(msg); det != "" {
		label += ": " + det
	}

	color := msgColor[msg.Type]
	if color == "" {
		color = ansiDim
	}

	// Actuator acks are infrastructure noise; render them dim.
	if msg.Type == types.MsgActuatorAck {
		fmt.Printf("%s  %s ──[%s]──► %s%s\n", ansiDim, from, label, to, ansiReset)
		return
	}
	fmt.Printf("  %s ──[%s%s%s]──► %s\n", from, color, label, ansiReset, to)
}

// printPlan renders the accepted command sequence as a numbered table with
// verbs aligned into a column.
func (d *Display) printPlan(msg types.Message) {
	var p types.PlanAccepted
	if remarshal(msg.Payload, &p) != nil || len(p.Commands) == 0 {
		return
	}
	verbWidth := 0
	for _, c := range p.Commands {
		verb, _, _ := strings.Cut(c, " ")
		if w := runewidth.StringWidth(verb); w > verbWidth {
			verbWidth = w
		}
	}
	fmt.Printf("%s  ┌ plan (%d commands, %d repair rounds)%s\n", ansiDim, len(p.Commands), p.Rounds, ansiReset)
	for i, c := range p.Commands {
		verb, rest, _ := strings.Cut(c, " ")
		fmt.Printf("%s  │%s %2d. %s%s%s %s\n", ansiDim, ansiReset, i+1, ansiGreen, runewidth.FillRight(verb, verbWidth), ansiReset, rest)
	}
	fmt.Printf("%s  └%s\n", ansiDim, ansiReset)
}

func stageLabel(s types.Stage) string {
	emoji, ok := stageEmoji[s]
	if !ok {
		emoji = "•"
	}
	return emoji + " " + string(s)
}

func msgDetail(msg types.Message) string {
	switch msg.Type {
	case types.MsgRequest:
		var r types.Request
		if remarshal(msg.Payload, &r) == nil && r.Text != "" {
			return clipCols(r.Text, 55)
		}
	case types.MsgRoute:
		var r types.Route
		if remarshal(msg.Payload, &r) == nil && r.Route != "" {
			return r.Route
		}
	case types.MsgTranslation:
		var tr types.Translation
		if remarshal(msg.Payload, &tr) == nil && tr.Goal != "" {
			return clipCols(tr.Goal, 50)
		}
	case types.MsgPlanDraft:
		var p types.PlanDraft
		if remarshal(msg.Payload, &p) == nil {
			return countLabel(len(p.Commands))
		}
	case types.MsgViolation:
		var v types.ViolationNote
		if remarshal(msg.Payload, &v) == nil && v.Cause != "" {
			return fmt.Sprintf("#%d %s — %s", v.Index, v.Cause, clipCols(v.Command, 35))
		}
	case types.MsgRepair:
		var r types.RepairNote
		if remarshal(msg.Payload, &r) == nil {
			switch {
			case len(r.Inserted) > 0:
				return fmt.Sprintf("round %d: +%s at #%d", r.Round, strings.Join(r.Inserted, "; +"), r.At)
			case r.Rewritten != "":
				return fmt.Sprintf("round %d: #%d → %s", r.Round, r.At, r.Rewritten)
			case r.Removed != "":
				return fmt.Sprintf("round %d: -%s", r.Round, r.Removed)
			}
		}
	case types.MsgPlanAccepted:
		var p types.PlanAccepted
		if remarshal(msg.Payload, &p) == nil {
			return countLabel(len(p.Commands))
		}
	case types.MsgPlanFailed:
		var p types.PlanFailed
		if remarshal(msg.Payload, &p) == nil && p.Kind != "" {
			return fmt.Sprintf("%s — %s", p.Kind, clipCols(p.Reason, 40))
		}
	case types.MsgActuatorAck:
		var a types.ActuatorAck
		if remarshal(msg.Payload, &a) == nil && a.Command != "" {
			mark := "ok"
			if !a.OK {
				mark = "FAILED"
			}
			return fmt.Sprintf("#%d %s %s", a.Index, clipCols(a.Command, 40), mark)
		}
	}
	return ""
}

func countLabel(n int) string {
	if n == 1 {
		return "1 command"
	}
	return fmt.Sprintf("%d commands", n)
}

// clipCols truncates s to at most cols visual columns, appending "…" if
// trimmed. Column-aware so CJK object names don't wrap the spinner line.
func clipCols(s string, cols int) string {
	if runewidth.StringWidth(s) <= cols {
		return s
	}
	return runewidth.Truncate(s, cols, "…")
}

func remarshal(src, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
