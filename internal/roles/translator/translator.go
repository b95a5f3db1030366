// Package translator turns a free-form request plus the current world-state
// snapshot into the four-field structured message the planning core
// consumes: goal, objects needed, state summary, and the ordered remaining
// coarse steps.
package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haricheung/labhand/internal/bus"
	"github.com/haricheung/labhand/internal/llm"
	"github.com/haricheung/labhand/internal/types"
	"github.com/haricheung/labhand/internal/world"
)

const systemPrompt = `You are the translator for a two-armed lab robot. You receive a user request
and the current world state (a JSON mapping of object id to type,
holdsObject, isHeldByObject, closure, power, volume, fillLevel, holdsLiquid).

Produce a structured planning message:

- goal: one sentence describing the target end-state.
- objects_needed: every object id the plan will reference. Use ONLY ids that
  exist in the world state. Include source containers and destinations.
- state_summary: a short human-readable summary of the relevant state.
- remaining_steps: the ordered coarse steps to reach the goal. Each step is
  one simple clause: "take <id>", "take <id> from <id>", "pour <id> into
  <id>", "pour <id> into <id> <n> ml", "put <id> on <id>", "open <id>",
  "close <id>", "switch on <id>", "switch off <id>", "wait <n> s",
  "mix in <id>", "gaze at <id>". Steps may be joined with " and ".
  Do NOT add open/close steps for containers — the planner corrects
  preconditions itself. Refer to objects by their exact ids.

Output ONLY a JSON object with exactly those four fields. No markdown.`

// Translator produces planning messages.
type Translator struct {
	llm *llm.Client
	b   *bus.Bus
}

// New creates a Translator.
func New(b *bus.Bus, llmClient *llm.Client) *Translator {
	return &Translator{llm: llmClient, b: b}
}

// Translate produces the structured message for text against st and
// verifies that every listed object resolves in the world model.
func (t *Translator) Translate(ctx context.Context, requestID, text string, st *world.State) (types.Translation, error) {
	snapshot, err := st.Snapshot()
	if err != nil {
		return types.Translation{}, fmt.Errorf("translator: %w", err)
	}
	userPrompt := fmt.Sprintf("Request:\n%s\n\nWorld state:\n%s", text, snapshot)

	raw, _, err := t.llm.Chat(ctx, systemPrompt, userPrompt)
	if err != nil {
		return types.Translation{}, fmt.Errorf("translator: %w", err)
	}

	msg, err := Parse(raw)
	if err != nil {
		return types.Translation{}, err
	}
	msg.RequestID = requestID
	if err := ValidateObjects(msg, st); err != nil {
		return types.Translation{}, err
	}

	t.b.Publish(types.Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		From:      types.StageTranslator,
		To:        types.StageSynth,
		Type:      types.MsgTranslation,
		Payload:   msg,
	})
	log.Printf("[TRANSLATOR] request=%s goal=%q objects=%d steps=%d", requestID, msg.Goal, len(msg.ObjectsNeeded), len(msg.RemainingSteps))
	return msg, nil
}

// Parse reads the translator's JSON message.
func Parse(raw string) (types.Translation, error) {
	raw = llm.StripFences(raw)
	var msg types.Translation
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return types.Translation{}, fmt.Errorf("translator: parse message: %w (raw: %s)", err, raw)
	}
	if msg.Goal == "" {
		return types.Translation{}, fmt.Errorf("translator: message has no goal")
	}
	if len(msg.RemainingSteps) == 0 {
		return types.Translation{}, fmt.Errorf("translator: message has no remaining steps")
	}
	return msg, nil
}

// ValidateObjects checks that every id in ObjectsNeeded resolves in st.
// The contract requires this before the message reaches the core.
func ValidateObjects(msg types.Translation, st *world.State) error {
	var missing []string
	for _, id := range msg.ObjectsNeeded {
		if !st.Has(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("translator: objects not in world state: %s", strings.Join(missing, ", "))
	}
	return nil
}
