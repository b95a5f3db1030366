// Package dispatcher is the thin front door: it classifies a request as
// directly answerable (a question about the lab or about past plans) or as
// needing physical action, and answers the former itself.
package dispatcher

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
	"github.com/haricheung/labhand/internal/memory"
	"github.com/haricheung/labhand/internal/types"
)

const systemPrompt = `You are the request dispatcher for a two-armed lab robot.
Classify the user's request:

- "act": the request asks the robot to physically do something (fetch, pour,
  mix, assemble, open, serve, prepare a drink or a pizza).
- "answer": the request is a question the robot can answer without moving
  (what objects exist, what is in a container, what was done before).

Context blocks may contain a world-state summary and recent plan history;
use them to answer "answer" requests concretely.

Output ONLY a JSON object, no markdown, no prose:
  {"route":"act"}
or
  {"route":"answer","reply":"<one short paragraph>"}`

const maxRecall = 5

// Dispatcher routes requests.
type Dispatcher struct {
	llm  *llm.Client
	b    *bus.Bus
	hist *memory.Store // may be nil
}

// New creates a Dispatcher. hist may be nil when plan history is disabled.
func New(b *bus.Bus, llmClient *llm.Client, hist *memory.Store) *Dispatcher {
	return &Dispatcher{llm: llmClient, b: b, hist: hist}
}

// Route classifies the request and, for "answer" routes, produces the reply.
func (d *Dispatcher) Route(ctx context.Context, requestID, text, stateSummary string) (types.Route, error) {
	userPrompt := "Request:\n" + text
	if stateSummary != "" {
		userPrompt += "\n\nWorld state summary:\n" + stateSummary
	}
	if d.hist != nil {
		if recs, err := d.hist.Recall(text, maxRecall); err == nil && len(recs) > 0 {
			userPrompt += "\n\nRecent plan history:\n" + formatHistory(recs)
		}
	}

	raw, _, err := d.llm.Chat(ctx, systemPrompt, userPrompt)
	if err != nil {
		return types.Route{}, fmt.Errorf("dispatcher: %w", err)
	}

	route, err := ParseRoute(raw)
	if err != nil {
		return types.Route{}, err
	}
	route.RequestID = requestID

	d.b.Publish(types.Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		From:      types.StageDispatcher,
		To:        types.StageTranslator,
		Type:      types.MsgRoute,
		Payload:   route,
	})
	log.Printf("[DISPATCHER] request=%s route=%s", requestID, route.Route)
	return route, nil
}

// ParseRoute parses the classifier's JSON verdict.
func ParseRoute(raw string) (types.Route, error) {
	raw = llm.StripFences(raw)
	var route types.Route
	if err := json.Unmarshal([]byte(raw), &route); err != nil {
		return types.Route{}, fmt.Errorf("dispatcher: parse route: %w (raw: %s)", err, raw)
	}
	switch route.Route {
	case "act", "answer":
	default:
		return types.Route{}, fmt.Errorf("dispatcher: unknown route %q", route.Route)
	}
	if route.Route == "answer" && route.Reply == "" {
		return types.Route{}, fmt.Errorf("dispatcher: answer route with empty reply")
	}
	return route, nil
}

func formatHistory(recs []memory.PlanRecord) string {
	var sb strings.Builder
	for i, r := range recs {
		fmt.Fprintf(&sb, "[%d] %s — goal: %s — %d commands, %s\n", i+1, r.CreatedAt, r.Goal, len(r.Commands), r.Status)
	}
	return sb.String()
}
