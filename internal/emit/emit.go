// Package emit serializes a validated plan into the strict external command
// syntax, one line per action, and parses the same syntax back for tests
// and actuator round-trips.
//
// The syntax is fixed token order:
//
//	open <object>
//	close <object>
//	get <object> from <source_object> <hand_left|hand_right>
//	put <object> <destination_object>
//	pour <source_object> <destination_object> <volume_ml>
//	switch_on <object>
//	switch_off <object>
//	wait <seconds>
//	gaze <object>
package emit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/haricheung/labhand/internal/action"
)

// Emit renders the frozen plan as the newline-separated command sequence
// handed to the actuator layer.
func Emit(p action.Plan) string {
	return strings.Join(p.Commands(), "\n")
}

// Parse reads a command sequence back into a plan. Unknown verbs or wrong
// token counts fail; Parse(Emit(p)) round-trips for every valid plan.
func Parse(text string) (action.Plan, error) {
	var plan action.Plan
	for ln, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		a, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("emit: line %d: %w", ln+1, err)
		}
		plan = append(plan, a)
	}
	return plan, nil
}

// ParseLine reads a single command.
func ParseLine(line string) (action.Action, error) {
	tok := strings.Fields(line)
	if len(tok) == 0 {
		return action.Action{}, fmt.Errorf("empty command")
	}
	switch action.Kind(tok[0]) {
	case action.Open, action.Close, action.SwitchOn, action.SwitchOff, action.Gaze:
		if len(tok) != 2 {
			return action.Action{}, fmt.Errorf("%s takes exactly one object: %q", tok[0], line)
		}
		return action.Action{Kind: action.Kind(tok[0]), Object: tok[1]}, nil

	case action.Get:
		if len(tok) != 5 || tok[2] != "from" {
			return action.Action{}, fmt.Errorf("get syntax is 'get <object> from <source> <hand>': %q", line)
		}
		if tok[4] != "hand_left" && tok[4] != "hand_right" {
			return action.Action{}, fmt.Errorf("get hand must be hand_left|hand_right: %q", line)
		}
		return action.Action{Kind: action.Get, Object: tok[1], Source: tok[3], Hand: tok[4]}, nil

	case action.Put:
		if len(tok) != 3 {
			return action.Action{}, fmt.Errorf("put syntax is 'put <object> <destination>': %q", line)
		}
		return action.Action{Kind: action.Put, Object: tok[1], Dest: tok[2]}, nil

	case action.Pour:
		if len(tok) != 4 {
			return action.Action{}, fmt.Errorf("pour syntax is 'pour <source> <destination> <volume_ml>': %q", line)
		}
		ml, err := strconv.ParseFloat(tok[3], 64)
		if err != nil {
			return action.Action{}, fmt.Errorf("pour volume %q: %w", tok[3], err)
		}
		return action.Action{Kind: action.Pour, Source: tok[1], Dest: tok[2], VolumeML: ml}, nil

	case action.Wait:
		if len(tok) != 2 {
			return action.Action{}, fmt.Errorf("wait syntax is 'wait <seconds>': %q", line)
		}
		secs, err := strconv.ParseFloat(tok[1], 64)
		if err != nil {
			return action.Action{}, fmt.Errorf("wait seconds %q: %w", tok[1], err)
		}
		return action.Action{Kind: action.Wait, Seconds: secs}, nil
	}
	return action.Action{}, fmt.Errorf("unknown command %q", tok[0])
}
