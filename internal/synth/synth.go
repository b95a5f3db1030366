// Package synth expands the translator's coarse remaining-action steps into
// concrete action invocations. The grammar is a small fixed set of
// verb+object patterns; anything the patterns cannot resolve is an
// UnresolvedStep, a contract mismatch with the translator rather than a
// runtime precondition failure.
//
// The synthesizer consults the live world state only to resolve "current
// container of X" lookups; feasibility is entirely the validator's job.
package synth

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/haricheung/labhand/internal/action"
	"github.com/haricheung/labhand/internal/config"
	"github.com/haricheung/labhand/internal/world"
)

// UnresolvedStepError reports a coarse step the grammar could not map to an
// action, or a step referencing an object outside ObjectsNeeded.
type UnresolvedStepError struct {
	Step   string
	Reason string
}

func (e *UnresolvedStepError) Error() string {
	return fmt.Sprintf("synth: unresolved step %q: %s", e.Step, e.Reason)
}

var (
	reTake   = regexp.MustCompile(`^(?:take|get|grab|pick up) ([a-z0-9_]+)(?: (?:from|out of) ([a-z0-9_]+))?$`)
	rePour   = regexp.MustCompile(`^pour(?: ([a-z0-9_]+))?(?: it)? (?:into|in|to|on|onto) ([a-z0-9_]+)(?: ([0-9]+(?:\.[0-9]+)?) ?ml)?$`)
	rePut    = regexp.MustCompile(`^(?:put|place|set|add) (it|[a-z0-9_]+) (?:on|onto|in|into|to) ([a-z0-9_]+)$`)
	reOpen   = regexp.MustCompile(`^open ([a-z0-9_]+)$`)
	reClose  = regexp.MustCompile(`^close ([a-z0-9_]+)$`)
	reSwitch = regexp.MustCompile(`^(?:switch|turn) (on|off) ([a-z0-9_]+)$`)
	reWait   = regexp.MustCompile(`^wait (?:for )?([0-9]+(?:\.[0-9]+)?)(?: ?s(?:econds?)?)?$`)
	reGaze   = regexp.MustCompile(`^(?:gaze at|gaze|look at) ([a-z0-9_]+)$`)
	reMix    = regexp.MustCompile(`^(?:mix|shake|stir)(?: [a-z0-9_ ]+?)? (?:in|with|using) ([a-z0-9_]+)$`)
)

// Synthesizer turns one translated request into a draft plan. It keeps a
// private ledger of hand occupancy and established carriers across steps;
// it never mutates the world state it was given.
type Synthesizer struct {
	cfg    config.Config
	st     *world.State
	needed map[string]bool

	hands    map[string]string // hand id -> object id the draft will have placed there
	moved    map[string]string // object id -> container the draft will have moved it to
	carriers map[string]string // substrate object id -> established carrier id
	lastHeld string            // most recently taken object, for "it" references
}

// New creates a Synthesizer for one request. objectsNeeded is the
// translator's relevant-object list; steps referencing anything outside it
// fail with UnresolvedStep.
func New(cfg config.Config, st *world.State, objectsNeeded []string) *Synthesizer {
	needed := make(map[string]bool, len(objectsNeeded))
	for _, id := range objectsNeeded {
		needed[id] = true
	}
	s := &Synthesizer{
		cfg:      cfg,
		st:       st,
		needed:   needed,
		hands:    make(map[string]string),
		moved:    make(map[string]string),
		carriers: make(map[string]string),
	}
	for _, h := range cfg.Hands.Order {
		if o, err := st.Get(h); err == nil {
			s.hands[h] = o.Holding()
		}
	}
	return s
}

// Synthesize expands the ordered coarse steps into a draft plan.
func (s *Synthesizer) Synthesize(steps []string) (action.Plan, error) {
	var plan action.Plan
	for _, step := range steps {
		for _, clause := range splitClauses(step) {
			actions, err := s.resolve(clause)
			if err != nil {
				return nil, err
			}
			plan = append(plan, actions...)
		}
	}
	return plan, nil
}

// splitClauses breaks a compound step ("take X and pour into Y") into
// individually matchable clauses.
func splitClauses(step string) []string {
	step = normalize(step)
	parts := strings.Split(step, " and ")
	var out []string
	for _, p := range parts {
		for _, q := range strings.Split(p, ", ") {
			q = strings.TrimSpace(strings.TrimPrefix(q, "then "))
			if q != "" {
				out = append(out, q)
			}
		}
	}
	return out
}

func normalize(step string) string {
	step = strings.ToLower(strings.TrimSpace(step))
	step = strings.TrimSuffix(step, ".")
	return strings.Join(strings.Fields(step), " ")
}

func (s *Synthesizer) resolve(clause string) (action.Plan, error) {
	switch {
	case reTake.MatchString(clause):
		m := reTake.FindStringSubmatch(clause)
		return s.resolveTake(clause, m[1], m[2])

	case rePour.MatchString(clause):
		m := rePour.FindStringSubmatch(clause)
		return s.resolvePour(clause, m[1], m[2], m[3])

	case rePut.MatchString(clause):
		m := rePut.FindStringSubmatch(clause)
		return s.resolvePut(clause, m[1], m[2])

	case reOpen.MatchString(clause):
		m := reOpen.FindStringSubmatch(clause)
		if err := s.require(clause, m[1]); err != nil {
			return nil, err
		}
		return action.Plan{{Kind: action.Open, Object: m[1]}}, nil

	case reClose.MatchString(clause):
		m := reClose.FindStringSubmatch(clause)
		if err := s.require(clause, m[1]); err != nil {
			return nil, err
		}
		return action.Plan{{Kind: action.Close, Object: m[1]}}, nil

	case reSwitch.MatchString(clause):
		m := reSwitch.FindStringSubmatch(clause)
		if err := s.require(clause, m[2]); err != nil {
			return nil, err
		}
		kind := action.SwitchOn
		if m[1] == "off" {
			kind = action.SwitchOff
		}
		return action.Plan{{Kind: kind, Object: m[2]}}, nil

	case reWait.MatchString(clause):
		m := reWait.FindStringSubmatch(clause)
		secs, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, &UnresolvedStepError{Step: clause, Reason: "bad duration"}
		}
		return action.Plan{{Kind: action.Wait, Seconds: secs}}, nil

	case reGaze.MatchString(clause):
		m := reGaze.FindStringSubmatch(clause)
		if err := s.require(clause, m[1]); err != nil {
			return nil, err
		}
		return action.Plan{{Kind: action.Gaze, Object: m[1]}}, nil

	case reMix.MatchString(clause):
		m := reMix.FindStringSubmatch(clause)
		if err := s.require(clause, m[1]); err != nil {
			return nil, err
		}
		// No dedicated mix command exists; mixing is the device's powered
		// behavior between switch_on and switch_off.
		return action.Plan{
			{Kind: action.SwitchOn, Object: m[1]},
			{Kind: action.Wait, Seconds: s.cfg.MixSeconds},
			{Kind: action.SwitchOff, Object: m[1]},
		}, nil
	}

	return nil, &UnresolvedStepError{Step: clause, Reason: "no step pattern matches"}
}

func (s *Synthesizer) resolveTake(clause, obj, src string) (action.Plan, error) {
	if err := s.require(clause, obj); err != nil {
		return nil, err
	}
	if src == "" {
		var err error
		src, err = s.containerOf(obj)
		if err != nil {
			return nil, &UnresolvedStepError{Step: clause, Reason: err.Error()}
		}
	}
	hand := s.chooseHand(obj)
	s.hands[hand] = obj
	s.moved[obj] = hand
	s.lastHeld = obj
	return action.Plan{{Kind: action.Get, Object: obj, Source: src, Hand: hand}}, nil
}

func (s *Synthesizer) resolvePut(clause, obj, dst string) (action.Plan, error) {
	if obj == "it" {
		if s.lastHeld == "" {
			return nil, &UnresolvedStepError{Step: clause, Reason: `"it" has no antecedent`}
		}
		obj = s.lastHeld
	}
	if err := s.require(clause, obj); err != nil {
		return nil, err
	}
	dst, err := s.depositTarget(clause, dst)
	if err != nil {
		return nil, err
	}

	var plan action.Plan
	hand := s.handHolding(obj)
	if hand == "" {
		// Object is not (yet) in a hand in this draft; a put implies taking
		// it first.
		src, err := s.containerOf(obj)
		if err != nil {
			return nil, &UnresolvedStepError{Step: clause, Reason: err.Error()}
		}
		hand = s.chooseHand(obj)
		plan = append(plan, action.Action{Kind: action.Get, Object: obj, Source: src, Hand: hand})
	}
	plan = append(plan, action.Action{Kind: action.Put, Object: obj, Dest: dst, Hand: hand})
	s.hands[hand] = ""
	s.moved[obj] = dst
	if s.lastHeld == obj {
		s.lastHeld = ""
	}
	return plan, nil
}

func (s *Synthesizer) resolvePour(clause, src, dst, ml string) (action.Plan, error) {
	if src == "" || src == "it" {
		if s.lastHeld == "" {
			return nil, &UnresolvedStepError{Step: clause, Reason: "pour has no source and nothing is held"}
		}
		src = s.lastHeld
	}
	if err := s.require(clause, src); err != nil {
		return nil, err
	}
	dst, err := s.depositTarget(clause, dst)
	if err != nil {
		return nil, err
	}

	vol := 0.0
	if ml != "" {
		vol, err = strconv.ParseFloat(ml, 64)
		if err != nil {
			return nil, &UnresolvedStepError{Step: clause, Reason: "bad volume"}
		}
	} else {
		kind := ""
		if o, err := s.st.Get(dst); err == nil {
			kind = o.Kind
		}
		vol = s.cfg.PourDefaultML(kind)
	}

	var plan action.Plan
	if s.handHolding(src) == "" {
		// Pouring requires holding the source; take it first.
		container, err := s.containerOf(src)
		if err != nil {
			return nil, &UnresolvedStepError{Step: clause, Reason: err.Error()}
		}
		hand := s.chooseHand(src)
		plan = append(plan, action.Action{Kind: action.Get, Object: src, Source: container, Hand: hand})
		s.hands[hand] = src
		s.moved[src] = hand
		s.lastHeld = src
	}
	plan = append(plan, action.Action{Kind: action.Pour, Source: src, Dest: dst, VolumeML: vol})
	return plan, nil
}

// depositTarget rewrites a deposit destination that is a soft substrate to
// its rigid carrier. Once a carrier is established for a substrate it is
// reused for the remainder of the plan.
func (s *Synthesizer) depositTarget(clause, dst string) (string, error) {
	if carrier, ok := s.carriers[dst]; ok {
		return carrier, nil
	}
	obj, err := s.st.Get(dst)
	if err != nil {
		// Unknown deposit targets are the translator's contract to get
		// right; let require report it against ObjectsNeeded.
		if err := s.require(clause, dst); err != nil {
			return "", err
		}
		return dst, nil
	}
	if !s.cfg.IsSubstrate(obj.Kind) {
		if err := s.require(clause, dst); err != nil {
			return "", err
		}
		return dst, nil
	}
	carrier := s.cfg.Carrier.Fallback
	if holder, err := s.st.Get(obj.ContainedIn); err == nil && s.cfg.IsCarrierKind(holder.Kind) {
		carrier = holder.ID
	}
	s.carriers[dst] = carrier
	return carrier, nil
}

// chooseHand prefers the hand already holding obj (direct continuation),
// then the first empty hand in configured order, then the first hand.
func (s *Synthesizer) chooseHand(obj string) string {
	for _, h := range s.cfg.Hands.Order {
		if s.hands[h] == obj {
			return h
		}
	}
	for _, h := range s.cfg.Hands.Order {
		if s.hands[h] == "" {
			return h
		}
	}
	// Every hand is occupied in the draft ledger; the validator will flag
	// it and the replanner inserts the put-back.
	return s.cfg.Hands.Order[0]
}

// handHolding returns the hand the draft ledger has obj in, or "".
func (s *Synthesizer) handHolding(obj string) string {
	for h, held := range s.hands {
		if held == obj {
			return h
		}
	}
	return ""
}

// containerOf resolves the container obj will be in when this point of the
// draft executes: earlier draft moves take precedence over the live state.
func (s *Synthesizer) containerOf(obj string) (string, error) {
	if c, ok := s.moved[obj]; ok {
		return c, nil
	}
	return s.st.ContainerOf(obj)
}

// require enforces the ObjectsNeeded contract for every explicitly
// referenced object id.
func (s *Synthesizer) require(clause, id string) error {
	if !s.needed[id] {
		return &UnresolvedStepError{Step: clause, Reason: fmt.Sprintf("object %q not in ObjectsNeeded", id)}
	}
	return nil
}
