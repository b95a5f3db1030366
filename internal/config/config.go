// Package config holds the planner's fixed domain rules as explicit
// configuration: hand tie-break order, default pour volumes, discrete item
// capacities, the soft-substrate carrier table, and the repair bounds.
// These are the only process-wide values the planning core reads; everything
// else is threaded through as explicit state.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is loaded once at startup and treated as immutable afterwards.
type Config struct {
	Hands struct {
		// Order is the tie-break order when several hands are empty.
		Order []string `yaml:"order"`
	} `yaml:"hands"`

	Pour struct {
		// DefaultsML maps destination container kind to the volume used
		// when a step names no explicit amount.
		DefaultsML map[string]float64 `yaml:"defaults_ml"`
		FallbackML float64            `yaml:"fallback_ml"`
	} `yaml:"pour"`

	Capacity struct {
		// Items bounds discrete put capacity per container kind; absent
		// kinds are unbounded.
		Items map[string]int `yaml:"items"`
	} `yaml:"capacity"`

	Carrier struct {
		// Substrates are object kinds the robot cannot grasp directly
		// (soft, deformable); deposits onto them are staged on a carrier.
		Substrates []string `yaml:"substrates"`
		// Kinds are rigid object kinds acceptable as carriers.
		Kinds []string `yaml:"kinds"`
		// Fallback is the carrier object id used when no carrier currently
		// holds the substrate.
		Fallback string `yaml:"fallback"`
	} `yaml:"carrier"`

	// MixSeconds is the wait inserted between switch_on and switch_off when
	// a step asks for mixing/shaking.
	MixSeconds float64 `yaml:"mix_seconds"`

	// MaxRepairRounds bounds the corrective replanner's fixed-point loop.
	MaxRepairRounds int `yaml:"max_repair_rounds"`

	// MaxActuatorReplans bounds how often a discarded in-flight plan is
	// replanned from a fresh snapshot after an actuator failure.
	MaxActuatorReplans int `yaml:"max_actuator_replans"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.Hands.Order = []string{"hand_left", "hand_right"}
	c.Pour.DefaultsML = map[string]float64{
		"glass":            250,
		"bowl":             100,
		"mixing_container": 50,
	}
	c.Pour.FallbackML = 100
	c.Capacity.Items = map[string]int{
		"glass":            2,
		"bottle":           1,
		"mixing_container": 6,
	}
	c.Carrier.Substrates = []string{"pizza_dough", "dough"}
	c.Carrier.Kinds = []string{"tray", "plate", "pizza_dough_big_plate"}
	c.Carrier.Fallback = "big_plate"
	c.MixSeconds = 10
	c.MaxRepairRounds = 5
	c.MaxActuatorReplans = 2
	return c
}

// Load returns the defaults overlaid with the YAML file at path (when path
// is non-empty) and with the LABHAND_MAX_REPAIR_ROUNDS env override.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if v := os.Getenv("LABHAND_MAX_REPAIR_ROUNDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c, fmt.Errorf("config: bad LABHAND_MAX_REPAIR_ROUNDS %q", v)
		}
		c.MaxRepairRounds = n
	}
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) validate() error {
	if len(c.Hands.Order) == 0 {
		return fmt.Errorf("config: hands.order must not be empty")
	}
	if c.Pour.FallbackML <= 0 {
		return fmt.Errorf("config: pour.fallback_ml must be positive")
	}
	if c.MaxRepairRounds < 1 {
		return fmt.Errorf("config: max_repair_rounds must be at least 1")
	}
	if c.MixSeconds < 0 {
		return fmt.Errorf("config: mix_seconds must not be negative")
	}
	return nil
}

// PourDefaultML returns the default pour volume for a destination kind.
func (c Config) PourDefaultML(kind string) float64 {
	if ml, ok := c.Pour.DefaultsML[kind]; ok {
		return ml
	}
	return c.Pour.FallbackML
}

// IsSubstrate reports whether kind is a soft, non-graspable substrate.
func (c Config) IsSubstrate(kind string) bool {
	for _, s := range c.Carrier.Substrates {
		if s == kind {
			return true
		}
	}
	return false
}

// IsCarrierKind reports whether kind is acceptable as a rigid carrier.
func (c Config) IsCarrierKind(kind string) bool {
	for _, k := range c.Carrier.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
