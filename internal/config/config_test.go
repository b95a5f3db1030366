package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	c := Default()
	if err := c.validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(c.Hands.Order) != 2 || c.Hands.Order[0] != "hand_left" {
		t.Errorf("hand order = %v", c.Hands.Order)
	}
	if c.MaxRepairRounds != 5 {
		t.Errorf("max repair rounds = %d, want 5", c.MaxRepairRounds)
	}
}

func TestLoad_OverlaysYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labhand.yaml")
	data := []byte("max_repair_rounds: 9\npour:\n  fallback_ml: 75\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.MaxRepairRounds != 9 {
		t.Errorf("max repair rounds = %d, want 9", c.MaxRepairRounds)
	}
	if c.Pour.FallbackML != 75 {
		t.Errorf("fallback ml = %v, want 75", c.Pour.FallbackML)
	}
	// untouched sections keep their defaults
	if c.Carrier.Fallback != "big_plate" {
		t.Errorf("carrier fallback = %q, want default", c.Carrier.Fallback)
	}
}

func TestLoad_EnvOverridesRepairRounds(t *testing.T) {
	t.Setenv("LABHAND_MAX_REPAIR_ROUNDS", "3")
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.MaxRepairRounds != 3 {
		t.Errorf("max repair rounds = %d, want 3", c.MaxRepairRounds)
	}
}

func TestLoad_RejectsBadEnvValue(t *testing.T) {
	t.Setenv("LABHAND_MAX_REPAIR_ROUNDS", "zero")
	if _, err := Load(""); err == nil {
		t.Fatal("expected bad env value rejection")
	}
}

func TestLoad_RejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestLoad_RejectsInvalidOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labhand.yaml")
	if err := os.WriteFile(path, []byte("hands:\n  order: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected empty hand order rejection")
	}
}

func TestPourDefaultML_FallsBackForUnknownKind(t *testing.T) {
	c := Default()
	if got := c.PourDefaultML("glass"); got != 250 {
		t.Errorf("glass default = %v, want 250", got)
	}
	if got := c.PourDefaultML("thimble"); got != c.Pour.FallbackML {
		t.Errorf("unknown kind default = %v, want fallback", got)
	}
}

func TestCarrierPredicates(t *testing.T) {
	c := Default()
	if !c.IsSubstrate("pizza_dough") || c.IsSubstrate("plate") {
		t.Error("substrate predicate wrong")
	}
	if !c.IsCarrierKind("tray") || c.IsCarrierKind("pizza_dough") {
		t.Error("carrier kind predicate wrong")
	}
}
