package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.LedgerLockTimeout != 5*time.Second {
		t.Errorf("expected default lock timeout 5s, got %s", cfg.LedgerLockTimeout)
	}
	if cfg.DividendWorkers != 8 {
		t.Errorf("expected 8 dividend workers, got %d", cfg.DividendWorkers)
	}
	if len(cfg.RequiredChecks) != 5 {
		t.Errorf("expected 5 default required checks, got %v", cfg.RequiredChecks)
	}
}

func TestParseCategoryChecks(t *testing.T) {
	parsed := parseCategoryChecks("fine_art:provenance,attribution;private_equity:accreditation")

	if len(parsed["fine_art"]) != 2 {
		t.Errorf("expected 2 fine_art checks, got %v", parsed["fine_art"])
	}
	if len(parsed["private_equity"]) != 1 {
		t.Errorf("expected 1 private_equity check, got %v", parsed["private_equity"])
	}
}

func TestParseCategoryChecksMalformed(t *testing.T) {
	parsed := parseCategoryChecks("nocolon;:empty;ok:check")

	if len(parsed) != 1 {
		t.Errorf("expected only the well-formed entry, got %v", parsed)
	}
	if len(parsed["ok"]) != 1 || parsed["ok"][0] != "check" {
		t.Errorf("expected ok:[check], got %v", parsed["ok"])
	}
}

func TestRecognizedChecks(t *testing.T) {
	cfg := &Config{
		RequiredChecks: []string{"aml", "kyc"},
		CategoryChecks: map[string][]string{"fine_art": {"provenance"}},
	}

	recognized := cfg.RecognizedChecks()
	for _, name := range []string{"aml", "kyc", "provenance"} {
		if !recognized[name] {
			t.Errorf("expected %s to be recognized", name)
		}
	}
	if recognized["unheard_of"] {
		t.Error("did not expect unknown check to be recognized")
	}
}
