package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseHonoursCapacityAndErrorRate(t *testing.T) {
	cfg, err := Parse("bruteguard", []string{"-c", "5000", "-e", "0.05", "2", "10", "50", "echo KEY"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Capacity != 5000 {
		t.Errorf("Capacity = %d, want 5000", cfg.Capacity)
	}
	if cfg.ErrorRate != 0.05 {
		t.Errorf("ErrorRate = %v, want 0.05", cfg.ErrorRate)
	}
	if cfg.Thresholds != [3]uint32{2, 10, 50} {
		t.Errorf("Thresholds = %v, want {2,10,50}", cfg.Thresholds)
	}
	if cfg.Template != "echo KEY" {
		t.Errorf("Template = %q", cfg.Template)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse("bruteguard", []string{"2", "10", "50", "echo KEY"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Capacity != DefaultCapacity {
		t.Errorf("Capacity = %d, want default %d", cfg.Capacity, DefaultCapacity)
	}
	if cfg.ErrorRate != DefaultErrorRate {
		t.Errorf("ErrorRate = %v, want default %v", cfg.ErrorRate, DefaultErrorRate)
	}
}

func TestParseRejectsWrongArgCount(t *testing.T) {
	if _, err := Parse("bruteguard", []string{"2", "10", "echo KEY"}); err == nil {
		t.Fatal("expected error for missing threshold")
	}
}

func TestParseRejectsBadErrorRate(t *testing.T) {
	if _, err := Parse("bruteguard", []string{"-e", "1.5", "2", "10", "50", "echo KEY"}); err == nil {
		t.Fatal("expected error for out-of-range error rate")
	}
}

func TestParseRejectsNonIntegerThreshold(t *testing.T) {
	if _, err := Parse("bruteguard", []string{"two", "10", "50", "echo KEY"}); err == nil {
		t.Fatal("expected error for non-integer threshold")
	}
}

func TestParseJSONConfigOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bruteguard.json")
	body := `{"capacity": 9000, "error_rate": 0.02, "thresholds": [3, 20, 60], "template": "echo KEY"}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Parse("bruteguard", []string{"-config", path})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Capacity != 9000 {
		t.Errorf("Capacity = %d, want 9000", cfg.Capacity)
	}
	if cfg.ErrorRate != 0.02 {
		t.Errorf("ErrorRate = %v, want 0.02", cfg.ErrorRate)
	}
	if cfg.Thresholds != [3]uint32{3, 20, 60} {
		t.Errorf("Thresholds = %v, want {3,20,60}", cfg.Thresholds)
	}
	if cfg.Template != "echo KEY" {
		t.Errorf("Template = %q", cfg.Template)
	}
}

func TestParseTOMLConfigOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bruteguard.toml")
	body := "capacity = 9000\nerror_rate = 0.02\nthresholds = [3, 20, 60]\ntemplate = \"echo KEY\"\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Parse("bruteguard", []string{"-config", path})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Thresholds != [3]uint32{3, 20, 60} {
		t.Errorf("Thresholds = %v, want {3,20,60}", cfg.Thresholds)
	}
}

func TestParseFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bruteguard.json")
	body := `{"capacity": 9000, "error_rate": 0.02, "thresholds": [3, 20, 60], "template": "echo KEY"}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Parse("bruteguard", []string{"-config", path, "-c", "1234", "5", "6", "7", "echo OTHER"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Capacity != 1234 {
		t.Errorf("Capacity = %d, want explicit flag value 1234", cfg.Capacity)
	}
	// error_rate was not given explicitly, so the file's value survives.
	if cfg.ErrorRate != 0.02 {
		t.Errorf("ErrorRate = %v, want file value 0.02", cfg.ErrorRate)
	}
	if cfg.Thresholds != [3]uint32{5, 6, 7} {
		t.Errorf("Thresholds = %v, want positional override {5,6,7}", cfg.Thresholds)
	}
	if cfg.Template != "echo OTHER" {
		t.Errorf("Template = %q, want positional override", cfg.Template)
	}
}

func TestDecodeFileChoosesByExtension(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "f.toml")
	if err := os.WriteFile(tomlPath, []byte("capacity = 42\n"), 0644); err != nil {
		t.Fatal(err)
	}
	var fc FileConfig
	if err := DecodeFile(tomlPath, &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Capacity != 42 {
		t.Errorf("Capacity = %d, want 42", fc.Capacity)
	}

	jsonPath := filepath.Join(dir, "f.json")
	if err := os.WriteFile(jsonPath, []byte(`{"capacity": 99}`), 0644); err != nil {
		t.Fatal(err)
	}
	fc = FileConfig{}
	if err := DecodeFile(jsonPath, &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Capacity != 99 {
		t.Errorf("Capacity = %d, want 99", fc.Capacity)
	}
}
