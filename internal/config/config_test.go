package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultEnablesBothCorePasses(t *testing.T) {
	opts := Default()
	if !opts.StringEncrypt.Enabled || !opts.ControlFlowFlatten.Enabled {
		t.Fatalf("expected both core passes on by default, got %+v", opts)
	}
	if opts.FakeCode.Enabled {
		t.Fatal("expected fake code insertion off by default")
	}
	if opts.Seed != nil {
		t.Fatal("expected no seed by default (non-deterministic run)")
	}
}

func TestCyclesPerLevel(t *testing.T) {
	cases := []struct {
		level string
		want  int
	}{
		{"low", 1},
		{"medium", 2},
		{"high", 3},
		{"bogus", 2}, // unrecognized levels fall back to medium
	}
	for _, c := range cases {
		opts := Options{ObfuscationLevel: c.level}
		if got := opts.Cycles(); got != c.want {
			t.Fatalf("level %q: expected %d cycles, got %d", c.level, c.want, got)
		}
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	opts, err := Load("")
	if err != nil {
		t.Fatalf("expected no error for an empty path, got %v", err)
	}
	if opts.ObfuscationLevel != "medium" {
		t.Fatalf("expected default level, got %q", opts.ObfuscationLevel)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a nonexistent config file")
	}
}

func TestLoadOverlaysFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chakravyuha.yaml")
	yaml := `obfuscation_level: high
seed: 42
string_encrypt:
  enabled: false
  name_prefix_filter: .str
control_flow_flatten:
  shuffle_ids: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.ObfuscationLevel != "high" {
		t.Fatalf("expected level high, got %q", opts.ObfuscationLevel)
	}
	if opts.Seed == nil || *opts.Seed != 42 {
		t.Fatalf("expected seed 42, got %v", opts.Seed)
	}
	if opts.StringEncrypt.Enabled {
		t.Fatal("expected string encryption disabled by the file")
	}
	if opts.StringEncrypt.NamePrefixFilter != ".str" {
		t.Fatalf("expected .str prefix filter, got %q", opts.StringEncrypt.NamePrefixFilter)
	}
	if !opts.ControlFlowFlatten.Enabled {
		t.Fatal("expected flattening to keep its default (on) when the file is silent about it")
	}
	if !opts.ControlFlowFlatten.ShuffleIDs {
		t.Fatal("expected shuffle_ids from the file")
	}
}

func TestEncodeLoadRoundTrip(t *testing.T) {
	opts := Default()
	seed := int64(7)
	opts.Seed = &seed
	opts.ObfuscationLevel = "high"
	opts.StringEncrypt.NamePrefixFilter = ".str"
	opts.ControlFlowFlatten.ShuffleIDs = true

	data, err := opts.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "roundtrip.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Seed == nil || *got.Seed != seed {
		t.Fatalf("expected seed %d to round-trip, got %v", seed, got.Seed)
	}
	if got.ObfuscationLevel != opts.ObfuscationLevel ||
		got.StringEncrypt != opts.StringEncrypt ||
		got.ControlFlowFlatten != opts.ControlFlowFlatten ||
		got.FakeCode != opts.FakeCode {
		t.Fatalf("expected options to round-trip, got %+v", got)
	}
}
