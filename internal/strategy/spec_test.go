package strategy

import (
	"testing"
)

// TestParse tests the strategy mini-language parser
func TestParse(t *testing.T) {
	t.Run("BareName", func(t *testing.T) {
		spec := Parse("mask")
		if spec.Name != NameMask {
			t.Errorf("Expected name %q, got %q", NameMask, spec.Name)
		}
		if len(spec.Params) != 0 {
			t.Errorf("Expected no params, got %d", len(spec.Params))
		}
	})

	t.Run("NumericParam", func(t *testing.T) {
		spec := Parse("bucket_numeric:size=50")
		if spec.Name != NameBucketNumeric {
			t.Errorf("Expected name %q, got %q", NameBucketNumeric, spec.Name)
		}
		if got := spec.NumberOr("size", 0); got != 50 {
			t.Errorf("Expected size 50, got %f", got)
		}
	})

	t.Run("StringParam", func(t *testing.T) {
		spec := Parse("generalize_date:granularity=year")
		if got := spec.StringOr("granularity", ""); got != "year" {
			t.Errorf("Expected granularity year, got %q", got)
		}
	})

	t.Run("MultipleParams", func(t *testing.T) {
		spec := Parse("mask:keep_start=2,keep_end=1,char=#")
		if spec.IntOr("keep_start", 0) != 2 {
			t.Error("keep_start not parsed")
		}
		if spec.IntOr("keep_end", 0) != 1 {
			t.Error("keep_end not parsed")
		}
		if spec.StringOr("char", "") != "#" {
			t.Error("char not parsed")
		}
	})

	t.Run("WhitespaceTrimmed", func(t *testing.T) {
		spec := Parse("  hash : length = 16 ")
		if spec.Name != NameHash {
			t.Errorf("Expected name hash, got %q", spec.Name)
		}
		if spec.IntOr("length", 0) != 16 {
			t.Error("Trimmed param not parsed")
		}
	})

	t.Run("MalformedPairsSkipped", func(t *testing.T) {
		spec := Parse("mask:keep_start=2,broken,=9")
		if spec.Name != NameMask {
			t.Errorf("Expected name mask, got %q", spec.Name)
		}
		if len(spec.Params) != 1 {
			t.Errorf("Expected 1 param, got %d", len(spec.Params))
		}
	})

	t.Run("EmptyIsNoop", func(t *testing.T) {
		if !Parse("").IsNoop() {
			t.Error("Empty string should parse to a no-op")
		}
		if !Parse("   ").IsNoop() {
			t.Error("Blank string should parse to a no-op")
		}
		if !Parse("none").IsNoop() {
			t.Error("\"none\" should be a no-op")
		}
	})

	t.Run("UnknownNameKept", func(t *testing.T) {
		spec := Parse("scramble:rounds=3")
		if spec.Name != "scramble" {
			t.Errorf("Unknown names must pass through, got %q", spec.Name)
		}
	})
}

// TestSpecString tests wire-format serialization
func TestSpecString(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		inputs := []string{
			"mask",
			"hash:length=16",
			"bucket_numeric:size=50",
			"bucket_age:bins=0|18|30|60|200",
			"mask:keep_start=2,keep_end=1,char=#",
			"generalize_date:granularity=year_month",
		}
		for _, raw := range inputs {
			if got := Parse(raw).String(); got != raw {
				t.Errorf("Round trip failed: %q -> %q", raw, got)
			}
		}
	})

	t.Run("FloatParam", func(t *testing.T) {
		if got := Parse("bucket_numeric:size=0.5").String(); got != "bucket_numeric:size=0.5" {
			t.Errorf("Float param serialized as %q", got)
		}
	})

	t.Run("NoopIsEmpty", func(t *testing.T) {
		if got := (Spec{}).String(); got != "" {
			t.Errorf("Empty spec serialized as %q", got)
		}
	})
}

// TestResolve tests plan/suggestion merging
func TestResolve(t *testing.T) {
	suggestions := map[string]Spec{
		"email":  Parse("mask"),
		"dni":    Parse("hash:length=16"),
		"salary": Parse("bucket_numeric:size=10"),
	}

	t.Run("SuggestionsFallThrough", func(t *testing.T) {
		effective := Resolve(nil, suggestions)
		if len(effective) != 3 {
			t.Fatalf("Expected 3 effective columns, got %d", len(effective))
		}
		if effective["dni"].IntOr("length", 0) != 16 {
			t.Error("Suggestion params lost")
		}
	})

	t.Run("CallerWins", func(t *testing.T) {
		effective := Resolve(map[string]string{"email": "hash:length=8"}, suggestions)
		if effective["email"].Name != NameHash {
			t.Errorf("Caller entry should win, got %q", effective["email"].Name)
		}
		if effective["email"].IntOr("length", 0) != 8 {
			t.Error("Caller params should win")
		}
	})

	t.Run("BareNameInheritsSuggestionParams", func(t *testing.T) {
		effective := Resolve(map[string]string{"salary": "bucket_numeric"}, suggestions)
		if got := effective["salary"].NumberOr("size", 0); got != 10 {
			t.Errorf("Bare name should inherit suggested params, got size %f", got)
		}
	})

	t.Run("BareNameDifferentStrategyDoesNotInherit", func(t *testing.T) {
		effective := Resolve(map[string]string{"salary": "hash"}, suggestions)
		if effective["salary"].Name != NameHash {
			t.Errorf("Expected hash, got %q", effective["salary"].Name)
		}
		if len(effective["salary"].Params) != 0 {
			t.Error("Different strategy must not inherit params")
		}
	})

	t.Run("NoopOptsOut", func(t *testing.T) {
		effective := Resolve(map[string]string{"email": "none"}, suggestions)
		if _, ok := effective["email"]; ok {
			t.Error("Explicit none must drop the column")
		}
	})

	t.Run("PlanOnlyColumn", func(t *testing.T) {
		effective := Resolve(map[string]string{"notes": "redact_text"}, suggestions)
		if effective["notes"].Name != NameRedactText {
			t.Error("Plan-only column missing")
		}
	})

	t.Run("InputsNotMutated", func(t *testing.T) {
		plan := map[string]string{"email": "none"}
		Resolve(plan, suggestions)
		if _, ok := suggestions["email"]; !ok {
			t.Error("Suggestions map was mutated")
		}
		if plan["email"] != "none" {
			t.Error("Plan map was mutated")
		}
	})
}
