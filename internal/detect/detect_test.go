package detect

import (
	"reflect"
	"testing"

	"github.com/fredhutch/phiscan/internal/models"
	"github.com/fredhutch/phiscan/internal/patterns"
)

func snapshotFrom(t *testing.T, defs ...patterns.Def) *patterns.Snapshot {
	t.Helper()
	lib := patterns.Empty()
	if err := lib.RegisterAll(defs); err != nil {
		t.Fatalf("registering patterns: %v", err)
	}
	return lib.Snapshot()
}

func TestDetectOffsets(t *testing.T) {
	snap := snapshotFrom(t, patterns.Def{Category: "SSN", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Validator: "ssn"})
	d := New(nil)

	text := "SSN on file: 123-45-6789."
	occs := d.Detect(text, snap)

	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	occ := occs[0]
	if occ.Start != 13 || occ.End != 24 {
		t.Errorf("span = [%d,%d), want [13,24)", occ.Start, occ.End)
	}
	if text[occ.Start:occ.End] != "123-45-6789" {
		t.Errorf("span text = %q", text[occ.Start:occ.End])
	}
	if occ.Source != models.SourceRule || occ.Score != RuleScore {
		t.Errorf("source/score = %s/%v", occ.Source, occ.Score)
	}
}

func TestDetectValidatorRejects(t *testing.T) {
	snap := snapshotFrom(t, patterns.Def{Category: "SSN", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Validator: "ssn"})
	d := New(nil)

	occs := d.Detect("bogus 000-45-6789 and real 123-45-6789", snap)
	if len(occs) != 1 {
		t.Fatalf("expected validator to drop area-000 match, got %d occurrences", len(occs))
	}
	if occs[0].MatchedText != "123-45-6789" {
		t.Errorf("kept %q", occs[0].MatchedText)
	}
}

func TestDetectContextGate(t *testing.T) {
	def := patterns.Def{
		Category:        "MRN",
		Pattern:         `\b\d{7}\b`,
		ContextPattern:  `(?i)\bmrn\b`,
		ContextRequired: true,
	}
	snap := snapshotFrom(t, def)
	d := New(nil)

	if occs := d.Detect("value 1234567 with no keyword", snap); len(occs) != 0 {
		t.Errorf("context-gated pattern matched without context: %d", len(occs))
	}
	if occs := d.Detect("MRN: 1234567", snap); len(occs) != 1 {
		t.Errorf("context-gated pattern missed with context present: %d", len(occs))
	}
}

func TestDetectNonOverlappingWithinPattern(t *testing.T) {
	snap := snapshotFrom(t, patterns.Def{Category: "MRN", Pattern: `\d{3}`})
	d := New(nil)

	occs := d.Detect("1234567", snap)
	if len(occs) != 2 {
		t.Fatalf("expected 2 non-overlapping matches, got %d", len(occs))
	}
	if occs[0].Start != 0 || occs[0].End != 3 || occs[1].Start != 3 || occs[1].End != 6 {
		t.Errorf("spans = [%d,%d) [%d,%d)", occs[0].Start, occs[0].End, occs[1].Start, occs[1].End)
	}
}

func TestDetectDeterministic(t *testing.T) {
	snap := snapshotFrom(t,
		patterns.Def{Category: "SSN", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Validator: "ssn"},
		patterns.Def{Category: "PHONE", Pattern: `\b\d{3}-\d{3}-\d{4}\b`},
	)
	d := New(nil)
	text := "call 206-555-0123, ssn 123-45-6789"

	first := d.Detect(text, snap)
	for i := 0; i < 5; i++ {
		if got := d.Detect(text, snap); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differed from first run", i)
		}
	}
}

func TestDetectEmptyText(t *testing.T) {
	snap := snapshotFrom(t, patterns.Def{Category: "SSN", Pattern: `\d+`})
	if occs := New(nil).Detect("", snap); occs != nil {
		t.Errorf("expected nil for empty text, got %v", occs)
	}
}

func TestDetectCustomCategory(t *testing.T) {
	snap := snapshotFrom(t, patterns.Def{Category: "CUSTOM_MRN", Pattern: `\bU\d{7}\b`})
	d := New(nil)

	occs := d.Detect("chart U1234567 attached", snap)
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if occs[0].Category != "CUSTOM_MRN" {
		t.Errorf("category = %s", occs[0].Category)
	}
	if occs[0].MatchedText != "U1234567" {
		t.Errorf("matched = %q", occs[0].MatchedText)
	}
}
