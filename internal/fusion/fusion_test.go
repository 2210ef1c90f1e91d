package fusion

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/fredhutch/phiscan/internal/models"
)

var testPriorities = map[models.IdentifierCategory]int{
	models.CategorySSN:   100,
	models.CategoryMRN:   90,
	models.CategoryPhone: 55,
	models.CategoryDate:  40,
	models.CategoryName:  30,
	models.CategoryOther: 10,
}

func prio(cat models.IdentifierCategory) int { return testPriorities[cat] }

func TestMergeOverlapCategoryPriority(t *testing.T) {
	occs := []models.Occurrence{
		{Category: models.CategoryPhone, Start: 10, End: 21, Source: models.SourceRule, Score: 1.0},
		{Category: models.CategorySSN, Start: 10, End: 21, Source: models.SourceRule, Score: 1.0},
	}

	res := Merge(occs, prio)
	if res.Total != 1 {
		t.Fatalf("expected 1 survivor, got %d", res.Total)
	}
	if res.Occurrences[0].Category != models.CategorySSN {
		t.Errorf("SSN should beat PHONE on overlap, got %s", res.Occurrences[0].Category)
	}
	if res.ByCategory[models.CategoryPhone] != 0 {
		t.Errorf("losing category still counted: %v", res.ByCategory)
	}
}

func TestMergeSameSpanPrefersRule(t *testing.T) {
	occs := []models.Occurrence{
		{Category: models.CategoryName, Start: 0, End: 8, Source: models.SourceNER, Score: 0.95},
		{Category: models.CategoryName, Start: 0, End: 8, Source: models.SourceRule, Score: 1.0},
	}

	res := Merge(occs, prio)
	if res.Total != 1 {
		t.Fatalf("same span should dedup to one occurrence, got %d", res.Total)
	}
	if res.Occurrences[0].Source != models.SourceRule {
		t.Errorf("surviving source = %s, want RULE", res.Occurrences[0].Source)
	}
}

func TestMergePartialOverlap(t *testing.T) {
	occs := []models.Occurrence{
		{Category: models.CategoryDate, Start: 0, End: 10, Source: models.SourceRule, Score: 1.0},
		{Category: models.CategoryMRN, Start: 5, End: 15, Source: models.SourceRule, Score: 1.0},
	}

	res := Merge(occs, prio)
	if res.Total != 1 {
		t.Fatalf("expected 1 survivor for partial overlap, got %d", res.Total)
	}
	if res.Occurrences[0].Category != models.CategoryMRN {
		t.Errorf("higher-priority later span should win, got %s", res.Occurrences[0].Category)
	}
}

func TestMergeNonOverlappingAllKept(t *testing.T) {
	occs := []models.Occurrence{
		{Category: models.CategoryPhone, Start: 30, End: 42, Source: models.SourceRule, Score: 1.0},
		{Category: models.CategorySSN, Start: 0, End: 11, Source: models.SourceRule, Score: 1.0},
		{Category: models.CategoryName, Start: 15, End: 23, Source: models.SourceNER, Score: 0.9},
	}

	res := Merge(occs, prio)
	if res.Total != 3 {
		t.Fatalf("expected all 3 kept, got %d", res.Total)
	}
	for i := 1; i < len(res.Occurrences); i++ {
		if res.Occurrences[i].Start < res.Occurrences[i-1].End {
			t.Errorf("output not sorted/non-overlapping at %d", i)
		}
	}
	if res.ByCategory[models.CategorySSN] != 1 || res.ByCategory[models.CategoryName] != 1 || res.ByCategory[models.CategoryPhone] != 1 {
		t.Errorf("counts = %v", res.ByCategory)
	}
}

func TestMergeNERTiesResolveByScore(t *testing.T) {
	occs := []models.Occurrence{
		{Category: models.CategoryName, Start: 0, End: 8, Source: models.SourceNER, Score: 0.70},
		{Category: models.CategoryName, Start: 0, End: 10, Source: models.SourceNER, Score: 0.95},
	}

	res := Merge(occs, prio)
	if res.Total != 1 {
		t.Fatalf("expected 1 survivor, got %d", res.Total)
	}
	if res.Occurrences[0].Score != 0.95 {
		t.Errorf("higher-score span should win, kept score %v", res.Occurrences[0].Score)
	}
}

func TestMergeOrderIndependent(t *testing.T) {
	base := []models.Occurrence{
		{Category: models.CategorySSN, Start: 0, End: 11, Source: models.SourceRule, Score: 1.0},
		{Category: models.CategoryPhone, Start: 0, End: 11, Source: models.SourceRule, Score: 1.0},
		{Category: models.CategoryName, Start: 20, End: 28, Source: models.SourceNER, Score: 0.9},
		{Category: models.CategoryDate, Start: 25, End: 35, Source: models.SourceRule, Score: 1.0},
		{Category: models.CategoryMRN, Start: 40, End: 48, Source: models.SourceRule, Score: 1.0},
	}

	want := Merge(base, prio)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.Occurrence, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		if got := Merge(shuffled, prio); !reflect.DeepEqual(got, want) {
			t.Fatalf("merge depends on input order (iteration %d)", i)
		}
	}
}

func TestMergeEmpty(t *testing.T) {
	res := Merge(nil, prio)
	if res.Total != 0 || len(res.Occurrences) != 0 {
		t.Errorf("empty input should fuse to empty result: %+v", res)
	}
}
