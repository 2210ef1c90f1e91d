package risk

import (
	"testing"

	"github.com/fredhutch/phiscan/internal/models"
)

func TestThresholdBoundaries(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		count int
		want  models.RiskLevel
	}{
		{0, models.RiskNone},
		{1, models.RiskLow},
		{4, models.RiskLow},
		{5, models.RiskMedium},
		{19, models.RiskMedium},
		{20, models.RiskHigh},
		{100, models.RiskHigh},
	}

	for _, tt := range tests {
		if got := th.Level(tt.count); got != tt.want {
			t.Errorf("Level(%d) = %s, want %s", tt.count, got, tt.want)
		}
	}
}

func TestLevelMonotone(t *testing.T) {
	th := DefaultThresholds()
	rank := map[models.RiskLevel]int{
		models.RiskNone:   0,
		models.RiskLow:    1,
		models.RiskMedium: 2,
		models.RiskHigh:   3,
	}

	prev := th.Level(0)
	for n := 1; n <= 50; n++ {
		cur := th.Level(n)
		if rank[cur] < rank[prev] {
			t.Fatalf("risk level decreased from %s to %s at count %d", prev, cur, n)
		}
		prev = cur
	}
}

func TestScoreZeroShotConfidence(t *testing.T) {
	s := NewScorer(Config{})
	a := s.Score(Input{
		ByCategory:        map[models.IdentifierCategory]int{models.CategorySSN: 2},
		ZeroShotAvailable: true,
		ZeroShotScore:     0.87,
	}, nil)

	if a.Confidence != 0.87 {
		t.Errorf("confidence = %v, want zero-shot score", a.Confidence)
	}
	if a.RuleOnly {
		t.Error("rule_only set despite zero-shot availability")
	}
	if a.RiskLevel != models.RiskLow {
		t.Errorf("risk = %s, want LOW", a.RiskLevel)
	}
}

func TestScoreRuleOnlyFallback(t *testing.T) {
	s := NewScorer(Config{})
	a := s.Score(Input{
		ByCategory: map[models.IdentifierCategory]int{models.CategorySSN: 6},
	}, nil)

	if !a.RuleOnly {
		t.Error("expected rule_only without zero-shot score")
	}
	if a.Confidence != RuleOnlyConfidence {
		t.Errorf("confidence = %v, want %v", a.Confidence, RuleOnlyConfidence)
	}
	if a.RiskLevel != models.RiskMedium {
		t.Errorf("6 identifiers should be MEDIUM, got %s", a.RiskLevel)
	}
}

func TestScoreCategoryWeights(t *testing.T) {
	s := NewScorer(Config{})
	weights := func(cat models.IdentifierCategory) int {
		if cat == models.CategorySSN {
			return 3
		}
		return 1
	}

	a := s.Score(Input{
		ByCategory: map[models.IdentifierCategory]int{
			models.CategorySSN:  2, // weighted 6
			models.CategoryName: 1, // weighted 1
		},
	}, weights)

	if a.RiskLevel != models.RiskMedium {
		t.Errorf("weighted count 7 should be MEDIUM, got %s", a.RiskLevel)
	}
}

func TestScoreCustomThresholds(t *testing.T) {
	s := NewScorer(Config{Thresholds: Thresholds{Low: 1, Medium: 3, High: 10}})
	a := s.Score(Input{ByCategory: map[models.IdentifierCategory]int{models.CategoryName: 3}}, nil)
	if a.RiskLevel != models.RiskMedium {
		t.Errorf("risk = %s, want MEDIUM under custom thresholds", a.RiskLevel)
	}
}

func TestScoreEmpty(t *testing.T) {
	s := NewScorer(Config{})
	a := s.Score(Input{}, nil)
	if a.RiskLevel != models.RiskNone {
		t.Errorf("empty input risk = %s, want NONE", a.RiskLevel)
	}
}
