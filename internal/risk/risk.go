// Package risk turns fused identifier counts into the document verdict:
// risk level from configurable count thresholds, confidence from the
// zero-shot score when the model answered, or a fixed rule-only
// constant when it did not.
package risk

import "github.com/fredhutch/phiscan/internal/models"

// RuleOnlyConfidence is reported when no zero-shot score is available.
// The value is deliberately a coin-flip: a rule-only verdict is correct
// about presence but has no model corroboration, and downstream
// consumers filter on the rule_only tag rather than this number.
const RuleOnlyConfidence = 0.50

// Thresholds are the minimum weighted identifier counts for each level.
// Anything below Low is NONE.
type Thresholds struct {
	Low    int `yaml:"low" json:"low"`
	Medium int `yaml:"medium" json:"medium"`
	High   int `yaml:"high" json:"high"`
}

// DefaultThresholds: 0 -> NONE, 1-4 -> LOW, 5-19 -> MEDIUM, >=20 -> HIGH.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 1, Medium: 5, High: 20}
}

// Level maps a count to a risk level. Monotone by construction.
func (t Thresholds) Level(count int) models.RiskLevel {
	switch {
	case count >= t.High:
		return models.RiskHigh
	case count >= t.Medium:
		return models.RiskMedium
	case count >= t.Low:
		return models.RiskLow
	default:
		return models.RiskNone
	}
}

// Assessment is the scorer's output for one document.
type Assessment struct {
	RiskLevel  models.RiskLevel
	Confidence float64
	RuleOnly   bool
}

type Scorer struct {
	thresholds         Thresholds
	ruleOnlyConfidence float64
}

type Config struct {
	Thresholds         Thresholds `yaml:"thresholds" json:"thresholds"`
	RuleOnlyConfidence float64    `yaml:"rule_only_confidence" json:"rule_only_confidence"`
}

func NewScorer(cfg Config) *Scorer {
	t := cfg.Thresholds
	if t == (Thresholds{}) {
		t = DefaultThresholds()
	}
	c := cfg.RuleOnlyConfidence
	if c == 0 {
		c = RuleOnlyConfidence
	}
	return &Scorer{thresholds: t, ruleOnlyConfidence: c}
}

// Input carries what the scorer needs from fusion and the model adapter.
// ZeroShotScore is only meaningful when ZeroShotAvailable is true.
type Input struct {
	ByCategory        map[models.IdentifierCategory]int
	ZeroShotAvailable bool
	ZeroShotScore     float64
}

// Score computes the verdict. The weighted count is the per-category
// tally times the category's risk weight; with default weights of 1 it
// equals the plain identifier count. Category weights come through the
// weight function so reloaded pattern snapshots take effect immediately.
func (s *Scorer) Score(in Input, weight func(models.IdentifierCategory) int) Assessment {
	weighted := 0
	for cat, n := range in.ByCategory {
		w := 1
		if weight != nil {
			w = weight(cat)
		}
		weighted += n * w
	}

	a := Assessment{RiskLevel: s.thresholds.Level(weighted)}
	if in.ZeroShotAvailable {
		a.Confidence = in.ZeroShotScore
	} else {
		a.Confidence = s.ruleOnlyConfidence
		a.RuleOnly = true
	}
	return a
}
