// Package detect runs the pattern library over extracted text and emits
// rule-sourced occurrences. Detection is a pure function of the text and
// the pattern snapshot: same inputs, same occurrences, in the same order.
package detect

import (
	"log/slog"

	"github.com/fredhutch/phiscan/internal/models"
	"github.com/fredhutch/phiscan/internal/patterns"
)

// RuleScore is the fixed score for rule-sourced occurrences. Regex
// matches that pass validation are treated as certain.
const RuleScore = 1.0

type Detector struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// Detect matches every pattern in the snapshot against text. Within one
// pattern, matches are leftmost and non-overlapping; overlaps between
// different patterns are left for the fusion stage. Matches failing
// their validator are dropped, and context-gated patterns contribute
// nothing unless their context expression appears in the text.
func (d *Detector) Detect(text string, snap *patterns.Snapshot) []models.Occurrence {
	if text == "" {
		return nil
	}

	var occs []models.Occurrence
	for _, p := range snap.All() {
		if p.ContextRequired && p.Context != nil && !p.Context.MatchString(text) {
			continue
		}

		for _, loc := range p.Regexp.FindAllStringIndex(text, -1) {
			match := text[loc[0]:loc[1]]
			if p.Validator != nil && !p.Validator(match) {
				continue
			}
			occs = append(occs, models.Occurrence{
				Category:    p.Category,
				Start:       loc[0],
				End:         loc[1],
				Source:      models.SourceRule,
				Score:       RuleScore,
				MatchedText: match,
			})
		}
	}

	if len(occs) > 0 {
		d.logger.Debug("rule detection complete",
			"occurrences", len(occs),
			"patterns", len(snap.All()))
	}
	return occs
}
