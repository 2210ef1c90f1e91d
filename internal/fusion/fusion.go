// Package fusion reconciles occurrences from all detectors into one
// non-overlapping, deterministically ordered set. Overlapping spans are
// resolved by category priority, then by source trust (RULE beats NER
// beats ZERO_SHOT), then by span score, so a regex SSN hit always wins
// over a model-suggested phone number covering the same bytes.
package fusion

import (
	"sort"

	"github.com/fredhutch/phiscan/internal/models"
)

// Result is the fused occurrence set with per-category tallies.
type Result struct {
	Occurrences []models.Occurrence
	ByCategory  map[models.IdentifierCategory]int
	Total       int
}

func sourceRank(s models.Source) int {
	switch s {
	case models.SourceRule:
		return 2
	case models.SourceNER:
		return 1
	default:
		return 0
	}
}

// beats reports whether a should survive an overlap with b.
func beats(a, b models.Occurrence, priority func(models.IdentifierCategory) int) bool {
	if pa, pb := priority(a.Category), priority(b.Category); pa != pb {
		return pa > pb
	}
	if ra, rb := sourceRank(a.Source), sourceRank(b.Source); ra != rb {
		return ra > rb
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.End < b.End
}

// Merge fuses occurrences from every source. The output is sorted by
// start offset, free of overlaps, and identical for identical input
// regardless of input order. Two sources reporting the same span and
// category collapse to one occurrence, the rule-sourced one surviving.
func Merge(occs []models.Occurrence, priority func(models.IdentifierCategory) int) Result {
	res := Result{ByCategory: make(map[models.IdentifierCategory]int)}
	if len(occs) == 0 {
		return res
	}

	sorted := make([]models.Occurrence, len(occs))
	copy(sorted, occs)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if pa, pb := priority(a.Category), priority(b.Category); pa != pb {
			return pa > pb
		}
		if ra, rb := sourceRank(a.Source), sourceRank(b.Source); ra != rb {
			return ra > rb
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Category < b.Category
	})

	var kept []models.Occurrence
	for _, cand := range sorted {
		discard := false
		for len(kept) > 0 {
			last := kept[len(kept)-1]
			if cand.Start >= last.End {
				break
			}
			// Overlap: exactly one of the two survives.
			if beats(cand, last, priority) {
				kept = kept[:len(kept)-1]
				continue
			}
			discard = true
			break
		}
		if !discard {
			kept = append(kept, cand)
		}
	}

	res.Occurrences = kept
	res.Total = len(kept)
	for _, o := range kept {
		res.ByCategory[o.Category]++
	}
	return res
}
