package engine

import (
	"time"

	"github.com/fredhutch/phiscan/internal/fusion"
	"github.com/fredhutch/phiscan/internal/models"
	"github.com/fredhutch/phiscan/internal/risk"
)

// assemble builds the final result from the fused occurrences and the
// risk assessment. ContainsPHI is derived from the fused count, never
// set independently, which keeps it consistent with TotalIdentifiers.
func assemble(doc models.Document, fused fusion.Result, a risk.Assessment, includeOccurrences bool) models.ClassificationResult {
	res := models.ClassificationResult{
		DocumentID:       doc.ID,
		Filename:         doc.Filename,
		ContainsPHI:      fused.Total > 0,
		Confidence:       a.Confidence,
		RiskLevel:        a.RiskLevel,
		TotalIdentifiers: fused.Total,
		RuleOnly:         a.RuleOnly,
		ExtractionMethod: doc.Extraction.Method,
		OCRApplied:       doc.Extraction.OCRApplied,
		ProcessedAt:      time.Now().UTC(),
	}
	if fused.Total > 0 {
		res.IdentifiersByCategory = fused.ByCategory
	}
	if includeOccurrences {
		res.Occurrences = fused.Occurrences
	}
	return res
}
