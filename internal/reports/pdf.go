// Package reports renders batch classification summaries as PDF for
// compliance review.
package reports

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/fredhutch/phiscan/internal/models"
)

type PDFReport struct {
	pdf *gofpdf.Fpdf
}

func NewPDFReport() *PDFReport {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	return &PDFReport{pdf: pdf}
}

// Generate renders the batch summary and per-document verdicts. Matched
// text never appears in the report; only counts and categories do.
func (r *PDFReport) Generate(summary models.BatchSummary, results []models.ClassificationResult) ([]byte, error) {
	r.pdf.AddPage()
	r.header(summary)
	r.summarySection(summary)
	r.resultsTable(results)

	var buf bytes.Buffer
	if err := r.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFReport) header(summary models.BatchSummary) {
	r.pdf.SetFont("Helvetica", "B", 18)
	r.pdf.Cell(0, 10, "PHI Classification Report")
	r.pdf.Ln(8)

	r.pdf.SetFont("Helvetica", "", 10)
	r.pdf.SetTextColor(100, 100, 100)
	r.pdf.Cell(0, 6, fmt.Sprintf("Batch %s", summary.BatchID))
	r.pdf.Ln(5)
	r.pdf.Cell(0, 6, fmt.Sprintf("Generated %s", time.Now().UTC().Format(time.RFC1123)))
	r.pdf.Ln(10)
	r.pdf.SetTextColor(0, 0, 0)
}

func (r *PDFReport) summarySection(summary models.BatchSummary) {
	r.pdf.SetFont("Helvetica", "B", 13)
	r.pdf.Cell(0, 8, "Summary")
	r.pdf.Ln(8)

	r.pdf.SetFont("Helvetica", "", 10)
	rows := [][2]string{
		{"Total documents", fmt.Sprintf("%d", summary.TotalDocuments)},
		{"Processed", fmt.Sprintf("%d", summary.Processed)},
		{"Failed", fmt.Sprintf("%d", summary.Failed)},
		{"Containing PHI", fmt.Sprintf("%d", summary.WithPHI)},
	}
	for _, level := range []models.RiskLevel{models.RiskHigh, models.RiskMedium, models.RiskLow, models.RiskNone} {
		rows = append(rows, [2]string{fmt.Sprintf("Risk %s", level), fmt.Sprintf("%d", summary.ByRiskLevel[level])})
	}

	for _, row := range rows {
		r.pdf.Cell(60, 6, row[0])
		r.pdf.Cell(0, 6, row[1])
		r.pdf.Ln(6)
	}
	r.pdf.Ln(6)
}

func (r *PDFReport) resultsTable(results []models.ClassificationResult) {
	r.pdf.SetFont("Helvetica", "B", 13)
	r.pdf.Cell(0, 8, "Documents")
	r.pdf.Ln(8)

	r.pdf.SetFont("Helvetica", "B", 9)
	r.pdf.SetFillColor(235, 235, 235)
	r.pdf.CellFormat(70, 7, "Filename", "1", 0, "L", true, 0, "")
	r.pdf.CellFormat(25, 7, "Risk", "1", 0, "C", true, 0, "")
	r.pdf.CellFormat(30, 7, "Identifiers", "1", 0, "C", true, 0, "")
	r.pdf.CellFormat(25, 7, "Confidence", "1", 0, "C", true, 0, "")
	r.pdf.CellFormat(30, 7, "Top Category", "1", 1, "C", true, 0, "")

	r.pdf.SetFont("Helvetica", "", 9)
	for _, res := range results {
		name := res.Filename
		if len(name) > 38 {
			name = name[:35] + "..."
		}
		r.pdf.CellFormat(70, 7, name, "1", 0, "L", false, 0, "")
		r.pdf.CellFormat(25, 7, string(res.RiskLevel), "1", 0, "C", false, 0, "")
		r.pdf.CellFormat(30, 7, fmt.Sprintf("%d", res.TotalIdentifiers), "1", 0, "C", false, 0, "")
		r.pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", res.Confidence), "1", 0, "C", false, 0, "")
		r.pdf.CellFormat(30, 7, topCategory(res.IdentifiersByCategory), "1", 1, "C", false, 0, "")
	}
}

func topCategory(byCategory map[models.IdentifierCategory]int) string {
	if len(byCategory) == 0 {
		return "-"
	}
	type entry struct {
		cat models.IdentifierCategory
		n   int
	}
	entries := make([]entry, 0, len(byCategory))
	for cat, n := range byCategory {
		entries = append(entries, entry{cat, n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].n != entries[j].n {
			return entries[i].n > entries[j].n
		}
		return entries[i].cat < entries[j].cat
	})
	return string(entries[0].cat)
}
