package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fredhutch/phiscan/internal/models"
)

var ErrBatchNotFound = errors.New("batch not found")

type batchRow struct {
	ID             string       `db:"id"`
	Status         string       `db:"status"`
	TotalDocuments int          `db:"total_documents"`
	Processed      int          `db:"processed"`
	Failed         int          `db:"failed"`
	WithPHI        int          `db:"with_phi"`
	ByRiskLevel    JSONB        `db:"by_risk_level"`
	CreatedAt      time.Time    `db:"created_at"`
	StartedAt      sql.NullTime `db:"started_at"`
	CompletedAt    sql.NullTime `db:"completed_at"`
}

// Batch is a persisted batch record.
type Batch struct {
	ID        uuid.UUID           `json:"id"`
	Status    models.BatchStatus  `json:"status"`
	Summary   models.BatchSummary `json:"summary"`
	CreatedAt time.Time           `json:"created_at"`
}

func (r *batchRow) toBatch() *Batch {
	b := &Batch{
		ID:     uuid.MustParse(r.ID),
		Status: models.BatchStatus(r.Status),
		Summary: models.BatchSummary{
			BatchID:        uuid.MustParse(r.ID),
			TotalDocuments: r.TotalDocuments,
			Processed:      r.Processed,
			Failed:         r.Failed,
			WithPHI:        r.WithPHI,
			ByRiskLevel:    make(map[models.RiskLevel]int),
		},
		CreatedAt: r.CreatedAt,
	}
	for level, n := range r.ByRiskLevel {
		if f, ok := n.(float64); ok {
			b.Summary.ByRiskLevel[models.RiskLevel(level)] = int(f)
		}
	}
	if r.StartedAt.Valid {
		b.Summary.StartedAt = r.StartedAt.Time
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		b.Summary.CompletedAt = &t
	}
	return b
}

func (s *Store) CreateBatch(ctx context.Context, id uuid.UUID, totalDocuments int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, status, total_documents, created_at)
		VALUES ($1, $2, $3, $4)
	`, id.String(), string(models.BatchStatusPending), totalDocuments, time.Now())
	return err
}

func (s *Store) GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error) {
	var row batchRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, status, total_documents, processed, failed, with_phi, by_risk_level, created_at, started_at, completed_at
		FROM batches WHERE id = $1
	`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return row.toBatch(), nil
}

func (s *Store) UpdateBatchStatus(ctx context.Context, id uuid.UUID, status models.BatchStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE batches SET status = $2 WHERE id = $1`, id.String(), string(status))
	return err
}

// FinishBatch records the final summary and status for a batch.
func (s *Store) FinishBatch(ctx context.Context, status models.BatchStatus, summary models.BatchSummary) error {
	byRisk := make(JSONB, len(summary.ByRiskLevel))
	for level, n := range summary.ByRiskLevel {
		byRisk[string(level)] = n
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE batches SET
			status = $2, total_documents = $3, processed = $4, failed = $5,
			with_phi = $6, by_risk_level = $7, started_at = $8, completed_at = $9
		WHERE id = $1
	`, summary.BatchID.String(), string(status), summary.TotalDocuments, summary.Processed,
		summary.Failed, summary.WithPHI, byRisk, summary.StartedAt, summary.CompletedAt)
	return err
}

// SaveResult persists one classification result. Occurrence spans are
// deliberately not stored: matched text is PHI, and the result record
// must stay safe to retain.
func (s *Store) SaveResult(ctx context.Context, batchID uuid.UUID, r *models.ClassificationResult) error {
	byCat := make(JSONB, len(r.IdentifiersByCategory))
	for cat, n := range r.IdentifiersByCategory {
		byCat[string(cat)] = n
	}

	var batch any
	if batchID != uuid.Nil {
		batch = batchID.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (id, batch_id, document_id, filename, contains_phi, confidence, risk_level,
			total_identifiers, identifiers_by_category, rule_only, extraction_method, ocr_applied, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, uuid.New().String(), batch, r.DocumentID.String(), r.Filename, r.ContainsPHI, r.Confidence,
		string(r.RiskLevel), r.TotalIdentifiers, byCat, r.RuleOnly, r.ExtractionMethod, r.OCRApplied, r.ProcessedAt)
	return err
}

type resultRow struct {
	DocumentID       string    `db:"document_id"`
	Filename         string    `db:"filename"`
	ContainsPHI      bool      `db:"contains_phi"`
	Confidence       float64   `db:"confidence"`
	RiskLevel        string    `db:"risk_level"`
	TotalIdentifiers int       `db:"total_identifiers"`
	ByCategory       JSONB     `db:"identifiers_by_category"`
	RuleOnly         bool      `db:"rule_only"`
	ExtractionMethod string    `db:"extraction_method"`
	OCRApplied       bool      `db:"ocr_applied"`
	ProcessedAt      time.Time `db:"processed_at"`
}

func (r *resultRow) toResult() models.ClassificationResult {
	res := models.ClassificationResult{
		DocumentID:       uuid.MustParse(r.DocumentID),
		Filename:         r.Filename,
		ContainsPHI:      r.ContainsPHI,
		Confidence:       r.Confidence,
		RiskLevel:        models.RiskLevel(r.RiskLevel),
		TotalIdentifiers: r.TotalIdentifiers,
		RuleOnly:         r.RuleOnly,
		ExtractionMethod: r.ExtractionMethod,
		OCRApplied:       r.OCRApplied,
		ProcessedAt:      r.ProcessedAt,
	}
	if len(r.ByCategory) > 0 {
		res.IdentifiersByCategory = make(map[models.IdentifierCategory]int, len(r.ByCategory))
		for cat, n := range r.ByCategory {
			if f, ok := n.(float64); ok {
				res.IdentifiersByCategory[models.IdentifierCategory(cat)] = int(f)
			}
		}
	}
	return res
}

func (s *Store) ListBatchResults(ctx context.Context, batchID uuid.UUID) ([]models.ClassificationResult, error) {
	var rows []resultRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT document_id, filename, contains_phi, confidence, risk_level, total_identifiers,
			identifiers_by_category, rule_only, extraction_method, ocr_applied, processed_at
		FROM results WHERE batch_id = $1 ORDER BY processed_at
	`, batchID.String())
	if err != nil {
		return nil, err
	}

	out := make([]models.ClassificationResult, len(rows))
	for i, row := range rows {
		out[i] = row.toResult()
	}
	return out, nil
}
