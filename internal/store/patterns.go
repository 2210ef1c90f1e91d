package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fredhutch/phiscan/internal/patterns"
)

// ErrPatternNotFound is returned when a pattern id does not exist.
var ErrPatternNotFound = errors.New("pattern not found")

// CustomPattern is a stored pattern definition. Stored patterns layer on
// top of the built-ins at library build time.
type CustomPattern struct {
	ID              uuid.UUID `json:"id"`
	Category        string    `json:"category"`
	Pattern         string    `json:"pattern"`
	Priority        int       `json:"priority"`
	ContextPattern  string    `json:"context_pattern,omitempty"`
	ContextRequired bool      `json:"context_required"`
	Validator       string    `json:"validator,omitempty"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Def converts a stored pattern to a library definition.
func (p *CustomPattern) Def() patterns.Def {
	return patterns.Def{
		Category:        p.Category,
		Pattern:         p.Pattern,
		Priority:        p.Priority,
		ContextPattern:  p.ContextPattern,
		ContextRequired: p.ContextRequired,
		Validator:       p.Validator,
	}
}

type patternRow struct {
	ID              string    `db:"id"`
	Category        string    `db:"category"`
	Pattern         string    `db:"pattern"`
	Priority        int       `db:"priority"`
	ContextPattern  string    `db:"context_pattern"`
	ContextRequired bool      `db:"context_required"`
	Validator       string    `db:"validator"`
	Enabled         bool      `db:"enabled"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r *patternRow) toPattern() *CustomPattern {
	return &CustomPattern{
		ID:              uuid.MustParse(r.ID),
		Category:        r.Category,
		Pattern:         r.Pattern,
		Priority:        r.Priority,
		ContextPattern:  r.ContextPattern,
		ContextRequired: r.ContextRequired,
		Validator:       r.Validator,
		Enabled:         r.Enabled,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (s *Store) GetPattern(ctx context.Context, id uuid.UUID) (*CustomPattern, error) {
	var row patternRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, category, pattern, priority, context_pattern, context_required, validator, enabled, created_at, updated_at
		FROM custom_patterns WHERE id = $1
	`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPatternNotFound
		}
		return nil, err
	}
	return row.toPattern(), nil
}

func (s *Store) ListPatterns(ctx context.Context, enabledOnly bool) ([]*CustomPattern, error) {
	query := `
		SELECT id, category, pattern, priority, context_pattern, context_required, validator, enabled, created_at, updated_at
		FROM custom_patterns ORDER BY category, created_at`
	if enabledOnly {
		query = `
		SELECT id, category, pattern, priority, context_pattern, context_required, validator, enabled, created_at, updated_at
		FROM custom_patterns WHERE enabled = true ORDER BY category, created_at`
	}

	var rows []patternRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	out := make([]*CustomPattern, len(rows))
	for i, row := range rows {
		out[i] = row.toPattern()
	}
	return out, nil
}

// EnabledDefs returns the enabled stored patterns as library definitions,
// ready to feed into a library rebuild.
func (s *Store) EnabledDefs(ctx context.Context) ([]patterns.Def, error) {
	stored, err := s.ListPatterns(ctx, true)
	if err != nil {
		return nil, err
	}
	defs := make([]patterns.Def, len(stored))
	for i, p := range stored {
		defs[i] = p.Def()
	}
	return defs, nil
}

func (s *Store) CreatePattern(ctx context.Context, p *CustomPattern) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custom_patterns (id, category, pattern, priority, context_pattern, context_required, validator, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID.String(), p.Category, p.Pattern, p.Priority, p.ContextPattern, p.ContextRequired, p.Validator, p.Enabled, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *Store) UpdatePattern(ctx context.Context, p *CustomPattern) error {
	p.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE custom_patterns SET
			category = $2, pattern = $3, priority = $4, context_pattern = $5,
			context_required = $6, validator = $7, enabled = $8, updated_at = $9
		WHERE id = $1
	`, p.ID.String(), p.Category, p.Pattern, p.Priority, p.ContextPattern, p.ContextRequired, p.Validator, p.Enabled, p.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPatternNotFound
	}
	return nil
}

func (s *Store) DeletePattern(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM custom_patterns WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPatternNotFound
	}
	return nil
}
