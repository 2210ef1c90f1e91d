// Package modeladapter normalizes the external ML collaborators (NER
// service, zero-shot document classifier) into the engine's occurrence
// model. Model calls share a small semaphore so a large batch cannot
// stampede the inference services, and every call carries a deadline.
// A slow or failing model is reported as unavailable, never as an
// engine error.
package modeladapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/fredhutch/phiscan/internal/models"
)

// Entity is one span returned by the NER collaborator. Offsets are byte
// offsets into the submitted text.
type Entity struct {
	Text  string  `json:"text"`
	Type  string  `json:"entity_type"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// DocumentScore is the zero-shot classifier's document-level judgment.
type DocumentScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// EntityRecognizer extracts identifier-bearing spans from text.
type EntityRecognizer interface {
	RecognizeEntities(ctx context.Context, text string) ([]Entity, error)
}

// ZeroShotClassifier scores a whole document for PHI likelihood.
type ZeroShotClassifier interface {
	ScoreDocument(ctx context.Context, text string) (DocumentScore, error)
}

// Output is the adapter's contribution to one document. The Available
// flags distinguish "model said nothing" from "model unreachable";
// downstream scoring treats the two very differently.
type Output struct {
	Occurrences       []models.Occurrence
	NERAvailable      bool
	ZeroShotAvailable bool
	ZeroShotScore     float64
}

type Config struct {
	MaxConcurrent int
	CallTimeout   time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 4
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 10 * time.Second
	}
}

type Adapter struct {
	ner      EntityRecognizer
	zeroShot ZeroShotClassifier
	sem      chan struct{}
	timeout  time.Duration
	logger   *slog.Logger
}

// New builds an adapter. Either collaborator may be nil; the adapter
// then reports that path as unavailable and the engine degrades to
// rule-only operation.
func New(ner EntityRecognizer, zeroShot ZeroShotClassifier, cfg Config, logger *slog.Logger) *Adapter {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		ner:      ner,
		zeroShot: zeroShot,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		timeout:  cfg.CallTimeout,
		logger:   logger,
	}
}

// Run invokes both collaborators for one document. Each call waits for a
// semaphore slot, runs under the configured timeout, and converts any
// failure or timeout into an unavailable flag. No synchronous retries.
func (a *Adapter) Run(ctx context.Context, text string) Output {
	out := Output{}
	if text == "" {
		return out
	}

	if a.ner != nil {
		entities, err := a.recognize(ctx, text)
		if err != nil {
			a.logger.Warn("ner unavailable", "error", err)
		} else {
			out.NERAvailable = true
			out.Occurrences = mapEntities(entities)
		}
	}

	if a.zeroShot != nil {
		score, err := a.score(ctx, text)
		if err != nil {
			a.logger.Warn("zero-shot unavailable", "error", err)
		} else {
			out.ZeroShotAvailable = true
			out.ZeroShotScore = score.Score
		}
	}

	return out
}

func (a *Adapter) recognize(ctx context.Context, text string) ([]Entity, error) {
	select {
	case a.sem <- struct{}{}:
		defer func() { <-a.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.ner.RecognizeEntities(callCtx, text)
}

func (a *Adapter) score(ctx context.Context, text string) (DocumentScore, error) {
	select {
	case a.sem <- struct{}{}:
		defer func() { <-a.sem }()
	case <-ctx.Done():
		return DocumentScore{}, ctx.Err()
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.zeroShot.ScoreDocument(callCtx, text)
}

// mapEntities converts NER spans to occurrences, dropping entity types
// with no category mapping and spans with inverted offsets.
func mapEntities(entities []Entity) []models.Occurrence {
	var occs []models.Occurrence
	for _, e := range entities {
		cat, ok := entityTypeToCategory[e.Type]
		if !ok {
			continue
		}
		if e.End <= e.Start {
			continue
		}
		occs = append(occs, models.Occurrence{
			Category:    cat,
			Start:       e.Start,
			End:         e.End,
			Source:      models.SourceNER,
			Score:       e.Score,
			MatchedText: e.Text,
		})
	}
	return occs
}

// entityTypeToCategory fixes how NER entity labels land in identifier
// categories. Types absent from the table are discarded rather than
// guessed.
var entityTypeToCategory = map[string]models.IdentifierCategory{
	"PERSON":   models.CategoryName,
	"PER":      models.CategoryName,
	"PATIENT":  models.CategoryName,
	"DATE":     models.CategoryDate,
	"TIME":     models.CategoryDate,
	"AGE":      models.CategoryDate,
	"LOCATION": models.CategoryAddress,
	"LOC":      models.CategoryAddress,
	"GPE":      models.CategoryAddress,
	"ADDRESS":  models.CategoryAddress,
	"PHONE":    models.CategoryPhone,
	"EMAIL":    models.CategoryEmail,
	"URL":      models.CategoryURL,
}
