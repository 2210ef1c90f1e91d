// Package engine orchestrates one classification pass: rule detection
// and model inference fork per document, their occurrences fuse, and the
// risk scorer produces the verdict. Batches run documents through a
// worker pool; each document succeeds or fails on its own.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fredhutch/phiscan/internal/detect"
	"github.com/fredhutch/phiscan/internal/fusion"
	"github.com/fredhutch/phiscan/internal/modeladapter"
	"github.com/fredhutch/phiscan/internal/models"
	"github.com/fredhutch/phiscan/internal/patterns"
	"github.com/fredhutch/phiscan/internal/risk"
)

type Config struct {
	Workers int
}

func (c *Config) applyDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
}

type Engine struct {
	snap     atomic.Pointer[patterns.Snapshot]
	detector *detect.Detector
	adapter  *modeladapter.Adapter
	scorer   *risk.Scorer
	workers  int
	logger   *slog.Logger
}

func New(snap *patterns.Snapshot, adapter *modeladapter.Adapter, scorer *risk.Scorer, cfg Config, logger *slog.Logger) *Engine {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		detector: detect.New(logger),
		adapter:  adapter,
		scorer:   scorer,
		workers:  cfg.Workers,
		logger:   logger,
	}
	e.snap.Store(snap)
	return e
}

// Reload swaps the pattern snapshot. In-flight documents finish against
// the snapshot they started with.
func (e *Engine) Reload(snap *patterns.Snapshot) {
	e.snap.Store(snap)
	e.logger.Info("pattern snapshot reloaded", "patterns", len(snap.All()))
}

// Snapshot returns the snapshot currently in effect.
func (e *Engine) Snapshot() *patterns.Snapshot {
	return e.snap.Load()
}

// Classify runs the full pipeline for one document. It always returns a
// result: model outages degrade the verdict, they do not fail it.
func (e *Engine) Classify(ctx context.Context, doc models.Document, includeOccurrences bool) models.ClassificationResult {
	snap := e.snap.Load()

	var (
		ruleOccs []models.Occurrence
		modelOut modeladapter.Output
		wg       sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		ruleOccs = e.detector.Detect(doc.Text, snap)
	}()

	if e.adapter != nil {
		modelOut = e.adapter.Run(ctx, doc.Text)
	}
	wg.Wait()

	fused := fusion.Merge(append(ruleOccs, modelOut.Occurrences...), snap.CategoryPriority)

	assessment := e.scorer.Score(risk.Input{
		ByCategory:        fused.ByCategory,
		ZeroShotAvailable: modelOut.ZeroShotAvailable,
		ZeroShotScore:     modelOut.ZeroShotScore,
	}, snap.RiskWeight)

	return assemble(doc, fused, assessment, includeOccurrences)
}

// ClassifyBatch classifies documents through a worker pool. Results come
// back in input order. Every document yields a result; the summary
// tallies verdicts across the batch.
func (e *Engine) ClassifyBatch(ctx context.Context, batchID uuid.UUID, docs []models.Document, includeOccurrences bool) *models.BatchResult {
	started := time.Now()
	results := make([]models.ClassificationResult, len(docs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.Classify(ctx, docs[i], includeOccurrences)
			}
		}()
	}

	dispatched := 0
send:
	for i := range docs {
		select {
		case jobs <- i:
			dispatched++
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)
	wg.Wait()

	// Cancellation mid-batch leaves a tail of undispatched documents;
	// only the dispatched ones carry real verdicts.
	results = results[:dispatched]

	summary := models.BatchSummary{
		BatchID:        batchID,
		TotalDocuments: len(docs),
		Processed:      dispatched,
		ByRiskLevel:    make(map[models.RiskLevel]int),
		StartedAt:      started,
	}
	for _, r := range results {
		summary.ByRiskLevel[r.RiskLevel]++
		if r.ContainsPHI {
			summary.WithPHI++
		}
	}
	done := time.Now()
	summary.CompletedAt = &done

	e.logger.Info("batch classified",
		"batch_id", batchID,
		"documents", len(docs),
		"with_phi", summary.WithPHI)

	return &models.BatchResult{Summary: summary, Results: results}
}
