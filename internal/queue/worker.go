package queue

import (
	"context"
	"fmt"
	"log"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/fredhutch/phiscan/internal/engine"
	"github.com/fredhutch/phiscan/internal/extract"
	"github.com/fredhutch/phiscan/internal/models"
	"github.com/fredhutch/phiscan/internal/store"
)

// ObjectSource abstracts the bucket the worker pulls documents from.
type ObjectSource interface {
	List(ctx context.Context, bucket, prefix string) ([]ObjectRef, error)
	Fetch(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error)
}

// ObjectRef identifies one document in the source.
type ObjectRef struct {
	Key  string
	Size int64
}

type WorkerConfig struct {
	ID                string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	MaxObjectBytes    int64
}

func (c *WorkerConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "worker-" + uuid.NewString()[:8]
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.MaxObjectBytes == 0 {
		c.MaxObjectBytes = 25 << 20
	}
}

// Worker consumes batch jobs: list the S3 prefix, extract each object,
// classify the lot, persist results and the batch summary.
type Worker struct {
	cfg    WorkerConfig
	queue  *Queue
	eng    *engine.Engine
	source ObjectSource
	db     *store.Store
}

func NewWorker(cfg WorkerConfig, q *Queue, eng *engine.Engine, source ObjectSource, db *store.Store) *Worker {
	cfg.applyDefaults()
	return &Worker{cfg: cfg, queue: q, eng: eng, source: source, db: db}
}

// Run polls for jobs until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("worker %s started", w.cfg.ID)

	go w.heartbeatLoop(ctx)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker %s stopping", w.cfg.ID)
			return
		case <-ticker.C:
			job, err := w.queue.Dequeue(ctx, w.cfg.ID)
			if err != nil {
				log.Printf("worker %s: dequeue failed: %v", w.cfg.ID, err)
				continue
			}
			if job == nil {
				continue
			}

			if err := w.process(ctx, job); err != nil {
				log.Printf("worker %s: job %s failed: %v", w.cfg.ID, job.ID, err)
				if rqErr := w.queue.Requeue(ctx, job, err.Error()); rqErr != nil {
					log.Printf("worker %s: requeue failed: %v", w.cfg.ID, rqErr)
				}
				continue
			}

			if err := w.queue.Complete(ctx, job, true); err != nil {
				log.Printf("worker %s: completing job %s: %v", w.cfg.ID, job.ID, err)
			}
		}
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.WorkerHeartbeat(ctx, w.cfg.ID); err != nil {
				log.Printf("worker %s: heartbeat failed: %v", w.cfg.ID, err)
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, job *Job) error {
	log.Printf("worker %s: processing job %s (s3://%s/%s)", w.cfg.ID, job.ID, job.Bucket, job.Prefix)

	if err := w.db.UpdateBatchStatus(ctx, job.BatchID, models.BatchStatusRunning); err != nil {
		return fmt.Errorf("marking batch running: %w", err)
	}

	objects, err := w.source.List(ctx, job.Bucket, job.Prefix)
	if err != nil {
		// Listing failures poison the whole job; let it retry.
		_ = w.db.UpdateBatchStatus(ctx, job.BatchID, models.BatchStatusFailed)
		return err
	}

	var (
		docs     []models.Document
		failures []models.DocumentFailure
	)
	for _, obj := range objects {
		doc, err := w.loadDocument(ctx, job.Bucket, obj)
		if err != nil {
			// Per-document failures stay local to the document.
			failures = append(failures, models.DocumentFailure{
				DocumentID: uuid.New(),
				Filename:   path.Base(obj.Key),
				Error:      err.Error(),
			})
			continue
		}
		docs = append(docs, doc)
	}

	w.reportProgress(ctx, job, len(objects), 0, len(failures))

	result := w.eng.ClassifyBatch(ctx, job.BatchID, docs, job.IncludeOccurrences)
	result.Failures = failures
	result.Summary.TotalDocuments = len(objects)
	result.Summary.Failed = len(failures)

	for i := range result.Results {
		if err := w.db.SaveResult(ctx, job.BatchID, &result.Results[i]); err != nil {
			return fmt.Errorf("saving result for %s: %w", result.Results[i].Filename, err)
		}
	}
	if err := w.db.FinishBatch(ctx, models.BatchStatusCompleted, result.Summary); err != nil {
		return fmt.Errorf("finishing batch: %w", err)
	}

	w.reportProgress(ctx, job, len(objects), result.Summary.Processed, len(failures))
	log.Printf("worker %s: job %s done (%d processed, %d failed, %d with phi)",
		w.cfg.ID, job.ID, result.Summary.Processed, len(failures), result.Summary.WithPHI)
	return nil
}

func (w *Worker) loadDocument(ctx context.Context, bucket string, obj ObjectRef) (models.Document, error) {
	data, err := w.source.Fetch(ctx, bucket, obj.Key, w.cfg.MaxObjectBytes)
	if err != nil {
		return models.Document{}, err
	}

	filename := path.Base(obj.Key)
	extracted, err := extract.FromBytes(filename, data)
	if err != nil {
		return models.Document{}, err
	}

	return models.Document{
		ID:         uuid.New(),
		Filename:   filename,
		Text:       extracted.Text,
		Extraction: extracted.Metadata,
	}, nil
}

func (w *Worker) reportProgress(ctx context.Context, job *Job, total, processed, failed int) {
	progress, _ := w.queue.GetProgress(ctx, job.ID)
	if progress == nil {
		progress = &JobProgress{JobID: job.ID, BatchID: job.BatchID}
	}
	progress.Status = models.BatchStatusRunning
	progress.TotalDocuments = total
	progress.Processed = processed
	progress.Failed = failed
	if err := w.queue.UpdateProgress(ctx, progress); err != nil {
		log.Printf("worker %s: progress update failed: %v", w.cfg.ID, err)
	}
}
