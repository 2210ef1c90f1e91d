// Package queue is the Redis-backed batch job queue. Jobs are held in a
// sorted set scored by priority and age; workers pop the lowest score,
// park the job in a processing set, and heartbeat while they run it.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fredhutch/phiscan/internal/models"
)

const (
	JobsQueue          = "phiscan:jobs:classify"
	JobsProcessing     = "phiscan:jobs:processing"
	JobsCompleted      = "phiscan:jobs:completed"
	JobsFailed         = "phiscan:jobs:failed"
	WorkerHeartbeatKey = "phiscan:workers:heartbeat"
	JobProgressPrefix  = "phiscan:job:progress:"

	maxAttempts = 3
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

type Queue struct {
	client *redis.Client
}

func New(cfg Config) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Job asks a worker to classify every document under an S3 prefix.
type Job struct {
	ID                 uuid.UUID `json:"id"`
	BatchID            uuid.UUID `json:"batch_id"`
	Bucket             string    `json:"bucket"`
	Prefix             string    `json:"prefix,omitempty"`
	Region             string    `json:"region,omitempty"`
	IncludeOccurrences bool      `json:"include_occurrences,omitempty"`
	Priority           int       `json:"priority"`
	CreatedAt          time.Time `json:"created_at"`
	Attempts           int       `json:"attempts"`
}

type JobProgress struct {
	JobID          uuid.UUID          `json:"job_id"`
	BatchID        uuid.UUID          `json:"batch_id"`
	Status         models.BatchStatus `json:"status"`
	TotalDocuments int                `json:"total_documents"`
	Processed      int                `json:"processed"`
	Failed         int                `json:"failed"`
	WithPHI        int                `json:"with_phi"`
	Errors         []string           `json:"errors,omitempty"`
	StartedAt      *time.Time         `json:"started_at,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	WorkerID       string             `json:"worker_id,omitempty"`
}

func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.CreatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}

	score := float64(time.Now().Unix()) - float64(job.Priority*1000)

	if err := q.client.ZAdd(ctx, JobsQueue, redis.Z{
		Score:  score,
		Member: string(data),
	}).Err(); err != nil {
		return fmt.Errorf("enqueueing job: %w", err)
	}

	progress := &JobProgress{
		JobID:   job.ID,
		BatchID: job.BatchID,
		Status:  models.BatchStatusPending,
	}
	if err := q.UpdateProgress(ctx, progress); err != nil {
		return fmt.Errorf("initializing progress: %w", err)
	}

	return nil
}

func (q *Queue) Dequeue(ctx context.Context, workerID string) (*Job, error) {
	results, err := q.client.ZPopMin(ctx, JobsQueue, 1).Result()
	if err != nil {
		return nil, fmt.Errorf("dequeuing job: %w", err)
	}

	if len(results) == 0 {
		return nil, nil // No jobs available
	}

	var job Job
	if err := json.Unmarshal([]byte(results[0].Member.(string)), &job); err != nil {
		return nil, fmt.Errorf("unmarshaling job: %w", err)
	}

	data, _ := json.Marshal(job)
	if err := q.client.SAdd(ctx, JobsProcessing, string(data)).Err(); err != nil {
		q.client.ZAdd(ctx, JobsQueue, redis.Z{
			Score:  results[0].Score,
			Member: results[0].Member,
		})
		return nil, fmt.Errorf("marking job as processing: %w", err)
	}

	now := time.Now()
	progress := &JobProgress{
		JobID:     job.ID,
		BatchID:   job.BatchID,
		Status:    models.BatchStatusRunning,
		StartedAt: &now,
		WorkerID:  workerID,
	}
	_ = q.UpdateProgress(ctx, progress)

	return &job, nil
}

func (q *Queue) Complete(ctx context.Context, job *Job, success bool) error {
	data, _ := json.Marshal(job)

	q.client.SRem(ctx, JobsProcessing, string(data))

	targetSet := JobsCompleted
	status := models.BatchStatusCompleted
	if !success {
		targetSet = JobsFailed
		status = models.BatchStatusFailed
	}

	if err := q.client.SAdd(ctx, targetSet, string(data)).Err(); err != nil {
		return fmt.Errorf("marking job complete: %w", err)
	}

	now := time.Now()
	progress, _ := q.GetProgress(ctx, job.ID)
	if progress == nil {
		progress = &JobProgress{JobID: job.ID, BatchID: job.BatchID}
	}
	progress.Status = status
	progress.CompletedAt = &now
	_ = q.UpdateProgress(ctx, progress)

	return nil
}

func (q *Queue) Requeue(ctx context.Context, job *Job, errorMsg string) error {
	data, _ := json.Marshal(job)

	q.client.SRem(ctx, JobsProcessing, string(data))

	job.Attempts++

	if job.Attempts >= maxAttempts {
		return q.Complete(ctx, job, false)
	}

	newData, _ := json.Marshal(job)
	backoff := time.Duration(job.Attempts*30) * time.Second
	score := float64(time.Now().Add(backoff).Unix())

	if err := q.client.ZAdd(ctx, JobsQueue, redis.Z{
		Score:  score,
		Member: string(newData),
	}).Err(); err != nil {
		return fmt.Errorf("requeuing job: %w", err)
	}

	progress, _ := q.GetProgress(ctx, job.ID)
	if progress == nil {
		progress = &JobProgress{JobID: job.ID, BatchID: job.BatchID}
	}
	progress.Status = models.BatchStatusPending
	progress.Errors = append(progress.Errors, errorMsg)
	_ = q.UpdateProgress(ctx, progress)

	return nil
}

func (q *Queue) UpdateProgress(ctx context.Context, progress *JobProgress) error {
	progress.UpdatedAt = time.Now()
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshaling progress: %w", err)
	}

	key := JobProgressPrefix + progress.JobID.String()
	if err := q.client.Set(ctx, key, string(data), 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("updating progress: %w", err)
	}

	return nil
}

func (q *Queue) GetProgress(ctx context.Context, jobID uuid.UUID) (*JobProgress, error) {
	key := JobProgressPrefix + jobID.String()
	data, err := q.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting progress: %w", err)
	}

	var progress JobProgress
	if err := json.Unmarshal([]byte(data), &progress); err != nil {
		return nil, fmt.Errorf("unmarshaling progress: %w", err)
	}

	return &progress, nil
}

func (q *Queue) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)

	pending, _ := q.client.ZCard(ctx, JobsQueue).Result()
	processing, _ := q.client.SCard(ctx, JobsProcessing).Result()
	completed, _ := q.client.SCard(ctx, JobsCompleted).Result()
	failed, _ := q.client.SCard(ctx, JobsFailed).Result()

	stats["pending"] = pending
	stats["processing"] = processing
	stats["completed"] = completed
	stats["failed"] = failed

	return stats, nil
}

func (q *Queue) WorkerHeartbeat(ctx context.Context, workerID string) error {
	return q.client.HSet(ctx, WorkerHeartbeatKey, workerID, time.Now().Unix()).Err()
}

func (q *Queue) ActiveWorkers(ctx context.Context, timeout time.Duration) ([]string, error) {
	workers, err := q.client.HGetAll(ctx, WorkerHeartbeatKey).Result()
	if err != nil {
		return nil, fmt.Errorf("getting workers: %w", err)
	}

	var active []string
	cutoff := time.Now().Add(-timeout).Unix()

	for workerID, lastSeen := range workers {
		var ts int64
		_, _ = fmt.Sscanf(lastSeen, "%d", &ts)
		if ts > cutoff {
			active = append(active, workerID)
		}
	}

	return active, nil
}

// CleanupStaleJobs requeues processing jobs whose progress has gone
// quiet, recovering work from crashed workers.
func (q *Queue) CleanupStaleJobs(ctx context.Context, timeout time.Duration) (int, error) {
	jobs, err := q.client.SMembers(ctx, JobsProcessing).Result()
	if err != nil {
		return 0, fmt.Errorf("getting processing jobs: %w", err)
	}

	cleaned := 0
	for _, jobData := range jobs {
		var job Job
		if err := json.Unmarshal([]byte(jobData), &job); err != nil {
			continue
		}

		progress, err := q.GetProgress(ctx, job.ID)
		if err != nil || progress == nil {
			continue
		}

		if time.Since(progress.UpdatedAt) > timeout {
			q.client.SRem(ctx, JobsProcessing, jobData)

			job.Attempts++
			if job.Attempts < maxAttempts {
				newData, _ := json.Marshal(job)
				q.client.ZAdd(ctx, JobsQueue, redis.Z{
					Score:  float64(time.Now().Unix()),
					Member: string(newData),
				})
			} else {
				q.client.SAdd(ctx, JobsFailed, jobData)
			}
			cleaned++
		}
	}

	return cleaned, nil
}
