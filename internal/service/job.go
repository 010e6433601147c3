package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/itsmesammm/spinly/internal/catalog"
	"github.com/itsmesammm/spinly/internal/model"
)

const (
	TaskTypeRecommendation = "recommendation:generate"

	// QueueRecommendations is the asynq queue recommendation tasks run on.
	QueueRecommendations = "recommendations"
)

// TaskPayload is the envelope asynq carries for a job. Only the id goes
// on the wire; parameters live on the persisted job record.
type TaskPayload struct {
	JobID string `json:"jobId"`
}

// JobService owns job records and their dispatch. It is the sole writer
// of job state; any number of pollers may read concurrently.
type JobService struct {
	store       *catalog.Store
	asynqClient *asynq.Client
}

func NewJobService(store *catalog.Store, asynqClient *asynq.Client) *JobService {
	return &JobService{store: store, asynqClient: asynqClient}
}

// CreateRecommendationJob persists a pending job and enqueues its task.
// It returns immediately; the pipeline runs on the worker server. Tasks
// are never retried: a failed run is recorded on the job record and that
// is the end of it.
func (s *JobService) CreateRecommendationJob(ctx context.Context, params model.RecommendationParams, userID *string) (*model.Job, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal job parameters: %w", err)
	}

	job := &model.Job{
		ID:         uuid.New().String(),
		Type:       model.JobTypeRecommendation,
		Status:     model.JobStatusPending,
		Parameters: paramsJSON,
		UserID:     userID,
		CreatedAt:  time.Now(),
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	payload, err := json.Marshal(TaskPayload{JobID: job.ID})
	if err != nil {
		return nil, fmt.Errorf("marshal task payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeRecommendation, payload)
	if _, err := s.asynqClient.Enqueue(task,
		asynq.Queue(QueueRecommendations),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	); err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	return job, nil
}

// Get returns a job record by id.
func (s *JobService) Get(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, &NotFoundError{Resource: "job", ID: jobID}
	}
	return job, nil
}

// MarkRunning transitions a pending job to running.
func (s *JobService) MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error {
	return s.store.MarkJobRunning(ctx, jobID, startedAt)
}

// Complete records a successful run's track ids and duration.
func (s *JobService) Complete(ctx context.Context, jobID string, trackIDs []int64, durationS float64) error {
	if trackIDs == nil {
		trackIDs = []int64{}
	}
	result, err := json.Marshal(model.RecommendationResult{TrackIDs: trackIDs})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.store.CompleteJob(ctx, jobID, result, time.Now(), durationS)
}

// Fail records a failed run's error message and duration.
func (s *JobService) Fail(ctx context.Context, jobID string, message string, durationS float64) error {
	result, err := json.Marshal(model.JobError{Error: message})
	if err != nil {
		return fmt.Errorf("marshal error result: %w", err)
	}
	return s.store.FailJob(ctx, jobID, result, time.Now(), durationS)
}

// GetResult resolves a completed job's stored track ids against the
// catalog, preserving their stored order and silently dropping ids that
// no longer resolve. A job that is not completed yet reports
// ErrJobNotReady.
func (s *JobService) GetResult(ctx context.Context, jobID string) ([]model.Track, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrJobNotReady)
	}

	var result model.RecommendationResult
	if len(job.Result) > 0 {
		if err := json.Unmarshal(job.Result, &result); err != nil {
			return nil, fmt.Errorf("unmarshal job result: %w", err)
		}
	}
	if len(result.TrackIDs) == 0 {
		return nil, nil
	}

	return s.store.TracksByIDs(ctx, result.TrackIDs)
}
