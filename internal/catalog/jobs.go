package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itsmesammm/spinly/internal/model"
)

// ErrInvalidTransition is returned when a job status change is not one
// of the legal moves (pending→running, running→completed/failed).
var ErrInvalidTransition = errors.New("invalid job status transition")

const jobColumns = "id, job_type, status, parameters, result, user_id, created_at, started_at, completed_at, duration_s"

// CreateJob persists a new job row.
func (s *Store) CreateJob(ctx context.Context, job *model.Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Type,
		string(job.Status),
		nullableRawJSON(job.Parameters),
		nullableRawJSON(job.Result),
		nullableString(job.UserID),
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		nil,
		nil,
		nil,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by id, or nil when the id is unknown.
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// MarkJobRunning moves a pending job to running and records its start time.
func (s *Store) MarkJobRunning(ctx context.Context, id string, startedAt time.Time) error {
	return s.transitionJob(ctx, id, model.JobStatusRunning, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, started_at = ? WHERE id = ?`,
			string(model.JobStatusRunning), startedAt.UTC().Format(time.RFC3339Nano), id)
		return err
	})
}

// CompleteJob moves a running job to completed with its result payload.
func (s *Store) CompleteJob(ctx context.Context, id string, result json.RawMessage, completedAt time.Time, durationS float64) error {
	return s.transitionJob(ctx, id, model.JobStatusCompleted, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, result = ?, completed_at = ?, duration_s = ? WHERE id = ?`,
			string(model.JobStatusCompleted), string(result),
			completedAt.UTC().Format(time.RFC3339Nano), durationS, id)
		return err
	})
}

// FailJob moves a running job to failed with its error payload.
func (s *Store) FailJob(ctx context.Context, id string, result json.RawMessage, completedAt time.Time, durationS float64) error {
	return s.transitionJob(ctx, id, model.JobStatusFailed, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, result = ?, completed_at = ?, duration_s = ? WHERE id = ?`,
			string(model.JobStatusFailed), string(result),
			completedAt.UTC().Format(time.RFC3339Nano), durationS, id)
		return err
	})
}

// transitionJob applies a status change inside a transaction, rejecting
// any move the state machine does not allow.
func (s *Store) transitionJob(ctx context.Context, id string, to model.JobStatus, update func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("job %s: %w", id, sql.ErrNoRows)
	}
	if err != nil {
		return fmt.Errorf("read job status: %w", err)
	}

	if !model.CanTransition(model.JobStatus(current), to) {
		return fmt.Errorf("job %s: %s -> %s: %w", id, current, to, ErrInvalidTransition)
	}

	if err := update(tx); err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

func scanJob(row rowScanner) (*model.Job, error) {
	var job model.Job
	var status string
	var parameters, result, userID sql.NullString
	var createdAt string
	var startedAt, completedAt sql.NullString
	var durationS sql.NullFloat64

	err := row.Scan(&job.ID, &job.Type, &status, &parameters, &result, &userID,
		&createdAt, &startedAt, &completedAt, &durationS)
	if err != nil {
		return nil, err
	}

	job.Status = model.JobStatus(status)
	if parameters.Valid {
		job.Parameters = json.RawMessage(parameters.String)
	}
	if result.Valid {
		job.Result = json.RawMessage(result.String)
	}
	if userID.Valid {
		job.UserID = &userID.String
	}

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	job.CreatedAt = created

	if startedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		job.CompletedAt = &t
	}
	if durationS.Valid {
		job.DurationS = &durationS.Float64
	}
	return &job, nil
}

func nullableRawJSON(v json.RawMessage) any {
	if len(v) == 0 {
		return nil
	}
	return string(v)
}
