package model

import (
	"encoding/json"
	"time"
)

// JobStatus tracks the lifecycle of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether a status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job may move between two statuses.
// The only legal moves are pending→running, running→completed and
// running→failed; terminal states are immutable.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusRunning
	case JobStatusRunning:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// Job types
const (
	JobTypeRecommendation = "recommendation"
)

// Job represents a background job in the system. Parameters and Result
// are free-form JSON payloads keyed by Type; the orchestrator that owns
// the job's execution is the only writer.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      JobStatus       `json:"status"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	UserID      *string         `json:"userId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	DurationS   *float64        `json:"durationS,omitempty"`
}

// RecommendationParams is the Parameters payload for recommendation jobs.
type RecommendationParams struct {
	TrackTitle string  `json:"trackTitle"`
	ArtistName *string `json:"artistName,omitempty"`
	Limit      int     `json:"limit,omitempty"`
}

// RecommendationResult is the Result payload written when a
// recommendation job completes.
type RecommendationResult struct {
	TrackIDs []int64 `json:"track_ids"`
}

// JobError is the Result payload written when a job fails.
type JobError struct {
	Error string `json:"error"`
}
