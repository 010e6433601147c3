package service

import (
	"errors"
	"fmt"
)

// NotFoundError marks a resource that could not be resolved: a seed
// track with no Discogs match, an unknown job id, a missing release.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %s not found", e.Resource, e.ID)
}

// ErrJobNotReady is returned when a job's result is requested before the
// job reaches a completed state. Distinct from not-found: the job exists
// but is still pending or running (or it failed).
var ErrJobNotReady = errors.New("job result not ready")
