package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/itsmesammm/spinly/internal/model"
	"github.com/itsmesammm/spinly/internal/service"
)

// RecommendationWorker runs the recommendation pipeline for queued jobs.
type RecommendationWorker struct {
	jobs            *service.JobService
	recommendations *service.RecommendationService
}

func NewRecommendationWorker(jobs *service.JobService, recommendations *service.RecommendationService) *RecommendationWorker {
	return &RecommendationWorker{jobs: jobs, recommendations: recommendations}
}

// ProcessTask handles one recommendation task. Pipeline errors are fully
// absorbed here: they are written to the job record as a FAILED status
// and never returned to asynq, so a failed run is terminal.
func (w *RecommendationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal task payload: %w", err)
	}
	jobID := payload.JobID

	job, err := w.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	var params model.RecommendationParams
	if err := json.Unmarshal(job.Parameters, &params); err != nil {
		return fmt.Errorf("unmarshal job %s parameters: %w", jobID, err)
	}

	log.Printf("[Job %s] starting recommendation pipeline for %q", jobID, params.TrackTitle)
	start := time.Now()

	if err := w.jobs.MarkRunning(ctx, jobID, start); err != nil {
		return fmt.Errorf("mark job %s running: %w", jobID, err)
	}

	tracks, err := w.recommendations.TrackRecommendations(ctx, params.TrackTitle, params.ArtistName, params.Limit)
	duration := time.Since(start).Seconds()

	if err != nil {
		log.Printf("[Job %s] pipeline failed after %.2fs: %v", jobID, duration, err)
		if failErr := w.jobs.Fail(ctx, jobID, err.Error(), duration); failErr != nil {
			log.Printf("[Job %s] failed to record failure: %v", jobID, failErr)
		}
		return nil
	}

	trackIDs := make([]int64, len(tracks))
	for i, track := range tracks {
		trackIDs[i] = track.ID
	}

	log.Printf("[Job %s] pipeline completed in %.2fs with %d tracks", jobID, duration, len(trackIDs))
	if err := w.jobs.Complete(ctx, jobID, trackIDs, duration); err != nil {
		log.Printf("[Job %s] failed to record completion: %v", jobID, err)
	}
	return nil
}
