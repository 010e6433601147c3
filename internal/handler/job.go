package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/itsmesammm/spinly/internal/model"
	"github.com/itsmesammm/spinly/internal/service"
	"github.com/itsmesammm/spinly/pkg/response"
)

type JobHandler struct {
	jobs *service.JobService
}

func NewJobHandler(jobs *service.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// TrackRecommendation is the simplified track shape returned to callers.
type TrackRecommendation struct {
	TrackID          int64  `json:"track_id"`
	Title            string `json:"title"`
	ArtistName       string `json:"artist_name"`
	DiscogsReleaseID int64  `json:"discogs_release_id"`
}

type RecommendationResponse struct {
	Recommendations []TrackRecommendation `json:"recommendations"`
}

// Status handles GET /api/jobs/:jobId.
func (h *JobHandler) Status(c *fiber.Ctx) error {
	job, err := h.jobs.Get(c.Context(), c.Params("jobId"))
	if err != nil {
		var notFound *service.NotFoundError
		if errors.As(err, &notFound) {
			return response.NotFound(c, notFound.Error())
		}
		return response.ServiceError(c, "Failed to load job")
	}
	return response.OK(c, job)
}

// Result handles GET /api/jobs/:jobId/result. A job that is still
// pending or running reports not-ready; a completed job resolves to the
// stored track list in its stored order.
func (h *JobHandler) Result(c *fiber.Ctx) error {
	tracks, err := h.jobs.GetResult(c.Context(), c.Params("jobId"))
	if err != nil {
		var notFound *service.NotFoundError
		switch {
		case errors.As(err, &notFound):
			return response.NotFound(c, notFound.Error())
		case errors.Is(err, service.ErrJobNotReady):
			return response.JobNotReady(c, err.Error())
		default:
			return response.ServiceError(c, "Failed to load job result")
		}
	}
	return response.OK(c, formatTracks(tracks))
}

func formatTracks(tracks []model.Track) RecommendationResponse {
	recommendations := make([]TrackRecommendation, 0, len(tracks))
	for _, track := range tracks {
		rec := TrackRecommendation{
			TrackID:    track.ID,
			Title:      track.Title,
			ArtistName: "Unknown Artist",
		}
		if len(track.Artists) > 0 {
			rec.ArtistName = track.Artists[0].Name
		}
		if track.Release != nil {
			rec.DiscogsReleaseID = track.Release.DiscogsID
		}
		recommendations = append(recommendations, rec)
	}
	return RecommendationResponse{Recommendations: recommendations}
}
