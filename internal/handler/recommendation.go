package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/itsmesammm/spinly/internal/model"
	"github.com/itsmesammm/spinly/internal/service"
	"github.com/itsmesammm/spinly/pkg/response"
)

type RecommendationHandler struct {
	jobs      *service.JobService
	validator *validator.Validate
}

func NewRecommendationHandler(jobs *service.JobService, v *validator.Validate) *RecommendationHandler {
	return &RecommendationHandler{jobs: jobs, validator: v}
}

type createRecommendationRequest struct {
	TrackTitle string  `json:"track_title" validate:"required"`
	ArtistName *string `json:"artist_name"`
	Limit      int     `json:"limit" validate:"omitempty,min=1,max=50"`
}

// Create handles POST /api/recommendations. It persists a pending job,
// hands the pipeline to the worker queue and returns the job handle
// without waiting for the result.
func (h *RecommendationHandler) Create(c *fiber.Ctx) error {
	var req createRecommendationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", err.Error())
	}

	params := model.RecommendationParams{
		TrackTitle: req.TrackTitle,
		ArtistName: req.ArtistName,
		Limit:      req.Limit,
	}

	job, err := h.jobs.CreateRecommendationJob(c.Context(), params, nil)
	if err != nil {
		return response.ServiceError(c, "Failed to create recommendation job")
	}

	return response.Accepted(c, fiber.Map{
		"job_id": job.ID,
		"status": job.Status,
	})
}
