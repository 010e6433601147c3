package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/itsmesammm/spinly/internal/client"
	"github.com/itsmesammm/spinly/internal/model"
	"github.com/itsmesammm/spinly/internal/service"
	"github.com/itsmesammm/spinly/pkg/response"
)

type ReleaseHandler struct {
	music           *service.MusicDataService
	recommendations *service.RecommendationService
}

func NewReleaseHandler(music *service.MusicDataService, recommendations *service.RecommendationService) *ReleaseHandler {
	return &ReleaseHandler{music: music, recommendations: recommendations}
}

// SimilarRelease pairs a catalog release with its similarity score.
type SimilarRelease struct {
	Release *model.Release `json:"release"`
	Score   float64        `json:"score"`
}

// Similar handles GET /api/releases/:id/similar. The id is a Discogs
// release id; the release is hydrated into the catalog if needed, then
// ranked against everything already there.
func (h *ReleaseHandler) Similar(c *fiber.Ctx) error {
	releaseID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return response.ValidationError(c, "Invalid release id", nil)
	}

	limit := c.QueryInt("limit", 10)
	minScore := c.QueryFloat("min_score", 0.5)

	base, err := h.music.GetOrCreateReleaseWithTracks(c.Context(), releaseID)
	if err != nil {
		var upstream *client.UpstreamError
		switch {
		case errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound:
			return response.NotFound(c, "Release not found")
		case errors.As(err, &upstream):
			return response.UpstreamError(c, upstream.Error())
		default:
			return response.ServiceError(c, "Failed to load release")
		}
	}

	similar, err := h.recommendations.SimilarReleasesInCatalog(c.Context(), base, minScore, limit)
	if err != nil {
		return response.ServiceError(c, "Failed to rank similar releases")
	}

	results := make([]SimilarRelease, 0, len(similar))
	for _, candidate := range similar {
		results = append(results, SimilarRelease{Release: candidate.Release, Score: candidate.Score})
	}
	return response.OK(c, results)
}
