package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/itsmesammm/spinly/internal/client"
	"github.com/itsmesammm/spinly/pkg/response"
)

// SearchHandler proxies release searches to the metadata provider.
type SearchHandler struct {
	discogs client.ReleaseSource
}

func NewSearchHandler(discogs client.ReleaseSource) *SearchHandler {
	return &SearchHandler{discogs: discogs}
}

// Releases handles GET /api/search?q=...&page=N.
func (h *SearchHandler) Releases(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return response.ValidationError(c, "Query parameter 'q' is required", nil)
	}
	page := c.QueryInt("page", 1)

	results, err := h.discogs.SearchReleases(c.Context(), query, page, 50)
	if err != nil {
		var upstream *client.UpstreamError
		if errors.As(err, &upstream) {
			return response.UpstreamError(c, upstream.Error())
		}
		return response.ServiceError(c, "Search failed")
	}
	return response.OK(c, results)
}
