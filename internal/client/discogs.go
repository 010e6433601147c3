package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/itsmesammm/spinly/internal/config"
)

// ReleaseSource defines the metadata provider operations the pipeline
// composes: free-text/style search and full release lookups.
type ReleaseSource interface {
	SearchReleases(ctx context.Context, query string, page, perPage int) (*SearchResponse, error)
	SearchReleasesAllPages(ctx context.Context, query string, maxPages, perPage int) ([]SearchResult, error)
	GetRelease(ctx context.Context, releaseID int64) (*ReleaseResponse, error)
}

// UpstreamError is a non-success response from the Discogs API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("discogs API error (status %d): %s", e.StatusCode, e.Body)
}

// DiscogsClient implements ReleaseSource against the Discogs HTTP API.
// All requests share a single rate limiter, so consecutive calls are
// spaced out to stay inside the per-minute quota.
type DiscogsClient struct {
	httpClient *http.Client
	baseURL    string
	key        string
	secret     string
	userAgent  string
	limiter    *rate.Limiter
}

// SearchResult is one entry from a Discogs database search.
type SearchResult struct {
	ID    int64    `json:"id"`
	Title string   `json:"title"`
	Year  string   `json:"year"`
	Label []string `json:"label"`
	Style []string `json:"style"`
}

// SearchResponse is a page of Discogs search results.
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	Pagination Pagination     `json:"pagination"`
}

// Pagination describes a search response's paging state.
type Pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	URLs  struct {
		Next string `json:"next"`
	} `json:"urls"`
}

// ReleaseArtist is an artist reference on a release or track.
// Discogs uses id 0 for unlinked artists.
type ReleaseArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ReleaseLabel is a label reference on a release.
type ReleaseLabel struct {
	Name string `json:"name"`
}

// TracklistItem is one tracklist entry. Type is "track" for playable
// tracks; headings and index entries use other values.
type TracklistItem struct {
	Type     string          `json:"type_"`
	Title    string          `json:"title"`
	Position string          `json:"position"`
	Artists  []ReleaseArtist `json:"artists"`
}

// ReleaseResponse is a full Discogs release.
type ReleaseResponse struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Year      int             `json:"year"`
	Styles    []string        `json:"styles"`
	Labels    []ReleaseLabel  `json:"labels"`
	Artists   []ReleaseArtist `json:"artists"`
	Tracklist []TracklistItem `json:"tracklist"`
}

// NewDiscogsClient creates a Discogs API client.
func NewDiscogsClient(cfg *config.DiscogsConfig) *DiscogsClient {
	interval := time.Duration(cfg.RequestIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 1100 * time.Millisecond
	}
	return &DiscogsClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:   cfg.BaseURL,
		key:       cfg.Key,
		secret:    cfg.Secret,
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
	}
}

// SearchReleases fetches one page of release search results.
func (c *DiscogsClient) SearchReleases(ctx context.Context, query string, page, perPage int) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "release")
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	var result SearchResponse
	if err := c.get(ctx, "/database/search", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchReleasesAllPages walks search pages sequentially, accumulating
// results. A page error stops the walk and whatever was gathered so far
// is returned; pages are never retried. A 404 mid-pagination means the
// provider ran out of results, not that something went wrong.
func (c *DiscogsClient) SearchReleasesAllPages(ctx context.Context, query string, maxPages, perPage int) ([]SearchResult, error) {
	var results []SearchResult
	for page := 1; page <= maxPages; page++ {
		pageData, err := c.SearchReleases(ctx, query, page, perPage)
		if err != nil {
			var upstream *UpstreamError
			if errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound {
				break
			}
			log.Printf("[Discogs API] search %q page %d failed, returning %d accumulated results: %v",
				query, page, len(results), err)
			break
		}
		results = append(results, pageData.Results...)
		if pageData.Pagination.URLs.Next == "" {
			break
		}
	}
	return results, nil
}

// GetRelease fetches a full release by Discogs id.
func (c *DiscogsClient) GetRelease(ctx context.Context, releaseID int64) (*ReleaseResponse, error) {
	var result ReleaseResponse
	if err := c.get(ctx, fmt.Sprintf("/releases/%d", releaseID), url.Values{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// get sends a paced GET request and parses the JSON response.
func (c *DiscogsClient) get(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	if c.key != "" {
		params.Set("key", c.key)
		params.Set("secret", c.secret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	log.Printf("[Discogs API] → GET %s", c.baseURL+endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Discogs API] ✗ GET %s — request failed: %v", endpoint, err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Discogs API] ← %d GET %s", resp.StatusCode, endpoint)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
