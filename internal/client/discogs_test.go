package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/itsmesammm/spinly/internal/config"
)

func newTestClient(serverURL string) *DiscogsClient {
	return NewDiscogsClient(&config.DiscogsConfig{
		BaseURL:           serverURL,
		Key:               "test-key",
		Secret:            "test-secret",
		UserAgent:         "SpinlyApp/1.0",
		RequestIntervalMS: 1,
	})
}

func TestSearchReleasesSendsCredentials(t *testing.T) {
	var gotQuery, gotKey, gotSecret, gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("key")
		gotSecret = r.URL.Query().Get("secret")
		gotUserAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"results":[{"id":42,"title":"Artist - Title"}],"pagination":{"page":1,"pages":1,"urls":{}}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.SearchReleases(context.Background(), "Xtal Aphex Twin", 1, 50)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 42 {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	if gotQuery != "Xtal Aphex Twin" {
		t.Fatalf("unexpected query param: %q", gotQuery)
	}
	if gotKey != "test-key" || gotSecret != "test-secret" {
		t.Fatalf("credentials not forwarded: key=%q secret=%q", gotKey, gotSecret)
	}
	if gotUserAgent != "SpinlyApp/1.0" {
		t.Fatalf("unexpected user agent: %q", gotUserAgent)
	}
}

func TestSearchReleasesUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"message":"slow down"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.SearchReleases(context.Background(), "anything", 1, 50)
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", upstream.StatusCode)
	}
}

func TestSearchReleasesAllPagesFollowsNext(t *testing.T) {
	pages := map[string]string{
		"1": `{"results":[{"id":1},{"id":2}],"pagination":{"page":1,"pages":2,"urls":{"next":"yes"}}}`,
		"2": `{"results":[{"id":3}],"pagination":{"page":2,"pages":2,"urls":{}}}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pages[r.URL.Query().Get("page")])
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	results, err := client.SearchReleasesAllPages(context.Background(), "style:\"House\"", 3, 50)
	if err != nil {
		t.Fatalf("search all pages: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results across pages, got %d", len(results))
	}
	if results[0].ID != 1 || results[2].ID != 3 {
		t.Fatalf("results out of page order: %+v", results)
	}
}

func TestSearchReleasesAllPagesStopsOnErrorKeepingResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"results":[{"id":1},{"id":2}],"pagination":{"page":1,"pages":5,"urls":{"next":"yes"}}}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	results, err := client.SearchReleasesAllPages(context.Background(), "q", 5, 50)
	if err != nil {
		t.Fatalf("a failed page must not fail the walk: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected the accumulated first page, got %d results", len(results))
	}
}

func TestSearchReleasesAllPagesTreats404AsExhausted(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"results":[{"id":1}],"pagination":{"page":1,"pages":9,"urls":{"next":"yes"}}}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	results, err := client.SearchReleasesAllPages(context.Background(), "q", 9, 50)
	if err != nil {
		t.Fatalf("404 mid-pagination means done, not an error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if calls != 2 {
		t.Fatalf("expected pagination to stop after the 404, got %d calls", calls)
	}
}

func TestGetRelease(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/releases/249504" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"id": 249504,
			"title": "Selected Ambient Works 85-92",
			"year": 1992,
			"styles": ["Ambient", "Techno"],
			"labels": [{"name": "Apollo"}],
			"artists": [{"id": 45, "name": "Aphex Twin"}],
			"tracklist": [
				{"type_": "track", "title": "Xtal", "position": "A1"},
				{"type_": "heading", "title": "Side B", "position": ""}
			]
		}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	release, err := client.GetRelease(context.Background(), 249504)
	if err != nil {
		t.Fatalf("get release: %v", err)
	}
	if release.Title != "Selected Ambient Works 85-92" || release.Year != 1992 {
		t.Fatalf("unexpected release: %+v", release)
	}
	if len(release.Styles) != 2 || len(release.Tracklist) != 2 {
		t.Fatalf("unexpected release detail: %+v", release)
	}
	if release.Tracklist[0].Type != "track" || release.Tracklist[1].Type != "heading" {
		t.Fatalf("tracklist type_ field not parsed: %+v", release.Tracklist)
	}
}
