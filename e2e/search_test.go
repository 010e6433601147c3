package e2e

import (
	"net/http"
	"testing"
)

func TestSearchReleases(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/search?q=Seed+Track", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	results, ok := body["results"].([]interface{})
	if !ok {
		t.Fatalf("expected results array, got %v", body)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestSearchReleases_MissingQuery(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/search", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)

	body := parseJSON(t, resp)
	errObj, _ := body["error"].(map[string]interface{})
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %v", errObj["code"])
	}
}
