package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/itsmesammm/spinly/internal/catalog"
	"github.com/itsmesammm/spinly/internal/client"
	"github.com/itsmesammm/spinly/internal/config"
	"github.com/itsmesammm/spinly/internal/handler"
	"github.com/itsmesammm/spinly/internal/middleware"
	"github.com/itsmesammm/spinly/internal/service"
	"github.com/itsmesammm/spinly/internal/worker"
)

const testRedisAddr = "localhost:6379"

// testApp holds all components needed for testing.
type testApp struct {
	app   *fiber.App
	store *catalog.Store
	jobs  *service.JobService
}

// newFakeDiscogsServer serves a small fixed slice of the Discogs API:
// one seed release found by free-text search, two neighbours found by
// style search, everything else a 404.
func newFakeDiscogsServer(t *testing.T) *httptest.Server {
	t.Helper()

	releases := map[string]string{
		"100": `{"id":100,"title":"Seed Release","year":2000,"styles":["House","Techno"],
			"labels":[{"name":"X"}],"artists":[{"id":1,"name":"Artist A"}],
			"tracklist":[{"type_":"track","title":"Seed Track","position":"A1"}]}`,
		"200": `{"id":200,"title":"Close Match","year":2000,"styles":["House","Techno"],
			"labels":[{"name":"X"}],"artists":[{"id":2,"name":"Artist B"}],
			"tracklist":[{"type_":"track","title":"Neighbour One","position":"A1"},
				{"type_":"track","title":"Neighbour Two","position":"B1"}]}`,
		"300": `{"id":300,"title":"Loose Match","year":1999,"styles":["House"],
			"labels":[{"name":"Y"}],"artists":[{"id":3,"name":"Artist C"}],
			"tracklist":[{"type_":"track","title":"Neighbour Three","position":"A1"}]}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/database/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case strings.Contains(q, "style:"):
			fmt.Fprint(w, `{"results":[{"id":100},{"id":200},{"id":300}],
				"pagination":{"page":1,"pages":1,"urls":{}}}`)
		case strings.Contains(q, "Seed Track"):
			fmt.Fprint(w, `{"results":[{"id":100,"title":"Artist A - Seed Release"}],
				"pagination":{"page":1,"pages":1,"urls":{}}}`)
		default:
			fmt.Fprint(w, `{"results":[],"pagination":{"page":1,"pages":1,"urls":{}}}`)
		}
	})
	mux.HandleFunc("/releases/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/releases/")
		body, ok := releases[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Release not found."}`)
			return
		}
		fmt.Fprint(w, body)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// setupApp creates a Fiber app wired like main.go, backed by a temp
// catalog database and the fake Discogs server. The worker server is not
// started; tests that need the full async flow use setupFullApp.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	discogsServer := newFakeDiscogsServer(t)

	// Redis (localhost — must be running for the async flow; the rate
	// limiter fails open without it)
	redisClient := redis.NewClient(&redis.Options{
		Addr: testRedisAddr,
		DB:   15, // use DB 15 for tests to avoid collision
	})

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: testRedisAddr,
		DB:   15,
	})
	t.Cleanup(func() { asynqClient.Close() })

	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	validate := validator.New()

	discogsClient := client.NewDiscogsClient(&config.DiscogsConfig{
		BaseURL:           discogsServer.URL,
		UserAgent:         "SpinlyApp/1.0",
		RequestIntervalMS: 1, // no pacing against the fake server
	})

	musicDataService := service.NewMusicDataService(store, discogsClient)
	recommendationService := service.NewRecommendationService(store, discogsClient, musicDataService)
	jobService := service.NewJobService(store, asynqClient)

	recommendationHandler := handler.NewRecommendationHandler(jobService, validate)
	jobHandler := handler.NewJobHandler(jobService)
	releaseHandler := handler.NewReleaseHandler(musicDataService, recommendationService)
	searchHandler := handler.NewSearchHandler(discogsClient)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Very high rate limit so tests don't get blocked
	recommendations := api.Group("/recommendations", rateLimiter.RecommendationsLimit(10000))
	recommendations.Post("/", recommendationHandler.Create)

	jobs := api.Group("/jobs")
	jobs.Get("/:jobId", jobHandler.Status)
	jobs.Get("/:jobId/result", jobHandler.Result)

	releases := api.Group("/releases")
	releases.Get("/:id/similar", releaseHandler.Similar)

	api.Get("/search", searchHandler.Releases)

	return &testApp{app: app, store: store, jobs: jobService}
}

// setupFullApp builds the app plus a running Asynq worker server, for
// end-to-end job flows. Skips when Redis is not reachable.
func setupFullApp(t *testing.T) *testApp {
	t.Helper()

	redisClient := redis.NewClient(&redis.Options{Addr: testRedisAddr, DB: 15})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skipping: redis not reachable at %s: %v", testRedisAddr, err)
	}
	// Leftover tasks from an earlier run would be picked up by our worker.
	redisClient.FlushDB(context.Background())

	ta := setupApp(t)

	discogsServer := newFakeDiscogsServer(t)
	discogsClient := client.NewDiscogsClient(&config.DiscogsConfig{
		BaseURL:           discogsServer.URL,
		UserAgent:         "SpinlyApp/1.0",
		RequestIntervalMS: 1,
	})
	musicDataService := service.NewMusicDataService(ta.store, discogsClient)
	recommendationService := service.NewRecommendationService(ta.store, discogsClient, musicDataService)

	asynqSrv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: testRedisAddr, DB: 15},
		asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{service.QueueRecommendations: 1},
			LogLevel:    asynq.WarnLevel,
		},
	)

	recommendationWorker := worker.NewRecommendationWorker(ta.jobs, recommendationService)
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeRecommendation, recommendationWorker.ProcessTask)

	if err := asynqSrv.Start(mux); err != nil {
		t.Fatalf("failed to start asynq worker: %v", err)
	}
	t.Cleanup(asynqSrv.Shutdown)

	return ta
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
