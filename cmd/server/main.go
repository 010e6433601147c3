package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
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

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Open the catalog database
	store, err := catalog.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open catalog database: %v", err)
	}
	defer store.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize Discogs client
	discogsClient := client.NewDiscogsClient(&cfg.Discogs)

	// Initialize services
	musicDataService := service.NewMusicDataService(store, discogsClient)
	recommendationService := service.NewRecommendationService(store, discogsClient, musicDataService)
	jobService := service.NewJobService(store, asynqClient)

	// Initialize handlers
	recommendationHandler := handler.NewRecommendationHandler(jobService, validate)
	jobHandler := handler.NewJobHandler(jobService)
	releaseHandler := handler.NewReleaseHandler(musicDataService, recommendationService)
	searchHandler := handler.NewSearchHandler(discogsClient)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api")

	recommendations := api.Group("/recommendations",
		rateLimiter.RecommendationsLimit(cfg.RateLimit.RecommendationsPerMin))
	recommendations.Post("/", recommendationHandler.Create)

	jobs := api.Group("/jobs")
	jobs.Get("/:jobId", jobHandler.Status)
	jobs.Get("/:jobId/result", jobHandler.Result)

	releases := api.Group("/releases")
	releases.Get("/:id/similar", releaseHandler.Similar)

	api.Get("/search", searchHandler.Releases)

	// Start Asynq worker server
	go startWorkerServer(cfg, jobService, recommendationService)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, jobService *service.JobService, recommendationService *service.RecommendationService) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Each job serializes its own provider calls; one at a time
			// keeps the shared Discogs quota predictable.
			Concurrency: 1,
			Queues: map[string]int{
				service.QueueRecommendations: 1,
			},
		},
	)

	recommendationWorker := worker.NewRecommendationWorker(jobService, recommendationService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeRecommendation, recommendationWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
