package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/cleanmap/reports-service/internal/cache"
	"github.com/cleanmap/reports-service/internal/config"
	"github.com/cleanmap/reports-service/internal/events"
	"github.com/cleanmap/reports-service/internal/http/handlers/reports"
	"github.com/cleanmap/reports-service/internal/http/handlers/users"
	wsHandlers "github.com/cleanmap/reports-service/internal/http/handlers/websocket"
	"github.com/cleanmap/reports-service/internal/http/middleware"
	"github.com/cleanmap/reports-service/internal/intake"
	"github.com/cleanmap/reports-service/internal/query"
	"github.com/cleanmap/reports-service/internal/services/media"
	"github.com/cleanmap/reports-service/internal/staging"
	"github.com/cleanmap/reports-service/internal/storage/postgres"
	"github.com/cleanmap/reports-service/internal/websocket"
)

func main() {
	// load config
	cfg := config.MustLoad()

	// database setup
	storage, err := postgres.NewPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	slog.Info("Connected to Postgres database")

	// blob store for normalized photos
	mediaService, err := media.NewService(cfg)
	if err != nil {
		log.Fatal("Failed to initialize media service:", err)
	}

	// redis backs rate limiting and the geojson response cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	// moderation live feed
	hub := websocket.NewHub()
	go hub.Run()
	publisher := events.NewEventPublisher(hub)

	stagingStore := staging.NewDirStore(cfg.Media.StagingDir)
	orchestrator := intake.NewOrchestrator(stagingStore, storage, mediaService, publisher, cfg)
	querySvc := query.NewService(storage, redisClient)

	// setup server
	router := http.NewServeMux()

	router.HandleFunc("POST /signup", users.SignUp(storage))
	router.HandleFunc("POST /login", users.Login(storage, cfg.JWTSecret))

	auth := middleware.AuthMiddleware(cfg.JWTSecret)
	rateLimits := middleware.NewRateLimitConfig(redisClient)
	router.Handle("POST /reports",
		auth(rateLimits.RateLimitMiddleware("reports")(http.HandlerFunc(reports.Submit(orchestrator)))))

	router.HandleFunc("GET /reports/geojson", reports.GeoJSON(querySvc))
	router.HandleFunc("GET /categories", reports.Categories(storage))
	router.HandleFunc("GET /ws/moderation", wsHandlers.ModerationFeed(hub, cfg.JWTSecret))
	router.HandleFunc("GET /cache/stats", cache.GetCacheStats(redisClient))
	router.Handle("GET /swagger/", httpSwagger.WrapHandler)

	server := http.Server{
		Addr:    cfg.HTTPServer.Address,
		Handler: router,
	}

	log.Println("server started on", cfg.HTTPServer.Address)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %s", err)
		}
	}()

	<-done

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = server.Shutdown(ctx)
	if err != nil {
		slog.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
		return
	}

	slog.Info("Server stopped")
}
