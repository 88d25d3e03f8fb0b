package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/xtrntr/auction/internal/api"
	"github.com/xtrntr/auction/internal/auth"
	"github.com/xtrntr/auction/internal/bidding"
	"github.com/xtrntr/auction/internal/config"
	"github.com/xtrntr/auction/internal/db"
	"github.com/xtrntr/auction/internal/expiration"
	"github.com/xtrntr/auction/internal/feed"
	"github.com/xtrntr/auction/internal/lifecycle"
	"github.com/xtrntr/auction/internal/logging"
)

// Main entry point: sets up database, services, scheduler and HTTP server
func main() {
	cfg := config.LoadConfig()
	logging.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(ctx, db.Options{
		PrimaryURL:  cfg.DatabaseURL,
		ReplicaURLs: cfg.ReplicaURLs,
		MaxConns:    cfg.MaxConns,
		LockTimeout: cfg.LockTimeout,
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", map[string]any{"error": err.Error()})
	}
	defer database.Close(context.Background())

	if err := database.Ping(ctx); err != nil {
		logging.Fatal("Database unreachable", map[string]any{"error": err.Error()})
	}
	if err := database.Migrate(ctx); err != nil {
		logging.Fatal("Failed to migrate database", map[string]any{"error": err.Error()})
	}

	authService := auth.NewAuthService(database, cfg.JWTSecret)
	engine := bidding.NewEngine(database)
	manager := lifecycle.NewManager(database)
	pipeline := expiration.NewPipeline(database, expiration.Options{
		ChunkSize:       cfg.ExpirationChunkSize,
		Workers:         cfg.ExpirationWorkers,
		ChunksPerSecond: cfg.ExpirationChunksPerSecond,
	})
	hub := feed.NewHub()
	handler := api.NewHandler(authService, manager, engine, pipeline, hub)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(api.RequestLogger)

	// Enable CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ws", hub.ServeWS)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Ping(r.Context()); err != nil {
			http.Error(w, `{"error": "database unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status": "ok"}`))
	})
	handler.Routes(r)

	trigger := expiration.NewTrigger(pipeline, cfg.ExpirationInterval)
	schedulerDone := make(chan struct{})
	go func() {
		trigger.Start(ctx)
		close(schedulerDone)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info("Starting server", map[string]any{"port": cfg.Port, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Server failed", map[string]any{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", map[string]any{"error": err.Error()})
	}
	// an expiration run in flight finishes its chunks before the pools close
	<-schedulerDone
	logging.Info("Server stopped", nil)
}
