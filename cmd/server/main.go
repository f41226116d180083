package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/taskboard/internal/cards"
	"github.com/rpattn/taskboard/internal/config"
	"github.com/rpattn/taskboard/internal/db"
	"github.com/rpattn/taskboard/internal/export"
	"github.com/rpattn/taskboard/internal/groups"
	"github.com/rpattn/taskboard/internal/ingestion"
	"github.com/rpattn/taskboard/internal/middleware"
	"github.com/rpattn/taskboard/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.DB, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	groupRepo := repository.NewGroupRepository(conn.Pool)
	filterRepo := repository.NewFilterRepository(conn.Pool)
	stageRepo := repository.NewStageRepository(conn.Pool)
	userRepo := repository.NewUserRepository(conn.Pool)
	cardRepo := repository.NewCardRepository(conn.Pool)
	listRepo := repository.NewListRepository(conn.Pool)

	// Create services
	groupService := groups.NewService(groupRepo, filterRepo, stageRepo, userRepo)
	exportService := export.NewService(groupService, cardRepo, userRepo)
	ingestionService := ingestion.NewService(cardRepo, stageRepo, userRepo)

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.UserLoaderMiddleware(userRepo))

	r.Route("/api", func(api chi.Router) {
		groups.NewHTTPHandler(groupService).Routes(api)
		cards.NewHTTPHandler(cardRepo, groupService).Routes(api)
		export.NewHTTPHandler(exportService, listRepo).Routes(api)
		ingestion.NewHTTPHandler(ingestionService).Routes(api)
	})

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsHandler.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting taskboard API on %s", cfg.Server.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
