package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/tendant/recipe-store/pkg/recipestore"
	"github.com/tendant/recipe-store/pkg/recipestore/api"
	"github.com/tendant/recipe-store/pkg/recipestore/config"
	"github.com/tendant/recipe-store/pkg/recipestore/store/mongo"
)

func main() {
	envFile := flag.String("env", ".env", "Optional .env file to load before reading the environment")
	flag.Parse()

	// Load environment variables from .env file
	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist, we'll use default values
		slog.Info("No .env file found or error loading it, using default values", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(2)
	}
}

func run(cfg *config.ServerConfig) error {
	ctx := context.Background()

	slog.Info("Connecting to mongodb", "uri", cfg.Mongo.Redacted())
	client, err := mongo.Connect(ctx, mongo.Config{
		URI:            cfg.Mongo.URI(),
		Database:       cfg.Mongo.Database,
		BucketName:     cfg.FileBucketName,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			slog.Error("Failed to close database", "err", err)
		}
	}()

	// Provisioning must finish before the listener starts
	schemas, err := recipestore.LoadSchemas(cfg.SchemaDir)
	if err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}
	provisioner := recipestore.NewProvisioner(client.Store(), cfg.FileBucketName, cfg.Languages, slog.Default())
	if err := provisioner.ProvisionAll(ctx, schemas); err != nil {
		return err
	}

	svc, err := recipestore.New(
		recipestore.WithStore(client.Store()),
		recipestore.WithBucket(client.Bucket()),
		recipestore.WithLanguages(cfg.Languages...),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: Routes(svc),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Recipe store starting", "port", cfg.Port, "env", cfg.Environment, "languages", cfg.Languages)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server exiting")
	return nil
}

// Routes sets up the HTTP routes
func Routes(svc recipestore.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})

	r.Mount("/file", api.NewFilesHandler(svc).Routes())
	r.Mount("/recipe", api.NewRecipeHandler(svc).Routes())

	return r
}
