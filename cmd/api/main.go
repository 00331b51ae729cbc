package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/eventpass/internal/config"
	"github.com/joshua-takyi/eventpass/internal/connect"
	"github.com/joshua-takyi/eventpass/internal/container"
	"github.com/joshua-takyi/eventpass/internal/helpers"
	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/joshua-takyi/eventpass/internal/routes"
)

func main() {
	// Load environment variables
	_ = godotenv.Load(".env.local")

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	logger.Info("Starting EventPass API server", "environment", cfg.Environment)

	cld, err := connect.Cloudinary(cfg)
	if err != nil {
		logger.Error("Failed to connect to Cloudinary", "error", err)
		os.Exit(1)
	}
	if cld == nil {
		logger.Info("Cloudinary not configured, pass images will not be hosted")
	}

	mongoClient, err := connect.MongoDBConnect(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to MongoDB successfully", "database", cfg.MongoDBName)

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	err = models.MongodbNewRepo(mongoClient, cfg.MongoDBName).EnsureIndexes(indexCtx)
	cancelIndex()
	if err != nil {
		logger.Error("Failed to create MongoDB indexes", "error", err)
		os.Exit(1)
	}

	publisher, closePublisher, err := connect.Publisher(cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}

	tokens, err := helpers.NewTokenValidator(cfg.JWTSecret, cfg.JWKSURL, logger)
	if err != nil {
		logger.Error("Failed to initialize token validation", "error", err)
		os.Exit(1)
	}

	appContainer := container.NewContainer(cfg, logger, cld, mongoClient, publisher, tokens)
	router := routes.SetupRoutes(appContainer)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	tokens.Close()
	closePublisher()
	if err := connect.MongoDBDisconnect(mongoClient); err != nil {
		logger.Error("Error disconnecting from MongoDB", "error", err)
	}

	logger.Info("Server exited")
}

func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Human-readable logging for development
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
