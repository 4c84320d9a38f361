package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appconfig "kynto-backend/infrastructure/config"
	"kynto-backend/infrastructure/di"
	"kynto-backend/interfaces/http/rest"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := appconfig.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	router := rest.NewRouter(container.Service, container.JWTValidator, container.Logger, rest.Options{
		DisableStreaming: cfg.DisableStreaming,
		RatePerMinute:    cfg.RatePerMinute,
		EnableCORS:       cfg.EnableCORS,
	})
	handler := router.Setup()

	srv := &http.Server{
		Addr:        cfg.ServerAddress,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: generation responses stream for the length of
		// the provider call; the provider deadline bounds them instead
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		container.Logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.Bool("streaming", !cfg.DisableStreaming),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server shutdown error", zap.Error(err))
	}

	_ = container.Logger.Sync()
	log.Println("Server stopped")
}
