package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fractalscan/internal"
	"fractalscan/internal/api"
	"fractalscan/internal/config"
	"fractalscan/internal/container"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func newLogger(cfg config.LogConfig) *internal.Logger {
	level := internal.ParseLogLevel(cfg.Level)
	if cfg.Format == "json" {
		return internal.NewLogger(level, os.Stdout)
	}
	return internal.NewConsoleLogger(level, os.Stdout)
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(appConfig.Log)
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	if err := appContainer.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	servers := []*http.Server{{
		Addr:         appConfig.Server.Addr(),
		Handler:      appContainer.APIServer().Handler(),
		ReadTimeout:  appConfig.Server.ReadTimeout,
		WriteTimeout: appConfig.Server.WriteTimeout,
	}}

	if appConfig.Admin.Enabled {
		servers = append(servers, &http.Server{
			Addr:              ":" + appConfig.Admin.Port,
			Handler:           api.NewAdminRouter(logger.Zerolog(), appContainer.HealthChecks()),
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown of %s: %v", srv.Addr, err)
		}
	}
}
