package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"qr_transit/internal/arrivals"
	"qr_transit/internal/config"
	"qr_transit/internal/hub"
	"qr_transit/internal/logger"
	"qr_transit/internal/metrics"
	"qr_transit/internal/middleware"
	"qr_transit/internal/reaper"
	"qr_transit/internal/repository"
	"qr_transit/internal/routes"
	"qr_transit/internal/tracking"
)

func main() {
	cfg := config.Load()

	// Initialize structured logging to file
	logger.Setup(cfg.LogFile, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)
	middleware.Configure(cfg.JWTSecret, cfg.TokenTTL)

	// Connect to the database
	config.InitDB(cfg)

	collector := metrics.NewCollector()
	repo := repository.NewTransitRepository(config.DB)
	locationHub := hub.NewLocationHub(collector)
	tracker := tracking.NewTracker(repo, locationHub, collector, cfg.ArrivalRadiusMeters)
	arrivalService := arrivals.NewService(repo, collector, logrus.StandardLogger())
	liveness := reaper.New(repo, collector, cfg.ReaperInterval, cfg.BusSilenceWindow)

	r := routes.SetupRouter(routes.Deps{
		Arrivals: arrivalService,
		Reporter: tracker,
		Watchers: locationHub,
		Metrics:  collector,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           middleware.EnableCORS(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go locationHub.Run(ctx)
	go liveness.Run(ctx)

	go func() {
		logrus.WithField("addr", cfg.HTTPAddr).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("HTTP server error")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logrus.Info("Shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown error")
	}

	if sqlDB, err := config.DB.DB(); err == nil {
		sqlDB.Close()
	}
	logrus.Info("Shutdown complete")
}
