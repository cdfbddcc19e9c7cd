package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/waveline/feedsync/internal/config"
	"github.com/waveline/feedsync/internal/logger"
	"github.com/waveline/feedsync/internal/mockapi"
	"github.com/waveline/feedsync/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger.Initialize(cfg.LogLevel, cfg.LogFile)
	defer logger.Log.Sync()

	if cfg.OTLPEndpoint != "" {
		tp, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:  "mockd",
			Environment:  "development",
			OTLPEndpoint: cfg.OTLPEndpoint,
			Enabled:      true,
			SamplingRate: 1.0,
		})
		if err != nil {
			logger.ErrorWithFields("Failed to initialize tracing", err)
		} else if tp != nil {
			defer tp.Shutdown(context.Background())
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8787"
	}
	seed := uint64(1)
	if v := os.Getenv("MOCKD_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			seed = n
		}
	}

	server := mockapi.New(seed)
	r := server.Router()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "mockd",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		logger.Log.Info("mockd listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorWithFields("Server failed", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Forced shutdown", err)
	}
}
