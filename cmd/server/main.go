package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lexiqai/media-recorder/internal/config"
	"github.com/lexiqai/media-recorder/internal/observability"
	"github.com/lexiqai/media-recorder/internal/telephony"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("recordings_dir", cfg.RecordingsDir).
		Str("name_source", cfg.RecordingNameSource).
		Bool("finalize_on_disconnect", cfg.FinalizeOnDisconnect).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Media recorder starting")

	if err := os.MkdirAll(cfg.RecordingsDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("recordings_dir", cfg.RecordingsDir).Msg("Failed to create recordings directory")
	}

	mux := http.NewServeMux()

	// Media stream WebSocket handler
	sessionOpts := telephony.SessionOptionsFromConfig(cfg)
	mux.HandleFunc("/streams/twilio", telephony.HandleMediaStreamWS(sessionOpts, cfg.WSReadBufferSize))

	// Health and readiness
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	readiness := map[string]observability.HealthCheckFunc{
		"storage": observability.StorageCheck(cfg.RecordingsDir),
	}
	if sessionOpts.Breaker != nil {
		readiness["storage_breaker"] = sessionOpts.Breaker.Check
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(readiness))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// No WriteTimeout: media stream connections live as long as the call
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", streamEndpoint(cfg)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

// streamEndpoint returns the WebSocket URL Twilio should connect to
func streamEndpoint(cfg *config.Config) string {
	if cfg.PublicURL == "" {
		return fmt.Sprintf("ws://localhost:%s/streams/twilio", cfg.Port)
	}
	u := strings.TrimRight(cfg.PublicURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/streams/twilio"
}
