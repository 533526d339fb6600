package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/selene/internal/channel"
	"github.com/UnknownOlympus/selene/internal/config"
	"github.com/UnknownOlympus/selene/internal/location"
	"github.com/UnknownOlympus/selene/internal/metrics"
	"github.com/UnknownOlympus/selene/internal/relay"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment, teeing to a rotating file when configured.
	logger := setupLogger(cfg.Env, logOutput(cfg.LogFile))

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Create the location provider using factory pattern based on configuration.
	provider, err := location.NewProvider(location.ProviderConfig{
		Type:      location.ProviderType(cfg.ProviderType),
		APIKey:    cfg.APIKey,
		RateLimit: cfg.RateLimit,
		Static:    cfg.StaticCoords,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create location provider: %v", err)
	}
	locator := location.NewGeolocator(provider, logger)

	logger.InfoContext(ctx, "Location provider initialized", "type", cfg.ProviderType)

	// Create the channel to the paired device.
	deviceChannel, err := channel.NewChannel(channel.Config{
		Type:       channel.Type(cfg.ChannelType),
		Addr:       fmt.Sprintf(":%d", cfg.ChannelPort),
		AckTimeout: cfg.AckTimeout,
		Kafka: channel.KafkaConfig{
			Brokers:       cfg.Kafka.Brokers,
			InboundTopic:  cfg.Kafka.InboundTopic,
			OutboundTopic: cfg.Kafka.OutboundTopic,
			GroupID:       cfg.Kafka.GroupID,
			BatchTimeout:  cfg.Kafka.BatchTimeout,
		},
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("Failed to create device channel: %v", err)
	}

	logger.InfoContext(ctx, "Device channel initialized", "type", cfg.ChannelType)

	locationRelay := relay.NewRelay(logger, deviceChannel, locator, cfg.ProviderType, appMetrics)
	locationRelay.Register()

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	// Start the monitoring server in a goroutine to allow main to listen for signals.
	go startMonitoringServer(ctx, logger, reg, cfg.Port)

	channelDone := make(chan struct{})
	go func() {
		defer close(channelDone)
		if err := deviceChannel.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "Device channel stopped with error", "error", err)
			stop()
		}
	}()

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	<-channelDone
	locationRelay.Wait()

	// Log graceful shutdown completion.
	logger.InfoContext(ctx, "Application stopped gracefully.")
}

// startMonitoringServer starts an HTTP server that provides health check and metrics endpoints.
// It listens on the specified port until ctx is cancelled.
//
// Parameters:
// - ctx: A context.Context for managing cancellation and timeouts.
// - log: A logger for logging server events and errors.
// - reg: A registry with Prometheus collectors.
// - port: The port number on which the server will listen.
func startMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	port int,
) {
	log.InfoContext(ctx, "Starting monitoring server", "port", port)
	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      monitoringHandler(ctx, log, reg),
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(readTimeout)*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorContext(ctx, "Monitoring server failed", "error", err)
	}
}

// monitoringHandler routes /healthz and /metrics.
func monitoringHandler(ctx context.Context, log *slog.Logger, reg *prometheus.Registry) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(writer http.ResponseWriter, _ *http.Request) {
		log.DebugContext(ctx, "Performing health checks...")
		writer.WriteHeader(http.StatusOK)
		if _, err := writer.Write([]byte("OK")); err != nil {
			log.ErrorContext(ctx, "failed to write reply", "error", err)
		}

		log.DebugContext(ctx, "Health checks completed", "status", http.StatusOK)
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return router
}

// logOutput returns stdout, or stdout teed with a rotating file when path is set.
func logOutput(path string) io.Writer {
	if path == "" {
		return os.Stdout
	}

	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	})
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string, out io.Writer) *slog.Logger {
	var log *slog.Logger

	dropTime := func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey {
			return slog.Attr{}
		}
		return a
	}

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(out, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{
				Level:       slog.LevelWarn,
				ReplaceAttr: dropTime,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{
				Level:       slog.LevelError,
				ReplaceAttr: dropTime,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
