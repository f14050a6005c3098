package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/giobyte8/levelviews/internal/consumer"
	"github.com/giobyte8/levelviews/internal/models"
	"github.com/giobyte8/levelviews/internal/services"
	"github.com/giobyte8/levelviews/internal/telemetry"
	thumbsgen "github.com/giobyte8/levelviews/internal/thumbs_gen"
)

func setupLogging(level slog.Level) {
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: false,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {

			// Format time to show only the time (HH:MM:SS)
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format("15:04:05"))
			}

			return a
		},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
	slog.SetDefault(logger)
}

func prepareThumbsService(telemetry *telemetry.TelemetrySvc) *services.ThumbnailsService {
	return services.NewThumbnailsService(
		thumbsgen.NewImagingThumbsGenerator(),
		telemetry,
		os.Stdout,
	)
}

// Resizes DIR_ORIGINALS into DIR_THUMBNAILS once
func runOnce(
	ctx context.Context,
	cfg *appConfig,
	thumbsSvc *services.ThumbnailsService,
) error {
	return thumbsSvc.ProcessDir(ctx, models.ResizeRequest{
		RequestID: uuid.New(),
		InputDir:  cfg.dirOriginals,
		OutputDir: cfg.dirThumbnails,
		Size:      cfg.thumbSize,
	})
}

// Consumes resize requests from AMQP until a signal arrives
func runConsumer(
	ctx context.Context,
	cfg *appConfig,
	thumbsSvc *services.ThumbnailsService,
	telemetry *telemetry.TelemetrySvc,
) error {
	amqpConsumer, err := consumer.NewAMQPConsumer(cfg.amqp, thumbsSvc, telemetry)
	if err != nil {
		return err
	}

	if err := amqpConsumer.Start(ctx); err != nil {
		return err
	}
	defer amqpConsumer.Stop()

	slog.Info("Thumbnailer service is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	slog.Info("Shutting down...", "reason", context.Cause(ctx))
	return nil
}

func main() {
	if err := loadEnvFile(".env"); err != nil {
		slog.Error("Error loading .env file", "error", err)
		os.Exit(1)
	}
	setupLogging(parseLogLevel(os.Getenv("LOG_LEVEL")))

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	telemetry, err := telemetry.NewTelemetrySvc(ctx, cfg.telemetry)
	if err != nil {
		slog.Error("Failed to initialize Telemetry services", "error", err)
		os.Exit(1)
	}

	thumbsSvc := prepareThumbsService(telemetry)
	if cfg.amqpEnabled {
		err = runConsumer(ctx, cfg, thumbsSvc, telemetry)
	} else {
		err = runOnce(ctx, cfg, thumbsSvc)
	}

	// Context may already be cancelled, flush with a fresh one
	if shutdownErr := telemetry.Shutdown(context.Background()); shutdownErr != nil {
		slog.Error("Failed to shutdown telemetry services", "error", shutdownErr)
	}

	if err != nil {
		slog.Error("Thumbnailer failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Thumbnailer exited gracefully.")
}
