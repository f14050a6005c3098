package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/giobyte8/levelviews/internal/consumer"
	"github.com/giobyte8/levelviews/internal/telemetry"
	thumbsgen "github.com/giobyte8/levelviews/internal/thumbs_gen"
)

type appConfig struct {
	dirOriginals  string
	dirThumbnails string
	thumbSize     int

	amqpEnabled bool
	amqp        consumer.AMQPConfig

	telemetry telemetry.Config
}

func parseLogLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseThumbSize(value string) (int, error) {
	if strings.TrimSpace(value) == "" {
		return thumbsgen.DefaultThumbSize, nil
	}

	size, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid THUMBNAIL_SIZE_PX %q: %w", value, err)
	}
	if size <= 0 {
		return 0, fmt.Errorf("THUMBNAIL_SIZE_PX must be a positive integer, got %d", size)
	}

	return size, nil
}

func prepareAMQPUri(getenv func(string) string) string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		getenv("RABBITMQ_USER"),
		getenv("RABBITMQ_PASS"),
		getenv("RABBITMQ_HOST"),
		getenv("RABBITMQ_PORT"),
	)
}

// Reads configuration from environment. getenv is os.Getenv outside
// of tests.
func loadConfig(getenv func(string) string) (*appConfig, error) {
	cfg := &appConfig{
		dirOriginals:  getenv("DIR_ORIGINALS"),
		dirThumbnails: getenv("DIR_THUMBNAILS"),
		amqpEnabled:   getenv("AMQP_ENABLED") == "true",
		telemetry: telemetry.Config{
			OtelEnabled:           getenv("OTEL_ENABLED") == "true",
			CollectorGrpcEndpoint: getenv("OTEL_COLLECTOR_GRPC_ENDPOINT"),
		},
	}

	size, err := parseThumbSize(getenv("THUMBNAIL_SIZE_PX"))
	if err != nil {
		return nil, err
	}
	cfg.thumbSize = size

	if cfg.amqpEnabled {
		cfg.amqp = consumer.AMQPConfig{
			AMQPUri:         prepareAMQPUri(getenv),
			Exchange:        getenv("AMQP_EXCHANGE"),
			ResizeQueueName: getenv("AMQP_QUEUE_RESIZE_REQUESTS"),
		}
		return cfg, nil
	}

	if cfg.dirOriginals == "" || cfg.dirThumbnails == "" {
		return nil, fmt.Errorf(
			"DIR_ORIGINALS and DIR_THUMBNAILS are required unless AMQP_ENABLED=true",
		)
	}

	return cfg, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Warn("No .env file found, using environment variables directly.")
		return nil
	}

	return godotenv.Load(path)
}
