package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/giobyte8/levelviews/internal/models"
	"github.com/giobyte8/levelviews/internal/telemetry"
	"github.com/giobyte8/levelviews/internal/telemetry/metrics"
	thumbsgen "github.com/giobyte8/levelviews/internal/thumbs_gen"
)

var ErrInvalidSize = errors.New("thumbnail size must be a positive integer")

type ThumbnailsService struct {
	thumbGenerator thumbsgen.ThumbsGenerator
	telemetry      *telemetry.TelemetrySvc

	// Receives one human readable status line per processed file
	status io.Writer
}

func NewThumbnailsService(
	thumbGenerator thumbsgen.ThumbsGenerator,
	telemetry *telemetry.TelemetrySvc,
	status io.Writer,
) *ThumbnailsService {
	return &ThumbnailsService{
		thumbGenerator: thumbGenerator,
		telemetry:      telemetry,
		status:         status,
	}
}

// ProcessDir writes a square thumbnail into req.OutputDir for every
// '.png' file (case insensitive) found directly inside req.InputDir,
// keeping the original file name.
//
// Only setup failures are returned: an unreadable input directory,
// an output directory that cannot be created or an invalid size.
// A file that fails to process is reported on the status writer and
// the pass moves on to the next one.
func (s *ThumbnailsService) ProcessDir(
	ctx context.Context,
	req models.ResizeRequest,
) error {
	size, err := resolveSize(req.Size)
	if err != nil {
		return err
	}

	log := slog.With(
		"requestId", req.RequestID,
		"inputDir", req.InputDir,
		"outputDir", req.OutputDir,
	)
	log.Info("Processing directory", "size", size)

	entries, err := os.ReadDir(req.InputDir)
	if err != nil {
		return fmt.Errorf(
			"failed to read input directory %s: %w",
			req.InputDir,
			err,
		)
	}

	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return fmt.Errorf(
			"failed to create output directory %s: %w",
			req.OutputDir,
			err,
		)
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			log.Warn("Context cancelled during directory processing")
			return ctx.Err()
		default:
			// Continue with next file
		}

		if !isCandidate(entry) {
			log.Debug("Skipping entry", "name", entry.Name())
			continue
		}

		result := s.processFile(ctx, req, entry.Name(), size)
		s.report(log, result)
	}

	log.Info("Directory processed")
	return nil
}

func resolveSize(size int) (int, error) {
	switch {
	case size == 0:
		return thumbsgen.DefaultThumbSize, nil
	case size < 0:
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	default:
		return size, nil
	}
}

func isCandidate(entry os.DirEntry) bool {
	if entry.IsDir() {
		return false
	}

	return strings.HasSuffix(
		strings.ToLower(entry.Name()),
		thumbsgen.ThumbsExtension,
	)
}

func (s *ThumbnailsService) processFile(
	ctx context.Context,
	req models.ResizeRequest,
	fileName string,
	size int,
) models.FileResult {
	meta := thumbsgen.ThumbnailMeta{
		OrigFileAbsPath:  filepath.Join(req.InputDir, fileName),
		ThumbFileAbsPath: filepath.Join(req.OutputDir, fileName),
		Size:             size,
	}

	return models.FileResult{
		FileName: fileName,
		Err:      s.thumbGenerator.Generate(ctx, meta),
	}
}

func (s *ThumbnailsService) report(log *slog.Logger, result models.FileResult) {
	attrs := map[string]string{"fileName": result.FileName}

	if result.Ok() {
		fmt.Fprintf(s.status, "Resized and cropped: %s\n", result.FileName)
		log.Debug("Thumbnail created", "fileName", result.FileName)
		s.telemetry.Metrics().Increment(metrics.ThumbCreated, attrs)
		return
	}

	fmt.Fprintf(
		s.status,
		"Failed to process %s: %v\n",
		result.FileName,
		result.Err,
	)
	log.Debug(
		"Failed to process file",
		"fileName", result.FileName,
		"error", result.Err,
	)
	s.telemetry.Metrics().Increment(metrics.ThumbFailed, attrs)
}
