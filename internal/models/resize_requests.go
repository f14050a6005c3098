package models

import (
	"github.com/google/uuid"
)

type ResizeRequest struct {
	RequestID uuid.UUID `json:"requestId"`

	// Directory holding the original images. Only files directly
	// inside it are considered, subdirectories are not walked.
	InputDir string `json:"inputDir"`

	// Directory where thumbnails are written, created if missing
	OutputDir string `json:"outputDir"`

	// Edge length in pixels of the square thumbnails. Zero means
	// the default size.
	Size int `json:"size"`
}
