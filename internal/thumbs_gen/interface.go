package thumbsgen

import (
	"context"
)

// Extension (lower-cased) of the files thumbnails are generated for.
const ThumbsExtension = ".png"

// Default edge length in pixels of generated thumbnails.
const DefaultThumbSize = 256

// ThumbnailMeta holds all the necessary metadata for generating
// the thumbnail of a single original image file.
type ThumbnailMeta struct {

	// Absolute path to the original image file.
	OrigFileAbsPath string

	// Absolute path where the thumbnail is written. Its extension
	// determines the output encoding. An existing file at this path
	// is overwritten.
	ThumbFileAbsPath string

	// Edge length in pixels of the square thumbnail.
	Size int
}

type ThumbsGenerator interface {
	Generate(ctx context.Context, meta ThumbnailMeta) error
}
