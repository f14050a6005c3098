package thumbsgen

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/webp"
)

// Bytes needed by filetype to match every known signature
const sniffLen = 262

// ImagingThumbsGenerator produces square thumbnails by scaling the
// original until it covers the target square and cropping the
// overflow evenly from both sides (Lanczos resampling).
type ImagingThumbsGenerator struct{}

func NewImagingThumbsGenerator() *ImagingThumbsGenerator {
	return &ImagingThumbsGenerator{}
}

func (g *ImagingThumbsGenerator) Generate(
	ctx context.Context,
	meta ThumbnailMeta,
) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if meta.Size <= 0 {
		return fmt.Errorf("invalid thumbnail size: %d", meta.Size)
	}

	slog.Debug(
		"Generating thumbnail",
		"origFile", meta.OrigFileAbsPath,
		"size", meta.Size,
	)

	img, err := g.load(meta.OrigFileAbsPath)
	if err != nil {
		return err
	}

	thumb := imaging.Fill(
		img,
		meta.Size,
		meta.Size,
		imaging.Center,
		imaging.Lanczos,
	)

	return g.save(meta.ThumbFileAbsPath, thumb)
}

// Opens the original, verifies its content is an image and
// decodes it. File is closed before returning.
func (g *ImagingThumbsGenerator) load(fileAbsPath string) (image.Image, error) {
	f, err := os.Open(fileAbsPath)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to open original file %s: %w",
			fileAbsPath,
			err,
		)
	}
	defer f.Close()

	if err := g.sniff(fileAbsPath, f); err != nil {
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf(
			"failed to rewind original file %s: %w",
			fileAbsPath,
			err,
		)
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to decode image %s: %w",
			fileAbsPath,
			err,
		)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf(
			"invalid original image dimensions: width=%d, height=%d",
			bounds.Dx(),
			bounds.Dy(),
		)
	}

	slog.Debug(
		"Decoded original image",
		"origFile", fileAbsPath,
		"format", format,
		"width", bounds.Dx(),
		"height", bounds.Dy(),
	)
	return img, nil
}

func (g *ImagingThumbsGenerator) sniff(fileAbsPath string, r io.Reader) error {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil &&
		!errors.Is(err, io.ErrUnexpectedEOF) &&
		!errors.Is(err, io.EOF) {
		return fmt.Errorf(
			"failed to read original file %s: %w",
			fileAbsPath,
			err,
		)
	}
	if n == 0 {
		return fmt.Errorf("original file %s is empty", fileAbsPath)
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return fmt.Errorf(
			"unrecognized content in original file %s",
			fileAbsPath,
		)
	}
	if kind.MIME.Type != "image" {
		return fmt.Errorf(
			"original file %s is not an image, detected %s",
			fileAbsPath,
			kind.MIME.Value,
		)
	}

	return nil
}

func (g *ImagingThumbsGenerator) save(
	thumbFileAbsPath string,
	thumb image.Image,
) (err error) {
	format, err := imaging.FormatFromFilename(thumbFileAbsPath)
	if err != nil {
		return fmt.Errorf(
			"failed to determine output format for %s: %w",
			thumbFileAbsPath,
			err,
		)
	}

	out, err := os.Create(thumbFileAbsPath)
	if err != nil {
		return fmt.Errorf(
			"failed to create thumbnail file %s: %w",
			thumbFileAbsPath,
			err,
		)
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = fmt.Errorf(
				"failed to close thumbnail file %s: %w",
				thumbFileAbsPath,
				cErr,
			)
		}
	}()

	if err := imaging.Encode(out, thumb, format); err != nil {
		return fmt.Errorf(
			"failed to write thumbnail file %s: %w",
			thumbFileAbsPath,
			err,
		)
	}

	return nil
}
