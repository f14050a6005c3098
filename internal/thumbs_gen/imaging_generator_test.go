package thumbsgen

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
)

// Writes a w×h image whose left and right quarters are red and blue
// and whose center half is green.
func banded(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch {
			case x < w/4:
				img.SetNRGBA(x, y, red)
			case x >= w-w/4:
				img.SetNRGBA(x, y, blue)
			default:
				img.SetNRGBA(x, y, green)
			}
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("output %s is not a png: %v", path, err)
	}
	return img
}

func isGreen(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 < 16 && g>>8 > 240 && b>>8 < 16
}

func TestGenerateCentersCropOnWideImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "wide.png")
	dst := filepath.Join(dir, "thumb.png")
	writePNG(t, src, banded(400, 200))

	err := NewImagingThumbsGenerator().Generate(
		context.Background(),
		ThumbnailMeta{OrigFileAbsPath: src, ThumbFileAbsPath: dst, Size: 64},
	)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	thumb := decodePNG(t, dst)
	if b := thumb.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("thumbnail is %dx%d, want 64x64", b.Dx(), b.Dy())
	}

	// Center 200x200 of the source is the green band: side bands
	// must have been cropped away, not squeezed in.
	for _, p := range []image.Point{{0, 0}, {63, 0}, {0, 63}, {63, 63}, {32, 32}} {
		if c := thumb.At(p.X, p.Y); !isGreen(c) {
			t.Errorf("pixel %v = %v, want green", p, c)
		}
	}
}

func TestGenerateUpscalesSmallImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.PNG")
	dst := filepath.Join(dir, "out", "small.PNG")
	if err := os.Mkdir(filepath.Dir(dst), 0755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, src, image.NewNRGBA(image.Rect(0, 0, 10, 30)))

	err := NewImagingThumbsGenerator().Generate(
		context.Background(),
		ThumbnailMeta{OrigFileAbsPath: src, ThumbFileAbsPath: dst, Size: 48},
	)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if b := decodePNG(t, dst).Bounds(); b.Dx() != 48 || b.Dy() != 48 {
		t.Fatalf("thumbnail is %dx%d, want 48x48", b.Dx(), b.Dy())
	}
}

func TestGenerateDecodesByContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "actually_jpeg.png")
	dst := filepath.Join(dir, "thumb.png")

	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := jpeg.Encode(f, banded(120, 80), nil); err != nil {
		t.Fatal(err)
	}
	f.Close()

	err = NewImagingThumbsGenerator().Generate(
		context.Background(),
		ThumbnailMeta{OrigFileAbsPath: src, ThumbFileAbsPath: dst, Size: 32},
	)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Output encoding follows the output extension
	if b := decodePNG(t, dst).Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Fatalf("thumbnail is %dx%d, want 32x32", b.Dx(), b.Dy())
	}
}

func TestGenerateOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.png")
	writePNG(t, src, banded(40, 40))
	if err := os.WriteFile(dst, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	err := NewImagingThumbsGenerator().Generate(
		context.Background(),
		ThumbnailMeta{OrigFileAbsPath: src, ThumbFileAbsPath: dst, Size: 16},
	)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if b := decodePNG(t, dst).Bounds(); b.Dx() != 16 || b.Dy() != 16 {
		t.Fatalf("thumbnail is %dx%d, want 16x16", b.Dx(), b.Dy())
	}
}

func TestGenerateFailures(t *testing.T) {
	dir := t.TempDir()

	textFile := filepath.Join(dir, "text.png")
	if err := os.WriteFile(textFile, []byte("definitely not pixels"), 0644); err != nil {
		t.Fatal(err)
	}

	emptyFile := filepath.Join(dir, "empty.png")
	if err := os.WriteFile(emptyFile, nil, 0644); err != nil {
		t.Fatal(err)
	}

	// Valid PNG signature followed by garbage
	truncated := filepath.Join(dir, "truncated.png")
	sig := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H'}
	if err := os.WriteFile(truncated, sig, 0644); err != nil {
		t.Fatal(err)
	}

	// PDF content under a png name
	pdf := filepath.Join(dir, "doc.png")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4\n%...."), 0644); err != nil {
		t.Fatal(err)
	}

	valid := filepath.Join(dir, "valid.png")
	writePNG(t, valid, banded(20, 20))

	tests := []struct {
		name string
		meta ThumbnailMeta
	}{
		{"missing", ThumbnailMeta{filepath.Join(dir, "nope.png"), filepath.Join(dir, "o1.png"), 16}},
		{"text", ThumbnailMeta{textFile, filepath.Join(dir, "o2.png"), 16}},
		{"empty", ThumbnailMeta{emptyFile, filepath.Join(dir, "o3.png"), 16}},
		{"truncated", ThumbnailMeta{truncated, filepath.Join(dir, "o4.png"), 16}},
		{"pdf", ThumbnailMeta{pdf, filepath.Join(dir, "o5.png"), 16}},
		{"unwritable", ThumbnailMeta{valid, filepath.Join(dir, "no", "such", "o6.png"), 16}},
		{"unknown output format", ThumbnailMeta{valid, filepath.Join(dir, "o7.xyz"), 16}},
		{"zero size", ThumbnailMeta{valid, filepath.Join(dir, "o8.png"), 0}},
	}

	gen := NewImagingThumbsGenerator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := gen.Generate(context.Background(), tt.meta); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestGenerateCancelled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.png")
	writePNG(t, src, banded(20, 20))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewImagingThumbsGenerator().Generate(
		ctx,
		ThumbnailMeta{OrigFileAbsPath: src, ThumbFileAbsPath: dst, Size: 16},
	)
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("thumbnail written despite cancelled context")
	}
}
