package illustrate

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestThumbnailScalesDown(t *testing.T) {
	data := encodePNG(t, 64, 32)

	thumb, err := Thumbnail(data, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail is not valid JPEG: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 16 || bounds.Dy() != 8 {
		t.Errorf("expected 16x8 thumbnail, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	data := encodePNG(t, 10, 10)

	thumb, err := Thumbnail(data, 320)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail is not valid JPEG: %v", err)
	}
	if img.Bounds().Dx() != 10 {
		t.Errorf("small image should not be scaled, got width %d", img.Bounds().Dx())
	}
}

func TestThumbnailRejectsGarbage(t *testing.T) {
	if _, err := Thumbnail([]byte("not an image"), 100); err == nil {
		t.Error("expected error for undecodable input")
	}
}

func TestThumbnailDimensionsTallImage(t *testing.T) {
	w, h := thumbnailDimensions(30, 90, 45)
	if w != 15 || h != 45 {
		t.Errorf("expected 15x45, got %dx%d", w, h)
	}
}

func TestBuildImagePrompt(t *testing.T) {
	prompt := buildImagePrompt("A silver sprout at sunrise")

	if !strings.Contains(prompt, "A silver sprout at sunrise") {
		t.Error("prompt should embed the scene description")
	}
	if !strings.Contains(prompt, "storybook") {
		t.Error("prompt should request the storybook style")
	}
}
