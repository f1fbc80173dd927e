package illustrate

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Thumbnail scales an encoded image down so neither side exceeds maxDimension
// and re-encodes it as JPEG. Images already within bounds are re-encoded
// without scaling.
func Thumbnail(data []byte, maxDimension int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width > maxDimension || height > maxDimension {
		newWidth, newHeight := thumbnailDimensions(width, height, maxDimension)
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// thumbnailDimensions preserves aspect ratio while fitting inside
// maxDimension on the longer side.
func thumbnailDimensions(width, height, maxDimension int) (int, int) {
	if width >= height {
		newHeight := height * maxDimension / width
		if newHeight < 1 {
			newHeight = 1
		}
		return maxDimension, newHeight
	}
	newWidth := width * maxDimension / height
	if newWidth < 1 {
		newWidth = 1
	}
	return newWidth, maxDimension
}
