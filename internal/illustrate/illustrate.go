// Package illustrate renders scene illustrations with Imagen and stores them
// alongside generated thumbnails. Illustration is best-effort: a failed render
// degrades the turn to text-only, it never fails it.
package illustrate

import (
	"context"
	"fmt"
	"time"

	"github.com/khuang/storyweaver/internal/gen"
	"github.com/khuang/storyweaver/internal/metrics"
	"github.com/khuang/storyweaver/internal/story"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	thumbnailMaxDimension = 320

	// safeFallbackPrompt replaces scene descriptions that the image model's
	// safety filter rejects outright.
	safeFallbackPrompt = "A cheerful watercolor storybook illustration of a sunny meadow with friendly animals, soft colors, warm light"
)

// AssetStore persists rendered images.
type AssetStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Renderer generates and stores one illustration per scene. It implements
// story.Illustrator.
type Renderer struct {
	client *genai.Client
	store  AssetStore
}

// New builds a Renderer over a Gemini client and an asset store.
func New(client *genai.Client, store AssetStore) *Renderer {
	return &Renderer{client: client, store: store}
}

// Illustrate renders the described scene, falling back to a known-safe prompt
// when the safety filter returns nothing, then uploads the image and a
// thumbnail.
func (r *Renderer) Illustrate(ctx context.Context, sessionID string, sequence int, description string) (story.Illustration, error) {
	prompt := buildImagePrompt(description)

	start := time.Now()
	data, err := r.generate(ctx, prompt)
	if err != nil {
		return story.Illustration{}, err
	}
	if data == nil {
		log.Warn().
			Str("session_id", sessionID).
			Int("scene", sequence).
			Msg("Illustration blocked by safety filter; retrying with safe prompt")
		data, err = r.generate(ctx, safeFallbackPrompt)
		if err != nil {
			return story.Illustration{}, err
		}
		if data == nil {
			return story.Illustration{}, fmt.Errorf("image generation returned no result")
		}
	}

	metrics.New("StoryWeaver").
		Metric("ImageGenerationMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
		Metric("ImageBytes", float64(len(data)), metrics.UnitBytes).
		Flush()

	assetKey := fmt.Sprintf("%s/scenes/%d.png", sessionID, sequence)
	url, err := r.store.Upload(ctx, assetKey, data, "image/png")
	if err != nil {
		return story.Illustration{}, fmt.Errorf("store illustration: %w", err)
	}

	ill := story.Illustration{AssetKey: assetKey, URL: url}

	thumb, err := Thumbnail(data, thumbnailMaxDimension)
	if err != nil {
		// The full image is already stored; a missing thumbnail is cosmetic.
		log.Warn().Err(err).Str("asset_key", assetKey).Msg("Thumbnail generation failed")
		return ill, nil
	}

	thumbKey := fmt.Sprintf("%s/scenes/%d_thumb.jpg", sessionID, sequence)
	if _, err := r.store.Upload(ctx, thumbKey, thumb, "image/jpeg"); err != nil {
		log.Warn().Err(err).Str("thumbnail_key", thumbKey).Msg("Thumbnail upload failed")
		return ill, nil
	}
	ill.ThumbnailKey = thumbKey

	return ill, nil
}

// generate runs one Imagen call. A nil, nil return means the model completed
// but produced no image (typically a safety rejection).
func (r *Renderer) generate(ctx context.Context, prompt string) ([]byte, error) {
	config := &genai.GenerateImagesConfig{
		NumberOfImages:    1,
		AspectRatio:       "16:9",
		SafetyFilterLevel: genai.SafetyFilterLevelBlockLowAndAbove,
	}

	resp, err := r.client.Models.GenerateImages(ctx, gen.ModelImagen3, prompt, config)
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, nil
	}
	return resp.GeneratedImages[0].Image.ImageBytes, nil
}

// buildImagePrompt wraps the scene description in a consistent storybook
// style so illustrations look like one book.
func buildImagePrompt(description string) string {
	return fmt.Sprintf(
		"A warm, colorful children's storybook illustration: %s. "+
			"Soft watercolor style, friendly characters, bright gentle colors, "+
			"suitable for young children, no text or words in the image.",
		description)
}
