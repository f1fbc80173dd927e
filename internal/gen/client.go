// Package gen wraps the Gemini API for story text generation: client
// construction, model selection, and the prompts that ask for structured
// JSON scenes.
package gen

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// NewClient creates a Gemini API client using the provided API key.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Debug().Msg("Gemini client created")
	return client, nil
}
