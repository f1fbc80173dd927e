// Package auth resolves and validates the Gemini API key for the story
// generation backend.
package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

const (
	// apiKeyParamEnv overrides the SSM parameter name holding the API key.
	apiKeyParamEnv = "STORY_API_KEY_PARAMETER"

	defaultAPIKeyParam = "/storyweaver/gemini-api-key"
)

// GetAPIKey retrieves the Gemini API key from available sources.
// Priority order:
//  1. GEMINI_API_KEY environment variable
//  2. SSM Parameter Store (parameter named by STORY_API_KEY_PARAMETER,
//     default /storyweaver/gemini-api-key)
func GetAPIKey(ctx context.Context) (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	key, err := getFromParameterStore(ctx)
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from SSM Parameter Store")
		return key, nil
	}

	log.Error().Err(err).Msg("Failed to retrieve API key")
	return "", fmt.Errorf("API key not found. Set GEMINI_API_KEY or create the %s parameter", paramName())
}

// getFromParameterStore fetches the API key from SSM with decryption enabled,
// so SecureString parameters work without extra configuration.
func getFromParameterStore(ctx context.Context) (string, error) {
	name := paramName()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Debug().Str("parameter", name).Msg("Fetching API key from SSM")

	client := ssm.NewFromConfig(cfg)
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read SSM parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("SSM parameter %s has no value", name)
	}

	return strings.TrimSpace(*out.Parameter.Value), nil
}

func paramName() string {
	if name := os.Getenv(apiKeyParamEnv); name != "" {
		return name
	}
	return defaultAPIKeyParam
}
