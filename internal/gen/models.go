package gen

import "os"

// Gemini model identifiers used by the story pipeline.
const (
	// ModelGemini25Flash is the stable, balanced text model.
	ModelGemini25Flash = "gemini-2.5-flash"
	// ModelGemini25FlashLite is the high-throughput, lowest-cost text model.
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
	// ModelGemini25Pro is the stable high-reasoning text model.
	ModelGemini25Pro = "gemini-2.5-pro"

	// ModelImagen3 generates scene illustrations.
	ModelImagen3 = "imagen-3.0-generate-002"

	// ModelVeo2 generates compiled story videos.
	ModelVeo2 = "veo-2.0-generate-001"
)

// DefaultModelName is the default Gemini text model.
// Can be overridden via the GEMINI_MODEL environment variable.
const DefaultModelName = ModelGemini25Flash

// GetModelName returns the Gemini text model to use, resolved from:
// 1. GEMINI_MODEL environment variable (if set)
// 2. Default: gemini-2.5-flash
func GetModelName() string {
	if env := os.Getenv("GEMINI_MODEL"); env != "" {
		return env
	}
	return DefaultModelName
}
