package compile

import (
	"context"
	"fmt"

	"github.com/khuang/storyweaver/internal/gen"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Operation is an opaque handle for an in-flight video generation.
type Operation interface{}

// PollStatus reports where a long-running video operation stands. Op is the
// refreshed handle to use for the next poll.
type PollStatus struct {
	Done      bool
	HasResult bool
	Op        Operation
}

// VideoService is the narrow remote-video capability the compiler consumes:
// submit, poll until done, fetch bytes.
type VideoService interface {
	// Submit starts generation. seedImage may be nil for direct
	// (unseeded) generation.
	Submit(ctx context.Context, prompt string, seedImage []byte) (Operation, error)
	Poll(ctx context.Context, op Operation) (PollStatus, error)
	Fetch(ctx context.Context, op Operation) ([]byte, error)
}

// VeoService runs video generation on Google Veo through the Gemini API.
type VeoService struct {
	client *genai.Client
}

// NewVeoService wraps a Gemini client for video generation.
func NewVeoService(client *genai.Client) *VeoService {
	return &VeoService{client: client}
}

func (v *VeoService) Submit(ctx context.Context, prompt string, seedImage []byte) (Operation, error) {
	config := &genai.GenerateVideosConfig{
		AspectRatio:     "16:9",
		NumberOfVideos:  1,
		DurationSeconds: genai.Ptr[int32](8),
	}

	var image *genai.Image
	if seedImage != nil {
		image = &genai.Image{
			ImageBytes: seedImage,
			MIMEType:   "image/png",
		}
	}

	log.Debug().
		Str("model", gen.ModelVeo2).
		Bool("seeded", image != nil).
		Int("prompt_length", len(prompt)).
		Msg("Submitting video generation")

	op, err := v.client.Models.GenerateVideos(ctx, gen.ModelVeo2, prompt, image, config)
	if err != nil {
		return nil, fmt.Errorf("submit video generation: %w", err)
	}
	return op, nil
}

func (v *VeoService) Poll(ctx context.Context, op Operation) (PollStatus, error) {
	handle, ok := op.(*genai.GenerateVideosOperation)
	if !ok {
		return PollStatus{}, fmt.Errorf("unexpected operation type %T", op)
	}

	updated, err := v.client.Operations.GetVideosOperation(ctx, handle, nil)
	if err != nil {
		return PollStatus{}, fmt.Errorf("poll video operation: %w", err)
	}

	status := PollStatus{Done: updated.Done, Op: updated}
	if updated.Done && updated.Response != nil && len(updated.Response.GeneratedVideos) > 0 {
		status.HasResult = true
	}
	return status, nil
}

func (v *VeoService) Fetch(ctx context.Context, op Operation) ([]byte, error) {
	handle, ok := op.(*genai.GenerateVideosOperation)
	if !ok {
		return nil, fmt.Errorf("unexpected operation type %T", op)
	}
	if handle.Response == nil || len(handle.Response.GeneratedVideos) == 0 {
		return nil, fmt.Errorf("operation has no generated video")
	}

	video := handle.Response.GeneratedVideos[0]
	if _, err := v.client.Files.Download(ctx, video.Video, nil); err != nil {
		return nil, fmt.Errorf("download generated video: %w", err)
	}
	if len(video.Video.VideoBytes) == 0 {
		return nil, fmt.Errorf("downloaded video is empty")
	}
	return video.Video.VideoBytes, nil
}
