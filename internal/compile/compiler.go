package compile

import (
	"context"
	"fmt"
	"time"

	"github.com/khuang/storyweaver/internal/metrics"
	"github.com/khuang/storyweaver/internal/story"
	"github.com/rs/zerolog/log"
)

const (
	// defaultPollInterval matches Veo's generation cadence; videos take a
	// couple of minutes, so 20s polls are plenty.
	defaultPollInterval = 20 * time.Second

	compileTimeout = 15 * time.Minute

	videoContentType = "video/mp4"
)

// AssetStore is the slice of object storage the compiler needs: resolve seed
// images and persist the finished video.
type AssetStore interface {
	Exists(ctx context.Context, key string) bool
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Service runs story video compilation as detached background work. It
// implements story.CompileDispatcher: each dispatched snapshot gets its own
// goroutine, and completion is reported only through the task registry (and
// the optional success callback), never to a caller.
type Service struct {
	video        VideoService
	store        AssetStore
	registry     *Registry
	pollInterval time.Duration

	// onSuccess lets the session engine record the compiled asset; epoch
	// screening there drops stale completions.
	onSuccess func(sessionID, assetKey string, epoch uint64)
}

// NewService builds a compilation service. store may be nil, in which case
// compilation fails with a configuration error rather than panicking.
func NewService(video VideoService, store AssetStore, registry *Registry) *Service {
	return &Service{
		video:        video,
		store:        store,
		registry:     registry,
		pollInterval: defaultPollInterval,
	}
}

// SetPollInterval overrides the poll cadence (tests use a short interval).
func (s *Service) SetPollInterval(d time.Duration) {
	s.pollInterval = d
}

// OnSuccess registers a callback invoked after a compilation persists its
// asset.
func (s *Service) OnSuccess(fn func(sessionID, assetKey string, epoch uint64)) {
	s.onSuccess = fn
}

// Dispatch registers a processing task and starts the background run.
// It never blocks the calling turn.
func (s *Service) Dispatch(snap story.CompileSnapshot) {
	sum := Summarize(snap.Theme, len(snap.Scenes))
	s.registry.Begin(snap.SessionID, sum)

	log.Info().
		Str("session_id", snap.SessionID).
		Str("category", sum.Category).
		Str("mood", sum.Mood).
		Int("scenes", len(snap.Scenes)).
		Msg("Dispatching video compilation")

	go s.run(snap, sum)
}

// run is the detached unit of work. Nothing may escape it: every failure,
// including a panic, ends as an error state in the registry.
func (s *Service) run(snap story.CompileSnapshot, sum Summary) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("session_id", snap.SessionID).
				Interface("panic", r).
				Msg("Video compilation panicked")
			s.registry.Fail(snap.SessionID, fmt.Sprintf("compilation panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), compileTimeout)
	defer cancel()

	start := time.Now()
	assetKey, url, seeded, err := s.compile(ctx, snap, sum)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("session_id", snap.SessionID).
			Dur("duration", elapsed).
			Msg("Video compilation failed")
		metrics.New("StoryWeaver").
			Dimension("Result", "error").
			Metric("CompilationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
			Count("CompilationResults").
			Flush()
		s.registry.Fail(snap.SessionID, err.Error())
		return
	}

	log.Info().
		Str("session_id", snap.SessionID).
		Str("asset_key", assetKey).
		Bool("seeded", seeded).
		Dur("duration", elapsed).
		Msg("Video compilation succeeded")
	metrics.New("StoryWeaver").
		Dimension("Result", "success").
		Metric("CompilationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("CompilationResults").
		Flush()

	s.registry.Complete(snap.SessionID, assetKey, url, seeded)
	if s.onSuccess != nil {
		s.onSuccess(snap.SessionID, assetKey, snap.Epoch)
	}
}

// compile runs the fallback chain: seeded generation from the most recent
// resolvable illustration, then direct generation without a seed.
func (s *Service) compile(ctx context.Context, snap story.CompileSnapshot, sum Summary) (assetKey, url string, seeded bool, err error) {
	prompt := BuildPrompt(sum, snap.AgeBand)

	seed := s.findSeedImage(ctx, snap.Scenes)
	var data []byte

	if seed != nil {
		data, err = s.attempt(ctx, prompt, seed)
		if err != nil {
			return "", "", false, err
		}
		if data != nil {
			seeded = true
		} else {
			log.Warn().
				Str("session_id", snap.SessionID).
				Msg("Seeded compilation produced no result; falling back to direct generation")
		}
	}

	if data == nil {
		data, err = s.attempt(ctx, prompt, nil)
		if err != nil {
			return "", "", false, err
		}
		if data == nil {
			return "", "", false, fmt.Errorf("video service produced no result")
		}
	}

	if s.store == nil {
		return "", "", false, fmt.Errorf("asset storage not configured")
	}

	assetKey = fmt.Sprintf("%s/video/story-%d.mp4", snap.SessionID, time.Now().Unix())
	url, err = s.store.Upload(ctx, assetKey, data, videoContentType)
	if err != nil {
		return "", "", false, fmt.Errorf("persist compiled video: %w", err)
	}
	return assetKey, url, seeded, nil
}

// attempt submits one generation and awaits it. A nil, nil return means the
// remote call completed but reported no result; the caller decides whether
// that cascades to the direct path or is terminal.
func (s *Service) attempt(ctx context.Context, prompt string, seedImage []byte) ([]byte, error) {
	op, err := s.video.Submit(ctx, prompt, seedImage)
	if err != nil {
		if seedImage != nil {
			// Seeded submission failures cascade to the direct path.
			log.Warn().Err(err).Msg("Seeded video submission failed")
			return nil, nil
		}
		return nil, err
	}

	final, hasResult, err := s.await(ctx, op)
	if err != nil {
		return nil, err
	}
	if !hasResult {
		return nil, nil
	}

	data, err := s.video.Fetch(ctx, final)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// await polls until the operation completes. A poll error aborts the run;
// there is no retry budget for a channel that is already failing.
func (s *Service) await(ctx context.Context, op Operation) (Operation, bool, error) {
	for {
		status, err := s.video.Poll(ctx, op)
		if err != nil {
			return nil, false, err
		}
		if status.Done {
			return status.Op, status.HasResult, nil
		}
		op = status.Op

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

// findSeedImage scans the ledger newest-first for an illustration that still
// resolves in storage and returns its bytes, or nil for the direct path.
func (s *Service) findSeedImage(ctx context.Context, scenes []story.SceneRecord) []byte {
	if s.store == nil {
		return nil
	}
	for i := len(scenes) - 1; i >= 0; i-- {
		key := scenes[i].AssetKey
		if key == "" || !s.store.Exists(ctx, key) {
			continue
		}
		data, err := s.store.Download(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Seed image download failed; trying earlier scene")
			continue
		}
		log.Debug().Str("key", key).Int("scene", scenes[i].Sequence).Msg("Using seed image for compilation")
		return data
	}
	return nil
}
