package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/khuang/storyweaver/internal/metrics"
	"github.com/rs/zerolog/log"
)

// DefaultThreshold is the scene count that triggers background video
// compilation. Six scenes is enough material for a coherent compilation
// without making short sessions wait too long.
const DefaultThreshold = 6

var (
	// ErrNoActiveSession is returned when a turn or status operation needs a
	// started story and none exists.
	ErrNoActiveSession = errors.New("no active story session; start a story first")

	// ErrTurnInFlight is returned when a turn arrives while another turn for
	// the same session is still being generated.
	ErrTurnInFlight = errors.New("a story turn is already in progress")
)

// TextGenerator produces raw scene text from the remote model.
type TextGenerator interface {
	GenerateOpening(ctx context.Context, theme, ageBand string) (string, error)
	GenerateContinuation(ctx context.Context, theme, ageBand string, narrative []string, choice string) (string, error)
}

// Illustration is the outcome of a successful scene illustration.
type Illustration struct {
	AssetKey     string
	ThumbnailKey string
	URL          string
}

// Illustrator renders one scene illustration. Implementations may be absent
// entirely (a nil Illustrator disables illustration for the session).
type Illustrator interface {
	Illustrate(ctx context.Context, sessionID string, sequence int, description string) (Illustration, error)
}

// CompileSnapshot carries everything the background compiler needs, copied at
// dispatch time since the ledger keeps mutating afterwards.
type CompileSnapshot struct {
	SessionID string
	Theme     string
	AgeBand   string
	Epoch     uint64
	Scenes    []SceneRecord
}

// CompileDispatcher hands a snapshot to the background compilation worker.
// Dispatch must not block; the turn that fires the trigger returns
// immediately.
type CompileDispatcher interface {
	Dispatch(snap CompileSnapshot)
}

// TurnResult is what a completed turn returns to the transport layer: the
// normalized scene plus progress and trigger metadata.
type TurnResult struct {
	SessionID   string   `json:"session_id"`
	StoryTitle  string   `json:"story_title,omitempty"`
	Paragraphs  []string `json:"paragraphs"`
	Choices     []string `json:"choices"`
	Mood        string   `json:"mood,omitempty"`
	Educational string   `json:"educational_message,omitempty"`
	SceneNumber int      `json:"scene_number"`
	Progress    int      `json:"progress_percentage"`
	ImageURL    string   `json:"image_url,omitempty"`

	StoryComplete        bool `json:"story_complete"`
	CompilationTriggered bool `json:"compilation_triggered,omitempty"`
}

// SessionStatus is a read-only projection of the ledger.
type SessionStatus struct {
	Active               bool   `json:"active"`
	SessionID            string `json:"session_id,omitempty"`
	Theme                string `json:"theme,omitempty"`
	AgeBand              string `json:"age_band,omitempty"`
	StoryTitle           string `json:"story_title,omitempty"`
	SceneCount           int    `json:"scene_count"`
	Progress             int    `json:"progress_percentage"`
	IllustrationCount    int    `json:"illustration_count"`
	CompilationTriggered bool   `json:"compilation_triggered"`
	StoryComplete        bool   `json:"story_complete"`
	CompiledAssetKey     string `json:"compiled_asset_key,omitempty"`
}

// Config controls pipeline behavior.
type Config struct {
	// Threshold is the scene count that fires compilation.
	// Zero means DefaultThreshold.
	Threshold int
}

// Engine owns the session ledger and serializes all mutation behind a mutex.
// At most one turn is in flight at a time; concurrent turns are rejected
// rather than queued. The epoch counter invalidates in-flight work when the
// session is reset out from under it.
type Engine struct {
	mu        sync.Mutex
	session   *Session
	busy      bool
	epoch     uint64
	threshold int

	text        TextGenerator
	illustrator Illustrator
	dispatcher  CompileDispatcher
}

// NewEngine builds an Engine. text and dispatcher are required; illustrator
// may be nil to disable scene illustration.
func NewEngine(cfg Config, text TextGenerator, illustrator Illustrator, dispatcher CompileDispatcher) *Engine {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{
		threshold:   threshold,
		text:        text,
		illustrator: illustrator,
		dispatcher:  dispatcher,
	}
}

// StartStory begins a fresh session, replacing any existing one.
func (e *Engine) StartStory(ctx context.Context, theme, ageBand string) (*TurnResult, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return nil, errors.New("theme must not be empty")
	}
	if ageBand == "" {
		ageBand = "4-8"
	}

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	e.busy = true
	e.epoch++
	epoch := e.epoch
	session := NewSession(theme, ageBand)
	session.EnsureID()
	e.session = session
	sessionID := session.ID
	e.mu.Unlock()
	defer e.finishTurn(epoch)

	log.Info().
		Str("session_id", sessionID).
		Str("theme", theme).
		Str("age_band", ageBand).
		Msg("Starting new story")

	raw, err := e.text.GenerateOpening(ctx, theme, ageBand)
	if err != nil {
		return nil, fmt.Errorf("story generation unavailable: %w", err)
	}

	scene := NormalizeOpening(raw, OpeningFallback(theme))
	ill := e.illustrate(ctx, sessionID, 1, illustrationContext(theme, scene.IllustrationPrompts, scene.Paragraphs))

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return nil, ErrNoActiveSession
	}

	session.Title = scene.StoryTitle
	rec := session.AppendScene(scene.Paragraphs, scene.Choices, ill.AssetKey, ill.ThumbnailKey)
	triggered := e.checkTriggerLocked(epoch)

	metrics.New("StoryWeaver").
		Dimension("Operation", "start_story").
		Count("StoriesStarted").
		Flush()

	return &TurnResult{
		SessionID:            sessionID,
		StoryTitle:           scene.StoryTitle,
		Paragraphs:           scene.Paragraphs,
		Choices:              scene.Choices,
		Mood:                 scene.Mood,
		Educational:          scene.EducationalTheme,
		SceneNumber:          rec.Sequence,
		Progress:             progressPercent(session.SceneCount, e.threshold),
		ImageURL:             ill.URL,
		CompilationTriggered: triggered,
	}, nil
}

// ContinueStory advances the active session with the reader's choice.
func (e *Engine) ContinueStory(ctx context.Context, choice string) (*TurnResult, error) {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return nil, errors.New("choice must not be empty")
	}

	e.mu.Lock()
	if e.session == nil || e.session.SceneCount == 0 {
		e.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if e.busy {
		e.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	e.busy = true
	epoch := e.epoch
	session := e.session
	sessionID := session.ID
	theme := session.Theme
	ageBand := session.AgeBand
	title := session.Title
	narrative := append([]string(nil), session.Narrative...)
	nextSeq := session.SceneCount + 1
	e.mu.Unlock()
	defer e.finishTurn(epoch)

	log.Info().
		Str("session_id", sessionID).
		Str("choice", choice).
		Int("scene", nextSeq).
		Msg("Continuing story")

	raw, err := e.text.GenerateContinuation(ctx, theme, ageBand, narrative, choice)
	if err != nil {
		return nil, fmt.Errorf("story generation unavailable: %w", err)
	}

	cont := NormalizeContinuation(raw, ContinuationFallback(choice))
	desc := continuationContext(theme, choice, cont.IllustrationPrompts, cont.Paragraphs)
	ill := e.illustrate(ctx, sessionID, nextSeq, desc)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return nil, ErrNoActiveSession
	}

	rec := session.AppendScene(cont.Paragraphs, cont.Choices, ill.AssetKey, ill.ThumbnailKey)
	if cont.StoryComplete {
		session.StoryComplete = true
	}
	triggered := e.checkTriggerLocked(epoch)

	metrics.New("StoryWeaver").
		Dimension("Operation", "continue_story").
		Metric("SceneCount", float64(session.SceneCount), metrics.UnitCount).
		Count("StoryTurns").
		Flush()

	return &TurnResult{
		SessionID:            sessionID,
		StoryTitle:           title,
		Paragraphs:           cont.Paragraphs,
		Choices:              cont.Choices,
		Educational:          cont.EducationalMessage,
		SceneNumber:          rec.Sequence,
		Progress:             progressPercent(session.SceneCount, e.threshold),
		ImageURL:             ill.URL,
		StoryComplete:        cont.StoryComplete,
		CompilationTriggered: triggered,
	}, nil
}

// Status returns a snapshot of the active session, or an inactive status when
// no story has been started.
func (e *Engine) Status() SessionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return SessionStatus{Active: false}
	}

	s := e.session
	return SessionStatus{
		Active:               true,
		SessionID:            s.ID,
		Theme:                s.Theme,
		AgeBand:              s.AgeBand,
		StoryTitle:           s.Title,
		SceneCount:           s.SceneCount,
		Progress:             progressPercent(s.SceneCount, e.threshold),
		IllustrationCount:    len(s.AssetKeys()),
		CompilationTriggered: s.CompilationTriggered,
		StoryComplete:        s.StoryComplete,
		CompiledAssetKey:     s.CompiledAssetKey,
	}
}

// Scenes returns a copy of the active session's scene ledger, oldest first.
func (e *Engine) Scenes() []SceneRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	return append([]SceneRecord(nil), e.session.Scenes...)
}

// Reset tears down the session. Any in-flight turn or compilation belonging
// to the old session becomes stale: its epoch no longer matches, so it can
// never touch the replacement session.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		log.Info().Str("session_id", e.session.ID).Msg("Resetting story session")
	}
	e.session = nil
	e.busy = false
	e.epoch++
}

// RequestCompilation dispatches compilation for the active session on demand,
// ahead of (or regardless of) the automatic threshold trigger. The one-shot
// flag is set so the threshold does not dispatch a duplicate later.
func (e *Engine) RequestCompilation(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil || e.session.SceneCount == 0 {
		return ErrNoActiveSession
	}
	if sessionID != "" && sessionID != e.session.ID {
		return fmt.Errorf("unknown session %s", sessionID)
	}

	e.session.CompilationTriggered = true
	e.dispatchLocked(e.epoch)
	return nil
}

// RecordCompiledAsset stores the compiled video reference on the session that
// dispatched the compilation. Stale completions (session reset or replaced
// since dispatch) are dropped.
func (e *Engine) RecordCompiledAsset(sessionID, assetKey string, epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.epoch != epoch || e.session == nil || e.session.ID != sessionID {
		log.Debug().
			Str("session_id", sessionID).
			Msg("Dropping compiled asset for stale session")
		return
	}
	e.session.CompiledAssetKey = assetKey
}

// checkTriggerLocked arms the one-shot compilation trigger when the scene
// count first reaches the threshold. Returns true only on the firing turn.
func (e *Engine) checkTriggerLocked(epoch uint64) bool {
	s := e.session
	if s.CompilationTriggered || s.SceneCount < e.threshold {
		return false
	}

	s.CompilationTriggered = true
	log.Info().
		Str("session_id", s.ID).
		Int("scene_count", s.SceneCount).
		Msg("Scene threshold reached; dispatching video compilation")

	metrics.New("StoryWeaver").
		Count("CompilationsTriggered").
		Flush()

	e.dispatchLocked(epoch)
	return true
}

func (e *Engine) dispatchLocked(epoch uint64) {
	s := e.session
	snap := CompileSnapshot{
		SessionID: s.ID,
		Theme:     s.Theme,
		AgeBand:   s.AgeBand,
		Epoch:     epoch,
		Scenes:    append([]SceneRecord(nil), s.Scenes...),
	}
	e.dispatcher.Dispatch(snap)
}

// illustrate runs the optional illustration fan-out. Failure degrades the
// turn (no image) without failing it.
func (e *Engine) illustrate(ctx context.Context, sessionID string, sequence int, description string) Illustration {
	if e.illustrator == nil {
		return Illustration{}
	}

	start := time.Now()
	ill, err := e.illustrator.Illustrate(ctx, sessionID, sequence, description)
	if err != nil {
		log.Warn().
			Err(err).
			Str("session_id", sessionID).
			Int("scene", sequence).
			Msg("Scene illustration failed; continuing without image")
		metrics.New("StoryWeaver").
			Dimension("Result", "error").
			Count("IllustrationResults").
			Flush()
		return Illustration{}
	}

	metrics.New("StoryWeaver").
		Dimension("Result", "success").
		Metric("IllustrationMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
		Count("IllustrationResults").
		Flush()
	return ill
}

func (e *Engine) finishTurn(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// A reset during the turn already cleared the busy flag for its epoch.
	if e.epoch == epoch {
		e.busy = false
	}
}

// progressPercent reports min(count/threshold*100, 100), clamped so extra
// turns past the threshold never exceed 100.
func progressPercent(count, threshold int) int {
	p := count * 100 / threshold
	if p > 100 {
		p = 100
	}
	return p
}

// illustrationContext describes the opening scene for the image model using
// the first illustration prompt when available.
func illustrationContext(theme string, prompts, paragraphs []string) string {
	if len(prompts) > 0 {
		return fmt.Sprintf("%s (story theme: %s)", prompts[0], theme)
	}
	if len(paragraphs) > 0 {
		return fmt.Sprintf("%s (story theme: %s)", paragraphs[0], theme)
	}
	return "A gentle storybook scene about " + theme
}

// continuationContext describes only the newest scene, carrying theme and
// choice so the illustration stays visually consistent.
func continuationContext(theme, choice string, prompts, paragraphs []string) string {
	base := ""
	if len(prompts) > 0 {
		base = prompts[0]
	} else if len(paragraphs) > 0 {
		base = paragraphs[0]
	}
	if base == "" {
		return fmt.Sprintf("A gentle storybook scene about %s, after choosing to %s", theme, choice)
	}
	return fmt.Sprintf("%s (story theme: %s; the reader chose: %s)", base, theme, choice)
}
