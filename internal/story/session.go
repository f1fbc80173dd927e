// Package story holds the story-session state machine: the scene ledger, the
// generation pipeline that drives each turn, the response normalizer that
// absorbs malformed model output, and the threshold trigger that hands off
// to background video compilation.
package story

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SceneRecord is one completed turn of the story.
type SceneRecord struct {
	Sequence     int       `json:"sequence"`
	Paragraphs   []string  `json:"paragraphs"`
	Choices      []string  `json:"choices"`
	AssetKey     string    `json:"asset_key,omitempty"`
	ThumbnailKey string    `json:"thumbnail_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the scene ledger for one story: identity, theme, accumulated
// narrative, the current choice set, and per-scene records. All mutation goes
// through the Engine, which serializes access.
type Session struct {
	ID      string
	Theme   string
	AgeBand string
	Title   string

	Narrative     []string
	ActiveChoices []string
	SceneCount    int
	Scenes        []SceneRecord

	CompilationTriggered bool
	CompiledAssetKey     string
	StoryComplete        bool
	StartedAt            time.Time
}

// NewSession creates a fresh ledger with a generated identity.
func NewSession(theme, ageBand string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Theme:     theme,
		AgeBand:   ageBand,
		StartedAt: time.Now(),
	}
}

// EnsureID repairs a session observed with an empty identity by assigning a
// fresh one. An empty identity is a defect, never something to propagate.
func (s *Session) EnsureID() {
	if s.ID == "" {
		s.ID = uuid.NewString()
		log.Warn().Str("session_id", s.ID).Msg("Session had empty identity; assigned a new one")
	}
}

// AppendScene records a completed turn: increments the scene counter, extends
// the narrative, and replaces the active choice set. Inputs are validated by
// the pipeline before this is called; append itself cannot fail.
func (s *Session) AppendScene(paragraphs, choices []string, assetKey, thumbnailKey string) SceneRecord {
	s.SceneCount++
	rec := SceneRecord{
		Sequence:     s.SceneCount,
		Paragraphs:   paragraphs,
		Choices:      choices,
		AssetKey:     assetKey,
		ThumbnailKey: thumbnailKey,
		CreatedAt:    time.Now(),
	}
	s.Scenes = append(s.Scenes, rec)
	s.Narrative = append(s.Narrative, paragraphs...)
	s.ActiveChoices = choices
	return rec
}

// AssetKeys returns the non-empty illustration references in scene order.
func (s *Session) AssetKeys() []string {
	var keys []string
	for _, sc := range s.Scenes {
		if sc.AssetKey != "" {
			keys = append(keys, sc.AssetKey)
		}
	}
	return keys
}
