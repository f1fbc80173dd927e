package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/khuang/storyweaver/internal/bundle"
	"github.com/khuang/storyweaver/internal/compile"
	"github.com/khuang/storyweaver/internal/progress"
	"github.com/khuang/storyweaver/internal/story"
	"github.com/rs/zerolog/log"
)

// server holds the wired components behind the HTTP API. progress and bundler
// are nil when their backends are not configured.
type server struct {
	engine   *story.Engine
	registry *compile.Registry
	progress progress.Store
	bundler  *bundle.Builder
}

type startRequest struct {
	Theme   string `json:"theme"`
	AgeBand string `json:"age_band"`
}

type continueRequest struct {
	Choice string `json:"choice"`
}

type compileRequest struct {
	SessionID string `json:"session_id"`
}

type recordStoryRequest struct {
	UserID string `json:"user_id"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"active_session": s.engine.Status().Active,
	})
}

func (s *server) handleStoryStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.StartStory(r.Context(), req.Theme, req.AgeBand)
	if err != nil {
		s.turnError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *server) handleStoryContinue(w http.ResponseWriter, r *http.Request) {
	var req continueRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.ContinueStory(r.Context(), req.Choice)
	if err != nil {
		s.turnError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// turnError maps pipeline failures to HTTP statuses: caller mistakes are 4xx,
// upstream generation failures are 502.
func (s *server) turnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, story.ErrTurnInFlight):
		httpError(w, http.StatusConflict, err.Error())
	case errors.Is(err, story.ErrNoActiveSession):
		httpError(w, http.StatusNotFound, err.Error())
	default:
		msg := err.Error()
		if msg == "theme must not be empty" || msg == "choice must not be empty" {
			httpError(w, http.StatusBadRequest, msg)
			return
		}
		log.Error().Err(err).Msg("Story turn failed")
		httpError(w, http.StatusServiceUnavailable, "story generation failed, please try again")
	}
}

func (s *server) handleStoryStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Status())
}

func (s *server) handleStoryReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	s.engine.Reset()
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *server) handleStoryBundle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.bundler == nil {
		httpError(w, http.StatusServiceUnavailable, "asset storage not configured")
		return
	}

	status := s.engine.Status()
	if !status.Active {
		httpError(w, http.StatusNotFound, story.ErrNoActiveSession.Error())
		return
	}

	url, err := s.bundler.Build(r.Context(), status, s.engine.Scenes(), status.StoryTitle)
	if err != nil {
		log.Error().Err(err).Str("session_id", status.SessionID).Msg("Bundle build failed")
		httpError(w, http.StatusInternalServerError, "failed to build keepsake bundle")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"session_id": status.SessionID,
		"bundle_url": url,
	})
}

func (s *server) handleVideoCompile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req compileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.RequestCompilation(req.SessionID); err != nil {
		if errors.Is(err, story.ErrNoActiveSession) {
			httpError(w, http.StatusNotFound, err.Error())
			return
		}
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
}

func (s *server) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = s.engine.Status().SessionID
	}
	if sessionID == "" {
		httpError(w, http.StatusNotFound, "no session to report on")
		return
	}

	task, ok := s.registry.Get(sessionID)
	if !ok {
		httpError(w, http.StatusNotFound, "no compilation for session "+sessionID)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *server) handleProgress(w http.ResponseWriter, r *http.Request) {
	store, userID, ok := s.progressArgs(w, r)
	if !ok {
		return
	}

	profile, err := store.GetProfile(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load reader profile")
		httpError(w, http.StatusInternalServerError, "failed to load reader profile")
		return
	}
	if profile == nil {
		// A reader with no history is a valid, empty profile.
		profile = &progress.Profile{UserID: userID, Level: progress.Level(0)}
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *server) handleProgressStory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.progress == nil {
		httpError(w, http.StatusServiceUnavailable, "reader progress not configured")
		return
	}

	var req recordStoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		httpError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	status := s.engine.Status()
	if !status.Active {
		httpError(w, http.StatusNotFound, story.ErrNoActiveSession.Error())
		return
	}

	rec := &progress.StoryRecord{
		SessionID:        status.SessionID,
		Title:            status.StoryTitle,
		Theme:            status.Theme,
		SceneCount:       status.SceneCount,
		CompiledAssetKey: status.CompiledAssetKey,
	}
	profile, err := s.progress.RecordStory(r.Context(), req.UserID, rec)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to record story")
		httpError(w, http.StatusInternalServerError, "failed to record story")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *server) handleProgressStories(w http.ResponseWriter, r *http.Request) {
	store, userID, ok := s.progressArgs(w, r)
	if !ok {
		return
	}

	stories, err := store.ListStories(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list stories")
		httpError(w, http.StatusInternalServerError, "failed to list stories")
		return
	}
	if stories == nil {
		stories = []*progress.StoryRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"stories": stories,
	})
}

// progressArgs validates the shared preconditions of the progress read
// endpoints: a configured store and a user_id query parameter.
func (s *server) progressArgs(w http.ResponseWriter, r *http.Request) (progress.Store, string, bool) {
	if s.progress == nil {
		httpError(w, http.StatusServiceUnavailable, "reader progress not configured")
		return nil, "", false
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httpError(w, http.StatusBadRequest, "user_id query parameter is required")
		return nil, "", false
	}
	return s.progress, userID, true
}

// decodeBody parses a JSON request body, writing a 400 on failure. An empty
// body decodes to the zero value so optional fields stay optional.
func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
