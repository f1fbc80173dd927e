package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/khuang/storyweaver/internal/compile"
	"github.com/khuang/storyweaver/internal/story"
)

const openingResponse = `{
	"story_title": "The Star Garden",
	"paragraphs": ["Mila found a seed.", "It glowed like a tiny star.", "She planted it at once."],
	"choices": ["Water it", "Sing to it", "Wait for morning"],
	"illustration_prompts": ["A girl holding a glowing seed"],
	"mood": "magical",
	"educational_theme": "patience"
}`

type fakeText struct{}

func (fakeText) GenerateOpening(ctx context.Context, theme, ageBand string) (string, error) {
	return openingResponse, nil
}

func (fakeText) GenerateContinuation(ctx context.Context, theme, ageBand string, narrative []string, choice string) (string, error) {
	return openingResponse, nil
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(snap story.CompileSnapshot) {}

func newTestServer() *server {
	engine := story.NewEngine(story.Config{}, fakeText{}, nil, noopDispatcher{})
	return &server{engine: engine, registry: compile.NewRegistry()}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestStartStoryEndpoint(t *testing.T) {
	srv := newTestServer()

	rec := postJSON(t, srv.handleStoryStart, `{"theme": "space explorers"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result story.TurnResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if result.SessionID == "" {
		t.Error("response missing session_id")
	}
	if len(result.Paragraphs) == 0 || len(result.Choices) != 3 {
		t.Errorf("incomplete scene: %d paragraphs, %d choices", len(result.Paragraphs), len(result.Choices))
	}
	if result.SceneNumber != 1 {
		t.Errorf("expected scene 1, got %d", result.SceneNumber)
	}
}

func TestStartStoryEndpointRejectsEmptyTheme(t *testing.T) {
	srv := newTestServer()

	rec := postJSON(t, srv.handleStoryStart, `{"theme": "  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestContinueWithoutSessionReturns404(t *testing.T) {
	srv := newTestServer()

	rec := postJSON(t, srv.handleStoryContinue, `{"choice": "Water it"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStatusReflectsSession(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/story/status", nil)
	rec := httptest.NewRecorder()
	srv.handleStoryStatus(rec, req)

	var status story.SessionStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	if status.Active {
		t.Error("expected inactive status before any story")
	}

	postJSON(t, srv.handleStoryStart, `{"theme": "dragons"}`)

	rec = httptest.NewRecorder()
	srv.handleStoryStatus(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	if !status.Active || status.SceneCount != 1 {
		t.Errorf("unexpected status after start: %+v", status)
	}
}

func TestResetEndpoint(t *testing.T) {
	srv := newTestServer()
	postJSON(t, srv.handleStoryStart, `{"theme": "dragons"}`)

	rec := postJSON(t, srv.handleStoryReset, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if srv.engine.Status().Active {
		t.Error("session still active after reset")
	}
}

func TestVideoStatusWithoutCompilation(t *testing.T) {
	srv := newTestServer()
	postJSON(t, srv.handleStoryStart, `{"theme": "dragons"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/video/status", nil)
	rec := httptest.NewRecorder()
	srv.handleVideoStatus(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with no compilation, got %d", rec.Code)
	}
}

func TestVideoStatusReportsTask(t *testing.T) {
	srv := newTestServer()
	rec := postJSON(t, srv.handleStoryStart, `{"theme": "dragons"}`)

	var result story.TurnResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	srv.registry.Begin(result.SessionID, compile.Summarize("dragons", 6))

	req := httptest.NewRequest(http.MethodGet, "/api/video/status?session_id="+result.SessionID, nil)
	out := httptest.NewRecorder()
	srv.handleVideoStatus(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", out.Code)
	}

	var task compile.Task
	if err := json.Unmarshal(out.Body.Bytes(), &task); err != nil {
		t.Fatalf("invalid task JSON: %v", err)
	}
	if task.State != compile.StateProcessing {
		t.Errorf("expected processing task, got %q", task.State)
	}
}

func TestProgressUnavailableWithoutStore(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/progress?user_id=reader-1", nil)
	rec := httptest.NewRecorder()
	srv.handleProgress(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestBundleUnavailableWithoutStorage(t *testing.T) {
	srv := newTestServer()
	postJSON(t, srv.handleStoryStart, `{"theme": "dragons"}`)

	rec := postJSON(t, srv.handleStoryBundle, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
