package compile

import (
	"sync"
	"time"
)

// State is a compilation task's lifecycle position.
type State string

const (
	StateProcessing State = "processing"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// Task records one compilation run, keyed by session id. Populated
// asynchronously by the background worker, read by status polls.
type Task struct {
	SessionID  string    `json:"session_id"`
	State      State     `json:"state"`
	AssetKey   string    `json:"asset_key,omitempty"`
	StorageURL string    `json:"storage_url,omitempty"`
	Category   string    `json:"category,omitempty"`
	Mood       string    `json:"mood,omitempty"`
	Seeded     bool      `json:"seeded"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Registry is the concurrent-safe map of compilation tasks.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]Task
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Begin records a new processing task, replacing any earlier task for the
// same session.
func (r *Registry) Begin(sessionID string, sum Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[sessionID] = Task{
		SessionID: sessionID,
		State:     StateProcessing,
		Category:  sum.Category,
		Mood:      sum.Mood,
		StartedAt: time.Now(),
	}
}

// Complete marks a task successful with its stored asset.
func (r *Registry) Complete(sessionID, assetKey, storageURL string, seeded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tasks[sessionID]
	t.SessionID = sessionID
	t.State = StateSuccess
	t.AssetKey = assetKey
	t.StorageURL = storageURL
	t.Seeded = seeded
	t.FinishedAt = time.Now()
	r.tasks[sessionID] = t
}

// Fail marks a task failed with a human-readable description.
func (r *Registry) Fail(sessionID, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tasks[sessionID]
	t.SessionID = sessionID
	t.State = StateError
	t.Error = errMsg
	t.FinishedAt = time.Now()
	r.tasks[sessionID] = t
}

// Get returns the task for a session, if any.
func (r *Registry) Get(sessionID string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[sessionID]
	return t, ok
}

// Clear removes the task for a session.
func (r *Registry) Clear(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, sessionID)
}
