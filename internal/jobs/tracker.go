package jobs

import (
	"fmt"
	"sync"
	"time"
)

// Well-known job identifiers.
const (
	JobFetchNews      = "fetch_news"
	JobAnalyzePending = "analyze_pending"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// State is the externally visible record of a job.
type State struct {
	Status       Status         `json:"status"`
	LastRunAt    *time.Time     `json:"last_run_at,omitempty"`
	LastDuration float64        `json:"last_duration_seconds,omitempty"`
	LastResult   map[string]any `json:"last_result,omitempty"`
	LastError    string         `json:"last_error,omitempty"`
}

// AlreadyRunningError is returned by Start when a job is still in
// flight.
type AlreadyRunningError struct {
	JobID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("job %s is already running", e.JobID)
}

// Tracker records the state of named jobs and guarantees that each job
// has at most one active run.
type Tracker struct {
	mu   sync.Mutex
	jobs map[string]*jobEntry

	now func() time.Time
}

type jobEntry struct {
	mu    sync.Mutex
	state State
}

// NewTracker creates an empty tracker. Unknown jobs are reported idle.
func NewTracker() *Tracker {
	return &Tracker{
		jobs: make(map[string]*jobEntry),
		now:  time.Now,
	}
}

func (t *Tracker) get(jobID string) *jobEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.jobs[jobID]
	if !ok {
		e = &jobEntry{state: State{Status: StatusIdle}}
		t.jobs[jobID] = e
	}
	return e
}

// Start transitions the job to running. If the job is already running
// it returns an AlreadyRunningError and leaves the state untouched. The
// check and the transition are atomic, so among any number of
// concurrent callers exactly one wins.
func (t *Tracker) Start(jobID string) error {
	e := t.get(jobID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status == StatusRunning {
		return &AlreadyRunningError{JobID: jobID}
	}
	started := t.now()
	e.state.Status = StatusRunning
	e.state.LastRunAt = &started
	e.state.LastDuration = 0
	e.state.LastResult = nil
	e.state.LastError = ""
	return nil
}

// Complete records the outcome of a run started with Start. A nil
// runErr marks the job completed, otherwise failed.
func (t *Tracker) Complete(jobID string, duration time.Duration, result map[string]any, runErr error) {
	e := t.get(jobID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.LastDuration = duration.Seconds()
	e.state.LastResult = result
	if runErr != nil {
		e.state.Status = StatusFailed
		e.state.LastError = runErr.Error()
		return
	}
	e.state.Status = StatusCompleted
	e.state.LastError = ""
}

// IsRunning reports whether the job currently has an active run.
func (t *Tracker) IsRunning(jobID string) bool {
	e := t.get(jobID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Status == StatusRunning
}

// Status returns the job's state. The bool is false when the job has
// never been started.
func (t *Tracker) Status(jobID string) (State, bool) {
	t.mu.Lock()
	e, ok := t.jobs[jobID]
	t.mu.Unlock()
	if !ok {
		return State{Status: StatusIdle}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// All returns a snapshot of every known job's state.
func (t *Tracker) All() map[string]State {
	t.mu.Lock()
	ids := make([]string, 0, len(t.jobs))
	for id := range t.jobs {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	out := make(map[string]State, len(ids))
	for _, id := range ids {
		if s, ok := t.Status(id); ok {
			out[id] = s
		}
	}
	return out
}
