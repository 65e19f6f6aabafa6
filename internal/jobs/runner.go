package jobs

import (
	"context"
	"log"
	"time"
)

// Func is the work a job performs. The returned map is stored as the
// job's last result.
type Func func(ctx context.Context) (map[string]any, error)

// Runner executes jobs against a tracker, either synchronously or in
// the background.
type Runner struct {
	tracker *Tracker
}

// NewRunner wraps a tracker.
func NewRunner(tracker *Tracker) *Runner {
	return &Runner{tracker: tracker}
}

// Tracker returns the underlying tracker for status queries.
func (r *Runner) Tracker() *Tracker {
	return r.tracker
}

// Run executes the job synchronously and returns its result. If the
// job is already running it returns an AlreadyRunningError without
// executing fn.
func (r *Runner) Run(ctx context.Context, jobID string, fn Func) (map[string]any, error) {
	if err := r.tracker.Start(jobID); err != nil {
		return nil, err
	}
	start := time.Now()
	result, err := fn(ctx)
	r.tracker.Complete(jobID, time.Since(start), result, err)
	return result, err
}

// Trigger starts the job in the background. It returns an
// AlreadyRunningError immediately if the job is in flight, otherwise
// nil once the run has been accepted. The outcome is recorded on the
// tracker when the goroutine finishes.
func (r *Runner) Trigger(ctx context.Context, jobID string, fn Func) error {
	if err := r.tracker.Start(jobID); err != nil {
		return err
	}
	go func() {
		start := time.Now()
		result, err := fn(ctx)
		r.tracker.Complete(jobID, time.Since(start), result, err)
		if err != nil {
			log.Printf("job %s failed: %v", jobID, err)
		}
	}()
	return nil
}
