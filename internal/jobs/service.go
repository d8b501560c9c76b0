package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/ihavenoenemy/mathcast/internal/logging"
)

// Recorder writes job history on behalf of the request handlers. Storage
// failures are logged and never fail the request.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logging.WithComponent(logging.OrDiscard(logger), "jobs"),
		now:    time.Now,
	}
}

// Start records a running job and returns it. A nil Recorder is a no-op.
func (r *Recorder) Start(ctx context.Context, typ string, attempt int, quality, input string) *Job {
	now := r.nowOrZero()
	j := &Job{
		ID:        NewID(),
		Type:      typ,
		Status:    StatusRunning,
		Attempt:   attempt,
		Quality:   quality,
		InputPath: input,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if r == nil {
		return j
	}
	if err := r.repo.Create(ctx, j); err != nil {
		r.logger.Warn("cannot record job", "type", typ, "error", err)
	}
	return j
}

// Finish marks j completed when runErr is nil and failed otherwise.
func (r *Recorder) Finish(ctx context.Context, j *Job, output string, runErr error, d time.Duration) {
	j.Status = StatusCompleted
	j.Error = ""
	if runErr != nil {
		j.Status = StatusFailed
		j.Error = runErr.Error()
	}
	j.OutputPath = output
	j.DurationMs = d.Milliseconds()
	if r == nil {
		return
	}
	j.UpdatedAt = r.now()
	if err := r.repo.Finish(ctx, j.ID, j.Status, output, j.Error, d); err != nil {
		r.logger.Warn("cannot update job", "job_id", j.ID, "error", err)
	}
}

// Get returns nil, nil for unknown ids.
func (r *Recorder) Get(ctx context.Context, id string) (*Job, error) {
	return r.repo.Get(ctx, id)
}

func (r *Recorder) List(ctx context.Context, f Filter) ([]*Job, error) {
	return r.repo.List(ctx, f)
}

func (r *Recorder) nowOrZero() time.Time {
	if r == nil {
		return time.Now()
	}
	return r.now()
}
