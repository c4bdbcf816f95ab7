package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"SessionLens/internal/domain/models"
	drepo "SessionLens/internal/domain/repository"
	applogger "SessionLens/pkg/logger"
	"SessionLens/pkg/queue"

	"github.com/google/uuid"
)

const RunJobType = "pipeline.run"

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, params RunParams) (*models.RunResult, error)
}

type runJobPayload struct {
	JobID     string `json:"job_id"`
	Path      string `json:"path,omitempty"`
	DatasetID string `json:"dataset_id,omitempty"`
	Persist   bool   `json:"persist,omitempty"`
}

// RunJobs submits runs to a work queue and executes them on the workers.
type RunJobs struct {
	runner Runner
	queue  queue.Publisher
	status drepo.JobStatusStore
	l      *applogger.Logger
	now    func() time.Time
	newID  func() string
}

func NewRunJobs(runner Runner, pub queue.Publisher, status drepo.JobStatusStore, l *applogger.Logger) *RunJobs {
	if l == nil {
		l = applogger.Nop()
	}
	return &RunJobs{runner: runner, queue: pub, status: status, l: l, now: time.Now, newID: uuid.NewString}
}

// Submit records a pending job and enqueues it. Only file and snapshot
// inputs can be queued.
func (j *RunJobs) Submit(ctx context.Context, params RunParams) (*models.JobStatus, error) {
	if params.Path == "" && params.DatasetID == "" {
		return nil, &models.RunError{Stage: "submit", Errors: []string{"no input given"}, Err: models.ErrEmptyDataset}
	}
	now := j.now().UTC()
	st := &models.JobStatus{
		ID:          j.newID(),
		State:       models.JobPending,
		Path:        params.Path,
		DatasetID:   params.DatasetID,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if err := j.status.Set(ctx, st); err != nil {
		return nil, err
	}

	payload := runJobPayload{JobID: st.ID, Path: params.Path, DatasetID: params.DatasetID, Persist: params.Persist}
	if _, err := j.queue.Enqueue(ctx, RunJobType, payload); err != nil {
		j.finish(ctx, st, models.JobFailed, "", []string{err.Error()})
		return nil, fmt.Errorf("enqueue run: %w", err)
	}
	j.l.Info("run queued", applogger.String("job_id", st.ID), applogger.String("path", st.Path), applogger.String("dataset", st.DatasetID))
	return st, nil
}

func (j *RunJobs) Status(ctx context.Context, jobID string) (*models.JobStatus, error) {
	return j.status.Get(ctx, jobID)
}

// Job is the queue consumer for submitted runs.
func (j *RunJobs) Job() queue.Job { return runJob{j} }

func (j *RunJobs) execute(ctx context.Context, p *runJobPayload) error {
	st, err := j.status.Get(ctx, p.JobID)
	if err != nil {
		if !errors.Is(err, models.ErrJobNotFound) {
			return err
		}
		// expired or never recorded; rebuild from the payload
		st = &models.JobStatus{ID: p.JobID, Path: p.Path, DatasetID: p.DatasetID, SubmittedAt: j.now().UTC()}
	}
	if st.Finished() {
		return nil
	}
	st.State = models.JobRunning
	st.Attempts++
	st.UpdatedAt = j.now().UTC()
	if err := j.status.Set(ctx, st); err != nil {
		return err
	}

	res, err := j.runner.Run(ctx, RunParams{Path: p.Path, DatasetID: p.DatasetID, Persist: p.Persist})
	if err != nil {
		msgs := []string{err.Error()}
		var re *models.RunError
		if errors.As(err, &re) && len(re.Errors) > 0 {
			msgs = re.Errors
		}
		if permanent(err) {
			j.finish(ctx, st, models.JobFailed, "", msgs)
			return nil
		}
		if d, ok := queue.DeliveryFrom(ctx); ok && d.Final {
			j.l.Warn("run retries exhausted", applogger.String("job_id", st.ID), applogger.Int("attempt", d.Attempt))
			j.finish(ctx, st, models.JobFailed, "", msgs)
			return err
		}
		j.finish(ctx, st, models.JobPending, "", msgs)
		return err
	}
	j.finish(ctx, st, models.JobDone, res.RunID, nil)
	return nil
}

func (j *RunJobs) finish(ctx context.Context, st *models.JobStatus, state models.JobState, runID string, errs []string) {
	st.State, st.RunID, st.Errors = state, runID, errs
	st.UpdatedAt = j.now().UTC()
	if err := j.status.Set(ctx, st); err != nil {
		j.l.Warn("job status write failed", applogger.String("job_id", st.ID), applogger.Error(err))
	}
}

// permanent reports failures that retrying the same input cannot fix.
func permanent(err error) bool {
	var (
		pe *models.ParseError
		ve *models.ValidationError
	)
	return errors.Is(err, models.ErrFileNotFound) ||
		errors.Is(err, models.ErrRunNotFound) ||
		errors.Is(err, models.ErrEmptyDataset) ||
		errors.As(err, &pe) ||
		errors.As(err, &ve)
}

type runJob struct{ jobs *RunJobs }

func (runJob) Name() string { return "pipeline-run" }

func (runJob) Type() string { return RunJobType }

func (r runJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.Decode[runJobPayload](payload)
	if err != nil {
		return err
	}
	return r.jobs.execute(ctx, p)
}
