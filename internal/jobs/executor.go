package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/llm"
	"docflow-backend/internal/shared/metrics"
	"docflow-backend/internal/shared/storage/object"
	"docflow-backend/internal/shared/telemetry"
	"docflow-backend/internal/shared/util"
)

// Executor runs one job from queued to a terminal status.
type Executor struct {
	Repo       Repo
	Engines    EngineResolver
	Summarizer llm.Summarizer
	Store      object.ObjectStore
	// Timeout bounds the engine call when positive.
	Timeout time.Duration

	leases leaseSet
}

// Process executes job id at most once. It returns nil when the job is
// missing, already owned by another worker, or no longer queued. Engine and
// input failures are recorded on the job; only store failures are returned.
func (e *Executor) Process(ctx context.Context, id int64) error {
	if !e.leases.acquire(id) {
		telemetry.Info("job.skip", map[string]any{"job_id": id, "reason": "lease_held"})
		return nil
	}
	defer e.leases.release(id)

	job, err := e.Repo.Claim(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		telemetry.Info("job.skip", map[string]any{"job_id": id, "reason": "not_found"})
		return nil
	case errors.Is(err, ErrNotClaimable):
		telemetry.Info("job.skip", map[string]any{"job_id": id, "reason": "not_queued"})
		return nil
	case err != nil:
		return errors.Wrapf(err, "claim job %d", id)
	}

	startedAt := time.Now()
	metrics.IncJobStarted()
	telemetry.Info("job.status", map[string]any{
		"job_id":            job.ID,
		"engine":            string(job.Engine),
		"status":            string(StatusProcessing),
		"status_transition": "queued->processing",
	})

	output, runErr := e.run(ctx, job)
	if runErr != nil {
		msg := sanitizeError(runErr)
		telemetry.Error("job.engine_failed", map[string]any{
			"job_id": job.ID,
			"engine": string(job.Engine),
			"error":  msg,
			"detail": fmt.Sprintf("%+v", runErr),
		})
		return e.finish(ctx, job, StatusUpdate{Status: StatusFailed, Progress: 100, Error: &msg}, startedAt)
	}
	return e.finish(ctx, job, StatusUpdate{Status: StatusCompleted, Progress: 100, Output: output}, startedAt)
}

func (e *Executor) run(ctx context.Context, job Job) (out *Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = errors.Newf("engine panic: %v", r)
		}
	}()

	inputPath, err := e.Store.Path(object.Uploads, job.StoredFilename)
	if err != nil {
		return nil, errors.Wrap(err, "resolve input")
	}
	if _, err := os.Stat(inputPath); err != nil {
		return nil, errors.Wrapf(err, "input file %s", job.StoredFilename)
	}

	engine, err := e.Engines.Engine(job.Engine)
	if err != nil {
		return nil, err
	}

	language := ""
	if !job.AutoDetect && job.Language != nil {
		language = strings.TrimSpace(*job.Language)
	}

	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	result, err := engine.Run(runCtx, EngineRequest{
		InputPath:  inputPath,
		ResultsDir: e.Store.Dir(object.Results),
		OutputStem: strconv.FormatInt(job.ID, 10),
		Options:    job.Options,
		Language:   language,
	})
	if err != nil {
		return nil, err
	}
	if result.OutputPath == "" {
		return nil, errors.New("engine returned no output file")
	}

	out = &Output{
		Filename: filepath.Base(result.OutputPath),
		MimeType: result.MimeType,
	}
	if result.TextExcerpt != nil {
		excerpt := util.TruncateRunes(*result.TextExcerpt, MaxExcerptRunes)
		out.TextExcerpt = &excerpt
		if strings.TrimSpace(excerpt) != "" {
			out.Summary = e.summarize(ctx, job, excerpt)
		}
	}
	return out, nil
}

// summarize never fails the job; errors and panics only drop the summary.
func (e *Executor) summarize(ctx context.Context, job Job, excerpt string) (summary *string) {
	if e.Summarizer == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.IncSummaryFailed()
			telemetry.Warn("job.summary_failed", map[string]any{"job_id": job.ID, "error": r})
			summary = nil
		}
	}()

	text, err := e.Summarizer.Summarize(ctx, llm.JobSummaryPrompt(excerpt))
	if err != nil {
		metrics.IncSummaryFailed()
		telemetry.Warn("job.summary_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &text
}

// finish commits the terminal status even if ctx was cancelled meanwhile.
// When the job was deleted or already moved to a terminal status elsewhere,
// the output written by this run is removed and nothing is recorded.
func (e *Executor) finish(ctx context.Context, job Job, update StatusUpdate, startedAt time.Time) error {
	ctx = context.WithoutCancel(ctx)
	_, err := e.Repo.UpdateStatus(ctx, job.ID, update)
	switch {
	case errors.Is(err, ErrNotFound):
		telemetry.Info("job.vanished", map[string]any{"job_id": job.ID, "status": string(update.Status)})
		e.discardOutput(ctx, job, update.Output)
		return nil
	case errors.Is(err, ErrInvalidTransition):
		telemetry.Warn("job.superseded", map[string]any{
			"job_id": job.ID,
			"status": string(update.Status),
			"error":  err.Error(),
		})
		e.discardOutput(ctx, job, update.Output)
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "record %s for job %d", update.Status, job.ID)
	}

	duration := time.Since(startedAt)
	if update.Status == StatusCompleted {
		metrics.IncJobCompleted(string(job.Engine))
	} else {
		metrics.IncJobFailed(string(job.Engine))
	}
	metrics.ObserveJobDuration(string(job.Engine), duration)
	telemetry.Info("job.status", map[string]any{
		"job_id":            job.ID,
		"engine":            string(job.Engine),
		"status":            string(update.Status),
		"status_transition": "processing->" + string(update.Status),
		"duration_ms":       float64(duration.Microseconds()) / 1000.0,
	})
	return nil
}

func (e *Executor) discardOutput(ctx context.Context, job Job, out *Output) {
	if out == nil || out.Filename == "" {
		return
	}
	if err := e.Store.Remove(ctx, object.Results, out.Filename); err != nil {
		telemetry.Warn("job.output_cleanup_failed", map[string]any{
			"job_id": job.ID,
			"file":   out.Filename,
			"error":  err.Error(),
		})
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 1000
	if len(msg) > maxLen {
		msg = util.TruncateRunes(msg, maxLen)
	}
	if msg == "" {
		msg = "unknown error"
	}
	return msg
}
