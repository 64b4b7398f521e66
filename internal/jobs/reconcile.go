package jobs

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/shared/telemetry"
)

// InterruptedMessage is recorded on jobs found processing at startup.
const InterruptedMessage = "interrupted: process restarted before completion"

// ReconcileResult counts what Reconcile changed.
type ReconcileResult struct {
	Failed   int
	Requeued int
	// Skipped counts queued jobs the dispatcher refused. They stay queued.
	Skipped int
}

// Reconcile repairs state left by a previous process. Jobs stuck in
// processing for longer than staleAfter are failed (staleAfter <= 0 fails
// all of them, which is only safe when no worker is running). Queued jobs
// are then handed to the dispatcher again in submission order. A nil
// dispatcher only performs the first step.
func Reconcile(ctx context.Context, repo Repo, dispatcher Dispatcher, staleAfter time.Duration) (ReconcileResult, error) {
	var res ReconcileResult

	failed, err := repo.FailStale(ctx, InterruptedMessage, staleAfter)
	if err != nil {
		return res, errors.Wrap(err, "fail stale jobs")
	}
	res.Failed = failed

	if dispatcher != nil {
		queued, err := repo.List(ctx, ListFilter{Status: StatusQueued})
		if err != nil {
			return res, errors.Wrap(err, "list queued jobs")
		}
		sort.Slice(queued, func(i, j int) bool { return queued[i].ID < queued[j].ID })
		for _, job := range queued {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if err := dispatcher.Submit(ctx, job.ID); err != nil {
				res.Skipped++
				telemetry.Warn("jobs.requeue_skipped", map[string]any{"job_id": job.ID, "error": err.Error()})
				continue
			}
			res.Requeued++
		}
	}

	telemetry.Info("jobs.reconciled", map[string]any{
		"failed":      res.Failed,
		"requeued":    res.Requeued,
		"skipped":     res.Skipped,
		"stale_after": staleAfter.String(),
	})
	return res, nil
}
