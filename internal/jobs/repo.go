package jobs

import (
	"context"
	"time"
)

// Repo defines job persistence operations.
type Repo interface {
	Create(ctx context.Context, draft Draft) (Job, error)
	GetByID(ctx context.Context, id int64) (Job, error)
	List(ctx context.Context, filter ListFilter) ([]Job, error)
	// UpdateStatus is a locked read-modify-write of the status fields.
	UpdateStatus(ctx context.Context, id int64, update StatusUpdate) (Job, error)
	// Claim moves a queued job to processing at 10% or returns ErrNotClaimable.
	Claim(ctx context.Context, id int64) (Job, error)
	UpdateFields(ctx context.Context, id int64, patch Patch) (Job, error)
	Delete(ctx context.Context, id int64) (bool, error)
	// FailStale fails jobs left in processing with message. Only jobs whose
	// last update is older than olderThan are touched; olderThan <= 0 fails
	// every processing job.
	FailStale(ctx context.Context, message string, olderThan time.Duration) (int, error)
	// ClearFolder detaches every job from folderID.
	ClearFolder(ctx context.Context, folderID int64) (int, error)
}

// SettingsRepo stores key/value configuration.
type SettingsRepo interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error
}
