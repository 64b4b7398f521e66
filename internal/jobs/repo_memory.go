package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores jobs and settings in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu       sync.RWMutex
	nextID   int64
	byID     map[int64]Job
	settings map[string]string
	now      func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:     make(map[int64]Job),
		settings: make(map[string]string),
		now:      nowUTC,
	}
}

// Create stores a new queued job.
func (r *MemoryRepo) Create(ctx context.Context, draft Draft) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := r.now()
	job := Job{
		ID:               r.nextID,
		OriginalFilename: draft.OriginalFilename,
		StoredFilename:   draft.StoredFilename,
		Engine:           draft.Engine,
		AutoDetect:       draft.AutoDetect,
		Language:         cloneString(draft.Language),
		Options:          draft.Options.clone(),
		Folder:           cloneString(draft.Folder),
		FolderID:         cloneInt64(draft.FolderID),
		Status:           StatusQueued,
		Progress:         0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.byID[job.ID] = job
	return copyJob(job), nil
}

// GetByID returns a job by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return copyJob(job), nil
}

// List returns jobs newest first.
func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	items := make([]Job, 0, len(r.byID))
	for _, job := range r.byID {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.FolderID != nil && (job.FolderID == nil || *job.FolderID != *filter.FolderID) {
			continue
		}
		items = append(items, copyJob(job))
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			return []Job{}, nil
		}
		items = items[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(items) {
		items = items[:filter.Limit]
	}
	return items, nil
}

// UpdateStatus applies a status update under the repo lock.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, id int64, update StatusUpdate) (Job, error) {
	return r.mutate(ctx, id, func(job *Job, now time.Time) error {
		return job.applyStatus(update, now)
	})
}

// Claim moves a queued job to processing.
func (r *MemoryRepo) Claim(ctx context.Context, id int64) (Job, error) {
	return r.mutate(ctx, id, func(job *Job, now time.Time) error {
		if job.Status != StatusQueued {
			return ErrNotClaimable
		}
		return job.applyStatus(StatusUpdate{Status: StatusProcessing, Progress: 10}, now)
	})
}

// UpdateFields applies a folder patch.
func (r *MemoryRepo) UpdateFields(ctx context.Context, id int64, patch Patch) (Job, error) {
	return r.mutate(ctx, id, func(job *Job, now time.Time) error {
		job.applyPatch(patch, now)
		return nil
	})
}

func (r *MemoryRepo) mutate(ctx context.Context, id int64, fn func(*Job, time.Time) error) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if err := fn(&job, r.now()); err != nil {
		return Job{}, err
	}
	r.byID[id] = job
	return copyJob(job), nil
}

// Delete removes a job row.
func (r *MemoryRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false, nil
	}
	delete(r.byID, id)
	return true, nil
}

// FailStale fails processing jobs not updated within olderThan.
func (r *MemoryRepo) FailStale(ctx context.Context, message string, olderThan time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	count := 0
	for id, job := range r.byID {
		if job.Status != StatusProcessing {
			continue
		}
		if olderThan > 0 && !job.UpdatedAt.Before(now.Add(-olderThan)) {
			continue
		}
		msg := message
		if err := job.applyStatus(StatusUpdate{Status: StatusFailed, Progress: 100, Error: &msg}, now); err != nil {
			return count, err
		}
		r.byID[id] = job
		count++
	}
	return count, nil
}

// ClearFolder detaches jobs from a folder.
func (r *MemoryRepo) ClearFolder(ctx context.Context, folderID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	count := 0
	for id, job := range r.byID {
		if job.FolderID == nil || *job.FolderID != folderID {
			continue
		}
		job.applyPatch(Patch{ClearFolderID: true}, now)
		r.byID[id] = job
		count++
	}
	return count, nil
}

// GetSetting returns a stored setting.
func (r *MemoryRepo) GetSetting(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.settings[key]
	return v, ok, nil
}

// PutSetting upserts a setting.
func (r *MemoryRepo) PutSetting(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[key] = value
	return nil
}

func copyJob(j Job) Job {
	j.Language = cloneString(j.Language)
	j.Folder = cloneString(j.Folder)
	j.FolderID = cloneInt64(j.FolderID)
	j.Error = cloneString(j.Error)
	j.OutputFilename = cloneString(j.OutputFilename)
	j.OutputMimeType = cloneString(j.OutputMimeType)
	j.TextExcerpt = cloneString(j.TextExcerpt)
	j.Summary = cloneString(j.Summary)
	j.Options = j.Options.clone()
	return j
}
