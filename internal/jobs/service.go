package jobs

import (
	"context"
	"io"
	"io/fs"
	"strings"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/shared/metrics"
	"docflow-backend/internal/shared/storage/object"
	"docflow-backend/internal/shared/telemetry"
	"docflow-backend/internal/shared/util"
)

// Dispatcher accepts job ids for background execution.
type Dispatcher interface {
	Submit(ctx context.Context, jobID int64) error
}

// FolderChecker reports whether a folder exists.
type FolderChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Service contains the submission and query logic for jobs.
type Service struct {
	Repo       Repo
	Settings   SettingsRepo
	Store      object.ObjectStore
	Dispatcher Dispatcher
	Folders    FolderChecker
}

// SubmitInput is one upload request.
type SubmitInput struct {
	FileName       string
	Content        io.Reader
	EngineOverride string
	AutoDetect     bool
	Language       string
	Folder         string
	FolderID       *int64
	// OptionsJSON is the raw client options payload; blank means none.
	OptionsJSON string
}

// Submit validates the request, stores the upload, creates a queued job and
// hands it to the dispatcher. Validation failures leave no trace on disk or
// in the store.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Job, error) {
	originalName := util.BaseName(in.FileName)
	if originalName == "" {
		return Job{}, errors.Wrap(ErrInvalidInput, "file name is required")
	}
	if in.Content == nil {
		return Job{}, errors.Wrap(ErrInvalidInput, "file content is required")
	}

	var engine EngineID
	if strings.TrimSpace(in.EngineOverride) != "" {
		parsed, err := ParseEngine(in.EngineOverride)
		if err != nil {
			return Job{}, err
		}
		engine = parsed
	} else {
		def, err := s.DefaultEngine(ctx)
		if err != nil {
			return Job{}, err
		}
		engine = def
	}

	options, err := ParseOptions(in.OptionsJSON)
	if err != nil {
		return Job{}, err
	}

	if in.FolderID != nil {
		if err := s.checkFolder(ctx, *in.FolderID); err != nil {
			return Job{}, err
		}
	}

	storedName, size, mimeType, err := s.Store.SaveUpload(ctx, originalName, in.Content)
	if err != nil {
		return Job{}, errors.Wrap(err, "save upload")
	}

	draft := Draft{
		OriginalFilename: originalName,
		StoredFilename:   storedName,
		Engine:           engine,
		AutoDetect:       in.AutoDetect,
		Options:          options,
		Folder:           normalizeFolderTag(in.Folder),
		FolderID:         cloneInt64(in.FolderID),
	}
	if lang := strings.TrimSpace(in.Language); lang != "" {
		draft.Language = &lang
	}

	job, err := s.Repo.Create(ctx, draft)
	if err != nil {
		if rmErr := s.Store.Remove(context.WithoutCancel(ctx), object.Uploads, storedName); rmErr != nil {
			telemetry.Warn("job.upload_cleanup_failed", map[string]any{"stored_filename": storedName, "error": rmErr.Error()})
		}
		return Job{}, err
	}

	metrics.IncJobSubmitted(string(engine))
	telemetry.Info("job.status", map[string]any{
		"job_id":            job.ID,
		"engine":            string(engine),
		"status":            string(StatusQueued),
		"status_transition": "->queued",
		"size_bytes":        size,
		"mime_type":         mimeType,
	})

	if err := s.Dispatcher.Submit(ctx, job.ID); err != nil {
		msg := "dispatch refused: " + err.Error()
		failed, updErr := s.Repo.UpdateStatus(context.WithoutCancel(ctx), job.ID, StatusUpdate{Status: StatusFailed, Progress: 100, Error: &msg})
		if updErr != nil {
			return Job{}, errors.Wrapf(updErr, "record dispatch failure for job %d", job.ID)
		}
		metrics.IncJobFailed(string(engine))
		telemetry.Error("job.dispatch_refused", map[string]any{"job_id": job.ID, "error": err.Error()})
		return failed, nil
	}
	return job, nil
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, id int64) (Job, error) {
	return s.Repo.GetByID(ctx, id)
}

// List returns jobs newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errors.Wrapf(ErrInvalidInput, "unknown status %q", filter.Status)
	}
	return s.Repo.List(ctx, filter)
}

// Update reassigns a job's folder tag or folder.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (Job, error) {
	if patch.FolderID != nil && !patch.ClearFolderID {
		if err := s.checkFolder(ctx, *patch.FolderID); err != nil {
			return Job{}, err
		}
	}
	return s.Repo.UpdateFields(ctx, id, patch)
}

// Delete removes the job's upload and output files, then the row. A worker
// still holding the job finds the row gone and drops its result.
func (s *Service) Delete(ctx context.Context, id int64) error {
	job, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.Remove(ctx, object.Uploads, job.StoredFilename); err != nil && !errors.Is(err, object.ErrInvalidKey) {
		return errors.Wrap(err, "remove upload")
	}
	if job.HasOutput() {
		if err := s.Store.Remove(ctx, object.Results, *job.OutputFilename); err != nil && !errors.Is(err, object.ErrInvalidKey) {
			return errors.Wrap(err, "remove output")
		}
	}
	deleted, err := s.Repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	telemetry.Info("job.deleted", map[string]any{"job_id": id})
	return nil
}

// DownloadOutput opens the job's result file.
func (s *Service) DownloadOutput(ctx context.Context, id int64) (io.ReadCloser, Job, error) {
	job, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, Job{}, err
	}
	if !job.HasOutput() {
		return nil, job, ErrOutputNotReady
	}
	rc, err := s.Store.Open(ctx, object.Results, *job.OutputFilename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, object.ErrInvalidKey) {
			return nil, job, ErrOutputMissing
		}
		return nil, job, err
	}
	return rc, job, nil
}

// DefaultEngine returns the configured default engine, falling back to
// DefaultEngine when unset or unreadable.
func (s *Service) DefaultEngine(ctx context.Context) (EngineID, error) {
	if s.Settings == nil {
		return DefaultEngine, nil
	}
	raw, ok, err := s.Settings.GetSetting(ctx, SettingDefaultEngine)
	if err != nil {
		return "", errors.Wrap(err, "read default engine")
	}
	if !ok {
		return DefaultEngine, nil
	}
	id, err := ParseEngine(raw)
	if err != nil {
		telemetry.Warn("settings.engine_invalid", map[string]any{"value": raw})
		return DefaultEngine, nil
	}
	return id, nil
}

// SetDefaultEngine stores a new default engine.
func (s *Service) SetDefaultEngine(ctx context.Context, raw string) (EngineID, error) {
	id, err := ParseEngine(raw)
	if err != nil {
		return "", err
	}
	if s.Settings == nil {
		return "", errors.New("settings store not configured")
	}
	if err := s.Settings.PutSetting(ctx, SettingDefaultEngine, string(id)); err != nil {
		return "", errors.Wrap(err, "store default engine")
	}
	return id, nil
}

func (s *Service) checkFolder(ctx context.Context, id int64) error {
	if s.Folders == nil {
		return nil
	}
	ok, err := s.Folders.Exists(ctx, id)
	if err != nil {
		return errors.Wrap(err, "check folder")
	}
	if !ok {
		return errors.Wrapf(ErrFolderNotFound, "folder %d", id)
	}
	return nil
}
