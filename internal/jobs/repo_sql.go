package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/shared/storage/db"
	"docflow-backend/internal/shared/telemetry"
)

// SQLRepo implements Repo and SettingsRepo over database/sql for SQLite and Postgres.
type SQLRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
	Now     func() time.Time
}

const jobColumns = `id, original_filename, stored_filename, engine, auto_detect, language, folder, folder_id, options,
	status, progress, error, output_filename, output_mime_type, text_excerpt, summary, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepo) q(query string) string {
	return db.Rebind(r.Dialect, query)
}

func (r *SQLRepo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return nowUTC()
}

// Create inserts a new queued job.
func (r *SQLRepo) Create(ctx context.Context, draft Draft) (Job, error) {
	const query = `
INSERT INTO jobs (
	original_filename, stored_filename, engine, auto_detect, language, folder, folder_id, options,
	status, progress, created_at, updated_at
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`
	optionsBlob, err := encodeOptions(draft.Options)
	if err != nil {
		return Job{}, err
	}
	now := r.now()
	var id int64
	err = r.DB.QueryRowContext(ctx, r.q(query),
		draft.OriginalFilename,
		draft.StoredFilename,
		string(draft.Engine),
		draft.AutoDetect,
		nullString(draft.Language),
		nullString(draft.Folder),
		nullInt64(draft.FolderID),
		optionsBlob,
		string(StatusQueued),
		0,
		now,
		now,
	).Scan(&id)
	if err != nil {
		return Job{}, errors.Wrap(err, "insert job")
	}
	return Job{
		ID:               id,
		OriginalFilename: draft.OriginalFilename,
		StoredFilename:   draft.StoredFilename,
		Engine:           draft.Engine,
		AutoDetect:       draft.AutoDetect,
		Language:         cloneString(draft.Language),
		Options:          draft.Options.clone(),
		Folder:           cloneString(draft.Folder),
		FolderID:         cloneInt64(draft.FolderID),
		Status:           StatusQueued,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// GetByID returns a job by ID.
func (r *SQLRepo) GetByID(ctx context.Context, id int64) (Job, error) {
	row := r.DB.QueryRowContext(ctx, r.q(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	return job, err
}

// List returns jobs newest first.
func (r *SQLRepo) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.FolderID != nil {
		where = append(where, "folder_id = ?")
		args = append(args, *filter.FolderID)
	}
	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = 1 << 30
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	defer rows.Close()

	out := make([]Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// UpdateStatus applies a status update inside a locking transaction.
func (r *SQLRepo) UpdateStatus(ctx context.Context, id int64, update StatusUpdate) (Job, error) {
	return r.mutate(ctx, id, func(job *Job, now time.Time) error {
		return job.applyStatus(update, now)
	})
}

// Claim moves a queued job to processing inside a locking transaction.
func (r *SQLRepo) Claim(ctx context.Context, id int64) (Job, error) {
	return r.mutate(ctx, id, func(job *Job, now time.Time) error {
		if job.Status != StatusQueued {
			return ErrNotClaimable
		}
		return job.applyStatus(StatusUpdate{Status: StatusProcessing, Progress: 10}, now)
	})
}

// UpdateFields applies a folder patch.
func (r *SQLRepo) UpdateFields(ctx context.Context, id int64, patch Patch) (Job, error) {
	return r.mutate(ctx, id, func(job *Job, now time.Time) error {
		job.applyPatch(patch, now)
		return nil
	})
}

// mutate reads the row under a write lock, applies fn and writes the mutable
// columns back. On SQLite the immediate transaction holds the database write
// lock; on Postgres the row is selected FOR UPDATE.
func (r *SQLRepo) mutate(ctx context.Context, id int64, fn func(*Job, time.Time) error) (Job, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Job{}, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, r.q(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`+db.ForUpdate(r.Dialect)), id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}

	if err := fn(&job, r.now()); err != nil {
		return Job{}, err
	}

	const update = `
UPDATE jobs
SET status = ?, progress = ?, error = ?, output_filename = ?, output_mime_type = ?, text_excerpt = ?,
	summary = ?, folder = ?, folder_id = ?, updated_at = ?
WHERE id = ?`
	if _, err := tx.ExecContext(ctx, r.q(update),
		string(job.Status),
		job.Progress,
		nullString(job.Error),
		nullString(job.OutputFilename),
		nullString(job.OutputMimeType),
		nullString(job.TextExcerpt),
		nullString(job.Summary),
		nullString(job.Folder),
		nullInt64(job.FolderID),
		job.UpdatedAt,
		job.ID,
	); err != nil {
		return Job{}, errors.Wrap(err, "update job")
	}
	if err := tx.Commit(); err != nil {
		return Job{}, errors.Wrap(err, "commit job update")
	}
	return job, nil
}

// Delete removes a job row.
func (r *SQLRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, r.q(`DELETE FROM jobs WHERE id = ?`), id)
	if err != nil {
		return false, errors.Wrap(err, "delete job")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FailStale fails processing jobs not updated within olderThan.
func (r *SQLRepo) FailStale(ctx context.Context, message string, olderThan time.Duration) (int, error) {
	query := `
UPDATE jobs
SET status = ?, progress = 100, error = ?, output_filename = NULL, output_mime_type = NULL,
	text_excerpt = NULL, summary = NULL, updated_at = ?
WHERE status = ?`
	now := r.now()
	args := []any{string(StatusFailed), message, now, string(StatusProcessing)}
	if olderThan > 0 {
		query += ` AND updated_at < ?`
		args = append(args, now.Add(-olderThan))
	}
	res, err := r.DB.ExecContext(ctx, r.q(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "fail stale jobs")
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ClearFolder detaches jobs from a folder.
func (r *SQLRepo) ClearFolder(ctx context.Context, folderID int64) (int, error) {
	res, err := r.DB.ExecContext(ctx, r.q(`UPDATE jobs SET folder_id = NULL, updated_at = ? WHERE folder_id = ?`), r.now(), folderID)
	if err != nil {
		return 0, errors.Wrap(err, "clear job folder")
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// GetSetting returns a stored setting.
func (r *SQLRepo) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT value FROM settings WHERE key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "get setting")
	}
	return value, true, nil
}

// PutSetting upserts a setting.
func (r *SQLRepo) PutSetting(ctx context.Context, key, value string) error {
	const query = `INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	if _, err := r.DB.ExecContext(ctx, r.q(query), key, value); err != nil {
		return errors.Wrap(err, "put setting")
	}
	return nil
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job            Job
		engine, status string
		language       sql.NullString
		folder         sql.NullString
		folderID       sql.NullInt64
		options        sql.NullString
		errMsg         sql.NullString
		outputFilename sql.NullString
		outputMime     sql.NullString
		excerpt        sql.NullString
		summary        sql.NullString
	)
	if err := row.Scan(
		&job.ID,
		&job.OriginalFilename,
		&job.StoredFilename,
		&engine,
		&job.AutoDetect,
		&language,
		&folder,
		&folderID,
		&options,
		&status,
		&job.Progress,
		&errMsg,
		&outputFilename,
		&outputMime,
		&excerpt,
		&summary,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return Job{}, err
	}
	job.Engine = EngineID(engine)
	job.Status = Status(status)
	job.Language = stringPtr(language)
	job.Folder = stringPtr(folder)
	if folderID.Valid {
		id := folderID.Int64
		job.FolderID = &id
	}
	if options.Valid && options.String != "" {
		parsed, err := DecodeOptions([]byte(options.String))
		if err != nil {
			telemetry.Warn("job.options_unreadable", map[string]any{"job_id": job.ID, "error": err.Error()})
		} else {
			job.Options = parsed
		}
	}
	job.Error = stringPtr(errMsg)
	job.OutputFilename = stringPtr(outputFilename)
	job.OutputMimeType = stringPtr(outputMime)
	job.TextExcerpt = stringPtr(excerpt)
	job.Summary = stringPtr(summary)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return job, nil
}

func encodeOptions(o Options) (any, error) {
	if o.IsZero() {
		return nil, nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return nil, errors.Wrap(err, "encode options")
	}
	return string(b), nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
