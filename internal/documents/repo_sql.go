package documents

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/shared/storage/db"
)

// SQLRepo implements Repo over database/sql for SQLite and Postgres.
type SQLRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
	Now     func() time.Time
}

const documentColumns = `id, title, source, original_filename, file_name, mime_type, summary, job_id, folder_id, created_at, updated_at`

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
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Create inserts a new document.
func (r *SQLRepo) Create(ctx context.Context, draft Draft) (Document, error) {
	const query = `
INSERT INTO word_documents (
	title, source, original_filename, file_name, mime_type, summary, job_id, folder_id, created_at, updated_at
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`
	now := r.now()
	var id int64
	err := r.DB.QueryRowContext(ctx, r.q(query),
		draft.Title,
		string(draft.Source),
		nullString(draft.OriginalFilename),
		draft.FileName,
		MimeDOCX,
		nullString(draft.Summary),
		nullInt64(draft.JobID),
		nullInt64(draft.FolderID),
		now,
		now,
	).Scan(&id)
	if err != nil {
		return Document{}, errors.Wrap(err, "insert document")
	}
	return Document{
		ID:               id,
		Title:            draft.Title,
		Source:           draft.Source,
		OriginalFilename: cloneString(draft.OriginalFilename),
		FileName:         draft.FileName,
		MimeType:         MimeDOCX,
		Summary:          cloneString(draft.Summary),
		JobID:            cloneInt64(draft.JobID),
		FolderID:         cloneInt64(draft.FolderID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// GetByID returns a document by ID.
func (r *SQLRepo) GetByID(ctx context.Context, id int64) (Document, error) {
	row := r.DB.QueryRowContext(ctx, r.q(`SELECT `+documentColumns+` FROM word_documents WHERE id = ?`), id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// List returns documents newest first.
func (r *SQLRepo) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM word_documents`
	var args []any
	if filter.FolderID != nil {
		query += ` WHERE folder_id = ?`
		args = append(args, *filter.FolderID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list documents")
	}
	defer rows.Close()

	out := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// SetFolder assigns or clears (nil) the document's folder.
func (r *SQLRepo) SetFolder(ctx context.Context, id int64, folderID *int64) (Document, error) {
	res, err := r.DB.ExecContext(ctx, r.q(`UPDATE word_documents SET folder_id = ?, updated_at = ? WHERE id = ?`), nullInt64(folderID), r.now(), id)
	if err != nil {
		return Document{}, errors.Wrap(err, "update document folder")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Document{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// ClearFolder detaches documents from a folder.
func (r *SQLRepo) ClearFolder(ctx context.Context, folderID int64) (int, error) {
	res, err := r.DB.ExecContext(ctx, r.q(`UPDATE word_documents SET folder_id = NULL, updated_at = ? WHERE folder_id = ?`), r.now(), folderID)
	if err != nil {
		return 0, errors.Wrap(err, "clear document folder")
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc      Document
		source   string
		original sql.NullString
		summary  sql.NullString
		jobID    sql.NullInt64
		folderID sql.NullInt64
	)
	if err := row.Scan(
		&doc.ID,
		&doc.Title,
		&source,
		&original,
		&doc.FileName,
		&doc.MimeType,
		&summary,
		&jobID,
		&folderID,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return Document{}, err
	}
	doc.Source = Source(source)
	if original.Valid {
		v := original.String
		doc.OriginalFilename = &v
	}
	if summary.Valid {
		v := summary.String
		doc.Summary = &v
	}
	if jobID.Valid {
		v := jobID.Int64
		doc.JobID = &v
	}
	if folderID.Valid {
		v := folderID.Int64
		doc.FolderID = &v
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
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
