package folders

import (
	"context"
	"database/sql"
	"strings"
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

const folderColumns = `id, name, description, color, parent_id, created_at, updated_at`

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

// Create inserts a new folder.
func (r *SQLRepo) Create(ctx context.Context, draft Draft) (Folder, error) {
	const query = `
INSERT INTO folders (name, description, color, parent_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`
	now := r.now()
	var id int64
	err := r.DB.QueryRowContext(ctx, r.q(query),
		draft.Name, nullString(draft.Description), draft.Color, nullInt64(draft.ParentID), now, now,
	).Scan(&id)
	if err != nil {
		return Folder{}, errors.Wrap(err, "insert folder")
	}
	return copyFolder(Folder{
		ID:          id,
		Name:        draft.Name,
		Description: draft.Description,
		Color:       draft.Color,
		ParentID:    draft.ParentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}), nil
}

// GetByID returns a folder by ID.
func (r *SQLRepo) GetByID(ctx context.Context, id int64) (Folder, error) {
	row := r.DB.QueryRowContext(ctx, r.q(`SELECT `+folderColumns+` FROM folders WHERE id = ?`), id)
	f, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Folder{}, ErrNotFound
	}
	return f, err
}

// List returns folders ordered by name.
func (r *SQLRepo) List(ctx context.Context) ([]Folder, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+folderColumns+` FROM folders ORDER BY name, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list folders")
	}
	defer rows.Close()
	out := make([]Folder, 0)
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Update applies a partial update.
func (r *SQLRepo) Update(ctx context.Context, id int64, patch Patch) (Folder, error) {
	sets := []string{"updated_at = ?"}
	args := []any{r.now()}
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *patch.Color)
	}
	if patch.ParentID != nil {
		sets = append(sets, "parent_id = ?")
		args = append(args, *patch.ParentID)
	}
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, r.q(`UPDATE folders SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return Folder{}, errors.Wrap(err, "update folder")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Folder{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a folder row.
func (r *SQLRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, r.q(`DELETE FROM folders WHERE id = ?`), id)
	if err != nil {
		return false, errors.Wrap(err, "delete folder")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanFolder(row rowScanner) (Folder, error) {
	var (
		f           Folder
		description sql.NullString
		parentID    sql.NullInt64
	)
	if err := row.Scan(&f.ID, &f.Name, &description, &f.Color, &parentID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return Folder{}, err
	}
	if description.Valid {
		v := description.String
		f.Description = &v
	}
	if parentID.Valid {
		v := parentID.Int64
		f.ParentID = &v
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return f, nil
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
