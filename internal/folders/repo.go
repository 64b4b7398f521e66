package folders

import "context"

// Repo defines folder persistence operations.
type Repo interface {
	Create(ctx context.Context, draft Draft) (Folder, error)
	GetByID(ctx context.Context, id int64) (Folder, error)
	// List returns folders ordered by name.
	List(ctx context.Context) ([]Folder, error)
	Update(ctx context.Context, id int64, patch Patch) (Folder, error)
	Delete(ctx context.Context, id int64) (bool, error)
}
