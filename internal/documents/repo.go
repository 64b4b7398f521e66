package documents

import "context"

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, draft Draft) (Document, error)
	GetByID(ctx context.Context, id int64) (Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, error)
	SetFolder(ctx context.Context, id int64, folderID *int64) (Document, error)
	ClearFolder(ctx context.Context, folderID int64) (int, error)
}
