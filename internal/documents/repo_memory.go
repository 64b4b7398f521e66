package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]Document
	now    func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[int64]Document),
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, draft Draft) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := r.now()
	doc := Document{
		ID:               r.nextID,
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
	}
	r.byID[doc.ID] = doc
	return copyDocument(doc), nil
}

// GetByID returns a document by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byID[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return copyDocument(doc), nil
}

// List returns documents newest first.
func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Document, 0, len(r.byID))
	for _, doc := range r.byID {
		if filter.FolderID != nil && (doc.FolderID == nil || *doc.FolderID != *filter.FolderID) {
			continue
		}
		out = append(out, copyDocument(doc))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SetFolder assigns or clears (nil) the document's folder.
func (r *MemoryRepo) SetFolder(ctx context.Context, id int64, folderID *int64) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc.FolderID = cloneInt64(folderID)
	doc.UpdatedAt = r.now()
	r.byID[id] = doc
	return copyDocument(doc), nil
}

// ClearFolder detaches documents from a folder.
func (r *MemoryRepo) ClearFolder(ctx context.Context, folderID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, doc := range r.byID {
		if doc.FolderID == nil || *doc.FolderID != folderID {
			continue
		}
		doc.FolderID = nil
		doc.UpdatedAt = now
		r.byID[id] = doc
		n++
	}
	return n, nil
}
