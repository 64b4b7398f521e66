package folders

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
	byID   map[int64]Folder
	now    func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[int64]Folder),
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Create stores a new folder.
func (r *MemoryRepo) Create(ctx context.Context, draft Draft) (Folder, error) {
	if err := ctx.Err(); err != nil {
		return Folder{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := r.now()
	f := Folder{
		ID:          r.nextID,
		Name:        draft.Name,
		Description: draft.Description,
		Color:       draft.Color,
		ParentID:    draft.ParentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f = copyFolder(f)
	r.byID[f.ID] = f
	return copyFolder(f), nil
}

// GetByID returns a folder by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (Folder, error) {
	if err := ctx.Err(); err != nil {
		return Folder{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byID[id]
	if !ok {
		return Folder{}, ErrNotFound
	}
	return copyFolder(f), nil
}

// List returns folders ordered by name.
func (r *MemoryRepo) List(ctx context.Context) ([]Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Folder, 0, len(r.byID))
	for _, f := range r.byID {
		out = append(out, copyFolder(f))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Update applies a partial update.
func (r *MemoryRepo) Update(ctx context.Context, id int64, patch Patch) (Folder, error) {
	if err := ctx.Err(); err != nil {
		return Folder{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.byID[id]
	if !ok {
		return Folder{}, ErrNotFound
	}
	f.apply(patch)
	f.UpdatedAt = r.now()
	r.byID[id] = f
	return copyFolder(f), nil
}

// Delete removes a folder. Children lose their parent.
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
	for childID, f := range r.byID {
		if f.ParentID != nil && *f.ParentID == id {
			f.ParentID = nil
			r.byID[childID] = f
		}
	}
	return true, nil
}
