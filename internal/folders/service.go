package folders

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/documents"
	"docflow-backend/internal/jobs"
	"docflow-backend/internal/shared/storage/object"
	"docflow-backend/internal/shared/telemetry"
)

// JobStore is the subset of the job store folders need.
type JobStore interface {
	List(ctx context.Context, filter jobs.ListFilter) ([]jobs.Job, error)
	ClearFolder(ctx context.Context, folderID int64) (int, error)
}

// DocumentStore is the subset of the document store folders need.
type DocumentStore interface {
	List(ctx context.Context, filter documents.ListFilter) ([]documents.Document, error)
	ClearFolder(ctx context.Context, folderID int64) (int, error)
}

// Service manages folders and their contents.
type Service struct {
	Repo      Repo
	Jobs      JobStore
	Documents DocumentStore
	Store     object.ObjectStore
}

// Create validates and stores a folder.
func (s *Service) Create(ctx context.Context, draft Draft) (Folder, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	if draft.Name == "" {
		return Folder{}, errors.Wrap(ErrInvalidInput, "name is required")
	}
	if strings.TrimSpace(draft.Color) == "" {
		draft.Color = DefaultColor
	}
	if draft.ParentID != nil {
		if err := s.checkParent(ctx, 0, *draft.ParentID); err != nil {
			return Folder{}, err
		}
	}
	f, err := s.Repo.Create(ctx, draft)
	if err != nil {
		return Folder{}, err
	}
	telemetry.Info("folder.created", map[string]any{"folder_id": f.ID})
	return f, nil
}

// Get returns a folder by ID.
func (s *Service) Get(ctx context.Context, id int64) (Folder, error) {
	return s.Repo.GetByID(ctx, id)
}

// List returns folders ordered by name.
func (s *Service) List(ctx context.Context) ([]Folder, error) {
	return s.Repo.List(ctx)
}

// Exists reports whether a folder exists.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (Folder, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Folder{}, errors.Wrap(ErrInvalidInput, "name cannot be empty")
		}
		patch.Name = &name
	}
	if patch.ParentID != nil {
		if err := s.checkParent(ctx, id, *patch.ParentID); err != nil {
			return Folder{}, err
		}
	}
	return s.Repo.Update(ctx, id, patch)
}

// Delete detaches jobs and documents from the folder, then removes it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.Repo.GetByID(ctx, id); err != nil {
		return err
	}
	detachedJobs, err := s.Jobs.ClearFolder(ctx, id)
	if err != nil {
		return errors.Wrap(err, "detach jobs")
	}
	detachedDocs, err := s.Documents.ClearFolder(ctx, id)
	if err != nil {
		return errors.Wrap(err, "detach documents")
	}
	deleted, err := s.Repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	telemetry.Info("folder.deleted", map[string]any{
		"folder_id": id,
		"jobs":      detachedJobs,
		"documents": detachedDocs,
	})
	return nil
}

// DocumentCount returns the number of jobs and documents in the folder.
func (s *Service) DocumentCount(ctx context.Context, id int64) (int, error) {
	js, ds, err := s.contents(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(js) + len(ds), nil
}

func (s *Service) contents(ctx context.Context, id int64) ([]jobs.Job, []documents.Document, error) {
	js, err := s.Jobs.List(ctx, jobs.ListFilter{FolderID: &id})
	if err != nil {
		return nil, nil, errors.Wrap(err, "list folder jobs")
	}
	ds, err := s.Documents.List(ctx, documents.ListFilter{FolderID: &id})
	if err != nil {
		return nil, nil, errors.Wrap(err, "list folder documents")
	}
	return js, ds, nil
}

// checkParent rejects unknown parents and parents that would form a cycle.
func (s *Service) checkParent(ctx context.Context, id, parentID int64) error {
	seen := map[int64]bool{}
	cur := parentID
	for {
		if cur == id {
			return errors.Wrap(ErrInvalidInput, "folder cannot be its own ancestor")
		}
		if seen[cur] {
			return nil
		}
		seen[cur] = true
		f, err := s.Repo.GetByID(ctx, cur)
		if errors.Is(err, ErrNotFound) {
			if cur != parentID {
				return nil
			}
			return errors.Wrapf(ErrInvalidInput, "parent folder %d not found", cur)
		}
		if err != nil {
			return err
		}
		if f.ParentID == nil {
			return nil
		}
		cur = *f.ParentID
	}
}
