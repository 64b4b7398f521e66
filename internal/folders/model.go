package folders

import (
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultColor is used when a folder is created without a color.
const DefaultColor = "green"

var (
	ErrNotFound     = errors.New("folder not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Folder groups jobs and documents.
type Folder struct {
	ID          int64
	Name        string
	Description *string
	Color       string
	ParentID    *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Draft carries the fields for a new folder.
type Draft struct {
	Name        string
	Description *string
	Color       string
	ParentID    *int64
}

// Patch holds a partial update. Nil fields are left unchanged.
type Patch struct {
	Name        *string
	Description *string
	Color       *string
	ParentID    *int64
}

func copyFolder(f Folder) Folder {
	if f.Description != nil {
		v := *f.Description
		f.Description = &v
	}
	if f.ParentID != nil {
		v := *f.ParentID
		f.ParentID = &v
	}
	return f
}

func (f *Folder) apply(p Patch) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Description != nil {
		v := *p.Description
		f.Description = &v
	}
	if p.Color != nil {
		f.Color = *p.Color
	}
	if p.ParentID != nil {
		v := *p.ParentID
		f.ParentID = &v
	}
}
