package folders

import "time"

// FolderView is the outward-facing representation of a folder.
type FolderView struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description"`
	Color         string    `json:"color"`
	ParentID      *int64    `json:"parent_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	DocumentCount int       `json:"document_count"`
}

// ToView renders a folder with its content count.
func ToView(f Folder, count int) FolderView {
	return FolderView{
		ID:            f.ID,
		Name:          f.Name,
		Description:   f.Description,
		Color:         f.Color,
		ParentID:      f.ParentID,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
		DocumentCount: count,
	}
}

type createFolderRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Color       string  `json:"color"`
	ParentID    *int64  `json:"parent_id"`
}

type updateFolderRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	ParentID    *int64  `json:"parent_id"`
}
