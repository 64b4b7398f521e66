package documents

import (
	"strconv"
	"time"
)

// DocumentView is the outward-facing representation of a document.
type DocumentView struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Source           Source    `json:"source"`
	OriginalFilename *string   `json:"original_filename"`
	FileName         string    `json:"file_name"`
	MimeType         string    `json:"mime_type"`
	Summary          *string   `json:"summary"`
	JobID            *int64    `json:"job_id"`
	FolderID         *int64    `json:"folder_id"`
	CreatedAt        time.Time `json:"created_at"`
	DownloadURL      string    `json:"download_url"`
}

// ToView renders a document with a download link under prefix.
func ToView(doc Document, prefix string) DocumentView {
	return DocumentView{
		ID:               doc.ID,
		Title:            doc.Title,
		Source:           doc.Source,
		OriginalFilename: doc.OriginalFilename,
		FileName:         doc.FileName,
		MimeType:         doc.MimeType,
		Summary:          doc.Summary,
		JobID:            doc.JobID,
		FolderID:         doc.FolderID,
		CreatedAt:        doc.CreatedAt,
		DownloadURL:      prefix + "/word/documents/" + strconv.FormatInt(doc.ID, 10) + "/download",
	}
}

type documentResponse struct {
	Document DocumentView `json:"document"`
}

type generateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type fromJobRequest struct {
	Title string `json:"title"`
}

type updateDocumentRequest struct {
	FolderID *int64 `json:"folder_id"`
}
