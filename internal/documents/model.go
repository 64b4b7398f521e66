package documents

import "time"

// Source says how a document was produced.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceConverted Source = "converted"
)

// MimeDOCX is the content type of every stored document.
const MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Document is a Word file produced by the service.
type Document struct {
	ID               int64
	Title            string
	Source           Source
	OriginalFilename *string
	FileName         string
	MimeType         string
	Summary          *string
	JobID            *int64
	FolderID         *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Draft carries the fields needed to record a document.
type Draft struct {
	Title            string
	Source           Source
	OriginalFilename *string
	FileName         string
	Summary          *string
	JobID            *int64
	FolderID         *int64
}

// ListFilter narrows List results.
type ListFilter struct {
	FolderID *int64
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyDocument(d Document) Document {
	d.OriginalFilename = cloneString(d.OriginalFilename)
	d.Summary = cloneString(d.Summary)
	d.JobID = cloneInt64(d.JobID)
	d.FolderID = cloneInt64(d.FolderID)
	return d
}
