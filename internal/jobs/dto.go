package jobs

import (
	"strconv"
	"time"
)

// JobView is the outward-facing representation of a job.
type JobView struct {
	ID               int64          `json:"id"`
	OriginalFilename string         `json:"original_filename"`
	Engine           EngineID       `json:"engine"`
	AutoDetect       bool           `json:"auto_detect"`
	Language         *string        `json:"language"`
	Folder           *string        `json:"folder"`
	FolderID         *int64         `json:"folder_id"`
	Status           Status         `json:"status"`
	Progress         int            `json:"progress"`
	Error            *string        `json:"error"`
	OutputFilename   *string        `json:"output_filename"`
	OutputMimeType   *string        `json:"output_mime_type"`
	TextExcerpt      *string        `json:"text_excerpt"`
	Summary          *string        `json:"summary"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DownloadURL      *string        `json:"download_url"`
	Options          map[string]any `json:"options,omitempty"`
}

// ToView renders a job. prefix is the API mount prefix used for download
// links; withOptions includes the parsed options for detail views.
func ToView(job Job, prefix string, withOptions bool) JobView {
	v := JobView{
		ID:               job.ID,
		OriginalFilename: job.OriginalFilename,
		Engine:           job.Engine,
		AutoDetect:       job.AutoDetect,
		Language:         job.Language,
		Folder:           job.Folder,
		FolderID:         job.FolderID,
		Status:           job.Status,
		Progress:         job.Progress,
		Error:            job.Error,
		OutputFilename:   job.OutputFilename,
		OutputMimeType:   job.OutputMimeType,
		TextExcerpt:      job.TextExcerpt,
		Summary:          job.Summary,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}
	if job.HasOutput() {
		url := prefix + "/ocr/jobs/" + strconv.FormatInt(job.ID, 10) + "/download"
		v.DownloadURL = &url
	}
	if withOptions && !job.Options.IsZero() {
		v.Options = job.Options.Map()
	}
	return v
}

type updateJobRequest struct {
	Folder   *string       `json:"folder"`
	FolderID optionalInt64 `json:"folder_id"`
}

// optionalInt64 distinguishes an absent field from an explicit null.
type optionalInt64 struct {
	Set   bool
	Value *int64
}

func (o *optionalInt64) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	o.Value = &n
	return nil
}

type engineSettingRequest struct {
	Engine string `json:"engine"`
}

type engineSettingResponse struct {
	Engine EngineID `json:"engine"`
}
