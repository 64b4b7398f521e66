package jobs

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// EngineID names one of the OCR engines.
type EngineID string

const (
	// EngineSearchablePDF produces a PDF with an embedded text layer.
	EngineSearchablePDF EngineID = "engine_a"
	// EngineMarkdown produces a structured markdown rendition.
	EngineMarkdown EngineID = "engine_b"
)

// DefaultEngine is used when no override is given and no default is stored.
const DefaultEngine = EngineMarkdown

// SettingDefaultEngine is the settings key holding the default engine.
const SettingDefaultEngine = "ocr_engine"

// MaxExcerptRunes bounds the stored text excerpt.
const MaxExcerptRunes = 2000

var engineAliases = map[string]EngineID{
	"engine_a": EngineSearchablePDF,
	"engine_b": EngineMarkdown,
	"ocrmypdf": EngineSearchablePDF,
	"docling":  EngineMarkdown,
}

// ParseEngine accepts the engine identifiers and their legacy aliases.
func ParseEngine(raw string) (EngineID, error) {
	if id, ok := engineAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return id, nil
	}
	return "", errors.Wrapf(ErrInvalidEngine, "%q", raw)
}

// Job is one unit of OCR work.
type Job struct {
	ID               int64
	OriginalFilename string
	StoredFilename   string
	Engine           EngineID
	AutoDetect       bool
	Language         *string
	Options          Options
	Folder           *string
	FolderID         *int64
	Status           Status
	Progress         int
	Error            *string
	OutputFilename   *string
	OutputMimeType   *string
	TextExcerpt      *string
	Summary          *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasOutput reports whether the job has a downloadable result.
func (j Job) HasOutput() bool {
	return j.OutputFilename != nil && *j.OutputFilename != ""
}

// Draft carries the fields needed to create a job.
type Draft struct {
	OriginalFilename string
	StoredFilename   string
	Engine           EngineID
	AutoDetect       bool
	Language         *string
	Options          Options
	Folder           *string
	FolderID         *int64
}

// Output holds the result fields recorded on completion.
type Output struct {
	Filename    string
	MimeType    string
	TextExcerpt *string
	Summary     *string
}

// StatusUpdate moves a job to a new status.
type StatusUpdate struct {
	Status   Status
	Progress int
	Error    *string
	Output   *Output
}

// Patch reassigns a job's folder fields. Nil fields are left unchanged.
type Patch struct {
	Folder        *string
	FolderID      *int64
	ClearFolderID bool
}

// ListFilter narrows List results. Zero values mean no filter.
type ListFilter struct {
	Status   Status
	FolderID *int64
	Limit    int
	Offset   int
}

func canTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusQueued || to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusProcessing || to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// applyStatus validates u against j and writes it. Output fields are kept only
// for completed jobs and the error only for failed ones.
func (j *Job) applyStatus(u StatusUpdate, now time.Time) error {
	if !u.Status.Valid() {
		return errors.Wrapf(ErrInvalidTransition, "unknown status %q", u.Status)
	}
	if !canTransition(j.Status, u.Status) {
		return errors.Wrapf(ErrInvalidTransition, "%s->%s", j.Status, u.Status)
	}
	if u.Progress < 0 || u.Progress > 100 {
		return errors.Wrapf(ErrInvalidInput, "progress %d out of range", u.Progress)
	}
	if u.Status == StatusCompleted && (u.Output == nil || u.Output.Filename == "") {
		return errors.Wrap(ErrInvalidInput, "completed job requires an output")
	}

	j.Status = u.Status
	j.Progress = u.Progress
	j.Error = nil
	j.OutputFilename, j.OutputMimeType, j.TextExcerpt, j.Summary = nil, nil, nil, nil

	switch u.Status {
	case StatusFailed:
		msg := "unknown error"
		if u.Error != nil && *u.Error != "" {
			msg = *u.Error
		}
		j.Error = &msg
	case StatusCompleted:
		name, mime := u.Output.Filename, u.Output.MimeType
		j.OutputFilename = &name
		j.OutputMimeType = &mime
		j.TextExcerpt = cloneString(u.Output.TextExcerpt)
		j.Summary = cloneString(u.Output.Summary)
	}
	j.UpdatedAt = now
	return nil
}

func (j *Job) applyPatch(p Patch, now time.Time) {
	if p.Folder != nil {
		j.Folder = normalizeFolderTag(*p.Folder)
	}
	if p.ClearFolderID {
		j.FolderID = nil
	} else if p.FolderID != nil {
		id := *p.FolderID
		j.FolderID = &id
	}
	j.UpdatedAt = now
}

// normalizeFolderTag stores blank and "default" tags as null.
func normalizeFolderTag(tag string) *string {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" || strings.EqualFold(trimmed, "default") {
		return nil
	}
	return &trimmed
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

func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
