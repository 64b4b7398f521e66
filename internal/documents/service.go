package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"docflow-backend/internal/jobs"
	"docflow-backend/internal/llm"
	"docflow-backend/internal/shared/storage/object"
	"docflow-backend/internal/shared/telemetry"
	"docflow-backend/internal/shared/util"
)

const (
	defaultGeneratedTitle = "Document fara titlu"
	defaultConvertedTitle = "Document convertit"
	maxConvertBytes       = 100 << 20
)

// Converter turns an uploaded file into markdown.
type Converter interface {
	Convert(ctx context.Context, data []byte, fileName string) (string, error)
}

// JobSource reads OCR jobs and their outputs.
type JobSource interface {
	Get(ctx context.Context, id int64) (jobs.Job, error)
	DownloadOutput(ctx context.Context, id int64) (io.ReadCloser, jobs.Job, error)
}

// FolderChecker reports whether a folder exists.
type FolderChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Service builds and serves Word documents.
type Service struct {
	Repo       Repo
	Store      object.ObjectStore
	Jobs       JobSource
	Converter  Converter
	Summarizer llm.Summarizer
	Folders    FolderChecker
	Now        func() time.Time
}

// ConvertInput describes an upload to convert.
type ConvertInput struct {
	Title    string
	FileName string
	Content  io.Reader
	JobID    *int64
}

// Generate writes a document from plain text. Each line becomes a paragraph.
func (s *Service) Generate(ctx context.Context, title, content string) (Document, error) {
	if strings.TrimSpace(content) == "" {
		return Document{}, errors.Wrap(ErrInvalidInput, "content is required")
	}
	title = strings.TrimSpace(title)
	blocks := textBlocks(title, content)
	if title == "" {
		title = defaultGeneratedTitle
	}
	summary := s.summarize(ctx, llm.DocumentSummaryPrompt(content))
	return s.store(ctx, blocks, Draft{
		Title:   title,
		Source:  SourceGenerated,
		Summary: summary,
	})
}

// Convert reads an upload into memory, extracts markdown from it and wraps
// the result into a document. The upload is never written to disk.
func (s *Service) Convert(ctx context.Context, in ConvertInput) (Document, error) {
	name := util.BaseName(in.FileName)
	if name == "" || in.Content == nil {
		return Document{}, errors.Wrap(ErrInvalidInput, "file is required")
	}
	if in.JobID != nil {
		if _, err := s.Jobs.Get(ctx, *in.JobID); err != nil {
			if errors.Is(err, jobs.ErrNotFound) {
				return Document{}, errors.Wrapf(ErrInvalidInput, "job %d not found", *in.JobID)
			}
			return Document{}, errors.Wrap(err, "load job")
		}
	}
	data, err := io.ReadAll(io.LimitReader(in.Content, maxConvertBytes+1))
	if err != nil {
		return Document{}, errors.Wrap(err, "read upload")
	}
	if len(data) == 0 {
		return Document{}, errors.Wrap(ErrInvalidInput, "file is empty")
	}
	if len(data) > maxConvertBytes {
		return Document{}, errors.Wrap(ErrInvalidInput, "file is too large")
	}

	md, err := s.Converter.Convert(ctx, data, name)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Document{}, ctxErr
		}
		return Document{}, errors.Wrapf(ErrInvalidInput, "convert %s: %v", name, err)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = name
	}
	summary := s.summarize(ctx, llm.ConvertedSummaryPrompt(md))
	return s.store(ctx, markdownBlocks(title, md), Draft{
		Title:            title,
		Source:           SourceConverted,
		OriginalFilename: &name,
		Summary:          summary,
		JobID:            in.JobID,
	})
}

// FromJob wraps a completed job's markdown output into a document.
func (s *Service) FromJob(ctx context.Context, jobID int64, title string) (Document, error) {
	rc, job, err := s.Jobs.DownloadOutput(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrOutputNotReady) || errors.Is(err, jobs.ErrOutputMissing) {
			return Document{}, errors.Wrapf(ErrJobNotReady, "job %d", jobID)
		}
		if errors.Is(err, jobs.ErrNotFound) {
			return Document{}, errors.Wrapf(ErrJobNotFound, "job %d", jobID)
		}
		return Document{}, err
	}
	defer rc.Close()
	if job.Status != jobs.StatusCompleted || job.OutputMimeType == nil || !strings.HasPrefix(*job.OutputMimeType, "text/") {
		return Document{}, errors.Wrapf(ErrJobNotReady, "job %d", jobID)
	}
	data, err := io.ReadAll(io.LimitReader(rc, maxConvertBytes))
	if err != nil {
		return Document{}, errors.Wrap(err, "read job output")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = job.OriginalFilename
	}
	if title == "" {
		title = defaultConvertedTitle
	}
	md := string(data)
	original := job.OriginalFilename
	summary := job.Summary
	if summary == nil {
		summary = s.summarize(ctx, llm.ConvertedSummaryPrompt(md))
	}
	return s.store(ctx, markdownBlocks(title, md), Draft{
		Title:            title,
		Source:           SourceConverted,
		OriginalFilename: &original,
		Summary:          summary,
		JobID:            &job.ID,
		FolderID:         job.FolderID,
	})
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, id int64) (Document, error) {
	return s.Repo.GetByID(ctx, id)
}

// List returns documents newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	return s.Repo.List(ctx, filter)
}

// Open returns the document row and a reader over its file.
func (s *Service) Open(ctx context.Context, id int64) (io.ReadCloser, Document, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, Document{}, err
	}
	rc, err := s.Store.Open(ctx, object.Documents, doc.FileName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, object.ErrInvalidKey) {
			return nil, doc, ErrFileMissing
		}
		return nil, doc, err
	}
	return rc, doc, nil
}

// SetFolder moves a document into a folder, or out of any folder when
// folderID is nil.
func (s *Service) SetFolder(ctx context.Context, id int64, folderID *int64) (Document, error) {
	if folderID != nil && s.Folders != nil {
		ok, err := s.Folders.Exists(ctx, *folderID)
		if err != nil {
			return Document{}, errors.Wrap(err, "check folder")
		}
		if !ok {
			return Document{}, errors.Wrapf(ErrFolderNotFound, "folder %d", *folderID)
		}
	}
	return s.Repo.SetFolder(ctx, id, folderID)
}

func (s *Service) store(ctx context.Context, blocks []block, draft Draft) (Document, error) {
	now := s.now()
	var buf bytes.Buffer
	if err := writeDocx(&buf, blocks, now); err != nil {
		return Document{}, err
	}
	draft.FileName = fileName(now, draft.Source)
	if _, err := s.Store.Save(ctx, object.Documents, draft.FileName, &buf); err != nil {
		return Document{}, errors.Wrap(err, "save document")
	}
	doc, err := s.Repo.Create(ctx, draft)
	if err != nil {
		if rmErr := s.Store.Remove(context.WithoutCancel(ctx), object.Documents, draft.FileName); rmErr != nil {
			telemetry.Warn("document.cleanup_failed", map[string]any{"file": draft.FileName, "error": rmErr.Error()})
		}
		return Document{}, err
	}
	telemetry.Info("document.created", map[string]any{
		"document_id": doc.ID,
		"source":      string(doc.Source),
		"job_id":      doc.JobID,
	})
	return doc, nil
}

// summarize is best effort; a failing summarizer only drops the summary.
func (s *Service) summarize(ctx context.Context, prompt string) (summary *string) {
	if s.Summarizer == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			telemetry.Warn("document.summary_failed", map[string]any{"error": r})
			summary = nil
		}
	}()
	text, err := s.Summarizer.Summarize(ctx, prompt)
	if err != nil {
		telemetry.Warn("document.summary_failed", map[string]any{"error": err.Error()})
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &text
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func fileName(now time.Time, source Source) string {
	return fmt.Sprintf("%d_%s_%s.docx", now.Unix(), uuid.NewString()[:8], source)
}
