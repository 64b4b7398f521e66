package folders

import (
	"archive/zip"
	"context"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"

	"docflow-backend/internal/shared/storage/object"
	"docflow-backend/internal/shared/telemetry"
	"docflow-backend/internal/shared/util"
)

const manifestSheet = "Manifest"

// ManifestName is the workbook added to every export.
const ManifestName = "manifest.xlsx"

type manifestEntry struct {
	Path      string
	Kind      string
	SourceID  int64
	Name      string
	Size      int64
	SHA256    string
	CreatedAt time.Time
}

// ArchiveName returns the download name for a folder export.
func ArchiveName(f Folder) string {
	if strings.TrimSpace(f.Name) == "" {
		return "folder_" + strconv.FormatInt(f.ID, 10) + ".zip"
	}
	return util.SanitizeFileName(f.Name) + ".zip"
}

// Export writes a zip archive of the folder's job outputs and documents to
// w, followed by a manifest workbook. Files missing from storage are skipped.
func (s *Service) Export(ctx context.Context, f Folder, w io.Writer) (int, error) {
	js, ds, err := s.contents(ctx, f.ID)
	if err != nil {
		return 0, err
	}

	zw := zip.NewWriter(w)
	used := map[string]int{}
	var entries []manifestEntry

	for _, job := range js {
		if !job.HasOutput() {
			continue
		}
		name := uniqueName(used, "ocr/"+outputName(job.OriginalFilename, *job.OutputFilename))
		entry, ok, err := s.addFile(ctx, zw, object.Results, *job.OutputFilename, name)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		entry.Kind = "ocr"
		entry.SourceID = job.ID
		entry.Name = job.OriginalFilename
		entry.CreatedAt = job.CreatedAt
		entries = append(entries, entry)
	}
	for _, doc := range ds {
		name := uniqueName(used, "word/"+doc.FileName)
		entry, ok, err := s.addFile(ctx, zw, object.Documents, doc.FileName, name)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		entry.Kind = "word"
		entry.SourceID = doc.ID
		entry.Name = doc.Title
		entry.CreatedAt = doc.CreatedAt
		entries = append(entries, entry)
	}

	mw, err := zw.Create(ManifestName)
	if err != nil {
		return 0, errors.Wrap(err, "create manifest entry")
	}
	if err := writeManifest(mw, f, entries); err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, errors.Wrap(err, "close archive")
	}
	telemetry.Info("folder.exported", map[string]any{"folder_id": f.ID, "files": len(entries)})
	return len(entries), nil
}

// addFile copies a stored file into the archive while hashing it. ok is
// false when the file no longer exists.
func (s *Service) addFile(ctx context.Context, zw *zip.Writer, area object.Area, stored, name string) (manifestEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return manifestEntry{}, false, err
	}
	rc, err := s.Store.Open(ctx, area, stored)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, object.ErrInvalidKey) {
			telemetry.Warn("folder.export_missing", map[string]any{"area": string(area), "file": stored})
			return manifestEntry{}, false, nil
		}
		return manifestEntry{}, false, errors.Wrapf(err, "open %s", stored)
	}
	defer rc.Close()

	fw, err := zw.Create(name)
	if err != nil {
		return manifestEntry{}, false, errors.Wrapf(err, "create %s", name)
	}
	sum, n, err := util.HashReader(io.TeeReader(rc, fw))
	if err != nil {
		return manifestEntry{}, false, errors.Wrapf(err, "copy %s", stored)
	}
	return manifestEntry{Path: name, Size: n, SHA256: sum}, true, nil
}

func writeManifest(w io.Writer, f Folder, entries []manifestEntry) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", manifestSheet); err != nil {
		return errors.Wrap(err, "name manifest sheet")
	}
	headers := []string{"Path", "Kind", "Source ID", "Name", "Size (bytes)", "SHA-256", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = book.SetCellValue(manifestSheet, cell, h)
	}
	for i, e := range entries {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = book.SetCellValue(manifestSheet, cell, v)
		}
		write(1, e.Path)
		write(2, e.Kind)
		write(3, e.SourceID)
		write(4, e.Name)
		write(5, e.Size)
		write(6, e.SHA256)
		write(7, e.CreatedAt.UTC().Format(time.RFC3339))
	}
	_ = book.SetColWidth(manifestSheet, "A", "A", 40)
	_ = book.SetColWidth(manifestSheet, "D", "D", 32)
	_ = book.SetColWidth(manifestSheet, "F", "F", 68)
	_ = book.SetColWidth(manifestSheet, "G", "G", 22)
	book.SetDocProps(&excelize.DocProperties{Title: f.Name, Creator: "docflow"})

	if err := book.Write(w); err != nil {
		return errors.Wrap(err, "write manifest")
	}
	return nil
}

// outputName names a job output after its upload, keeping the output's
// extension.
func outputName(original, output string) string {
	base := util.BaseName(original)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" {
		return output
	}
	return stem + path.Ext(output)
}

// uniqueName appends a counter to names already present in the archive.
func uniqueName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(n+1) + ext
}
