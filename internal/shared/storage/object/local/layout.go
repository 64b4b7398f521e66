package local

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/shared/storage/object"
)

// Layout holds the resolved storage directories under one base directory.
type Layout struct {
	Base      string
	Uploads   string
	Results   string
	Documents string
}

// EnsureLayout creates the uploads, results and results/word_documents
// directories under baseDir. Existing directories are left untouched, so
// concurrent callers all succeed.
func EnsureLayout(baseDir string) (Layout, error) {
	if strings.TrimSpace(baseDir) == "" {
		baseDir = "."
	}
	results := filepath.Join(baseDir, "results")
	l := Layout{
		Base:      baseDir,
		Uploads:   filepath.Join(baseDir, "uploads"),
		Results:   results,
		Documents: filepath.Join(results, "word_documents"),
	}
	for _, dir := range []string{l.Uploads, l.Results, l.Documents} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Layout{}, errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	return l, nil
}

// Dir returns the directory for area, or "" for an unknown area.
func (l Layout) Dir(area object.Area) string {
	switch area {
	case object.Uploads:
		return l.Uploads
	case object.Results:
		return l.Results
	case object.Documents:
		return l.Documents
	default:
		return ""
	}
}

// Resolve returns the path of name inside area. Names must be plain file
// names; separators and traversal are rejected.
func (l Layout) Resolve(area object.Area, name string) (string, error) {
	dir := l.Dir(area)
	if dir == "" {
		return "", errors.Wrapf(object.ErrInvalidKey, "unknown area %q", area)
	}
	if name == "" || name == "." || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) || filepath.IsAbs(name) {
		return "", errors.Wrapf(object.ErrInvalidKey, "%q", name)
	}
	return filepath.Join(dir, name), nil
}

// Check verifies that every area directory exists.
func (l Layout) Check() error {
	for _, dir := range []string{l.Uploads, l.Results, l.Documents} {
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return errors.Newf("%s is not a directory", dir)
		}
	}
	return nil
}
