package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/shared/storage/object"
	"docflow-backend/internal/shared/util"
)

// Store implements ObjectStore using the local filesystem layout.
type Store struct {
	layout Layout
	now    func() time.Time

	mu   sync.Mutex
	last int64
}

// New ensures the layout under baseDir and returns a store rooted there.
func New(baseDir string) (*Store, error) {
	layout, err := EnsureLayout(baseDir)
	if err != nil {
		return nil, err
	}
	return &Store{layout: layout, now: time.Now}, nil
}

// Layout returns the resolved directories.
func (s *Store) Layout() Layout {
	return s.layout
}

// SaveUpload writes an upload under a time-prefixed sanitized name.
func (s *Store) SaveUpload(ctx context.Context, fileName string, r io.Reader) (string, int64, string, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, "", err
	}
	sanitized := util.SanitizeFileName(fileName)

	var (
		f         *os.File
		finalName string
		err       error
	)
	for attempt := 0; attempt < 5; attempt++ {
		finalName = fmt.Sprintf("%d_%s", s.nextStamp(), sanitized)
		f, err = os.OpenFile(filepath.Join(s.layout.Uploads, finalName), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil || !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return "", 0, "", errors.Wrap(err, "open file")
	}
	defer f.Close()

	var sniff [512]byte
	n, readErr := io.ReadFull(r, sniff[:])
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return "", 0, "", errors.Wrap(readErr, "read sniff")
	}

	mimeType := http.DetectContentType(sniff[:n])

	size := int64(0)
	if n > 0 {
		if _, err := f.Write(sniff[:n]); err != nil {
			return "", 0, "", errors.Wrap(err, "write sniff")
		}
		size += int64(n)
	}

	written, err := io.Copy(f, r)
	if err != nil {
		return "", 0, "", errors.Wrap(err, "write body")
	}
	size += written

	return finalName, size, mimeType, nil
}

// Save writes r to name inside area, replacing any existing file.
func (s *Store) Save(ctx context.Context, area object.Area, name string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fullPath, err := s.layout.Resolve(area, name)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, errors.Wrap(err, "open file")
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		return 0, errors.Wrap(err, "write body")
	}
	return written, nil
}

// Open opens a stored file for reading.
func (s *Store) Open(ctx context.Context, area object.Area, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.layout.Resolve(area, name)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

// Remove deletes a stored file. A missing file is not an error.
func (s *Store) Remove(ctx context.Context, area object.Area, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.layout.Resolve(area, name)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Path resolves name inside area without touching the filesystem.
func (s *Store) Path(area object.Area, name string) (string, error) {
	return s.layout.Resolve(area, name)
}

// Dir returns the directory for area.
func (s *Store) Dir(area object.Area) string {
	return s.layout.Dir(area)
}

// nextStamp returns a strictly increasing nanosecond timestamp.
func (s *Store) nextStamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.now().UnixNano()
	if n <= s.last {
		n = s.last + 1
	}
	s.last = n
	return n
}
