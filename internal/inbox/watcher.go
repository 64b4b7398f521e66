// Package inbox submits files dropped into a directory as OCR jobs.
package inbox

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"docflow-backend/internal/jobs"
	"docflow-backend/internal/shared/telemetry"
)

const (
	SubmittedDir = "submitted"
	FailedDir    = "failed"
)

// DefaultExts lists the accepted extensions (lowercase, without '.').
var DefaultExts = map[string]struct{}{
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"tif":  {},
	"tiff": {},
	"docx": {},
	"txt":  {},
	"md":   {},
}

// Submitter accepts new jobs.
type Submitter interface {
	Submit(ctx context.Context, in jobs.SubmitInput) (jobs.Job, error)
}

// Watcher watches one directory (not recursively) and submits new files
// once they have been quiet for the debounce interval.
type Watcher struct {
	Dir         string
	Submitter   Submitter
	Debounce    time.Duration
	InitialScan bool
	Exts        map[string]struct{}
	now         func() time.Time
}

// New constructs a Watcher with a one second debounce and an initial scan.
func New(dir string, sub Submitter) *Watcher {
	return &Watcher{
		Dir:         dir,
		Submitter:   sub,
		Debounce:    time.Second,
		InitialScan: true,
		Exts:        DefaultExts,
		now:         time.Now,
	}
}

// Run watches until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	for _, dir := range []string{w.Dir, filepath.Join(w.Dir, SubmittedDir), filepath.Join(w.Dir, FailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return errors.Wrapf(err, "watch %s", w.Dir)
	}

	pending := map[string]time.Time{}
	if w.InitialScan {
		entries, err := os.ReadDir(w.Dir)
		if err != nil {
			return errors.Wrapf(err, "scan %s", w.Dir)
		}
		for _, e := range entries {
			if !e.IsDir() && w.allowed(e.Name()) {
				pending[filepath.Join(w.Dir, e.Name())] = time.Time{}
			}
		}
	}

	tick := w.Debounce / 2
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	telemetry.Info("inbox.watching", map[string]any{"dir": w.Dir})
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Dir(ev.Name) != filepath.Clean(w.Dir) || !w.allowed(ev.Name) {
				continue
			}
			pending[ev.Name] = w.now()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			telemetry.Warn("inbox.watch_error", map[string]any{"error": err.Error()})
		case <-ticker.C:
			now := w.now()
			for path, last := range pending {
				if now.Sub(last) < w.Debounce {
					continue
				}
				delete(pending, path)
				w.ingest(ctx, path)
			}
		}
	}
}

func (w *Watcher) allowed(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	_, ok := w.Exts[ext]
	return ok
}

// ingest submits one file and moves it out of the inbox. Files rejected by
// validation go to failed/.
func (w *Watcher) ingest(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	job, err := w.submit(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		telemetry.Warn("inbox.submit_failed", map[string]any{"file": path, "error": err.Error()})
		if _, mvErr := w.move(path, FailedDir); mvErr != nil {
			telemetry.Error("inbox.move_failed", map[string]any{"file": path, "error": mvErr.Error()})
		}
		return
	}
	dest, err := w.move(path, SubmittedDir)
	if err != nil {
		telemetry.Error("inbox.move_failed", map[string]any{"file": path, "job_id": job.ID, "error": err.Error()})
		return
	}
	telemetry.Info("inbox.submitted", map[string]any{"file": filepath.Base(path), "job_id": job.ID, "moved_to": dest})
}

func (w *Watcher) submit(ctx context.Context, path string) (jobs.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return jobs.Job{}, errors.Wrap(err, "open inbox file")
	}
	defer f.Close()
	return w.Submitter.Submit(ctx, jobs.SubmitInput{
		FileName:   filepath.Base(path),
		Content:    f,
		AutoDetect: true,
	})
}

// move renames path into sub, prefixing a timestamp when the name is taken.
func (w *Watcher) move(path, sub string) (string, error) {
	dest := filepath.Join(w.Dir, sub, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(w.Dir, sub, strconv.FormatInt(w.now().UnixNano(), 10)+"_"+filepath.Base(path))
	}
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}
