package documents

import "github.com/cockroachdb/errors"

var (
	ErrNotFound       = errors.New("document not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrFileMissing    = errors.New("document file missing")
	ErrJobNotReady    = errors.New("job has no markdown output")
	ErrJobNotFound    = errors.New("job not found")
	ErrFolderNotFound = errors.New("folder not found")
)
